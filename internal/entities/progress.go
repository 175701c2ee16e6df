package entities

import (
	"time"
)

// Progress is a reading position for one book. Updated is a logical
// timestamp in Unix milliseconds; a nil Completed means unknown.
type Progress struct {
	BookID    string    `gorm:"primaryKey;size:64" json:"-"`
	Updated   int64     `json:"updated"`
	Position  float64   `json:"position"`
	Completed *bool     `json:"completed"`
	StoredAt  time.Time `json:"-"`
}

func (Progress) TableName() string {
	return "progress"
}

func (p *Progress) Stamp(t time.Time) {
	p.StoredAt = t
}

// Same reports whether two records describe the same state.
func (p *Progress) Same(other *Progress) bool {
	if p == nil || other == nil {
		return p == other
	}
	if p.Updated != other.Updated || p.Position != other.Position {
		return false
	}
	if p.Completed == nil || other.Completed == nil {
		return p.Completed == other.Completed
	}
	return *p.Completed == *other.Completed
}

// IsCompleted treats an unknown completion as false.
func (p *Progress) IsCompleted() bool {
	return p != nil && p.Completed != nil && *p.Completed
}

func Bool(v bool) *bool {
	return &v
}
