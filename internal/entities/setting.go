package entities

import (
	"time"
)

type Setting struct {
	Key      string    `gorm:"primaryKey;size:255" json:"key"`
	Value    string    `gorm:"type:text" json:"value"`
	StoredAt time.Time `json:"-"`
}

func (Setting) TableName() string {
	return "settings"
}

func (s *Setting) Stamp(t time.Time) {
	s.StoredAt = t
}

// Known setting keys
const (
	// Archives at or above this many bytes are stored member by member.
	SettingKeyMaxUnchunkedSize = "maxUnchunkedSize"
)
