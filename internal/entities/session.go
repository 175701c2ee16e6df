package entities

import (
	"time"
)

// Session is the single remote login. Token is stored encrypted; callers of
// the sessions repository always see the plaintext value.
type Session struct {
	Server   string    `gorm:"primaryKey;size:1024" json:"server"`
	Username string    `gorm:"size:256" json:"username"`
	Token    string    `gorm:"type:text" json:"-"`
	StoredAt time.Time `json:"-"`
}

func (Session) TableName() string {
	return "sessions"
}

func (s *Session) Stamp(t time.Time) {
	s.StoredAt = t
}
