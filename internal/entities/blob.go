package entities

import (
	"time"
)

// Blob holds opaque content bytes. Key is the book id for a whole archive,
// "<id>/*" for the serialized member list, or "<id>/<name>" for one member.
type Blob struct {
	Key      string    `gorm:"primaryKey;size:2048"`
	Data     []byte    `gorm:"type:blob"`
	StoredAt time.Time
}

func (Blob) TableName() string {
	return "blobs"
}

func (b *Blob) Stamp(t time.Time) {
	b.StoredAt = t
}
