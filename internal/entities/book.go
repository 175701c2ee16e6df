package entities

import (
	"time"
)

type Format string

const (
	FormatCBZ  Format = "cbz"
	FormatCBR  Format = "cbr"
	FormatCB7  Format = "cb7"
	FormatEPUB Format = "epub"
	FormatPDF  Format = "pdf"
)

// Archived reports whether the format is a zip container whose members
// can be listed and stored individually.
func (f Format) Archived() bool {
	return f == FormatCBZ || f == FormatEPUB
}

// Book is the local record of one book. ID is the content digest of the
// original archive bytes.
type Book struct {
	ID         string    `gorm:"primaryKey;size:64" json:"id"`
	Title      string    `gorm:"index;size:512" json:"title"`
	Format     Format    `gorm:"size:16" json:"format"`
	Collection string    `gorm:"index;size:1024" json:"collection,omitempty"`
	Size       int       `json:"size"`
	FileSize   int64     `json:"fileSize"`
	Cover      *string   `gorm:"type:text" json:"cover"`
	Chunked    bool      `json:"chunked"`
	StoredAt   time.Time `json:"-"`
}

func (Book) TableName() string {
	return "books"
}

func (b *Book) Stamp(t time.Time) {
	b.StoredAt = t
}
