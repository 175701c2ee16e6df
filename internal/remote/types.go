package remote

import (
	"strconv"

	"github.com/mrlokans/readerclient/internal/entities"
)

// Book is a book as the library server describes it.
type Book struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Format     entities.Format `json:"format"`
	Collection string          `json:"collection,omitempty"`
	Size       int             `json:"size"`
	FileSize   int64           `json:"fileSize"`
	Cover      *string         `json:"cover"`
}

// Record converts the remote view into a local record. Chunked is decided
// by whoever stores the content.
func (b Book) Record() entities.Book {
	return entities.Book{
		ID:         b.ID,
		Title:      b.Title,
		Format:     b.Format,
		Collection: b.Collection,
		Size:       b.Size,
		FileSize:   b.FileSize,
		Cover:      b.Cover,
	}
}

// SearchQuery is passed through to the server's search endpoint.
type SearchQuery struct {
	Term      string
	Page      int
	PageSize  int
	Order     string
	Completed *bool
}

func (q SearchQuery) values() map[string]string {
	v := map[string]string{}
	if q.Term != "" {
		v["term"] = q.Term
	}
	if q.Page > 0 {
		v["page"] = strconv.Itoa(q.Page)
	}
	if q.PageSize > 0 {
		v["pageSize"] = strconv.Itoa(q.PageSize)
	}
	if q.Order != "" {
		v["order"] = q.Order
	}
	if q.Completed != nil {
		v["completed"] = strconv.FormatBool(*q.Completed)
	}
	return v
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Verification is the connection status shown to the reader UI.
type Verification struct {
	Server    string `json:"server"`
	Username  string `json:"username"`
	Connected bool   `json:"connected"`
	Code      int    `json:"code,omitempty"`
}

// Progress is the wire form of a reading position.
type Progress struct {
	Updated   int64   `json:"updated"`
	Position  float64 `json:"position"`
	Completed *bool   `json:"completed"`
}

func ProgressFrom(p *entities.Progress) Progress {
	return Progress{Updated: p.Updated, Position: p.Position, Completed: p.Completed}
}

func (p Progress) Record(bookID string) *entities.Progress {
	return &entities.Progress{BookID: bookID, Updated: p.Updated, Position: p.Position, Completed: p.Completed}
}
