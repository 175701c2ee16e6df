// Package archive reads the zip containers books are distributed in.
//
// Only what the gateway needs is extracted: the member list, member bytes,
// the number of pages or content documents, and the first image as a cover.
// Formats that are not zip containers are reported with ErrNotArchive.
package archive

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/mrlokans/readerclient/internal/entities"
)

var (
	ErrNotArchive     = errors.New("not a zip archive")
	ErrMemberNotFound = errors.New("archive member not found")
)

// MaxCoverBytes bounds the image inlined as a cover.
const MaxCoverBytes = 4 << 20

// Info is what inspection learns about a book.
type Info struct {
	Format entities.Format
	Size   int
	Cover  *string
	Files  []string
}

// Reader exposes the members of one archive.
type Reader struct {
	zr    *zip.Reader
	index map[string]*zip.File
	names []string
}

// Open reads the central directory of the archive in ra.
func Open(ra io.ReaderAt, size int64) (*Reader, error) {
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotArchive, err)
	}

	r := &Reader{zr: zr, index: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if _, dup := r.index[f.Name]; dup {
			continue
		}
		r.index[f.Name] = f
		r.names = append(r.names, f.Name)
	}
	return r, nil
}

// OpenBytes is Open over an in-memory archive.
func OpenBytes(data []byte) (*Reader, error) {
	return Open(bytes.NewReader(data), int64(len(data)))
}

// Files returns member names in archive order.
func (r *Reader) Files() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// File returns the uncompressed bytes of one member.
func (r *Reader) File(name string) ([]byte, error) {
	f, ok := r.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMemberNotFound, name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

// FormatOf guesses the book format from its file name.
func FormatOf(filename string) entities.Format {
	switch strings.ToLower(path.Ext(filename)) {
	case ".cbz", ".zip":
		return entities.FormatCBZ
	case ".cbr", ".rar":
		return entities.FormatCBR
	case ".cb7", ".7z":
		return entities.FormatCB7
	case ".epub":
		return entities.FormatEPUB
	case ".pdf":
		return entities.FormatPDF
	}
	return ""
}

// Inspect derives size and cover for the given format.
func (r *Reader) Inspect(format entities.Format) Info {
	info := Info{Format: format, Files: r.Files()}

	images := r.images()
	switch format {
	case entities.FormatEPUB:
		info.Size = len(r.documents())
	default:
		info.Size = len(images)
	}

	for _, name := range images {
		if r.index[name].UncompressedSize64 > MaxCoverBytes {
			continue
		}
		data, err := r.File(name)
		if err != nil {
			continue
		}
		cover := DataURL(name, data)
		info.Cover = &cover
		break
	}
	return info
}

// images lists image members in reading order.
func (r *Reader) images() []string {
	var out []string
	for _, name := range r.names {
		if isImage(name) && !hidden(name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (r *Reader) documents() []string {
	var out []string
	for _, name := range r.names {
		switch strings.ToLower(path.Ext(name)) {
		case ".html", ".htm", ".xhtml":
			out = append(out, name)
		}
	}
	return out
}

func isImage(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp":
		return true
	}
	return false
}

// hidden skips resource forks and dot files packed by desktop archivers.
func hidden(name string) bool {
	base := path.Base(name)
	return strings.HasPrefix(base, ".") || strings.HasPrefix(name, "__MACOSX/")
}

// DataURL inlines bytes with the media type implied by name.
func DataURL(name string, data []byte) string {
	mediaType := mime.TypeByExtension(strings.ToLower(path.Ext(name)))
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
