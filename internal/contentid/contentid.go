// Package contentid derives book ids from archive bytes.
//
// An id is the lowercase hex SHA-256 of the archive. Input is consumed in
// bounded slices so arbitrarily large uploads hash in constant memory, and
// the result does not depend on how the input is sliced.
package contentid

import (
	"errors"
	"fmt"
	"io"

	"github.com/opencontainers/go-digest"
)

// BufferSize is the largest slice handed to the hash at once.
const BufferSize = 1 << 20

var (
	ErrInvalidID = errors.New("invalid content id")
	ErrMismatch  = errors.New("content does not match id")
)

// FromReader hashes everything r yields and returns the id and byte count.
func FromReader(r io.Reader) (string, int64, error) {
	digester := digest.Canonical.Digester()
	buf := make([]byte, BufferSize)
	n, err := io.CopyBuffer(digester.Hash(), onlyReader{r}, buf)
	if err != nil {
		return "", n, fmt.Errorf("failed to hash content: %w", err)
	}
	return digester.Digest().Encoded(), n, nil
}

// FromBytes returns the id of an in-memory archive.
func FromBytes(p []byte) string {
	return digest.Canonical.FromBytes(p).Encoded()
}

// Parse validates an id and returns its full digest form.
func Parse(id string) (digest.Digest, error) {
	d := digest.NewDigestFromEncoded(digest.Canonical, id)
	if err := d.Validate(); err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidID, id)
	}
	return d, nil
}

// Valid reports whether id looks like a content id.
func Valid(id string) bool {
	_, err := Parse(id)
	return err == nil
}

// Verify reads r to the end and checks it hashes to id.
func Verify(id string, r io.Reader) error {
	d, err := Parse(id)
	if err != nil {
		return err
	}
	verifier := d.Verifier()
	if _, err := io.CopyBuffer(verifier, onlyReader{r}, make([]byte, BufferSize)); err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}
	if !verifier.Verified() {
		return ErrMismatch
	}
	return nil
}

// onlyReader hides WriterTo/ReaderFrom so io.CopyBuffer always goes
// through the bounded buffer.
type onlyReader struct {
	io.Reader
}
