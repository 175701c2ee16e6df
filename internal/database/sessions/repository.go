// Package sessions stores the single remote login with its bearer token
// encrypted at rest.
//
// # Usage
//
//	enc, _ := crypto.ResolveEncryptor(crypto.KeyConfig{})
//	repo := sessions.NewRepository(db, enc)
//	err := repo.Replace(ctx, &entities.Session{Server: url, Username: u, Token: t})
//	current, err := repo.Current(ctx) // nil, nil when logged out
package sessions

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mrlokans/readerclient/internal/database"
	"github.com/mrlokans/readerclient/internal/entities"
)

// Cipher encrypts the token column. crypto.Encryptor satisfies it.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Repository handles the session partition. There is at most one row.
type Repository struct {
	*database.Collection[entities.Session]
	cipher Cipher
}

// NewRepository creates a sessions repository. A nil cipher stores tokens
// as given.
func NewRepository(db *gorm.DB, cipher Cipher) *Repository {
	return &Repository{
		Collection: database.NewCollection[entities.Session](db, "server"),
		cipher:     cipher,
	}
}

// Replace deletes every stored session and stores s in one transaction.
func (r *Repository) Replace(ctx context.Context, s *entities.Session) error {
	stored := *s
	if r.cipher != nil {
		enc, err := r.cipher.Encrypt(s.Token)
		if err != nil {
			return fmt.Errorf("failed to encrypt token: %w", err)
		}
		stored.Token = enc
	}

	return r.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&entities.Session{}).Error; err != nil {
			return err
		}
		return database.NewCollection[entities.Session](tx, "server").Put(ctx, &stored)
	})
}

// Current returns the stored session with a decrypted token, or nil when
// nobody is logged in.
func (r *Repository) Current(ctx context.Context) (*entities.Session, error) {
	var s entities.Session
	err := r.DB().WithContext(ctx).Order("stored_at DESC").Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if r.cipher != nil {
		token, err := r.cipher.Decrypt(s.Token)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt token: %w", err)
		}
		s.Token = token
	}
	return &s, nil
}
