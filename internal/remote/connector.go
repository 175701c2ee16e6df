package remote

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/mrlokans/readerclient/internal/entities"
)

// SessionStore persists the single login. sessions.Repository satisfies it.
type SessionStore interface {
	Current(ctx context.Context) (*entities.Session, error)
	Replace(ctx context.Context, s *entities.Session) error
}

// Connector is the only way to obtain a Client. It reads the stored
// session on every call, so a login is picked up by the next request and
// nothing holds a stale token.
type Connector struct {
	sessions   SessionStore
	httpClient *http.Client
}

func NewConnector(sessions SessionStore, httpClient *http.Client) *Connector {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Connector{sessions: sessions, httpClient: httpClient}
}

// Client returns a client for the current session or ErrNoSession.
func (c *Connector) Client(ctx context.Context) (*Client, error) {
	s, err := c.sessions.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if s == nil {
		return nil, ErrNoSession
	}
	return NewClient(c.httpClient, s.Server, s.Token)
}

// Session returns the stored login, or nil.
func (c *Connector) Session(ctx context.Context) (*entities.Session, error) {
	return c.sessions.Current(ctx)
}

// Login authenticates against server and, only on success, replaces the
// stored session. A failed login leaves the previous session in place.
func (c *Connector) Login(ctx context.Context, server, username, password string) error {
	token, err := Login(ctx, c.httpClient, server, username, password)
	if err != nil {
		return err
	}

	u, err := parseServer(server)
	if err != nil {
		return err
	}

	if err := c.sessions.Replace(ctx, &entities.Session{
		Server:   u.String(),
		Username: username,
		Token:    token,
	}); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	log.Printf("Remote: logged in to %s as %s", u.String(), username)
	return nil
}

// Verify reports whether the current session is accepted by the server.
func (c *Connector) Verify(ctx context.Context) (Verification, error) {
	s, err := c.sessions.Current(ctx)
	if err != nil {
		return Verification{}, fmt.Errorf("failed to load session: %w", err)
	}
	if s == nil {
		return Verification{Connected: false}, nil
	}

	v := Verification{Server: s.Server, Username: s.Username}
	client, err := NewClient(c.httpClient, s.Server, s.Token)
	if err != nil {
		return v, nil
	}

	err = client.Verify(ctx)
	switch {
	case err == nil:
		v.Connected = true
	case errors.Is(err, ErrUnauthorized):
		v.Code = http.StatusUnauthorized
	default:
		v.Code = StatusCode(err)
	}
	return v, nil
}
