// Package remote talks to the library server.
//
// Every call returns a value or a classified error. Transport failures are
// wrapped in ErrUnavailable so callers can fall back to local data with
// errors.Is instead of inspecting network errors.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	maxRetries         = 3
	initialRetryDelay  = 500 * time.Millisecond
	retryBackoffFactor = 2
	maxErrorBody       = 512
)

// Client is bound to one session. Get one from Connector.Client so the
// token is always the current one.
type Client struct {
	httpClient *http.Client
	server     *url.URL
	token      string
	retryDelay time.Duration
}

// NewClient creates a client for server authenticating with token.
func NewClient(httpClient *http.Client, server, token string) (*Client, error) {
	u, err := parseServer(server)
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		server:     u,
		token:      token,
		retryDelay: initialRetryDelay,
	}, nil
}

func parseServer(server string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(server, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidServer, server, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w %q: scheme must be http or https", ErrInvalidServer, server)
	}
	return u, nil
}

// Server returns the base url the client talks to.
func (c *Client) Server() string {
	return c.server.String()
}

func (c *Client) endpoint(query map[string]string, elem ...string) string {
	u := c.server.JoinPath(elem...)
	if len(query) > 0 {
		q := u.Query()
		for k, v := range query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// Search proxies a library search.
func (c *Client) Search(ctx context.Context, q SearchQuery) ([]Book, error) {
	var books []Book
	if err := c.getJSON(ctx, c.endpoint(q.values(), "search"), &books); err != nil {
		return nil, err
	}
	return books, nil
}

// Meta fetches the server's record for one book.
func (c *Client) Meta(ctx context.Context, bookID string) (*Book, error) {
	var book Book
	if err := c.getJSON(ctx, c.endpoint(nil, "bookmeta", bookID), &book); err != nil {
		return nil, err
	}
	if book.ID == "" {
		book.ID = bookID
	}
	return &book, nil
}

// Archive opens the whole archive. The caller closes the body.
func (c *Client) Archive(ctx context.Context, bookID string) (io.ReadCloser, error) {
	resp, err := c.get(ctx, c.endpoint(nil, "book", bookID))
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Files fetches the member list of an archive.
func (c *Client) Files(ctx context.Context, bookID string) ([]string, error) {
	u := c.endpoint(nil, "book", bookID) + "?files"
	var files []string
	if err := c.getJSON(ctx, u, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// File fetches one archive member.
func (c *Client) File(ctx context.Context, bookID, name string) ([]byte, error) {
	resp, err := c.get(ctx, c.endpoint(map[string]string{"filename": name}, "book", bookID))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrUnavailable, name, err)
	}
	return data, nil
}

// Progress fetches the server's reading position. ErrNotFound when the
// server has none.
func (c *Client) Progress(ctx context.Context, bookID string) (*Progress, error) {
	var p *Progress
	if err := c.getJSON(ctx, c.endpoint(nil, "progress", bookID), &p); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	return p, nil
}

// UpdateProgress stores a reading position on the server.
func (c *Client) UpdateProgress(ctx context.Context, bookID string, p Progress) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPut, c.endpoint(nil, "progress", bookID), body)
	if err != nil {
		return err
	}
	drain(resp)
	return nil
}

// Verify checks the session is still accepted.
func (c *Client) Verify(ctx context.Context) error {
	resp, err := c.get(ctx, c.endpoint(nil, "verify"))
	if err != nil {
		return err
	}
	drain(resp)
	return nil
}

// Collections fetches the collection tree as the server renders it.
func (c *Client) Collections(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, c.endpoint(nil, "collections"), &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Login exchanges credentials for a token. It does not touch any session.
func Login(ctx context.Context, httpClient *http.Client, server, username, password string) (string, error) {
	c, err := NewClient(httpClient, server, "")
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(loginRequest{Username: username, Password: password})
	if err != nil {
		return "", fmt.Errorf("failed to encode credentials: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, c.endpoint(nil, "login"), body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode login response: %w", err)
	}
	if out.Token == "" {
		return "", ErrUnauthorized
	}
	return out.Token, nil
}

func (c *Client) getJSON(ctx context.Context, u string, v any) error {
	resp, err := c.get(ctx, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// get retries rate limits and server errors with exponential backoff.
func (c *Client) get(ctx context.Context, u string) (*http.Response, error) {
	var lastErr error
	delay := c.retryDelay

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= retryBackoffFactor
		}

		resp, err := c.do(ctx, http.MethodGet, u, nil)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) do(ctx context.Context, method, u string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if err := checkStatus(resp); err != nil {
		drain(resp)
		return nil, err
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &ServerError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
