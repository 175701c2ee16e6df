// Package remotetest provides an in-memory library server for tests.
package remotetest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mrlokans/readerclient/internal/archive"
	"github.com/mrlokans/readerclient/internal/remote"
)

const (
	DefaultUsername = "reader"
	DefaultPassword = "secret"
	DefaultToken    = "token-1"
)

// Server is a library server holding books, archives and progress in maps.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	username    string
	password    string
	token       string
	offline     bool
	books       map[string]remote.Book
	archives    map[string][]byte
	progress    map[string]remote.Progress
	collections json.RawMessage
	hits        map[string]int
}

// NewServer starts a server that is closed when the test ends.
func NewServer(t *testing.T) *Server {
	t.Helper()
	s := &Server{
		username:    DefaultUsername,
		password:    DefaultPassword,
		token:       DefaultToken,
		books:       map[string]remote.Book{},
		archives:    map[string][]byte{},
		progress:    map[string]remote.Progress{},
		collections: json.RawMessage(`[]`),
		hits:        map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", s.login)
	mux.HandleFunc("GET /search", s.authed(s.search))
	mux.HandleFunc("GET /bookmeta/{id}", s.authed(s.meta))
	mux.HandleFunc("GET /book/{id}", s.authed(s.content))
	mux.HandleFunc("GET /progress/{id}", s.authed(s.getProgress))
	mux.HandleFunc("PUT /progress/{id}", s.authed(s.putProgress))
	mux.HandleFunc("GET /verify", s.authed(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("{}"))
	}))
	mux.HandleFunc("GET /collections", s.authed(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		raw := s.collections
		s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write(raw)
	}))

	s.Server = httptest.NewServer(s.gate(mux))
	t.Cleanup(s.Close)
	return s
}

// AddBook registers a book and, when data is given, its archive.
func (s *Server) AddBook(book remote.Book, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if data != nil {
		s.archives[book.ID] = data
		if book.FileSize == 0 {
			book.FileSize = int64(len(data))
		}
	}
	s.books[book.ID] = book
}

func (s *Server) SetProgress(bookID string, p remote.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress[bookID] = p
}

// Progress returns what the server holds for a book.
func (s *Server) Progress(bookID string) (remote.Progress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.progress[bookID]
	return p, ok
}

func (s *Server) SetCollections(raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections = json.RawMessage(raw)
}

// SetToken changes the token issued on login and accepted afterwards.
func (s *Server) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// SetOffline makes every request fail at the connection level.
func (s *Server) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = offline
}

// Hits counts requests whose path and raw query start with prefix.
func (s *Server) Hits(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, v := range s.hits {
		if strings.HasPrefix(k, prefix) {
			n += v
		}
	}
	return n
}

func (s *Server) gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		offline := s.offline
		key := r.URL.Path
		if r.URL.RawQuery != "" {
			key += "?" + r.URL.RawQuery
		}
		s.hits[key]++
		s.mu.Unlock()

		if offline {
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					conn.Close()
					return
				}
			}
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		want := "Bearer " + s.token
		s.mu.Unlock()
		if r.Header.Get("Authorization") != want {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	ok := creds.Username == s.username && creds.Password == s.password
	token := s.token
	s.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	writeJSON(w, map[string]string{"token": token})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	term := strings.ToLower(r.URL.Query().Get("term"))
	s.mu.Lock()
	out := []remote.Book{}
	for _, b := range s.books {
		if term == "" || strings.Contains(strings.ToLower(b.Title), term) {
			out = append(out, b)
		}
	}
	s.mu.Unlock()
	writeJSON(w, out)
}

func (s *Server) meta(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	b, ok := s.books[r.PathValue("id")]
	s.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, b)
}

func (s *Server) content(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	data, ok := s.archives[r.PathValue("id")]
	s.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	_, wantFiles := q["files"]
	name := q.Get("filename")
	if !wantFiles && name == "" {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(data)
		return
	}

	ar, err := archive.OpenBytes(data)
	if err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		return
	}
	if wantFiles {
		writeJSON(w, ar.Files())
		return
	}
	member, err := ar.File(name)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Write(member)
}

func (s *Server) getProgress(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	p, ok := s.progress[r.PathValue("id")]
	s.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, p)
}

func (s *Server) putProgress(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var p remote.Progress
	if err := json.Unmarshal(body, &p); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.SetProgress(r.PathValue("id"), p)
	writeJSON(w, true)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
