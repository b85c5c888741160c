// Package tustest runs a minimal in-memory tus 1.0.0 server for tests.
package tustest

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Server implements the tus core protocol plus the creation and termination
// extensions. Uploads live at /files/{n}.
type Server struct {
	mu         sync.Mutex
	nextID     int
	uploads    map[string]*upload
	deleted    []string
	failCreate bool
	patchHook  func(*http.Request) bool

	srv *httptest.Server
}

type upload struct {
	length int64
	data   bytes.Buffer
	meta   string
}

// NewServer starts a server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{uploads: make(map[string]*upload)}
	s.srv = httptest.NewServer(s)
	t.Cleanup(s.srv.Close)
	return s
}

// Endpoint is the creation URL.
func (s *Server) Endpoint() string {
	return s.srv.URL + "/files/"
}

// SetFailCreate makes every creation request fail with 500.
func (s *Server) SetFailCreate(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCreate = fail
}

// SetPatchHook installs fn to run before each PATCH is applied, outside the
// server lock. When fn returns false the request is answered with 503 and the
// upload is left untouched.
func (s *Server) SetPatchHook(fn func(*http.Request) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patchHook = fn
}

// Created returns the number of uploads created so far.
func (s *Server) Created() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextID
}

// Contents returns the bytes received for each live upload in creation order.
func (s *Server) Contents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.uploads))
	for i := 1; i <= s.nextID; i++ {
		if u, ok := s.uploads[strconv.Itoa(i)]; ok {
			out = append(out, u.data.String())
		}
	}
	return out
}

// Metadata returns the raw Upload-Metadata header of each live upload.
func (s *Server) Metadata() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.uploads))
	for i := 1; i <= s.nextID; i++ {
		if u, ok := s.uploads[strconv.Itoa(i)]; ok {
			out = append(out, u.meta)
		}
	}
	return out
}

// Deleted returns the ids removed by termination requests.
func (s *Server) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Tus-Resumable", "1.0.0")

	if r.Method == http.MethodPatch {
		s.mu.Lock()
		hook := s.patchHook
		s.mu.Unlock()
		if hook != nil && !hook(r) {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimPrefix(r.URL.Path, "/files/")

	switch r.Method {
	case http.MethodOptions:
		w.Header().Set("Tus-Version", "1.0.0")
		w.Header().Set("Tus-Extension", "creation,termination")
		w.WriteHeader(http.StatusNoContent)

	case http.MethodPost:
		if s.failCreate {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		length, err := strconv.ParseInt(r.Header.Get("Upload-Length"), 10, 64)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.nextID++
		id := strconv.Itoa(s.nextID)
		s.uploads[id] = &upload{length: length, meta: r.Header.Get("Upload-Metadata")}
		w.Header().Set("Location", fmt.Sprintf("http://%s/files/%s", r.Host, id))
		w.WriteHeader(http.StatusCreated)

	case http.MethodHead:
		u, ok := s.uploads[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Upload-Offset", strconv.Itoa(u.data.Len()))
		w.Header().Set("Upload-Length", strconv.FormatInt(u.length, 10))
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)

	case http.MethodPatch:
		u, ok := s.uploads[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		offset, err := strconv.ParseInt(r.Header.Get("Upload-Offset"), 10, 64)
		if err != nil || offset != int64(u.data.Len()) {
			w.WriteHeader(http.StatusConflict)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		u.data.Write(body)
		w.Header().Set("Upload-Offset", strconv.Itoa(u.data.Len()))
		w.WriteHeader(http.StatusNoContent)

	case http.MethodDelete:
		if _, ok := s.uploads[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(s.uploads, id)
		s.deleted = append(s.deleted, id)
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
