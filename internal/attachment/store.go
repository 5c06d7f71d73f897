// Package attachment stores evidence files uploaded for findings and returns
// the public URL they are served from.
package attachment

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// FileStore writes files under a directory, one subdirectory per owner.
type FileStore struct {
	dir     string
	baseURL string
}

// NewFileStore creates dir if needed. baseURL is the externally visible
// server address; files are served below baseURL/files/.
func NewFileStore(dir, baseURL string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create attachment dir: %w", err)
	}
	return &FileStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Store writes data and returns its public URL. Names are prefixed with a
// random ID so re-uploads of the same filename never overwrite each other.
func (s *FileStore) Store(ctx context.Context, ownerID, filename string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rel, err := objectPath(ownerID, filename)
	if err != nil {
		return "", err
	}
	full := filepath.Join(s.dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", fmt.Errorf("create owner dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o640); err != nil {
		return "", fmt.Errorf("write attachment: %w", err)
	}
	return publicURL(s.baseURL, rel), nil
}

// Handler serves stored files. Mount it with the /files/ prefix stripped.
func (s *FileStore) Handler() http.Handler {
	return http.FileServer(http.Dir(s.dir))
}

// MemoryStore keeps files in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	baseURL string
	files   map[string][]byte
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{baseURL: strings.TrimRight(baseURL, "/"), files: make(map[string][]byte)}
}

func (s *MemoryStore) Store(ctx context.Context, ownerID, filename string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rel, err := objectPath(ownerID, filename)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[rel] = append([]byte(nil), data...)
	return publicURL(s.baseURL, rel), nil
}

// Handler serves stored files, mirroring FileStore.Handler.
func (s *MemoryStore) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		data, ok := s.files[strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")]
		s.mu.RUnlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", http.DetectContentType(data))
		_, _ = w.Write(data)
	})
}

// Len returns the number of stored files.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// objectPath returns "<owner>/<random>-<name>" using a sanitized base name.
func objectPath(ownerID, filename string) (string, error) {
	owner := SanitizeName(ownerID)
	name := SanitizeName(filename)
	if owner == "" || name == "" {
		return "", fmt.Errorf("invalid attachment name %q for owner %q", filename, ownerID)
	}
	return owner + "/" + uuid.NewString()[:8] + "-" + name, nil
}

// SanitizeName keeps the last path element of name and replaces characters
// that are unsafe in file names and URLs.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(strings.TrimSpace(name))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == '/', r == ':', r == '*', r == '?', r == '"', r == '<', r == '>', r == '|':
			return '_'
		}
		return r
	}, name)
}

func publicURL(baseURL, rel string) string {
	owner, name, _ := strings.Cut(rel, "/")
	return baseURL + "/files/" + url.PathEscape(owner) + "/" + url.PathEscape(name)
}
