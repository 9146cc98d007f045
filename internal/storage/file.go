package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/wolfman30/barbershop-client/pkg/logging"
)

// errCorrupt marks a document on disk that no longer decodes.
var errCorrupt = errors.New("storage: corrupt document")

// FileStore persists all keys in a single JSON document on disk.
// Every write rewrites the document through a temp file + rename so a crash
// leaves either the old or the new document, never a torn one.
// A document that fails to decode is reported by Get and replaced on the
// next write; the bad copy is kept next to it with a .corrupt suffix.
type FileStore struct {
	path   string
	logger *logging.Logger
	mu     sync.Mutex
}

// NewFileStore creates the parent directory if needed.
func NewFileStore(path string, logger *logging.Logger) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("storage: file path is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("storage: create dir: %w", err)
	}
	return &FileStore{path: path, logger: logger}, nil
}

var _ KV = (*FileStore)(nil)

// Path returns the backing file location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return "", false, err
	}
	v, ok := doc[key]
	return v, ok, nil
}

func (s *FileStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.readForWrite()
	if err != nil {
		return err
	}
	doc[key] = value
	return s.write(doc)
}

func (s *FileStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.readForWrite()
	if err != nil {
		return err
	}
	changed := false
	for _, k := range keys {
		if _, ok := doc[k]; ok {
			delete(doc, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.write(doc)
}

func (s *FileStore) read() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", s.path, err)
	}
	doc := make(map[string]string)
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errCorrupt, s.path, err)
	}
	return doc, nil
}

// readForWrite is read, except that a corrupt document is set aside and
// writes start over from an empty one.
func (s *FileStore) readForWrite() (map[string]string, error) {
	doc, err := s.read()
	if !errors.Is(err, errCorrupt) {
		return doc, err
	}
	aside := s.path + ".corrupt"
	if rerr := os.Rename(s.path, aside); rerr != nil {
		s.logger.Warn("session file is corrupt, overwriting", "path", s.path, "error", err, "rename_error", rerr)
	} else {
		s.logger.Warn("session file is corrupt, moved aside", "path", s.path, "moved_to", aside, "error", err)
	}
	return make(map[string]string), nil
}

func (s *FileStore) write(doc map[string]string) error {
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("storage: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("storage: chmod: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("storage: rename: %w", err)
	}
	return nil
}
