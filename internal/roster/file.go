package roster

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// FileStore keeps the roster in a single gob file. Writes replace the file
// atomically so a reader never sees a partial roster.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the roster file.
func (s *FileStore) Load(_ context.Context) (*Roster, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoRoster
	}
	if err != nil {
		return nil, fmt.Errorf("opening roster: %w", err)
	}
	defer f.Close()

	var r Roster
	if err := gob.NewDecoder(f).Decode(&r); err != nil {
		return nil, fmt.Errorf("decoding roster %s: %w", s.path, err)
	}
	return &r, nil
}

// Save writes the roster file.
func (s *FileStore) Save(_ context.Context, r *Roster) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(r); err != nil {
		return fmt.Errorf("encoding roster: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating roster directory: %w", err)
		}
	}
	if err := atomic.WriteFile(s.path, &buf); err != nil {
		return fmt.Errorf("writing roster: %w", err)
	}
	return nil
}
