package camera

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/coder/quartz"

	"github.com/kozaktomas/attendance-cam/internal/frame"
)

// DirSource replays the JPEG files of a directory in name order, wrapping
// around at the end. It stands in for a camera in demos and tests.
type DirSource struct {
	clock quartz.Clock
	files []string

	mu   sync.Mutex
	next int
	seq  uint64
}

// NewDirSource lists the JPEG files in dir.
func NewDirSource(dir string, clock quartz.Clock) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading frame directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".jpg" || ext == ".jpeg" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no JPEG files in %s", dir)
	}
	sort.Strings(files)
	return &DirSource{clock: clock, files: files}, nil
}

// ReadFrame returns the next file as a frame.
func (s *DirSource) ReadFrame(ctx context.Context) (*frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	path := s.files[s.next]
	s.next = (s.next + 1) % len(s.files)
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return frame.FromJPEG(seq, s.clock.Now("camera", "read"), data)
}

// Close is a no-op.
func (s *DirSource) Close() error {
	return nil
}
