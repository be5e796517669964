package camera

import (
	"context"
	"fmt"
	"sync"

	"github.com/kozaktomas/attendance-cam/internal/frame"
)

// ReopeningSource stands in for a source that could not be opened. Every
// read retries the open and fails with ErrNoFrame until it succeeds, after
// which reads go to the opened source.
type ReopeningSource struct {
	open func() (Source, error)

	mu     sync.Mutex
	src    Source
	closed bool
}

// NewReopeningSource returns a source that opens through open on demand.
func NewReopeningSource(open func() (Source, error)) *ReopeningSource {
	return &ReopeningSource{open: open}
}

func (s *ReopeningSource) source() (Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("%w: source closed", ErrNoFrame)
	}
	if s.src != nil {
		return s.src, nil
	}
	src, err := s.open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoFrame, err)
	}
	s.src = src
	return src, nil
}

// ReadFrame reads from the underlying source once it could be opened.
func (s *ReopeningSource) ReadFrame(ctx context.Context) (*frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := s.source()
	if err != nil {
		return nil, err
	}
	return src.ReadFrame(ctx)
}

// Close closes the underlying source, if it was opened.
func (s *ReopeningSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.src == nil {
		return nil
	}
	return s.src.Close()
}
