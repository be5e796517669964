package camera

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/coder/quartz"

	"github.com/kozaktomas/attendance-cam/internal/frame"
)

// maxSnapshotSize bounds a single downloaded image.
const maxSnapshotSize = 16 << 20

// SnapshotSource polls an HTTP endpoint that returns one JPEG per request.
type SnapshotSource struct {
	url    string
	client *http.Client
	clock  quartz.Clock

	mu  sync.Mutex
	seq uint64
}

// NewSnapshotSource creates a source for url.
func NewSnapshotSource(url string, timeout time.Duration, clock quartz.Clock) *SnapshotSource {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &SnapshotSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
		clock:  clock,
	}
}

// ReadFrame downloads and decodes the current image.
func (s *SnapshotSource) ReadFrame(ctx context.Context) (*frame.Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot endpoint returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotSize))
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()
	return frame.FromJPEG(seq, s.clock.Now("camera", "read"), data)
}

// Close releases idle connections.
func (s *SnapshotSource) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
