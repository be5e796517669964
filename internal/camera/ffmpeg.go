package camera

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"cdr.dev/slog/v3"
	"github.com/cenkalti/backoff/v4"
	"github.com/coder/quartz"

	"github.com/kozaktomas/attendance-cam/internal/frame"
)

var (
	jpegStart = []byte{0xFF, 0xD8}
	jpegEnd   = []byte{0xFF, 0xD9}
)

// stableRun is how long ffmpeg must stay up before its restart backoff resets.
const stableRun = 30 * time.Second

// FFmpegSource reads MJPEG frames from an ffmpeg child process. Only the
// newest frame is kept; a slow reader skips frames instead of queueing them.
type FFmpegSource struct {
	device string
	opts   Options
	clock  quartz.Clock
	logger slog.Logger

	// command builds the process; tests replace it.
	command func(ctx context.Context, name string, args ...string) *exec.Cmd

	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	latest  []byte
	fresh   bool
	seq     uint64
	arrived chan struct{}
}

// NewFFmpegSource starts ffmpeg for device in the background. The process is
// restarted with exponential backoff whenever it exits.
func NewFFmpegSource(device string, opts Options, clock quartz.Clock, logger slog.Logger) *FFmpegSource {
	s := newFFmpegSource(device, opts, clock, logger, exec.CommandContext)
	s.start()
	return s
}

func newFFmpegSource(device string, opts Options, clock quartz.Clock, logger slog.Logger,
	command func(ctx context.Context, name string, args ...string) *exec.Cmd,
) *FFmpegSource {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 2 * time.Second
	}
	return &FFmpegSource{
		device:  device,
		opts:    opts,
		clock:   clock,
		logger:  logger,
		command: command,
		done:    make(chan struct{}),
		arrived: make(chan struct{}),
	}
}

func (s *FFmpegSource) start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		defer close(s.done)
		s.supervise(ctx)
	}()
}

// Args returns the ffmpeg command line for the configured device.
func (s *FFmpegSource) Args() []string {
	if IsNetworkSource(s.device) {
		return []string{
			"-loglevel", "error",
			"-i", s.device,
			"-f", "image2pipe",
			"-vcodec", "mjpeg",
			"-r", strconv.Itoa(s.opts.FPS),
			"-q:v", "5",
			"-",
		}
	}
	return []string{
		"-loglevel", "error",
		"-f", "v4l2",
		"-input_format", "mjpeg",
		"-video_size", fmt.Sprintf("%dx%d", s.opts.Width, s.opts.Height),
		"-framerate", strconv.Itoa(s.opts.FPS),
		"-i", s.device,
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "5",
		"-",
	}
}

func (s *FFmpegSource) supervise(ctx context.Context) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0

	for {
		started := s.clock.Now("camera", "ffmpeg")
		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if s.clock.Since(started, "camera", "ffmpeg") > stableRun {
			b.Reset()
		}
		wait := b.NextBackOff()
		s.logger.Warn(ctx, "ffmpeg exited, restarting",
			slog.F("device", s.device), slog.F("retry_in", wait), slog.Error(err))

		timer := s.clock.NewTimer(wait, "camera", "restart")
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *FFmpegSource) runOnce(ctx context.Context) error {
	cmd := s.command(ctx, s.opts.FFmpegPath, s.Args()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &limitedWriter{buf: &stderr, max: 4096}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting ffmpeg: %w", err)
	}
	s.logger.Info(ctx, "ffmpeg started", slog.F("device", s.device), slog.F("pid", cmd.Process.Pid))

	readErr := SplitJPEG(stdout, s.publish)
	waitErr := cmd.Wait()
	if waitErr != nil {
		return fmt.Errorf("ffmpeg: %w: %s", waitErr, bytes.TrimSpace(stderr.Bytes()))
	}
	return readErr
}

func (s *FFmpegSource) publish(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = data
	s.fresh = true
	close(s.arrived)
	s.arrived = make(chan struct{})
}

// ReadFrame waits for a frame newer than the last one returned.
func (s *FFmpegSource) ReadFrame(ctx context.Context) (*frame.Frame, error) {
	timer := s.clock.NewTimer(s.opts.ReadTimeout, "camera", "read")
	defer timer.Stop()

	for {
		s.mu.Lock()
		if s.fresh {
			data := s.latest
			s.fresh = false
			s.seq++
			seq := s.seq
			s.mu.Unlock()
			return frame.FromJPEG(seq, s.clock.Now("camera", "read"), data)
		}
		arrived := s.arrived
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.done:
			return nil, ErrNoFrame
		case <-timer.C:
			return nil, ErrNoFrame
		case <-arrived:
		}
	}
}

// Close stops ffmpeg and waits for the supervisor to exit.
func (s *FFmpegSource) Close() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	return nil
}

// SplitJPEG cuts a concatenated MJPEG byte stream into individual JPEG
// images and passes each to emit. It returns nil at EOF.
func SplitJPEG(r io.Reader, emit func([]byte)) error {
	br := bufio.NewReaderSize(r, 64*1024)
	buf := make([]byte, 0, 256*1024)
	chunk := make([]byte, 32*1024)
	for {
		n, err := br.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			for {
				img, rest, ok := extractJPEG(buf)
				if !ok {
					buf = rest
					break
				}
				emit(img)
				buf = rest
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading ffmpeg output: %w", err)
		}
	}
}

// extractJPEG returns the first complete image in buf and the remaining
// bytes. Leading garbage before a start marker is discarded.
func extractJPEG(buf []byte) (img, rest []byte, ok bool) {
	start := bytes.Index(buf, jpegStart)
	if start < 0 {
		// Keep a trailing 0xFF that may be the first half of a marker.
		if len(buf) > 0 && buf[len(buf)-1] == 0xFF {
			return nil, buf[len(buf)-1:], false
		}
		return nil, buf[:0], false
	}
	end := bytes.Index(buf[start+2:], jpegEnd)
	if end < 0 {
		return nil, buf[start:], false
	}
	end += start + 2 + len(jpegEnd)
	img = make([]byte, end-start)
	copy(img, buf[start:end])
	return img, buf[end:], true
}

type limitedWriter struct {
	buf *bytes.Buffer
	max int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if room := w.max - w.buf.Len(); room > 0 {
		if len(p) > room {
			w.buf.Write(p[:room])
		} else {
			w.buf.Write(p)
		}
	}
	return len(p), nil
}
