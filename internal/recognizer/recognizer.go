// Package recognizer turns a camera frame into a Detection by asking an
// embedding server for faces and matching the most prominent one against
// the roster.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"cdr.dev/slog/v3"

	"github.com/kozaktomas/attendance-cam/internal/frame"
	"github.com/kozaktomas/attendance-cam/internal/roster"
)

// ErrNoRoster is returned by Recognize until a roster has been loaded.
var ErrNoRoster = errors.New("no roster loaded")

// FaceDetector finds faces in a JPEG image.
type FaceDetector interface {
	DetectFaces(ctx context.Context, jpegData []byte) (*FaceResponse, error)
}

// Recognizer matches faces against a roster loaded from a store.
type Recognizer struct {
	detector  FaceDetector
	store     roster.Store
	tolerance float64
	logger    slog.Logger

	mu     sync.RWMutex
	loaded bool
	idx    *index
	names  []string
}

// New creates a recognizer. Call Reload before Recognize.
func New(detector FaceDetector, store roster.Store, tolerance float64, logger slog.Logger) *Recognizer {
	return &Recognizer{
		detector:  detector,
		store:     store,
		tolerance: tolerance,
		logger:    logger,
		idx:       newIndex(nil),
	}
}

// Reload replaces the in-memory roster with the stored one and returns the
// known names. On failure the previous roster stays active.
func (r *Recognizer) Reload(ctx context.Context) ([]string, error) {
	ros, err := r.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading roster: %w", err)
	}
	idx := newIndex(ros.Entries)
	names := ros.UniqueNames()

	r.mu.Lock()
	r.idx = idx
	r.names = names
	r.loaded = true
	r.mu.Unlock()

	r.logger.Info(ctx, "roster loaded",
		slog.F("entries", len(idx.entries)), slog.F("people", len(names)), slog.F("hnsw", idx.graph != nil))
	return append([]string(nil), names...), nil
}

// Names returns the known names of the active roster.
func (r *Recognizer) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.names...)
}

// Loaded reports whether a roster is active.
func (r *Recognizer) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// Recognize detects faces in f and identifies the largest one.
func (r *Recognizer) Recognize(ctx context.Context, f *frame.Frame) (frame.Detection, error) {
	r.mu.RLock()
	loaded, idx := r.loaded, r.idx
	r.mu.RUnlock()
	if !loaded {
		return frame.Detection{}, ErrNoRoster
	}

	resp, err := r.detector.DetectFaces(ctx, f.Data)
	if err != nil {
		return frame.Detection{}, fmt.Errorf("detecting faces: %w", err)
	}
	face, ok := largestFace(resp.Faces)
	if !ok {
		return frame.Detection{}, nil
	}

	d := frame.Detection{Identity: frame.IdentityUnknown, Box: toBox(face.BBox, f.Width, f.Height)}
	if len(face.Embedding) == 0 {
		return d, nil
	}
	name, dist, found := idx.nearest(face.Embedding)
	if found && dist <= r.tolerance {
		d.Identity = name
	}
	r.logger.Debug(ctx, "face matched",
		slog.F("nearest", name), slog.F("distance", dist), slog.F("identity", d.Identity))
	return d, nil
}

func largestFace(faces []Face) (Face, bool) {
	best, bestArea := -1, 0.0
	for i, f := range faces {
		if a := f.Area(); a > bestArea {
			best, bestArea = i, a
		}
	}
	if best < 0 {
		return Face{}, false
	}
	return faces[best], true
}

// toBox converts [x1, y1, x2, y2] into a box clamped to the frame.
func toBox(bbox []float64, width, height int) *frame.Box {
	clamp := func(v float64, hi int) int {
		return int(math.Round(math.Max(0, math.Min(v, float64(hi)))))
	}
	return &frame.Box{
		Left:   clamp(bbox[0], width),
		Top:    clamp(bbox[1], height),
		Right:  clamp(bbox[2], width),
		Bottom: clamp(bbox[3], height),
	}
}
