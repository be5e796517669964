package frame

import (
	"image"
	"sync"
)

// Identity values with special meaning.
const (
	IdentityNone    = ""        // no face in the frame
	IdentityUnknown = "unknown" // face present, no roster match within tolerance
)

// Box is a face bounding box in pixel coordinates.
type Box struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// Area returns the box area, zero for degenerate boxes.
func (b Box) Area() int {
	w, h := b.Right-b.Left, b.Bottom-b.Top
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Rect converts the box to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right, b.Bottom)
}

// Detection is the result of one recognition tick.
type Detection struct {
	Identity string `json:"identity"`
	Box      *Box   `json:"box,omitempty"`
}

// HasFace reports whether any face was found.
func (d Detection) HasFace() bool {
	return d.Identity != IdentityNone
}

// IsKnown reports whether the detection names a roster identity.
func (d Detection) IsKnown() bool {
	return d.Identity != IdentityNone && d.Identity != IdentityUnknown
}

// DetectionCache holds the most recent Detection. The recognition loop writes
// it, the capture loop reads it for the overlay; it has its own lock so a slow
// recognition tick never stalls capture.
type DetectionCache struct {
	mu     sync.Mutex
	latest Detection
}

// Store replaces the cached detection.
func (c *DetectionCache) Store(d Detection) {
	if d.Box != nil {
		b := *d.Box
		d.Box = &b
	}
	c.mu.Lock()
	c.latest = d
	c.mu.Unlock()
}

// Load returns a copy of the cached detection.
func (c *DetectionCache) Load() Detection {
	c.mu.Lock()
	d := c.latest
	c.mu.Unlock()
	if d.Box != nil {
		b := *d.Box
		d.Box = &b
	}
	return d
}
