package frame

import (
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// solidFrame creates a JPEG frame filled with a single gray color.
func solidFrame(t *testing.T, seq uint64, w, h int) *Frame {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: 40, G: 40, B: 40, A: 255})
		}
	}
	f, err := FromImage(seq, time.Unix(1700000000, 0), img, 90)
	require.NoError(t, err)
	return f
}

func TestFromJPEG_RoundTrip(t *testing.T) {
	src := solidFrame(t, 1, 32, 24)

	f, err := FromJPEG(7, src.CapturedAt, src.Data)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), f.Seq)
	assert.Equal(t, 32, f.Width)
	assert.Equal(t, 24, f.Height)
	assert.Equal(t, EncodingJPEG, f.Encoding)
}

func TestFromJPEG_Invalid(t *testing.T) {
	_, err := FromJPEG(1, time.Now(), []byte("not a jpeg"))
	require.Error(t, err)
}

func TestBus_EmptyBeforePublish(t *testing.T) {
	var b Bus
	raw, display := b.Latest()
	assert.Nil(t, raw)
	assert.Nil(t, display)
	assert.Nil(t, b.Raw())
	assert.Equal(t, BusStats{}, b.Stats())
}

func TestBus_PublishReplaces(t *testing.T) {
	var b Bus
	first := solidFrame(t, 1, 8, 8)
	second := solidFrame(t, 2, 8, 8)
	annotated := solidFrame(t, 2, 8, 8)

	b.Publish(first, nil)
	assert.Same(t, first, b.Display(), "nil display falls back to raw")

	b.Publish(second, annotated)
	raw, display := b.Latest()
	assert.Same(t, second, raw)
	assert.Same(t, annotated, display)

	stats := b.Stats()
	assert.Equal(t, uint64(2), stats.Published)
	assert.Equal(t, uint64(1), stats.Replaced)
	assert.Equal(t, uint64(2), stats.LastSeq)
}

func TestBus_ConcurrentReaders(t *testing.T) {
	var b Bus
	frames := make([]*Frame, 20)
	for i := range frames {
		frames[i] = solidFrame(t, uint64(i+1), 4, 4)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, f := range frames {
			b.Publish(f, f)
		}
	}()
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last uint64
			for range 200 {
				raw, display := b.Latest()
				if raw == nil {
					continue
				}
				// Pairs always come from the same publish and never go backwards.
				assert.Equal(t, raw.Seq, display.Seq)
				assert.GreaterOrEqual(t, raw.Seq, last)
				last = raw.Seq
			}
		}()
	}
	wg.Wait()
}

func TestDetection_Predicates(t *testing.T) {
	tests := []struct {
		name    string
		d       Detection
		hasFace bool
		known   bool
	}{
		{"none", Detection{}, false, false},
		{"unknown", Detection{Identity: IdentityUnknown, Box: &Box{}}, true, false},
		{"known", Detection{Identity: "alice", Box: &Box{}}, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.hasFace, tt.d.HasFace())
			assert.Equal(t, tt.known, tt.d.IsKnown())
		})
	}
}

func TestBox_Area(t *testing.T) {
	assert.Equal(t, 200, Box{Top: 0, Right: 20, Bottom: 10, Left: 0}.Area())
	assert.Equal(t, 0, Box{Top: 10, Right: 0, Bottom: 0, Left: 20}.Area())
}

func TestDetectionCache_CopiesBox(t *testing.T) {
	var c DetectionCache
	box := &Box{Top: 1, Right: 2, Bottom: 3, Left: 0}
	c.Store(Detection{Identity: "alice", Box: box})

	box.Top = 99
	got := c.Load()
	require.NotNil(t, got.Box)
	assert.Equal(t, 1, got.Box.Top, "stored box must not alias the caller's")

	got.Box.Top = 42
	assert.Equal(t, 1, c.Load().Box.Top, "loaded box must not alias the cache")
}

func TestAnnotate_NoBoxReturnsRaw(t *testing.T) {
	raw := solidFrame(t, 3, 16, 16)
	out, err := Annotate(raw, Detection{}, 80)
	require.NoError(t, err)
	assert.Same(t, raw, out)
}

func TestAnnotate_DrawsBox(t *testing.T) {
	raw := solidFrame(t, 3, 64, 64)
	d := Detection{Identity: "alice", Box: &Box{Top: 20, Right: 50, Bottom: 60, Left: 10}}

	out, err := Annotate(raw, d, 100)
	require.NoError(t, err)
	require.NotSame(t, raw, out)
	assert.Equal(t, raw.Seq, out.Seq)

	// Left edge of the box carries the known color, the center keeps the background.
	r, _, _, _ := out.Image.At(10, 40).RGBA()
	assert.Greater(t, r>>8, uint32(180))
	cr, _, cb, _ := out.Image.At(30, 40).RGBA()
	assert.InDelta(t, 40, float64(cr>>8), 25)
	assert.InDelta(t, 40, float64(cb>>8), 25)

	// The raw frame is untouched.
	rr, _, _, _ := raw.Image.At(10, 40).RGBA()
	assert.InDelta(t, 40, float64(rr>>8), 20)
}

func TestAnnotate_UnknownUsesOwnColor(t *testing.T) {
	assert.Equal(t, color.RGBA{R: 250, G: 180, B: 139, A: 255}, KnownColor)
	assert.Equal(t, color.RGBA{R: 168, G: 139, B: 243, A: 255}, UnknownColor)

	raw := solidFrame(t, 3, 64, 64)
	d := Detection{Identity: IdentityUnknown, Box: &Box{Top: 20, Right: 50, Bottom: 60, Left: 10}}
	out, err := Annotate(raw, d, 100)
	require.NoError(t, err)

	r, _, b, _ := out.Image.At(10, 40).RGBA()
	assert.Greater(t, b>>8, uint32(150))
	assert.Greater(t, b>>8, r>>8)
}

func TestAnnotate_BoxOutsideFrame(t *testing.T) {
	raw := solidFrame(t, 1, 16, 16)
	d := Detection{Identity: IdentityUnknown, Box: &Box{Top: -5, Right: 40, Bottom: 40, Left: -5}}
	_, err := Annotate(raw, d, 80)
	require.NoError(t, err)
}
