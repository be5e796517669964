package notify

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/natefinch/atomic"
	"golang.org/x/image/draw"

	"github.com/kozaktomas/attendance-cam/internal/frame"
	"github.com/kozaktomas/attendance-cam/internal/roster"
)

const evidenceTimeLayout = "2006-01-02_15-04-05"

// EvidenceStore writes camera frames that accompany events to disk:
// <dir>/<user>_<time>.jpg for entries and <dir>/unknown/unknown_<time>.jpg
// for unrecognized faces.
type EvidenceStore struct {
	dir      string
	maxWidth int
	quality  int
}

// NewEvidenceStore creates a store under dir. Frames wider than maxWidth
// are scaled down; zero keeps the original size.
func NewEvidenceStore(dir string, maxWidth, quality int) *EvidenceStore {
	return &EvidenceStore{dir: dir, maxWidth: maxWidth, quality: quality}
}

// SaveEntry stores the frame of a recognized person.
func (s *EvidenceStore) SaveEntry(user string, at time.Time, f *frame.Frame) (string, error) {
	name := roster.Slug(user)
	if name == "" {
		name = sanitizeFileName(user)
	}
	return s.save(s.dir, name+"_"+at.Format(evidenceTimeLayout)+".jpg", f)
}

// SaveUnknown stores the frame of an unrecognized face.
func (s *EvidenceStore) SaveUnknown(at time.Time, f *frame.Frame) (string, error) {
	return s.save(filepath.Join(s.dir, "unknown"), "unknown_"+at.Format(evidenceTimeLayout)+".jpg", f)
}

func (s *EvidenceStore) save(dir, name string, f *frame.Frame) (string, error) {
	if f == nil {
		return "", fmt.Errorf("no frame for %s", name)
	}
	data, err := s.encode(f)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating evidence directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("writing evidence %s: %w", path, err)
	}
	return path, nil
}

// encode returns the frame's JPEG, scaled down first if it is too wide.
func (s *EvidenceStore) encode(f *frame.Frame) ([]byte, error) {
	if s.maxWidth <= 0 || f.Width <= s.maxWidth || f.Image == nil {
		return f.Data, nil
	}
	bounds := f.Image.Bounds()
	newHeight := int(float64(bounds.Dy()) * float64(s.maxWidth) / float64(bounds.Dx()))
	resized := image.NewRGBA(image.Rect(0, 0, s.maxWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), f.Image, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: s.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode resized evidence: %w", err)
	}
	return buf.Bytes(), nil
}

// sanitizeFileName keeps names without an ASCII slug (e.g. Japanese) usable
// as file names.
func sanitizeFileName(name string) string {
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || unicode.IsControl(r) || unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, name)
	name = strings.Trim(name, "._")
	if name == "" {
		return "user"
	}
	return name
}
