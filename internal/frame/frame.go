// Package frame holds the shared video state of the pipeline: the latest raw and
// annotated frames and the latest detection result.
package frame

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"time"
)

// EncodingJPEG is the only encoding produced by the capture sources.
const EncodingJPEG = "jpeg"

// Frame is an immutable captured image. Once published to a Bus a frame is
// never mutated; annotation always produces a new Frame.
type Frame struct {
	Seq        uint64
	CapturedAt time.Time
	Width      int
	Height     int
	Encoding   string
	Data       []byte      // encoded bytes (JPEG)
	Image      image.Image // decoded pixels
}

// FromJPEG decodes a JPEG buffer into a Frame.
func FromJPEG(seq uint64, capturedAt time.Time, data []byte) (*Frame, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding jpeg frame: %w", err)
	}
	b := img.Bounds()
	return &Frame{
		Seq:        seq,
		CapturedAt: capturedAt,
		Width:      b.Dx(),
		Height:     b.Dy(),
		Encoding:   EncodingJPEG,
		Data:       data,
		Image:      img,
	}, nil
}

// FromImage encodes an image into a JPEG Frame.
func FromImage(seq uint64, capturedAt time.Time, img image.Image, quality int) (*Frame, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg frame: %w", err)
	}
	b := img.Bounds()
	return &Frame{
		Seq:        seq,
		CapturedAt: capturedAt,
		Width:      b.Dx(),
		Height:     b.Dy(),
		Encoding:   EncodingJPEG,
		Data:       buf.Bytes(),
		Image:      img,
	}, nil
}
