package handlers

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/quartz"
)

func TestVideoHandler_FeedStreamsLatestFrame(t *testing.T) {
	frames := &frameHolder{}
	h := NewVideoHandler(frames, quartz.NewReal(), 5*time.Millisecond)
	server := httptest.NewServer(http.HandlerFunc(h.Feed))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		t.Fatalf("bad content type: %v", err)
	}
	if mediaType != "multipart/x-mixed-replace" || params["boundary"] != "frame" {
		t.Fatalf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}

	// The first frame shows up only once capture has published one.
	f := testFrame(t)
	frames.set(f)

	reader := multipart.NewReader(resp.Body, params["boundary"])
	for i := range 2 {
		part, err := reader.NextPart()
		if err != nil {
			t.Fatalf("part %d: %v", i, err)
		}
		if ct := part.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("part %d content type = %q", i, ct)
		}
		data, err := io.ReadAll(part)
		if err != nil {
			t.Fatalf("part %d: %v", i, err)
		}
		if !bytes.Equal(data, f.Data) {
			t.Errorf("part %d does not carry the latest frame", i)
		}
	}
}

func TestWritePart_Framing(t *testing.T) {
	recorder := httptest.NewRecorder()
	if err := writePart(recorder, []byte{0xFF, 0xD8, 0xFF, 0xD9}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "--frame\r\nContent-Type: image/jpeg\r\n\r\n\xff\xd8\xff\xd9\r\n"
	if recorder.Body.String() != want {
		t.Errorf("part = %q, want %q", recorder.Body.String(), want)
	}
}

func TestVideoHandler_Snapshot(t *testing.T) {
	frames := &frameHolder{}
	h := NewVideoHandler(frames, quartz.NewReal(), 0)

	recorder := httptest.NewRecorder()
	h.Snapshot(recorder, httptest.NewRequest(http.MethodGet, "/api/snapshot.jpg", nil))
	if recorder.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 before the first frame, got %d", recorder.Code)
	}

	f := testFrame(t)
	frames.set(f)
	recorder = httptest.NewRecorder()
	h.Snapshot(recorder, httptest.NewRequest(http.MethodGet, "/api/snapshot.jpg", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if recorder.Header().Get("Content-Type") != "image/jpeg" {
		t.Errorf("unexpected content type %q", recorder.Header().Get("Content-Type"))
	}
	if !bytes.Equal(recorder.Body.Bytes(), f.Data) {
		t.Error("snapshot body differs from the frame")
	}
}
