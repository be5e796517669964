package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const defaultEmbeddingURL = "http://localhost:8000"

// Face is a single face returned by the embedding server.
type Face struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// Area returns the bounding box area, or 0 for a malformed box.
func (f Face) Area() float64 {
	if len(f.BBox) != 4 {
		return 0
	}
	w, h := f.BBox[2]-f.BBox[0], f.BBox[3]-f.BBox[1]
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// FaceResponse is the body of POST /embed/face.
type FaceResponse struct {
	FacesCount int    `json:"faces_count"`
	Faces      []Face `json:"faces"`
	Model      string `json:"model"`
}

// Client talks to an InsightFace-style embedding server.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client for baseURL. Every request is bounded by timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// postMultipartImage posts a JPEG as the "file" form field.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// DetectFaces finds faces in a JPEG and returns their boxes and embeddings.
func (c *Client) DetectFaces(ctx context.Context, jpegData []byte) (*FaceResponse, error) {
	body, err := c.postMultipartImage(ctx, "/embed/face", jpegData)
	if err != nil {
		return nil, err
	}
	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &faceResp, nil
}

// EmbedFaces returns one embedding per detected face.
func (c *Client) EmbedFaces(ctx context.Context, jpegData []byte) ([][]float32, error) {
	resp, err := c.DetectFaces(ctx, jpegData)
	if err != nil {
		return nil, err
	}
	out := make([][]float32, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if len(f.Embedding) > 0 {
			out = append(out, f.Embedding)
		}
	}
	return out, nil
}
