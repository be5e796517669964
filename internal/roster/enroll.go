package roster

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FaceEmbedder computes one embedding per face found in a JPEG image.
type FaceEmbedder interface {
	EmbedFaces(ctx context.Context, data []byte) ([][]float32, error)
}

// Image is one enrollment photo of a person.
type Image struct {
	Person string
	Path   string
}

// Skipped records an enrollment image that was not used.
type Skipped struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// EnrollReport summarizes an enrollment run.
type EnrollReport struct {
	Accepted map[string]int
	Skipped  []Skipped
}

// ListImages finds <dir>/<person>/*.jpg files. People are sorted by
// directory name and images by file name.
func ListImages(dir string) ([]Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading faces directory: %w", err)
	}
	var people []string
	for _, e := range entries {
		if e.IsDir() {
			people = append(people, e.Name())
		}
	}
	if len(people) == 0 {
		return nil, fmt.Errorf("no person directories in %s", dir)
	}
	sort.Strings(people)

	var images []Image
	for _, person := range people {
		files, err := os.ReadDir(filepath.Join(dir, person))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", person, err)
		}
		name := NormalizeName(person)
		for _, f := range files {
			ext := strings.ToLower(filepath.Ext(f.Name()))
			if f.IsDir() || (ext != ".jpg" && ext != ".jpeg") {
				continue
			}
			images = append(images, Image{Person: name, Path: filepath.Join(dir, person, f.Name())})
		}
	}
	sort.SliceStable(images, func(i, j int) bool {
		if images[i].Person != images[j].Person {
			return images[i].Person < images[j].Person
		}
		return images[i].Path < images[j].Path
	})
	return images, nil
}

// Enroll embeds every image and builds a roster from those that contain
// exactly one face. progress, if set, is called once per image.
func Enroll(ctx context.Context, images []Image, embedder FaceEmbedder, model string, progress func(Image)) (*Roster, EnrollReport, error) {
	report := EnrollReport{Accepted: make(map[string]int)}
	r := &Roster{Model: model}

	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, report, err
		}
		reason, emb := enrollOne(ctx, img, embedder)
		if progress != nil {
			progress(img)
		}
		if reason != "" {
			report.Skipped = append(report.Skipped, Skipped{Path: img.Path, Reason: reason})
			continue
		}
		r.Entries = append(r.Entries, Entry{Name: img.Person, Embedding: emb, Source: filepath.Base(img.Path)})
		report.Accepted[img.Person]++
	}

	if len(r.Entries) == 0 {
		return nil, report, errors.New("no usable face images found")
	}
	return r, report, nil
}

func enrollOne(ctx context.Context, img Image, embedder FaceEmbedder) (string, []float32) {
	data, err := os.ReadFile(img.Path)
	if err != nil {
		return "unreadable: " + err.Error(), nil
	}
	faces, err := embedder.EmbedFaces(ctx, data)
	if err != nil {
		return "embedding failed: " + err.Error(), nil
	}
	if len(faces) != 1 {
		return fmt.Sprintf("%d faces", len(faces)), nil
	}
	return "", faces[0]
}
