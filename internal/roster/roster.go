// Package roster stores the reference face embeddings of known people.
package roster

import (
	"context"
	"errors"
	"sort"
	"time"
)

// ErrNoRoster is returned by a store that has never been written.
var ErrNoRoster = errors.New("roster not found")

// Entry is one reference embedding for a person. A person usually has
// several entries, one per enrollment image.
type Entry struct {
	Name      string
	Embedding []float32
	Source    string
}

// Roster is the full set of reference embeddings.
type Roster struct {
	Model     string
	UpdatedAt time.Time
	Entries   []Entry
}

// UniqueNames returns the sorted distinct names in the roster.
func (r *Roster) UniqueNames() []string {
	if r == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(r.Entries))
	names := make([]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		if _, ok := seen[e.Name]; ok {
			continue
		}
		seen[e.Name] = struct{}{}
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of entries.
func (r *Roster) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Entries)
}

// Store persists a roster.
type Store interface {
	Load(ctx context.Context) (*Roster, error)
	Save(ctx context.Context, r *Roster) error
}
