package roster

import (
	"context"
	"fmt"
	"sync"
)

// ClosableStore is a Store holding a connection.
type ClosableStore interface {
	Store
	Close() error
}

// LazyStore connects to its backend on first use and retries on every call
// until a connection succeeds. While the backend is unreachable Load fails
// with ErrNoRoster.
type LazyStore struct {
	open func(ctx context.Context) (ClosableStore, error)

	mu    sync.Mutex
	store ClosableStore
}

// NewLazyStore returns a store that connects through open when first needed.
func NewLazyStore(open func(ctx context.Context) (ClosableStore, error)) *LazyStore {
	return &LazyStore{open: open}
}

func (s *LazyStore) connect(ctx context.Context) (ClosableStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store != nil {
		return s.store, nil
	}
	store, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	s.store = store
	return store, nil
}

// Load connects if needed and loads the roster.
func (s *LazyStore) Load(ctx context.Context) (*Roster, error) {
	store, err := s.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: roster backend unavailable: %w", ErrNoRoster, err)
	}
	return store.Load(ctx)
}

// Save connects if needed and saves r.
func (s *LazyStore) Save(ctx context.Context, r *Roster) error {
	store, err := s.connect(ctx)
	if err != nil {
		return fmt.Errorf("roster backend unavailable: %w", err)
	}
	return store.Save(ctx, r)
}

// Connected reports whether a backend connection has been established.
func (s *LazyStore) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store != nil
}

// Close closes the backend connection, if any.
func (s *LazyStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return nil
	}
	err := s.store.Close()
	s.store = nil
	return err
}
