package persist

import (
	"context"
	"errors"
	"sync"

	"buckaneers/server/internal/world"
)

// ErrNotFound is returned by Load when nothing has been saved yet.
var ErrNotFound = errors.New("persist: no saved state")

// Store keeps the latest world state across restarts.
type Store interface {
	Load(ctx context.Context) (*world.State, error)
	Save(ctx context.Context, st *world.State) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the last saved state in memory. Saved states are
// round-tripped through the codec so callers never share memory with it.
type MemoryStore struct {
	mu    sync.Mutex
	blob   []byte
	saves  int
	clears int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(ctx context.Context) (*world.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blob == nil {
		return nil, ErrNotFound
	}
	return Decode(s.blob)
}

func (s *MemoryStore) Save(ctx context.Context, st *world.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	blob, err := Encode(st)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blob = blob
	s.saves++
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blob = nil
	s.clears++
	return nil
}

// Clears reports how many times Clear was called.
func (s *MemoryStore) Clears() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clears
}

// Saves reports how many times Save succeeded.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
