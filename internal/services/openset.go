package services

import (
	"context"
	"sort"
	"sync"

	"github.com/tbourn/go-comic-bot/internal/observability"
)

// OpenSet is the in-memory set of comics that accept votes. It is a fast
// path only: the store stays authoritative and the set is rebuilt from it
// at startup.
type OpenSet struct {
	mu  sync.RWMutex
	ids map[uint]struct{}
}

// NewOpenSet returns an empty set.
func NewOpenSet() *OpenSet {
	return &OpenSet{ids: make(map[uint]struct{})}
}

// Rebuild replaces the content with the store's open comics.
func (s *OpenSet) Rebuild(ctx context.Context, st Store) error {
	ids, err := st.ListOpenComicIDs(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ids = make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	n := len(s.ids)
	s.mu.Unlock()
	observability.OpenComics.Set(float64(n))
	return nil
}

func (s *OpenSet) Add(id uint) {
	s.mu.Lock()
	s.ids[id] = struct{}{}
	n := len(s.ids)
	s.mu.Unlock()
	observability.OpenComics.Set(float64(n))
}

func (s *OpenSet) Remove(ids ...uint) {
	s.mu.Lock()
	for _, id := range ids {
		delete(s.ids, id)
	}
	n := len(s.ids)
	s.mu.Unlock()
	observability.OpenComics.Set(float64(n))
}

func (s *OpenSet) Contains(id uint) bool {
	s.mu.RLock()
	_, ok := s.ids[id]
	s.mu.RUnlock()
	return ok
}

func (s *OpenSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// IDs returns the members in ascending order.
func (s *OpenSet) IDs() []uint {
	s.mu.RLock()
	out := make([]uint, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
