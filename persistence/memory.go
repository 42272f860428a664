// persistence/memory.go
package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/spyserver/models"
)

// MemoryStore keeps word pairs in process memory. Used for development and tests.
type MemoryStore struct {
	pairs map[string]models.WordPair
	mutex sync.RWMutex
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pairs: make(map[string]models.WordPair),
		now:   time.Now,
	}
}

func (s *MemoryStore) FindMany(_ context.Context, opts models.FindOptions) ([]models.WordPair, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	exclude := excludeSet(opts.ExcludeIDs)
	out := make([]models.WordPair, 0, len(s.pairs))
	for _, p := range s.pairs {
		if opts.EnabledOnly && !p.Enabled {
			continue
		}
		if exclude[p.ID] {
			continue
		}
		out = append(out, p)
	}
	sortPairs(out)
	return out, nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (models.WordPair, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	p, ok := s.pairs[id]
	if !ok {
		return models.WordPair{}, ErrRecordNotFound
	}
	return p, nil
}

func (s *MemoryStore) FindByWords(_ context.Context, wordA, wordB string) (models.WordPair, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.findByWords(wordA, wordB)
}

func (s *MemoryStore) findByWords(wordA, wordB string) (models.WordPair, error) {
	for _, p := range s.pairs {
		if p.WordA == wordA && p.WordB == wordB {
			return p, nil
		}
	}
	return models.WordPair{}, ErrRecordNotFound
}

func (s *MemoryStore) Create(_ context.Context, input models.WordPairInput) (models.WordPair, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.create(input)
}

func (s *MemoryStore) create(input models.WordPairInput) (models.WordPair, error) {
	if _, err := s.findByWords(input.WordA, input.WordB); err == nil {
		return models.WordPair{}, ErrDuplicate
	}
	p := models.WordPair{
		ID:        uuid.NewString(),
		WordA:     input.WordA,
		WordB:     input.WordB,
		Enabled:   true,
		CreatedAt: s.now(),
	}
	s.pairs[p.ID] = p
	return p, nil
}

// CreateMany inserts all inputs or none.
func (s *MemoryStore) CreateMany(_ context.Context, inputs []models.WordPairInput) ([]models.WordPair, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	created := make([]models.WordPair, 0, len(inputs))
	for _, input := range inputs {
		p, err := s.create(input)
		if err != nil {
			for _, c := range created {
				delete(s.pairs, c.ID)
			}
			return nil, err
		}
		created = append(created, p)
	}
	return created, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, update models.WordPairUpdate) (models.WordPair, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	p, ok := s.pairs[id]
	if !ok {
		return models.WordPair{}, ErrRecordNotFound
	}
	next := applyUpdate(p, update)
	if next.WordA != p.WordA || next.WordB != p.WordB {
		if other, err := s.findByWords(next.WordA, next.WordB); err == nil && other.ID != id {
			return models.WordPair{}, ErrDuplicate
		}
	}
	s.pairs[id] = next
	return next, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.pairs[id]; !ok {
		return ErrRecordNotFound
	}
	delete(s.pairs, id)
	return nil
}

func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return int64(len(s.pairs)), nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func applyUpdate(p models.WordPair, update models.WordPairUpdate) models.WordPair {
	if update.WordA != nil {
		p.WordA = *update.WordA
	}
	if update.WordB != nil {
		p.WordB = *update.WordB
	}
	if update.Enabled != nil {
		p.Enabled = *update.Enabled
	}
	return p
}

// sortPairs orders by creation time, then id.
func sortPairs(pairs []models.WordPair) {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].CreatedAt.Equal(pairs[j].CreatedAt) {
			return pairs[i].ID < pairs[j].ID
		}
		return pairs[i].CreatedAt.Before(pairs[j].CreatedAt)
	})
}
