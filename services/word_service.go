// services/word_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/wfunc/spyserver/logger"
	"github.com/wfunc/spyserver/models"
	"github.com/wfunc/spyserver/persistence"
	"github.com/wfunc/spyserver/utils"
)

var (
	ErrWordPairNotFound = models.NotFound("Word pair not found")
	ErrWordPairExists   = models.Conflict("Word pair already exists")
	ErrWordsRequired    = models.Validation("Both wordA and wordB are required")
	ErrEmptyBatch       = models.Validation("pairs must be a non-empty array")
)

// WordService 词组管理, 负责校验、去重和默认词库
type WordService struct {
	store persistence.WordPairStore
}

func NewWordService(store persistence.WordPairStore) *WordService {
	return &WordService{store: store}
}

// ImportResult summarises a batch import. Errors are per-row, 1-based.
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}

func (s *WordService) List(ctx context.Context, enabledOnly bool) ([]models.WordPair, error) {
	return s.store.FindMany(ctx, models.FindOptions{EnabledOnly: enabledOnly})
}

func (s *WordService) Create(ctx context.Context, input models.WordPairInput) (models.WordPair, error) {
	clean, err := validatePair(input)
	if err != nil {
		return models.WordPair{}, err
	}
	pair, err := s.store.Create(ctx, clean)
	if errors.Is(err, persistence.ErrDuplicate) {
		return models.WordPair{}, ErrWordPairExists
	}
	return pair, err
}

// Import validates every row, drops duplicates within the batch and rows already
// stored, then inserts the rest in one call.
func (s *WordService) Import(ctx context.Context, inputs []models.WordPairInput) (ImportResult, error) {
	if len(inputs) == 0 {
		return ImportResult{}, ErrEmptyBatch
	}

	result := ImportResult{Errors: []string{}}
	seen := make(map[models.WordPairInput]bool, len(inputs))
	valid := make([]models.WordPairInput, 0, len(inputs))
	for i, input := range inputs {
		clean, err := validatePair(input)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("行 %d: %s", i+1, err.Error()))
			continue
		}
		if seen[clean] {
			continue
		}
		if _, err := s.store.FindByWords(ctx, clean.WordA, clean.WordB); err == nil {
			continue
		} else if !errors.Is(err, persistence.ErrRecordNotFound) {
			return ImportResult{}, err
		}
		seen[clean] = true
		valid = append(valid, clean)
	}

	if len(valid) > 0 {
		if _, err := s.store.CreateMany(ctx, valid); err != nil {
			return ImportResult{}, err
		}
	}
	result.Imported = len(valid)
	result.Skipped = len(inputs) - len(valid)
	return result, nil
}

func (s *WordService) Update(ctx context.Context, id string, update models.WordPairUpdate) (models.WordPair, error) {
	if update.WordA != nil {
		w, err := utils.ValidateWord(*update.WordA)
		if err != nil {
			return models.WordPair{}, err
		}
		update.WordA = &w
	}
	if update.WordB != nil {
		w, err := utils.ValidateWord(*update.WordB)
		if err != nil {
			return models.WordPair{}, err
		}
		update.WordB = &w
	}

	pair, err := s.store.Update(ctx, id, update)
	switch {
	case errors.Is(err, persistence.ErrRecordNotFound):
		return models.WordPair{}, ErrWordPairNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return models.WordPair{}, ErrWordPairExists
	}
	return pair, err
}

func (s *WordService) Delete(ctx context.Context, id string) error {
	err := s.store.Delete(ctx, id)
	if errors.Is(err, persistence.ErrRecordNotFound) {
		return ErrWordPairNotFound
	}
	return err
}

// SeedDefaults loads DefaultWordPairs into an empty store.
func (s *WordService) SeedDefaults(ctx context.Context) (int, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	res, err := s.Import(ctx, DefaultWordPairs)
	if err != nil {
		return 0, err
	}
	logger.Log.Infow("seeded word pairs", "count", res.Imported)
	return res.Imported, nil
}

func validatePair(input models.WordPairInput) (models.WordPairInput, error) {
	if input.WordA == "" || input.WordB == "" {
		return models.WordPairInput{}, ErrWordsRequired
	}
	a, err := utils.ValidateWord(input.WordA)
	if err != nil {
		return models.WordPairInput{}, err
	}
	b, err := utils.ValidateWord(input.WordB)
	if err != nil {
		return models.WordPairInput{}, err
	}
	return models.WordPairInput{WordA: a, WordB: b}, nil
}
