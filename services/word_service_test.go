package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/spyserver/models"
	"github.com/wfunc/spyserver/persistence"
)

func newService() (*WordService, *persistence.MemoryStore) {
	store := persistence.NewMemoryStore()
	return NewWordService(store), store
}

func TestWordService_Create(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	pair, err := svc.Create(ctx, models.WordPairInput{WordA: "  苹果 ", WordB: "梨"})
	require.NoError(t, err)
	assert.Equal(t, "苹果", pair.WordA)

	_, err = svc.Create(ctx, models.WordPairInput{WordA: "苹果", WordB: "梨"})
	assert.Equal(t, ErrWordPairExists, err)

	_, err = svc.Create(ctx, models.WordPairInput{WordA: "苹果"})
	assert.Equal(t, ErrWordsRequired, err)

	_, err = svc.Create(ctx, models.WordPairInput{WordA: "   ", WordB: "梨"})
	var gameErr *models.GameError
	require.ErrorAs(t, err, &gameErr)
	assert.Equal(t, models.KindValidation, gameErr.Kind)

	_, err = svc.Create(ctx, models.WordPairInput{WordA: strings.Repeat("长", 51), WordB: "梨"})
	require.ErrorAs(t, err, &gameErr)
	assert.Equal(t, models.KindValidation, gameErr.Kind)
}

func TestWordService_Import(t *testing.T) {
	ctx := context.Background()
	svc, store := newService()
	_, err := svc.Create(ctx, models.WordPairInput{WordA: "猫", WordB: "狗"})
	require.NoError(t, err)

	res, err := svc.Import(ctx, []models.WordPairInput{
		{WordA: "咖啡", WordB: "奶茶"},
		{WordA: "咖啡", WordB: "奶茶"},
		{WordA: "猫", WordB: "狗"},
		{WordA: "", WordB: "狗"},
		{WordA: "茶", WordB: "水"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 3, res.Skipped)
	require.Len(t, res.Errors, 1)
	assert.True(t, strings.HasPrefix(res.Errors[0], "行 4:"))

	n, _ := store.Count(ctx)
	assert.Equal(t, int64(3), n)

	_, err = svc.Import(ctx, nil)
	assert.Equal(t, ErrEmptyBatch, err)
}

func TestWordService_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	pair, err := svc.Create(ctx, models.WordPairInput{WordA: "猫", WordB: "狗"})
	require.NoError(t, err)

	off := false
	word := " 老虎 "
	updated, err := svc.Update(ctx, pair.ID, models.WordPairUpdate{WordA: &word, Enabled: &off})
	require.NoError(t, err)
	assert.Equal(t, "老虎", updated.WordA)
	assert.False(t, updated.Enabled)

	enabled, err := svc.List(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, enabled)
	all, err := svc.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	empty := ""
	_, err = svc.Update(ctx, pair.ID, models.WordPairUpdate{WordB: &empty})
	assert.Error(t, err)

	_, err = svc.Update(ctx, "missing", models.WordPairUpdate{Enabled: &off})
	assert.Equal(t, ErrWordPairNotFound, err)

	require.NoError(t, svc.Delete(ctx, pair.ID))
	assert.Equal(t, ErrWordPairNotFound, svc.Delete(ctx, pair.ID))
}

func TestWordService_SeedDefaults(t *testing.T) {
	ctx := context.Background()
	svc, store := newService()

	n, err := svc.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultWordPairs), n)

	n, err = svc.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "seeding is skipped once the store has pairs")

	count, _ := store.Count(ctx)
	assert.Equal(t, int64(len(DefaultWordPairs)), count)
}
