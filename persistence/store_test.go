package persistence

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/spyserver/models"
)

// runStoreContract exercises the behaviour every WordPairStore must share.
// The store must start empty.
func runStoreContract(t *testing.T, store WordPairStore) {
	ctx := context.Background()

	a, err := store.Create(ctx, models.WordPairInput{WordA: "苹果", WordB: "梨"})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.True(t, a.Enabled)

	_, err = store.Create(ctx, models.WordPairInput{WordA: "苹果", WordB: "梨"})
	assert.ErrorIs(t, err, ErrDuplicate)

	many, err := store.CreateMany(ctx, []models.WordPairInput{
		{WordA: "咖啡", WordB: "奶茶"},
		{WordA: "猫", WordB: "狗"},
	})
	require.NoError(t, err)
	require.Len(t, many, 2)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	got, err := store.FindByWords(ctx, "咖啡", "奶茶")
	require.NoError(t, err)
	assert.Equal(t, many[0].ID, got.ID)

	_, err = store.FindByWords(ctx, "咖啡", "可乐")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	disabled := false
	updated, err := store.Update(ctx, many[1].ID, models.WordPairUpdate{Enabled: &disabled})
	require.NoError(t, err)
	assert.False(t, updated.Enabled)
	assert.Equal(t, "猫", updated.WordA)

	dupA, dupB := "苹果", "梨"
	_, err = store.Update(ctx, many[0].ID, models.WordPairUpdate{WordA: &dupA, WordB: &dupB})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = store.Update(ctx, "missing", models.WordPairUpdate{Enabled: &disabled})
	assert.ErrorIs(t, err, ErrRecordNotFound)

	enabled, err := store.FindMany(ctx, models.FindOptions{EnabledOnly: true})
	require.NoError(t, err)
	assert.Len(t, enabled, 2)

	rest, err := store.FindMany(ctx, models.FindOptions{EnabledOnly: true, ExcludeIDs: []string{a.ID}})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, many[0].ID, rest[0].ID)

	all, err := store.FindMany(ctx, models.FindOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, store.Delete(ctx, a.ID))
	assert.ErrorIs(t, store.Delete(ctx, a.ID), ErrRecordNotFound)
	_, err = store.FindByID(ctx, a.ID)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	// the words are free again after deletion
	_, err = store.Create(ctx, models.WordPairInput{WordA: "苹果", WordB: "梨"})
	assert.NoError(t, err)
}

func TestMemoryStore_Contract(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestMemoryStore_CreateManyIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_, err := store.Create(ctx, models.WordPairInput{WordA: "猫", WordB: "狗"})
	require.NoError(t, err)

	_, err = store.CreateMany(ctx, []models.WordPairInput{
		{WordA: "咖啡", WordB: "奶茶"},
		{WordA: "猫", WordB: "狗"},
	})
	assert.ErrorIs(t, err, ErrDuplicate)

	n, _ := store.Count(ctx)
	assert.Equal(t, int64(1), n)
}

func TestMemoryStore_FindManyOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	store.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	for _, w := range []string{"一", "二", "三"} {
		_, err := store.Create(ctx, models.WordPairInput{WordA: w, WordB: w + "号"})
		require.NoError(t, err)
	}
	pairs, err := store.FindMany(ctx, models.FindOptions{})
	require.NoError(t, err)
	require.Len(t, pairs, 3)
	assert.Equal(t, []string{"一", "二", "三"}, []string{pairs[0].WordA, pairs[1].WordA, pairs[2].WordA})
}

// The external stores run only when a server is provided, e.g.
// SPY_TEST_POSTGRES_PORT=5432 or SPY_TEST_REDIS_ADDR=localhost:6379.

func testPostgresArgs(t *testing.T) (string, int, string, string, string) {
	portStr := os.Getenv("SPY_TEST_POSTGRES_PORT")
	if portStr == "" {
		t.Skip("SPY_TEST_POSTGRES_PORT not set")
	}
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	host := os.Getenv("SPY_TEST_POSTGRES_HOST")
	if host == "" {
		host = "localhost"
	}
	return host, port, os.Getenv("SPY_TEST_POSTGRES_USER"), os.Getenv("SPY_TEST_POSTGRES_PASSWORD"), os.Getenv("SPY_TEST_POSTGRES_DB")
}

func TestGormPostgreSQL_Contract(t *testing.T) {
	host, port, user, password, dbname := testPostgresArgs(t)
	store, err := NewGormPostgreSQL(host, port, user, password, dbname)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.db.Exec("DELETE FROM word_pairs").Error)

	runStoreContract(t, store)
}

func TestPostgreSQL_Contract(t *testing.T) {
	host, port, user, password, dbname := testPostgresArgs(t)
	gormStore, err := NewGormPostgreSQL(host, port, user, password, dbname)
	require.NoError(t, err)
	require.NoError(t, gormStore.db.Exec("DELETE FROM word_pairs").Error)
	gormStore.Close()

	store, err := NewPostgreSQL(host, port, user, password, dbname)
	require.NoError(t, err)
	defer store.Close()

	runStoreContract(t, store)
}

func TestRedisStore_Contract(t *testing.T) {
	addr := os.Getenv("SPY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SPY_TEST_REDIS_ADDR not set")
	}
	store, err := NewRedisStore(addr, "", 15)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.rdb.FlushDB(context.Background()).Err())

	runStoreContract(t, store)
}
