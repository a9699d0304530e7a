package storage

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	store, err := NewRedisStore(mr.Addr(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisStore_Scores(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	// Unknown pair scores zero.
	score, err := store.GetScore(ctx, "alice", "grove:sylvan")
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)

	require.NoError(t, store.SetScore(ctx, "alice", "grove:sylvan", 42.5))
	score, err = store.GetScore(ctx, "alice", "grove:sylvan")
	require.NoError(t, err)
	assert.Equal(t, 42.5, score)

	total, err := store.AddScore(ctx, "alice", "grove:sylvan", -2.5)
	require.NoError(t, err)
	assert.Equal(t, 40.0, total)
}

func TestRedisStore_Patron(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	patron, err := store.GetPatron(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "", patron)

	require.NoError(t, store.SetPatron(ctx, "alice", "grove:sylvan"))
	patron, err = store.GetPatron(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "grove:sylvan", patron)
}

func TestRedisStore_CooldownReservation(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	ok, err := store.Reserve(ctx, "alice", "grove:sylvan", "blessing", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// Second reservation inside the window fails.
	ok, err = store.Reserve(ctx, "alice", "grove:sylvan", "blessing", 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// Different triple is unaffected.
	ok, err = store.Reserve(ctx, "alice", "grove:sylvan", "guidance", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// Window expiry frees the triple.
	mr.FastForward(11 * time.Minute)
	ok, err = store.Reserve(ctx, "alice", "grove:sylvan", "blessing", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisStore_CooldownReleaseAndZeroWindow(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	ok, err := store.Reserve(ctx, "alice", "grove:sylvan", "blessing", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.Release(ctx, "alice", "grove:sylvan", "blessing"))
	ok, err = store.Reserve(ctx, "alice", "grove:sylvan", "blessing", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	// Zero window never blocks.
	for i := 0; i < 3; i++ {
		ok, err = store.Reserve(ctx, "bob", "grove:sylvan", "blessing", 0)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestRedisStore_CooldownSingleWinner(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	wins := make(chan bool, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.Reserve(ctx, "alice", "grove:sylvan", "blessing", time.Hour)
			if err == nil && ok {
				wins <- true
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	assert.Equal(t, 1, count)
}

func TestRedisStore_AuditTrail(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, AuditEntry{
		InteractionID: "i-1",
		RequesterID:   "alice",
		DeityID:       "grove:sylvan",
		Action:        "curse alice",
		Outcome:       OutcomeRejected,
		Reason:        "verb not allowed",
		At:            time.Now().UTC(),
	}))
	require.NoError(t, store.Record(ctx, AuditEntry{
		InteractionID: "i-2",
		RequesterID:   "alice",
		DeityID:       "grove:sylvan",
		Action:        "effect alice regeneration",
		Outcome:       OutcomeDispatched,
		At:            time.Now().UTC(),
	}))

	entries, err := store.RecentAudit(ctx, "grove:sylvan", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// Newest first.
	assert.Equal(t, "i-2", entries[0].InteractionID)
	assert.Equal(t, OutcomeRejected, entries[1].Outcome)
}

func TestMemoryStore_CooldownExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	current := time.Now()
	store.SetClock(func() time.Time { return current })

	ok, err := store.Reserve(ctx, "alice", "grove:sylvan", "blessing", 10*time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, _ = store.Reserve(ctx, "alice", "grove:sylvan", "blessing", 10*time.Minute)
	assert.False(t, ok)

	current = current.Add(11 * time.Minute)
	ok, _ = store.Reserve(ctx, "alice", "grove:sylvan", "blessing", 10*time.Minute)
	assert.True(t, ok)
}
