// Tests use testcontainers-go to spin up a PostgreSQL container.
package repository

import (
	"context"
	"os/exec"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"community-bot/internal/model"
	"community-bot/internal/pkg/db"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a PostgreSQL container and returns a migrated connection pool.
// Skips the test if Docker is not available.
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	require.NoError(t, db.Migrate(ctx, pool))

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

// ============================================================================
// StatsRepository Tests
// ============================================================================

func TestStatsRepository_GetOrCreate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewStatsRepository(pool)
	ctx := context.Background()

	s, err := repo.GetOrCreate(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), s.UserID)
	assert.Equal(t, int64(0), s.Coins)
	assert.False(t, s.ClaimedStarter)
	assert.Nil(t, s.LastDailyClaim)

	_, err = repo.Increment(ctx, 100, model.StatCoins, 7)
	require.NoError(t, err)

	again, err := repo.GetOrCreate(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(7), again.Coins)
	assert.Equal(t, s.Seq, again.Seq)
}

func TestStatsRepository_Increment(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewStatsRepository(pool)
	ctx := context.Background()

	// creates the record lazily
	s, err := repo.Increment(ctx, 1, model.StatTomatoesThrown, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.TomatoesThrown)

	s, err = repo.Increment(ctx, 1, model.StatTomatoesThrown, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), s.TomatoesThrown)
	assert.Equal(t, int64(0), s.TimesHit)

	// negative deltas are allowed, coins may go below zero
	s, err = repo.Increment(ctx, 1, model.StatCoins, -5)
	require.NoError(t, err)
	assert.Equal(t, int64(-5), s.Coins)

	_, err = repo.Increment(ctx, 1, model.Stat("claimed_starter"), 1)
	assert.ErrorIs(t, err, model.ErrUnknownStat)
}

func TestStatsRepository_IncrementConcurrent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewStatsRepository(pool)
	ctx := context.Background()

	const n = 25
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := repo.Increment(ctx, 9, model.StatMessageCount, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s, err := repo.GetOrCreate(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(n), s.MessageCount)
}

func TestStatsRepository_ClaimStarter(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewStatsRepository(pool)
	inv := NewInventoryRepository(pool)
	ctx := context.Background()

	ok, err := repo.ClaimStarter(ctx, 5, "Regular Tomato", 5)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ClaimStarter(ctx, 5, "Regular Tomato", 5)
	require.NoError(t, err)
	assert.False(t, ok)

	qty, err := inv.Quantity(ctx, 5, "Regular Tomato")
	require.NoError(t, err)
	assert.Equal(t, 5, qty)
}

func TestStatsRepository_ClaimStarterConcurrent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewStatsRepository(pool)
	inv := NewInventoryRepository(pool)
	ctx := context.Background()

	var wins atomic.Int32
	var wg sync.WaitGroup
	wg.Add(10)
	for i := 0; i < 10; i++ {
		go func() {
			defer wg.Done()
			ok, err := repo.ClaimStarter(ctx, 6, "Regular Tomato", 5)
			if assert.NoError(t, err) && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	qty, err := inv.Quantity(ctx, 6, "Regular Tomato")
	require.NoError(t, err)
	assert.Equal(t, 5, qty)
}

func TestStatsRepository_ProcessDailyClaim(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewStatsRepository(pool)
	ctx := context.Background()
	cooldown := 22 * time.Hour
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	amount := func() int64 { return 120 }

	res, err := repo.ProcessDailyClaim(ctx, 3, now, cooldown, amount)
	require.NoError(t, err)
	assert.True(t, res.Granted)
	assert.Equal(t, int64(120), res.Amount)
	assert.Equal(t, int64(120), res.Balance)

	res, err = repo.ProcessDailyClaim(ctx, 3, now.Add(time.Hour), cooldown, func() int64 {
		t.Fatal("amount must not be drawn during cooldown")
		return 0
	})
	require.NoError(t, err)
	assert.False(t, res.Granted)
	assert.Equal(t, 21*time.Hour, res.Remaining)

	s, err := repo.GetOrCreate(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(120), s.Coins)

	res, err = repo.ProcessDailyClaim(ctx, 3, now.Add(cooldown), cooldown, func() int64 { return 50 })
	require.NoError(t, err)
	assert.True(t, res.Granted)
	assert.Equal(t, int64(170), res.Balance)
}

func TestStatsRepository_BuyItem(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewStatsRepository(pool)
	inv := NewInventoryRepository(pool)
	ctx := context.Background()

	_, err := repo.BuyItem(ctx, 8, 100, "Golden Tomato", 1)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	s, err := repo.GetOrCreate(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, int64(0), s.Coins)
	items, err := inv.Items(ctx, 8)
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = repo.Increment(ctx, 8, model.StatCoins, 150)
	require.NoError(t, err)

	balance, err := repo.BuyItem(ctx, 8, 100, "Golden Tomato", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)

	qty, err := inv.Quantity(ctx, 8, "Golden Tomato")
	require.NoError(t, err)
	assert.Equal(t, 1, qty)
}

func TestStatsRepository_Leaderboard(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewStatsRepository(pool)
	ctx := context.Background()

	// 10 and 30 tie on 4; 10 was created first
	for _, p := range []struct{ id, v int64 }{{10, 4}, {20, 9}, {30, 4}, {40, 1}} {
		_, err := repo.Increment(ctx, p.id, model.StatTomatoesLanded, p.v)
		require.NoError(t, err)
	}

	board, err := repo.Leaderboard(ctx, model.StatTomatoesLanded, 3)
	require.NoError(t, err)
	require.Len(t, board, 3)
	assert.Equal(t, int64(20), board[0].UserID)
	assert.Equal(t, int64(10), board[1].UserID)
	assert.Equal(t, int64(30), board[2].UserID)

	_, err = repo.Leaderboard(ctx, model.Stat("xp"), 10)
	assert.ErrorIs(t, err, model.ErrUnknownStat)
}

// ============================================================================
// InventoryRepository Tests
// ============================================================================

func TestInventoryRepository_AddRemove(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	inv := NewInventoryRepository(pool)
	ctx := context.Background()

	require.NoError(t, inv.AddItem(ctx, 1, "Rotten Tomato", 2))

	ok, err := inv.RemoveItem(ctx, 1, "Rotten Tomato", 3)
	require.NoError(t, err)
	assert.False(t, ok)
	qty, err := inv.Quantity(ctx, 1, "Rotten Tomato")
	require.NoError(t, err)
	assert.Equal(t, 2, qty)

	ok, err = inv.RemoveItem(ctx, 1, "Rotten Tomato", 2)
	require.NoError(t, err)
	assert.True(t, ok)

	items, err := inv.Items(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, items, "zero-quantity rows are deleted")

	ok, err = inv.RemoveItem(ctx, 1, "Golden Tomato", 1)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, inv.AddItem(ctx, 1, "Regular Tomato", 0), ErrInvalidQuantity)
	_, err = inv.RemoveItem(ctx, 1, "Regular Tomato", -1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestInventoryRepository_ItemsOrdered(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	inv := NewInventoryRepository(pool)
	ctx := context.Background()

	require.NoError(t, inv.AddItem(ctx, 2, "Rotten Tomato", 1))
	require.NoError(t, inv.AddItem(ctx, 2, "Golden Tomato", 1))
	require.NoError(t, inv.AddItem(ctx, 2, "Regular Tomato", 4))

	items, err := inv.Items(ctx, 2)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Golden Tomato", items[0].ItemName)
	assert.Equal(t, "Regular Tomato", items[1].ItemName)
	assert.Equal(t, 4, items[1].Quantity)
	assert.Equal(t, "Rotten Tomato", items[2].ItemName)
}

// ============================================================================
// GraduationQueueRepository Tests
// ============================================================================

func TestGraduationQueue_EnqueueDrain(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	q := NewGraduationQueueRepository(pool)
	ctx := context.Background()

	added, err := q.Enqueue(ctx, 77)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = q.Enqueue(ctx, 77)
	require.NoError(t, err)
	assert.False(t, added)

	added, err = q.Enqueue(ctx, 55)
	require.NoError(t, err)
	assert.True(t, added)

	ids, err := q.DrainAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{77, 55}, ids)

	ids, err = q.DrainAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGraduationQueue_ConcurrentEnqueueNeverLost(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	q := NewGraduationQueueRepository(pool)
	ctx := context.Background()

	const n = 50
	var (
		mu      sync.Mutex
		drained = make(map[int64]int)
		wg      sync.WaitGroup
		done    = make(chan struct{})
	)

	go func() {
		for {
			select {
			case <-done:
				return
			default:
			}
			ids, err := q.DrainAll(ctx)
			assert.NoError(t, err)
			mu.Lock()
			for _, id := range ids {
				drained[id]++
			}
			mu.Unlock()
		}
	}()

	wg.Add(n)
	for i := int64(1); i <= n; i++ {
		go func(id int64) {
			defer wg.Done()
			_, err := q.Enqueue(ctx, id)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	close(done)

	ids, err := q.DrainAll(ctx)
	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	for _, id := range ids {
		drained[id]++
	}

	assert.Len(t, drained, n)
	for id, c := range drained {
		assert.Equal(t, 1, c, "user %d drained %d times", id, c)
	}
}

// ============================================================================
// ActivityRepository / WarningRepository Tests
// ============================================================================

func TestActivityRepository(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewActivityRepository(pool)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := repo.Increment(ctx, 1)
		require.NoError(t, err)
	}
	c, err := repo.Increment(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c)

	counts, err := repo.Counts(ctx, []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{1: 3, 2: 1, 3: 0}, counts)

	active, err := repo.AtLeast(ctx, 2)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, int64(1), active[0].UserID)
}

func TestWarningRepository_ChannelCounts(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewWarningRepository(pool)
	ctx := context.Background()

	w, err := repo.AddChannelWarning(ctx, 1, 500, 9, "spam", model.WarningYellow)
	require.NoError(t, err)
	assert.Nil(t, w.UserID)
	require.NotNil(t, w.ChannelID)
	assert.Equal(t, int64(500), *w.ChannelID)
	assert.Equal(t, model.WarningYellow, w.Type)

	_, err = repo.AddChannelWarning(ctx, 1, 500, 9, "raid", model.WarningRed)
	require.NoError(t, err)
	_, err = repo.AddChannelWarning(ctx, 1, 600, 9, "off-topic", model.WarningYellow)
	require.NoError(t, err)

	counts, err := repo.ChannelCountsSince(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, counts[500])
	assert.Equal(t, 1, counts[600])

	counts, err = repo.ChannelCountsSince(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestStatsRepository_SpendItem(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewStatsRepository(pool)
	inv := NewInventoryRepository(pool)
	ctx := context.Background()

	ok, err := repo.SpendItem(ctx, 4, "Regular Tomato", 1, model.StatTomatoesThrown)
	require.NoError(t, err)
	assert.False(t, ok)

	s, err := repo.GetOrCreate(ctx, 4)
	require.NoError(t, err)
	assert.Zero(t, s.TomatoesThrown, "failed spend must not count a throw")

	require.NoError(t, inv.AddItem(ctx, 4, "Regular Tomato", 1))
	ok, err = repo.SpendItem(ctx, 4, "Regular Tomato", 1, model.StatTomatoesThrown)
	require.NoError(t, err)
	assert.True(t, ok)

	s, err = repo.GetOrCreate(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.TomatoesThrown)
	qty, err := inv.Quantity(ctx, 4, "Regular Tomato")
	require.NoError(t, err)
	assert.Zero(t, qty)
}

func TestStatsRepository_ApplyDeltas(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewStatsRepository(pool)
	ctx := context.Background()

	err := repo.ApplyDeltas(ctx, []model.StatDelta{
		{UserID: 1, Stat: model.StatTomatoesLanded, Delta: 1},
		{UserID: 2, Stat: model.StatTimesHit, Delta: 1},
		{UserID: 1, Stat: model.StatCoins, Delta: 25},
	})
	require.NoError(t, err)

	thrower, err := repo.GetOrCreate(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), thrower.TomatoesLanded)
	assert.Equal(t, int64(25), thrower.Coins)

	target, err := repo.GetOrCreate(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), target.TimesHit)

	// an unknown stat anywhere rejects the whole batch
	err = repo.ApplyDeltas(ctx, []model.StatDelta{
		{UserID: 1, Stat: model.StatCoins, Delta: 100},
		{UserID: 1, Stat: model.Stat("karma"), Delta: 1},
	})
	assert.ErrorIs(t, err, model.ErrUnknownStat)
	thrower, err = repo.GetOrCreate(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(25), thrower.Coins)
}
