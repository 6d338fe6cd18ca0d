// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"community-bot/internal/model"
)

// Common errors for repository operations.
var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrInvalidQuantity       = errors.New("quantity must be positive")
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const statsColumns = `user_id, seq, message_count, coins, tomatoes_thrown, tomatoes_landed,
	tomatoes_dodged, times_hit, claimed_starter, last_daily_claim, created_at, updated_at`

func scanStats(row pgx.Row) (*model.UserStats, error) {
	var s model.UserStats
	err := row.Scan(
		&s.UserID,
		&s.Seq,
		&s.MessageCount,
		&s.Coins,
		&s.TomatoesThrown,
		&s.TomatoesLanded,
		&s.TomatoesDodged,
		&s.TimesHit,
		&s.ClaimedStarter,
		&s.LastDailyClaim,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// DailyClaimResult describes the outcome of a daily claim attempt.
type DailyClaimResult struct {
	Granted   bool
	Amount    int64
	Balance   int64
	Remaining time.Duration
}

// StatsRepository handles per-user counters, the starter pack and daily claims.
type StatsRepository struct {
	pool *pgxpool.Pool
}

// NewStatsRepository creates a new StatsRepository instance.
func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{pool: pool}
}

func ensureStats(ctx context.Context, q dbtx, userID int64) error {
	const query = `INSERT INTO user_stats (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`
	if _, err := q.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to create stats: %w", err)
	}
	return nil
}

// GetOrCreate returns the user's stats, creating a zeroed record on first use.
func (r *StatsRepository) GetOrCreate(ctx context.Context, userID int64) (*model.UserStats, error) {
	if err := ensureStats(ctx, r.pool, userID); err != nil {
		return nil, err
	}
	query := `SELECT ` + statsColumns + ` FROM user_stats WHERE user_id = $1`
	s, err := scanStats(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return s, nil
}

// Increment adds delta to one counter in a single statement and returns the
// updated record. Unknown stats are rejected before touching the database.
func (r *StatsRepository) Increment(ctx context.Context, userID int64, stat model.Stat, delta int64) (*model.UserStats, error) {
	col, err := stat.Column()
	if err != nil {
		return nil, err
	}
	return increment(ctx, r.pool, userID, col, delta)
}

func increment(ctx context.Context, q dbtx, userID int64, col string, delta int64) (*model.UserStats, error) {
	// col always comes from model.Stat.Column, never from user input
	query := fmt.Sprintf(`
		INSERT INTO user_stats (user_id, %[1]s) VALUES ($1, $2)
		ON CONFLICT (user_id)
		DO UPDATE SET %[1]s = user_stats.%[1]s + EXCLUDED.%[1]s, updated_at = NOW()
		RETURNING %[2]s
	`, col, statsColumns)

	s, err := scanStats(q.QueryRow(ctx, query, userID, delta))
	if err != nil {
		return nil, fmt.Errorf("failed to increment %s: %w", col, err)
	}
	return s, nil
}

// ClaimStarter grants the starter pack once per user.
// It returns false when the pack was already claimed; nothing changes in that case.
func (r *StatsRepository) ClaimStarter(ctx context.Context, userID int64, item string, qty int) (bool, error) {
	if qty <= 0 {
		return false, ErrInvalidQuantity
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := ensureStats(ctx, tx, userID); err != nil {
		return false, err
	}

	const query = `
		UPDATE user_stats SET claimed_starter = TRUE, updated_at = NOW()
		WHERE user_id = $1 AND NOT claimed_starter
	`
	tag, err := tx.Exec(ctx, query, userID)
	if err != nil {
		return false, fmt.Errorf("failed to mark starter claimed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if err := addItem(ctx, tx, userID, item, qty); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit starter claim: %w", err)
	}
	return true, nil
}

// ProcessDailyClaim grants amount() coins if the cooldown since the last
// claim has elapsed at now. Otherwise it reports the remaining wait and
// changes nothing. amount is only called when the claim is granted.
func (r *StatsRepository) ProcessDailyClaim(ctx context.Context, userID int64, now time.Time, cooldown time.Duration, amount func() int64) (*DailyClaimResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := ensureStats(ctx, tx, userID); err != nil {
		return nil, err
	}

	var (
		coins int64
		last  *time.Time
	)
	const selectQuery = `SELECT coins, last_daily_claim FROM user_stats WHERE user_id = $1 FOR UPDATE`
	if err := tx.QueryRow(ctx, selectQuery, userID).Scan(&coins, &last); err != nil {
		return nil, fmt.Errorf("failed to lock stats: %w", err)
	}

	if last != nil {
		elapsed := now.Sub(*last)
		if elapsed < cooldown {
			return &DailyClaimResult{Balance: coins, Remaining: cooldown - elapsed}, nil
		}
	}

	reward := amount()
	const updateQuery = `
		UPDATE user_stats
		SET coins = coins + $2, last_daily_claim = $3, updated_at = NOW()
		WHERE user_id = $1
		RETURNING coins
	`
	if err := tx.QueryRow(ctx, updateQuery, userID, reward, now).Scan(&coins); err != nil {
		return nil, fmt.Errorf("failed to grant daily reward: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit daily claim: %w", err)
	}
	return &DailyClaimResult{Granted: true, Amount: reward, Balance: coins}, nil
}

// BuyItem debits cost coins and grants qty of item in one transaction.
// Returns ErrInsufficientBalance without changing anything when the user is short.
func (r *StatsRepository) BuyItem(ctx context.Context, userID, cost int64, item string, qty int) (int64, error) {
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := ensureStats(ctx, tx, userID); err != nil {
		return 0, err
	}

	const debitQuery = `
		UPDATE user_stats SET coins = coins - $2, updated_at = NOW()
		WHERE user_id = $1 AND coins >= $2
		RETURNING coins
	`
	var balance int64
	if err := tx.QueryRow(ctx, debitQuery, userID, cost).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrInsufficientBalance
		}
		return 0, fmt.Errorf("failed to debit coins: %w", err)
	}

	if err := addItem(ctx, tx, userID, item, qty); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit purchase: %w", err)
	}
	return balance, nil
}

// SpendItem takes qty of item from the user and bumps counter by one in a
// single transaction. It returns false, with nothing changed, when the user
// holds fewer than qty.
func (r *StatsRepository) SpendItem(ctx context.Context, userID int64, item string, qty int, counter model.Stat) (bool, error) {
	if qty <= 0 {
		return false, ErrInvalidQuantity
	}
	col, err := counter.Column()
	if err != nil {
		return false, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	ok, err := removeItem(ctx, tx, userID, item, qty)
	if err != nil || !ok {
		return false, err
	}
	if _, err := increment(ctx, tx, userID, col, 1); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit item use: %w", err)
	}
	return true, nil
}

// ApplyDeltas applies every counter change or none of them.
func (r *StatsRepository) ApplyDeltas(ctx context.Context, deltas []model.StatDelta) error {
	cols := make([]string, len(deltas))
	for i, d := range deltas {
		col, err := d.Stat.Column()
		if err != nil {
			return err
		}
		cols[i] = col
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for i, d := range deltas {
		if _, err := increment(ctx, tx, d.UserID, cols[i], d.Delta); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit stat changes: %w", err)
	}
	return nil
}

// Leaderboard returns the top users by stat, highest first.
// Ties keep insertion order.
func (r *StatsRepository) Leaderboard(ctx context.Context, stat model.Stat, limit int) ([]*model.UserStats, error) {
	col, err := stat.Column()
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s FROM user_stats
		ORDER BY %s DESC, seq ASC
		LIMIT $1
	`, statsColumns, col)

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	defer rows.Close()

	var board []*model.UserStats
	for rows.Next() {
		s, err := scanStats(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		board = append(board, s)
	}
	return board, rows.Err()
}
