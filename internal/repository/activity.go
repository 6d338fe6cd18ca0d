package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"community-bot/internal/model"
)

// ActivityRepository tracks the onboarding message counter.
// It is independent of user_stats.message_count.
type ActivityRepository struct {
	pool *pgxpool.Pool
}

// NewActivityRepository creates a new ActivityRepository instance.
func NewActivityRepository(pool *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{pool: pool}
}

// Increment bumps the user's counter by one and returns the new value.
func (r *ActivityRepository) Increment(ctx context.Context, userID int64) (int64, error) {
	const query = `
		INSERT INTO activity (user_id, message_count, updated_at)
		VALUES ($1, 1, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET message_count = activity.message_count + 1, updated_at = NOW()
		RETURNING message_count
	`
	var count int64
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to increment activity: %w", err)
	}
	return count, nil
}

// Counts returns the counter for each requested user. Users without a
// record are reported as zero.
func (r *ActivityRepository) Counts(ctx context.Context, userIDs []int64) (map[int64]int64, error) {
	counts := make(map[int64]int64, len(userIDs))
	for _, id := range userIDs {
		counts[id] = 0
	}
	if len(userIDs) == 0 {
		return counts, nil
	}

	const query = `SELECT user_id, message_count FROM activity WHERE user_id = ANY($1)`
	rows, err := r.pool.Query(ctx, query, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, count int64
		if err := rows.Scan(&id, &count); err != nil {
			return nil, err
		}
		counts[id] = count
	}
	return counts, rows.Err()
}

// AtLeast returns every record whose counter is at or above threshold,
// most active first.
func (r *ActivityRepository) AtLeast(ctx context.Context, threshold int64) ([]model.Activity, error) {
	const query = `
		SELECT user_id, message_count, updated_at
		FROM activity
		WHERE message_count >= $1
		ORDER BY message_count DESC, user_id
	`
	rows, err := r.pool.Query(ctx, query, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to get active users: %w", err)
	}
	defer rows.Close()

	var out []model.Activity
	for rows.Next() {
		var a model.Activity
		if err := rows.Scan(&a.UserID, &a.MessageCount, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
