package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// GraduationQueueRepository persists pending graduations. The queue has set
// semantics: a user is either queued once or not at all.
type GraduationQueueRepository struct {
	pool *pgxpool.Pool
}

// NewGraduationQueueRepository creates a new GraduationQueueRepository instance.
func NewGraduationQueueRepository(pool *pgxpool.Pool) *GraduationQueueRepository {
	return &GraduationQueueRepository{pool: pool}
}

// Enqueue adds the user to the queue. It returns false if the user was already queued.
func (r *GraduationQueueRepository) Enqueue(ctx context.Context, userID int64) (bool, error) {
	const query = `
		INSERT INTO graduation_queue (user_id, added_at)
		VALUES ($1, clock_timestamp())
		ON CONFLICT (user_id) DO NOTHING
	`
	tag, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return false, fmt.Errorf("failed to enqueue graduation: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DrainAll removes and returns every queued user, oldest first.
// Read and clear happen in one statement, so an entry inserted concurrently
// is either returned here or left for the next drain.
func (r *GraduationQueueRepository) DrainAll(ctx context.Context) ([]int64, error) {
	const query = `
		WITH drained AS (
			DELETE FROM graduation_queue
			RETURNING user_id, added_at
		)
		SELECT user_id FROM drained ORDER BY added_at, user_id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to drain graduation queue: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Len returns the number of queued users.
func (r *GraduationQueueRepository) Len(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM graduation_queue`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count graduation queue: %w", err)
	}
	return n, nil
}
