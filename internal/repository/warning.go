package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"community-bot/internal/model"
)

// WarningRepository stores moderation flags.
type WarningRepository struct {
	pool *pgxpool.Pool
}

// NewWarningRepository creates a new WarningRepository instance.
func NewWarningRepository(pool *pgxpool.Pool) *WarningRepository {
	return &WarningRepository{pool: pool}
}

// AddChannelWarning records a flag raised against a channel rather than a user.
func (r *WarningRepository) AddChannelWarning(ctx context.Context, guildID, channelID, moderatorID int64, reason string, kind model.WarningType) (*model.Warning, error) {
	const query = `
		INSERT INTO warnings (user_id, guild_id, moderator_id, channel_id, reason, warning_type, is_active, created_at)
		VALUES (NULL, $1, $2, $3, $4, $5, TRUE, NOW())
		RETURNING id, user_id, guild_id, moderator_id, channel_id, reason, warning_type, is_active, created_at
	`
	var (
		w       model.Warning
		kindStr string
	)
	err := r.pool.QueryRow(ctx, query, guildID, moderatorID, channelID, reason, string(kind)).Scan(
		&w.ID,
		&w.UserID,
		&w.GuildID,
		&w.ModeratorID,
		&w.ChannelID,
		&w.Reason,
		&kindStr,
		&w.IsActive,
		&w.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add channel warning: %w", err)
	}
	w.Type = model.WarningType(kindStr)
	return &w, nil
}

// ChannelCountsSince returns the number of active warnings per channel created at or after since.
func (r *WarningRepository) ChannelCountsSince(ctx context.Context, since time.Time) (map[int64]int, error) {
	const query = `
		SELECT channel_id, COUNT(*)
		FROM warnings
		WHERE channel_id IS NOT NULL AND is_active AND created_at >= $1
		GROUP BY channel_id
	`
	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count channel warnings: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var channelID int64
		var n int
		if err := rows.Scan(&channelID, &n); err != nil {
			return nil, err
		}
		counts[channelID] = n
	}
	return counts, rows.Err()
}
