package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// migrations are applied in order on every start. Each statement is idempotent.
var migrations = []struct {
	name string
	sql  string
}{
	{
		name: "user_stats",
		sql: `
			CREATE TABLE IF NOT EXISTS user_stats (
				user_id BIGINT PRIMARY KEY,
				seq BIGSERIAL,
				message_count BIGINT NOT NULL DEFAULT 0,
				coins BIGINT NOT NULL DEFAULT 0,
				tomatoes_thrown BIGINT NOT NULL DEFAULT 0,
				tomatoes_landed BIGINT NOT NULL DEFAULT 0,
				tomatoes_dodged BIGINT NOT NULL DEFAULT 0,
				times_hit BIGINT NOT NULL DEFAULT 0,
				claimed_starter BOOLEAN NOT NULL DEFAULT FALSE,
				last_daily_claim TIMESTAMPTZ,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
		`,
	},
	{
		name: "inventory",
		sql: `
			CREATE TABLE IF NOT EXISTS inventory (
				user_id BIGINT NOT NULL,
				item_name VARCHAR(64) NOT NULL,
				quantity INT NOT NULL CHECK (quantity > 0),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (user_id, item_name)
			);
		`,
	},
	{
		name: "graduation_queue",
		sql: `
			CREATE TABLE IF NOT EXISTS graduation_queue (
				user_id BIGINT PRIMARY KEY,
				added_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
			);
		`,
	},
	{
		name: "activity",
		sql: `
			CREATE TABLE IF NOT EXISTS activity (
				user_id BIGINT PRIMARY KEY,
				message_count BIGINT NOT NULL DEFAULT 0,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_activity_count ON activity(message_count DESC);
		`,
	},
	{
		name: "warnings",
		sql: `
			CREATE TABLE IF NOT EXISTS warnings (
				id BIGSERIAL PRIMARY KEY,
				user_id BIGINT,
				guild_id BIGINT NOT NULL,
				moderator_id BIGINT NOT NULL,
				channel_id BIGINT,
				reason TEXT NOT NULL,
				warning_type VARCHAR(16) NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_warnings_channel_time ON warnings(channel_id, created_at DESC);
		`,
	},
}

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	log.Info().Msg("Running database migrations...")

	for i, m := range migrations {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.name, err)
		}
		log.Info().Int("step", i+1).Str("table", m.name).Msg("Migration applied")
	}

	log.Info().Msg("All migrations completed successfully")
	return nil
}
