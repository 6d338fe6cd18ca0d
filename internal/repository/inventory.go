package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"community-bot/internal/model"
)

// InventoryRepository handles item stacks held by users.
// A row exists only while its quantity is positive.
type InventoryRepository struct {
	pool *pgxpool.Pool
}

// NewInventoryRepository creates a new InventoryRepository instance.
func NewInventoryRepository(pool *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{pool: pool}
}

func addItem(ctx context.Context, q dbtx, userID int64, item string, qty int) error {
	const query = `
		INSERT INTO inventory (user_id, item_name, quantity, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, item_name)
		DO UPDATE SET quantity = inventory.quantity + EXCLUDED.quantity, updated_at = NOW()
	`
	if _, err := q.Exec(ctx, query, userID, item, qty); err != nil {
		return fmt.Errorf("failed to add item: %w", err)
	}
	return nil
}

// AddItem adds qty units of item to the user's inventory.
func (r *InventoryRepository) AddItem(ctx context.Context, userID int64, item string, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	return addItem(ctx, r.pool, userID, item, qty)
}

// RemoveItem takes qty units of item from the user.
// It returns false without changing anything if the user holds fewer than qty.
func (r *InventoryRepository) RemoveItem(ctx context.Context, userID int64, item string, qty int) (bool, error) {
	if qty <= 0 {
		return false, ErrInvalidQuantity
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

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit removal: %w", err)
	}
	return true, nil
}

func removeItem(ctx context.Context, tx pgx.Tx, userID int64, item string, qty int) (bool, error) {
	var held int
	const selectQuery = `SELECT quantity FROM inventory WHERE user_id = $1 AND item_name = $2 FOR UPDATE`
	err := tx.QueryRow(ctx, selectQuery, userID, item).Scan(&held)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to lock inventory: %w", err)
	}
	if held < qty {
		return false, nil
	}

	if held == qty {
		_, err = tx.Exec(ctx, `DELETE FROM inventory WHERE user_id = $1 AND item_name = $2`, userID, item)
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE inventory SET quantity = quantity - $3, updated_at = NOW()
			WHERE user_id = $1 AND item_name = $2
		`, userID, item, qty)
	}
	if err != nil {
		return false, fmt.Errorf("failed to remove item: %w", err)
	}
	return true, nil
}

// Quantity returns how many units of item the user holds.
func (r *InventoryRepository) Quantity(ctx context.Context, userID int64, item string) (int, error) {
	const query = `SELECT quantity FROM inventory WHERE user_id = $1 AND item_name = $2`
	var qty int
	err := r.pool.QueryRow(ctx, query, userID, item).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get quantity: %w", err)
	}
	return qty, nil
}

// Items returns the user's inventory ordered by item name.
func (r *InventoryRepository) Items(ctx context.Context, userID int64) ([]model.InventoryEntry, error) {
	const query = `
		SELECT user_id, item_name, quantity, updated_at
		FROM inventory
		WHERE user_id = $1
		ORDER BY item_name
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory: %w", err)
	}
	defer rows.Close()

	var items []model.InventoryEntry
	for rows.Next() {
		var e model.InventoryEntry
		if err := rows.Scan(&e.UserID, &e.ItemName, &e.Quantity, &e.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}
