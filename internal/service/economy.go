package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"community-bot/internal/game"
	"community-bot/internal/game/tomato"
	"community-bot/internal/model"
	"community-bot/internal/pkg/lock"
	"community-bot/internal/repository"
)

// lockTimeout bounds how long a command waits behind the same user's previous one.
const lockTimeout = 5 * time.Second

// EconomyStore is the stat store surface the economy uses.
type EconomyStore interface {
	GetOrCreate(ctx context.Context, userID int64) (*model.UserStats, error)
	ClaimStarter(ctx context.Context, userID int64, item string, qty int) (bool, error)
	ProcessDailyClaim(ctx context.Context, userID int64, now time.Time, cooldown time.Duration, amount func() int64) (*repository.DailyClaimResult, error)
	BuyItem(ctx context.Context, userID, cost int64, item string, qty int) (int64, error)
	Leaderboard(ctx context.Context, stat model.Stat, limit int) ([]*model.UserStats, error)
}

// InventoryReader lists a user's items.
type InventoryReader interface {
	Items(ctx context.Context, userID int64) ([]model.InventoryEntry, error)
}

// EconomyConfig holds the economy tuning.
type EconomyConfig struct {
	StarterQuantity int
	DailyCooldown   time.Duration
	DailyMin        int64
	DailyMax        int64
	LootboxCost     int64
	LeaderboardSize int
}

// LootboxResult is what a lootbox contained.
type LootboxResult struct {
	Item    tomato.Item
	Balance int64
}

// EconomyService handles coins, the starter pack, daily rewards and lootboxes.
type EconomyService struct {
	stats EconomyStore
	inv   InventoryReader
	locks *lock.UserLock
	rng   game.Rand
	cfg   EconomyConfig
	now   func() time.Time
}

// NewEconomyService creates a new EconomyService instance.
func NewEconomyService(stats EconomyStore, inv InventoryReader, locks *lock.UserLock, rng game.Rand, cfg EconomyConfig) *EconomyService {
	return &EconomyService{
		stats: stats,
		inv:   inv,
		locks: locks,
		rng:   rng,
		cfg:   cfg,
		now:   time.Now,
	}
}

// Locks exposes the per-user lock so throws share it with other economy commands.
func (s *EconomyService) Locks() *lock.UserLock {
	return s.locks
}

// ClaimStarter grants the starter pack once.
func (s *EconomyService) ClaimStarter(ctx context.Context, userID int64) (bool, error) {
	var ok bool
	err := s.locks.WithLockContext(ctx, userID, lockTimeout, func() error {
		var err error
		ok, err = s.stats.ClaimStarter(ctx, userID, string(tomato.ItemRegular), s.cfg.StarterQuantity)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to claim starter pack: %w", err)
	}
	if ok {
		log.Info().Int64("user_id", userID).Msg("Starter pack claimed")
	}
	return ok, nil
}

// ClaimDaily grants the daily coins if the cooldown has passed.
func (s *EconomyService) ClaimDaily(ctx context.Context, userID int64) (*repository.DailyClaimResult, error) {
	var res *repository.DailyClaimResult
	err := s.locks.WithLockContext(ctx, userID, lockTimeout, func() error {
		var err error
		res, err = s.stats.ProcessDailyClaim(ctx, userID, s.now(), s.cfg.DailyCooldown, func() int64 {
			return game.Between(s.rng, s.cfg.DailyMin, s.cfg.DailyMax)
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to claim daily reward: %w", err)
	}
	if res.Granted {
		log.Info().Int64("user_id", userID).Int64("amount", res.Amount).Msg("Daily reward claimed")
	}
	return res, nil
}

// Balance returns the user's coins.
func (s *EconomyService) Balance(ctx context.Context, userID int64) (int64, error) {
	stats, err := s.stats.GetOrCreate(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return stats.Coins, nil
}

// OpenLootbox charges the lootbox price and grants a random item.
// Returns repository.ErrInsufficientBalance when the user cannot pay.
func (s *EconomyService) OpenLootbox(ctx context.Context, userID int64) (*LootboxResult, error) {
	var res *LootboxResult
	err := s.locks.WithLockContext(ctx, userID, lockTimeout, func() error {
		item := tomato.RollLoot(s.rng)
		balance, err := s.stats.BuyItem(ctx, userID, s.cfg.LootboxCost, string(item), 1)
		if err != nil {
			return err
		}
		res = &LootboxResult{Item: item, Balance: balance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int64("user_id", userID).Str("item", string(res.Item)).Msg("Lootbox opened")
	return res, nil
}

// Inventory lists the user's items.
func (s *EconomyService) Inventory(ctx context.Context, userID int64) ([]model.InventoryEntry, error) {
	items, err := s.inv.Items(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory: %w", err)
	}
	return items, nil
}

// Leaderboard returns the top users for a stat.
func (s *EconomyService) Leaderboard(ctx context.Context, stat model.Stat) ([]*model.UserStats, error) {
	return s.stats.Leaderboard(ctx, stat, s.cfg.LeaderboardSize)
}
