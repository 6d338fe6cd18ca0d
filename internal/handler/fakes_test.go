package handler

import (
	"context"
	"sort"
	"sync"
	"time"

	"community-bot/internal/model"
	"community-bot/internal/repository"
)

// fixedRand always rolls the low end.
type fixedRand struct{ f float64 }

func (r fixedRand) Intn(int) int     { return 0 }
func (r fixedRand) Float64() float64 { return r.f }

// memStore is an in-memory stat store with inventory.
type memStore struct {
	mu    sync.Mutex
	users map[int64]*model.UserStats
	items map[int64]map[string]int
	seq   int64
}

func newMemStore() *memStore {
	return &memStore{
		users: make(map[int64]*model.UserStats),
		items: make(map[int64]map[string]int),
	}
}

func (m *memStore) get(userID int64) *model.UserStats {
	s, ok := m.users[userID]
	if !ok {
		m.seq++
		s = &model.UserStats{UserID: userID, Seq: m.seq}
		m.users[userID] = s
	}
	return s
}

func (m *memStore) stats(userID int64) model.UserStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.get(userID)
}

func (m *memStore) give(userID int64, item string, qty int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items[userID] == nil {
		m.items[userID] = make(map[string]int)
	}
	m.items[userID][item] += qty
}

func (m *memStore) quantity(userID int64, item string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[userID][item]
}

func (m *memStore) add(s *model.UserStats, stat model.Stat, delta int64) error {
	switch stat {
	case model.StatMessageCount:
		s.MessageCount += delta
	case model.StatCoins:
		s.Coins += delta
	case model.StatTomatoesThrown:
		s.TomatoesThrown += delta
	case model.StatTomatoesLanded:
		s.TomatoesLanded += delta
	case model.StatTomatoesDodged:
		s.TomatoesDodged += delta
	case model.StatTimesHit:
		s.TimesHit += delta
	default:
		return model.ErrUnknownStat
	}
	return nil
}

func (m *memStore) GetOrCreate(_ context.Context, userID int64) (*model.UserStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.get(userID)
	return &cp, nil
}

func (m *memStore) Increment(_ context.Context, userID int64, stat model.Stat, delta int64) (*model.UserStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.get(userID)
	if err := m.add(s, stat, delta); err != nil {
		return nil, err
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) ClaimStarter(_ context.Context, userID int64, item string, qty int) (bool, error) {
	m.mu.Lock()
	s := m.get(userID)
	if s.ClaimedStarter {
		m.mu.Unlock()
		return false, nil
	}
	s.ClaimedStarter = true
	m.mu.Unlock()
	m.give(userID, item, qty)
	return true, nil
}

func (m *memStore) ProcessDailyClaim(_ context.Context, userID int64, now time.Time, cooldown time.Duration, amount func() int64) (*repository.DailyClaimResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.get(userID)
	if s.LastDailyClaim != nil {
		if next := s.LastDailyClaim.Add(cooldown); now.Before(next) {
			return &repository.DailyClaimResult{Balance: s.Coins, Remaining: next.Sub(now)}, nil
		}
	}
	n := amount()
	s.Coins += n
	t := now
	s.LastDailyClaim = &t
	return &repository.DailyClaimResult{Granted: true, Amount: n, Balance: s.Coins}, nil
}

func (m *memStore) BuyItem(_ context.Context, userID, cost int64, item string, qty int) (int64, error) {
	m.mu.Lock()
	s := m.get(userID)
	if s.Coins < cost {
		m.mu.Unlock()
		return s.Coins, repository.ErrInsufficientBalance
	}
	s.Coins -= cost
	balance := s.Coins
	m.mu.Unlock()
	m.give(userID, item, qty)
	return balance, nil
}

func (m *memStore) Leaderboard(_ context.Context, stat model.Stat, limit int) ([]*model.UserStats, error) {
	if !stat.Valid() {
		return nil, model.ErrUnknownStat
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.UserStats
	for _, s := range m.users {
		if s.Value(stat) > 0 {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value(stat) == out[j].Value(stat) {
			return out[i].Seq < out[j].Seq
		}
		return out[i].Value(stat) > out[j].Value(stat)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) Items(_ context.Context, userID int64) ([]model.InventoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.InventoryEntry
	for name, qty := range m.items[userID] {
		if qty > 0 {
			out = append(out, model.InventoryEntry{UserID: userID, ItemName: name, Quantity: qty})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemName < out[j].ItemName })
	return out, nil
}

func (m *memStore) SpendItem(_ context.Context, userID int64, item string, qty int, counter model.Stat) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items[userID][item] < qty {
		return false, nil
	}
	m.items[userID][item] -= qty
	return true, m.add(m.get(userID), counter, 1)
}

func (m *memStore) ApplyDeltas(_ context.Context, deltas []model.StatDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range deltas {
		if err := m.add(m.get(d.UserID), d.Stat, d.Delta); err != nil {
			return err
		}
	}
	return nil
}

// memActivity counts onboarding messages.
type memActivity struct {
	mu     sync.Mutex
	counts map[int64]int64
}

func newMemActivity() *memActivity {
	return &memActivity{counts: make(map[int64]int64)}
}

func (a *memActivity) Increment(_ context.Context, userID int64) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counts[userID]++
	return a.counts[userID], nil
}

func (a *memActivity) Counts(_ context.Context, userIDs []int64) (map[int64]int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[int64]int64, len(userIDs))
	for _, id := range userIDs {
		out[id] = a.counts[id]
	}
	return out, nil
}

func (a *memActivity) AtLeast(_ context.Context, threshold int64) ([]model.Activity, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []model.Activity
	for id, n := range a.counts {
		if n >= threshold {
			out = append(out, model.Activity{UserID: id, MessageCount: n})
		}
	}
	return out, nil
}

func (a *memActivity) count(userID int64) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counts[userID]
}

// memQueue is a FIFO set.
type memQueue struct {
	mu  sync.Mutex
	ids []int64
}

func (q *memQueue) Enqueue(_ context.Context, userID int64) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, id := range q.ids {
		if id == userID {
			return false, nil
		}
	}
	q.ids = append(q.ids, userID)
	return true, nil
}

func (q *memQueue) DrainAll(_ context.Context) ([]int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.ids
	q.ids = nil
	return out, nil
}

func (q *memQueue) Len(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ids), nil
}

// memWarnings records flags.
type memWarnings struct {
	mu       sync.Mutex
	warnings []*model.Warning
}

func (w *memWarnings) AddChannelWarning(_ context.Context, guildID, channelID, moderatorID int64, reason string, kind model.WarningType) (*model.Warning, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch := channelID
	warning := &model.Warning{
		ID:          int64(len(w.warnings) + 1),
		GuildID:     guildID,
		ChannelID:   &ch,
		ModeratorID: moderatorID,
		Reason:      reason,
		Type:        kind,
		IsActive:    true,
		CreatedAt:   time.Now(),
	}
	w.warnings = append(w.warnings, warning)
	return warning, nil
}
