package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"community-bot/internal/model"
	"community-bot/internal/repository"
)

// seqRand returns Intn values from a fixed sequence, then repeats the last.
type seqRand struct {
	mu   sync.Mutex
	ints []int
	f    float64
}

func (r *seqRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := 0
	if len(r.ints) > 0 {
		v = r.ints[0]
		if len(r.ints) > 1 {
			r.ints = r.ints[1:]
		}
	}
	if v >= n {
		v = n - 1
	}
	return v
}

func (r *seqRand) Float64() float64 { return r.f }

// memStats is an in-memory stat store with inventory.
type memStats struct {
	mu    sync.Mutex
	users map[int64]*model.UserStats
	items map[int64]map[string]int
	seq   int64
}

func newMemStats() *memStats {
	return &memStats{
		users: make(map[int64]*model.UserStats),
		items: make(map[int64]map[string]int),
	}
}

func (m *memStats) get(userID int64) *model.UserStats {
	s, ok := m.users[userID]
	if !ok {
		m.seq++
		s = &model.UserStats{UserID: userID, Seq: m.seq}
		m.users[userID] = s
	}
	return s
}

func (m *memStats) GetOrCreate(_ context.Context, userID int64) (*model.UserStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.get(userID)
	return &cp, nil
}

func (m *memStats) Increment(_ context.Context, userID int64, stat model.Stat, delta int64) (*model.UserStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.get(userID)
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
		return nil, model.ErrUnknownStat
	}
	cp := *s
	return &cp, nil
}

func (m *memStats) give(userID int64, item string, qty int) {
	if m.items[userID] == nil {
		m.items[userID] = make(map[string]int)
	}
	m.items[userID][item] += qty
}

func (m *memStats) ClaimStarter(_ context.Context, userID int64, item string, qty int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.get(userID)
	if s.ClaimedStarter {
		return false, nil
	}
	s.ClaimedStarter = true
	m.give(userID, item, qty)
	return true, nil
}

func (m *memStats) ProcessDailyClaim(_ context.Context, userID int64, now time.Time, cooldown time.Duration, amount func() int64) (*repository.DailyClaimResult, error) {
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

func (m *memStats) BuyItem(_ context.Context, userID, cost int64, item string, qty int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.get(userID)
	if s.Coins < cost {
		return s.Coins, repository.ErrInsufficientBalance
	}
	s.Coins -= cost
	m.give(userID, item, qty)
	return s.Coins, nil
}

func (m *memStats) Leaderboard(_ context.Context, stat model.Stat, limit int) ([]*model.UserStats, error) {
	if !stat.Valid() {
		return nil, model.ErrUnknownStat
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.UserStats
	for _, s := range m.users {
		cp := *s
		out = append(out, &cp)
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

func (m *memStats) Items(_ context.Context, userID int64) ([]model.InventoryEntry, error) {
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

func (m *memStats) quantity(userID int64, item string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[userID][item]
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
	counts   map[int64]int
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

func (w *memWarnings) ChannelCountsSince(_ context.Context, _ time.Time) (map[int64]int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[int64]int, len(w.counts))
	for k, v := range w.counts {
		out[k] = v
	}
	return out, nil
}

// memSheet keeps the last row per key.
type memSheet struct {
	mu     sync.Mutex
	header []string
	rows   map[string][]interface{}
	err    map[string]error
}

func newMemSheet() *memSheet {
	return &memSheet{rows: make(map[string][]interface{}), err: make(map[string]error)}
}

func (s *memSheet) Upsert(_ context.Context, header []string, key string, row []interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err[key]; err != nil {
		return err
	}
	s.header = header
	s.rows[key] = row
	return nil
}

// recordingAlerter captures mirrored alerts.
type recordingAlerter struct {
	mu    sync.Mutex
	texts []string
}

func (a *recordingAlerter) Alert(_ context.Context, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.texts = append(a.texts, text)
	return nil
}
