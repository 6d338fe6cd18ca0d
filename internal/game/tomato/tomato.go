// Package tomato implements the throw/dodge game.
//
// A throw consumes one item and opens a Challenge in the Pending state. The
// target may dodge while the window is open; otherwise the throw lands.
// Each challenge resolves exactly once and the scoring for that resolution
// is written in one transaction.
package tomato

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"community-bot/internal/game"
	"community-bot/internal/model"
)

// Errors
var (
	ErrSelfTarget        = errors.New("cannot throw a tomato at yourself")
	ErrBotTarget         = errors.New("cannot throw a tomato at the bot")
	ErrNoItem            = errors.New("no such item in inventory")
	ErrBackfire          = errors.New("the tomato fell apart in your hand")
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrNotTarget         = errors.New("this tomato is not aimed at you")
	ErrResolved          = errors.New("challenge already resolved")
)

// State is the lifecycle position of a challenge.
type State int

const (
	StatePending State = iota
	StateDodged
	StateHitConfirmed
	StateExpired
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateDodged:
		return "dodged"
	case StateHitConfirmed:
		return "hit_confirmed"
	case StateExpired:
		return "expired"
	}
	return "unknown"
}

// Store is the persistence the game needs.
type Store interface {
	SpendItem(ctx context.Context, userID int64, item string, qty int, counter model.Stat) (bool, error)
	ApplyDeltas(ctx context.Context, deltas []model.StatDelta) error
}

// Config holds the game tuning.
type Config struct {
	DodgeWindow    time.Duration
	BackfireChance float64
	GoldenBonus    int64
}

// ThrowRequest describes a throw attempt.
type ThrowRequest struct {
	ThrowerID   int64
	TargetID    int64
	TargetIsBot bool
	Item        Item
}

// Challenge is one pending throw.
type Challenge struct {
	ID        string
	ThrowerID int64
	TargetID  int64
	Item      Item
	CreatedAt time.Time
	Deadline  time.Time

	mu    sync.Mutex
	state State
	done  chan struct{}
}

// State returns the current state.
func (c *Challenge) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed once the challenge leaves Pending.
func (c *Challenge) Done() <-chan struct{} {
	return c.done
}

// resolve moves a pending challenge to a terminal state. It reports false
// if the challenge had already resolved.
func (c *Challenge) resolve(to State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePending {
		return false
	}
	c.state = to
	close(c.done)
	return true
}

// Outcome is the scored result of a challenge.
type Outcome struct {
	Challenge *Challenge
	State     State
	Bonus     int64
}

// Hit reports whether the tomato landed.
func (o *Outcome) Hit() bool {
	return o.State == StateHitConfirmed || o.State == StateExpired
}

// Game runs throw/dodge challenges.
type Game struct {
	store Store
	rng   game.Rand
	cfg   Config
	now   func() time.Time

	mu      sync.Mutex
	pending map[string]*Challenge
}

// New creates a new Game instance.
func New(store Store, rng game.Rand, cfg Config) *Game {
	if cfg.DodgeWindow <= 0 {
		cfg.DodgeWindow = 8 * time.Second
	}
	return &Game{
		store:   store,
		rng:     rng,
		cfg:     cfg,
		now:     time.Now,
		pending: make(map[string]*Challenge),
	}
}

// Window returns the dodge window.
func (g *Game) Window() time.Duration {
	return g.cfg.DodgeWindow
}

// Throw validates the throw, spends the item and opens a challenge.
// A rotten tomato may backfire: the item is spent, the throw is counted and
// ErrBackfire is returned without creating a challenge.
func (g *Game) Throw(ctx context.Context, req ThrowRequest) (*Challenge, error) {
	if req.ThrowerID == req.TargetID {
		return nil, ErrSelfTarget
	}
	if req.TargetIsBot {
		return nil, ErrBotTarget
	}
	if req.Item == "" {
		req.Item = ItemRegular
	}
	if _, ok := Lookup(req.Item); !ok {
		return nil, ErrUnknownItem
	}

	ok, err := g.store.SpendItem(ctx, req.ThrowerID, string(req.Item), 1, model.StatTomatoesThrown)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoItem
	}

	if req.Item == ItemRotten && g.rng.Float64() < g.cfg.BackfireChance {
		log.Info().
			Int64("thrower_id", req.ThrowerID).
			Msg("Rotten tomato backfired")
		return nil, ErrBackfire
	}

	now := g.now()
	c := &Challenge{
		ID:        uuid.NewString(),
		ThrowerID: req.ThrowerID,
		TargetID:  req.TargetID,
		Item:      req.Item,
		CreatedAt: now,
		Deadline:  now.Add(g.cfg.DodgeWindow),
		state:     StatePending,
		done:      make(chan struct{}),
	}

	g.mu.Lock()
	g.pending[c.ID] = c
	g.mu.Unlock()

	return c, nil
}

// Get returns a known challenge.
func (g *Game) Get(id string) (*Challenge, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.pending[id]
	return c, ok
}

// Dodge lets the target escape a pending challenge. Nothing changes on error.
func (g *Game) Dodge(challengeID string, userID int64) error {
	c, ok := g.Get(challengeID)
	if !ok {
		return ErrChallengeNotFound
	}
	if c.TargetID != userID {
		return ErrNotTarget
	}
	if !c.resolve(StateDodged) {
		return ErrResolved
	}
	return nil
}

// Await blocks until the challenge resolves and then scores it. The window
// elapsing resolves it as Expired. If ctx ends first the throw is confirmed
// as a hit so no challenge stays pending.
func (g *Game) Await(ctx context.Context, c *Challenge) (*Outcome, error) {
	timer := time.NewTimer(time.Until(c.Deadline))
	defer timer.Stop()

	select {
	case <-c.Done():
	case <-timer.C:
		c.resolve(StateExpired)
	case <-ctx.Done():
		c.resolve(StateHitConfirmed)
	}

	// Late dodge clicks keep getting ErrResolved for a while.
	time.AfterFunc(g.cfg.DodgeWindow, func() { g.forget(c.ID) })

	out := &Outcome{Challenge: c, State: c.State()}
	var deltas []model.StatDelta
	if out.Hit() {
		deltas = []model.StatDelta{
			{UserID: c.ThrowerID, Stat: model.StatTomatoesLanded, Delta: 1},
			{UserID: c.TargetID, Stat: model.StatTimesHit, Delta: 1},
		}
		if c.Item == ItemGolden && g.cfg.GoldenBonus > 0 {
			out.Bonus = g.cfg.GoldenBonus
			deltas = append(deltas, model.StatDelta{UserID: c.ThrowerID, Stat: model.StatCoins, Delta: out.Bonus})
		}
	} else {
		deltas = []model.StatDelta{
			{UserID: c.TargetID, Stat: model.StatTomatoesDodged, Delta: 1},
		}
	}

	if err := g.store.ApplyDeltas(context.WithoutCancel(ctx), deltas); err != nil {
		return out, err
	}

	log.Info().
		Str("challenge_id", c.ID).
		Int64("thrower_id", c.ThrowerID).
		Int64("target_id", c.TargetID).
		Str("item", string(c.Item)).
		Str("state", out.State.String()).
		Msg("Tomato challenge resolved")

	return out, nil
}

// Pending returns the number of challenges still tracked.
func (g *Game) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

func (g *Game) forget(id string) {
	g.mu.Lock()
	delete(g.pending, id)
	g.mu.Unlock()
}
