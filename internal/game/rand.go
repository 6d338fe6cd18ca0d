// Package game holds pieces shared by the bot's games.
package game

import (
	"math/rand"
	"sync"
	"time"
)

// Rand is the randomness the games draw from. *rand.Rand satisfies it, and
// tests substitute fixed sequences.
type Rand interface {
	Intn(n int) int
	Float64() float64
}

// lockedRand makes a *rand.Rand safe for concurrent handlers.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand returns a goroutine-safe Rand seeded from the clock.
func NewRand() Rand {
	return &lockedRand{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// Between returns a uniform value in [lo, hi]. It returns lo when hi <= lo.
func Between(r Rand, lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	return lo + int64(r.Intn(int(hi-lo+1)))
}
