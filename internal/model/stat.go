package model

import (
	"errors"
	"fmt"
)

// ErrUnknownStat is returned when a counter name is not part of the Stat enumeration.
var ErrUnknownStat = errors.New("unknown stat")

// Stat names one of the counters in UserStats.
type Stat string

// The closed set of counters. Every value maps to exactly one user_stats column.
const (
	StatMessageCount   Stat = "message_count"
	StatCoins          Stat = "coins"
	StatTomatoesThrown Stat = "tomatoes_thrown"
	StatTomatoesLanded Stat = "tomatoes_landed"
	StatTomatoesDodged Stat = "tomatoes_dodged"
	StatTimesHit       Stat = "times_hit"
)

var statColumns = map[Stat]string{
	StatMessageCount:   "message_count",
	StatCoins:          "coins",
	StatTomatoesThrown: "tomatoes_thrown",
	StatTomatoesLanded: "tomatoes_landed",
	StatTomatoesDodged: "tomatoes_dodged",
	StatTimesHit:       "times_hit",
}

// AllStats returns every known counter in declaration order.
func AllStats() []Stat {
	return []Stat{
		StatMessageCount,
		StatCoins,
		StatTomatoesThrown,
		StatTomatoesLanded,
		StatTomatoesDodged,
		StatTimesHit,
	}
}

// ParseStat converts a raw name into a Stat, rejecting anything unknown.
func ParseStat(name string) (Stat, error) {
	s := Stat(name)
	if _, ok := statColumns[s]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStat, name)
	}
	return s, nil
}

// Column returns the storage column backing the stat.
func (s Stat) Column() (string, error) {
	col, ok := statColumns[s]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStat, string(s))
	}
	return col, nil
}

// Valid reports whether s is a known counter.
func (s Stat) Valid() bool {
	_, ok := statColumns[s]
	return ok
}

// StatDelta is one counter change, applied together with others in a single transaction.
type StatDelta struct {
	UserID int64
	Stat   Stat
	Delta  int64
}
