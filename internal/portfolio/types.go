// Package portfolio resolves the wallet's SOL and BITTY balances, falling back
// to the last persisted portfolio when the live source is unavailable.
package portfolio

import "time"

// Source tags where a snapshot's balances came from.
type Source string

const (
	SourceLive  Source = "live"
	SourceLocal Source = "local"
)

// Balances is what a live query returns, in whole SOL and whole BITTY.
type Balances struct {
	SOL   float64
	Bitty float64
}

// Snapshot is the best-known portfolio at one point in time. It is a value:
// every resolution produces a new one.
type Snapshot struct {
	SOLBalance   float64    `json:"sol_balance"`
	BittyBalance float64    `json:"bitty_balance"`
	LastUpdated  *time.Time `json:"last_updated"`
	Source       Source     `json:"source"`
}

// TrackedPortfolio is the persisted form of a Snapshot. It is rewritten after
// every resolution that has balances; a fallback keeps the cached balances and
// LastUpdated and records LastSource as local.
type TrackedPortfolio struct {
	SOLBalance   float64    `json:"sol_balance"`
	BittyBalance float64    `json:"bitty_balance"`
	LastUpdated  *time.Time `json:"last_updated"`
	LastSource   Source     `json:"last_source"`
}

// Track converts the snapshot into the record the cache keeps.
func (s Snapshot) Track() TrackedPortfolio {
	return TrackedPortfolio{
		SOLBalance:   s.SOLBalance,
		BittyBalance: s.BittyBalance,
		LastUpdated:  copyTime(s.LastUpdated),
		LastSource:   s.Source,
	}
}

// Stale reports how old the snapshot is relative to now. Snapshots that were
// never updated return ok=false.
func (s Snapshot) Stale(now time.Time) (age time.Duration, ok bool) {
	if s.LastUpdated == nil {
		return 0, false
	}
	return now.Sub(*s.LastUpdated), true
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
