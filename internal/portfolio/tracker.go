package portfolio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrMalformedBalances is reported when the live source answers with values
// that are not usable balances.
var ErrMalformedBalances = errors.New("malformed balance response")

// LiveFetch queries the authoritative balance source once.
type LiveFetch func(ctx context.Context) (Balances, error)

// Resolution is the outcome of ResolveBalances.
type Resolution struct {
	Snapshot Snapshot
	// FetchErr is set when the live fetch failed and the snapshot is a
	// fallback. It is nil for live snapshots.
	FetchErr error
}

// Degraded reports whether the snapshot is a fallback caused by a failed
// live fetch.
func (r Resolution) Degraded() bool {
	return r.FetchErr != nil
}

// ResolveBalances calls fetch exactly once and builds the snapshot. It never
// fails: when fetch errors the cached portfolio is returned with its original
// timestamp, or a zero portfolio when nothing is cached.
func ResolveBalances(ctx context.Context, fetch LiveFetch, cached *TrackedPortfolio, now time.Time) Resolution {
	balances, err := callFetch(ctx, fetch)
	if err == nil {
		err = validate(balances)
	}
	if err == nil {
		ts := now
		return Resolution{Snapshot: Snapshot{
			SOLBalance:   balances.SOL,
			BittyBalance: balances.Bitty,
			LastUpdated:  &ts,
			Source:       SourceLive,
		}}
	}

	if cached == nil {
		return Resolution{
			Snapshot: Snapshot{Source: SourceLocal},
			FetchErr: err,
		}
	}
	return Resolution{
		Snapshot: Snapshot{
			SOLBalance:   cached.SOLBalance,
			BittyBalance: cached.BittyBalance,
			LastUpdated:  copyTime(cached.LastUpdated),
			Source:       SourceLocal,
		},
		FetchErr: err,
	}
}

func callFetch(ctx context.Context, fetch LiveFetch) (b Balances, err error) {
	if fetch == nil {
		return Balances{}, errors.New("no live balance source")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("live balance fetch panicked: %v", r)
		}
	}()
	return fetch(ctx)
}

func validate(b Balances) error {
	for _, v := range []float64{b.SOL, b.Bitty} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: %v", ErrMalformedBalances, v)
		}
	}
	return nil
}
