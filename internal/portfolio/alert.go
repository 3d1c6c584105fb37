package portfolio

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NetworkAlert is a user-facing notice about degraded data.
type NetworkAlert struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Message string `json:"message"`
	OnRetry func() `json:"-"`
}

// NewBalanceAlert builds the alert for a degraded resolution. It returns nil
// when the snapshot is live.
func NewBalanceAlert(res Resolution, now time.Time, retry func()) *NetworkAlert {
	if !res.Degraded() {
		return nil
	}

	msg := "Live balance unavailable and no cached data yet."
	if age, ok := res.Snapshot.Stale(now); ok {
		msg = fmt.Sprintf("Live balance unavailable, showing cached data from %s ago.",
			age.Round(time.Second))
	}

	return &NetworkAlert{
		ID:      "balance-" + uuid.NewString(),
		Title:   "Network issue",
		Message: msg,
		OnRetry: retry,
	}
}
