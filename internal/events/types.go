// internal/events/types.go
package events

import (
	"time"

	"github.com/rovshanmuradov/solana-portfolio/internal/activity"
	"github.com/rovshanmuradov/solana-portfolio/internal/portfolio"
	"github.com/rovshanmuradov/solana-portfolio/internal/quote"
)

// EventType represents the type of event.
type EventType string

const (
	BalanceResolved  EventType = "balance.resolved"
	NetworkDegraded  EventType = "network.degraded"
	QuoteReconciled  EventType = "quote.reconciled"
	ActivityRecorded EventType = "activity.recorded"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// BalanceResolvedEvent is emitted after every balance resolution.
type BalanceResolvedEvent struct {
	BaseEvent
	Wallet   string
	Snapshot portfolio.Snapshot
}

// NetworkDegradedEvent is emitted when live data could not be fetched.
type NetworkDegradedEvent struct {
	BaseEvent
	Wallet string
	Alert  portfolio.NetworkAlert
	Err    error
}

// QuoteReconciledEvent carries a reconciled swap quote.
type QuoteReconciledEvent struct {
	BaseEvent
	InputSOL float64
	Insights quote.Insights
	Alert    bool // quote is worse than the configured tolerance
}

// ActivityRecordedEvent is emitted when a local entry is added or updated.
type ActivityRecordedEvent struct {
	BaseEvent
	Wallet string
	Entry  activity.Entry
}

// New helpers stamp the base fields.

func NewBalanceResolved(wallet string, snap portfolio.Snapshot, at time.Time) BalanceResolvedEvent {
	return BalanceResolvedEvent{BaseEvent: BaseEvent{EventType: BalanceResolved, EventTime: at}, Wallet: wallet, Snapshot: snap}
}

func NewNetworkDegraded(wallet string, alert portfolio.NetworkAlert, err error, at time.Time) NetworkDegradedEvent {
	return NetworkDegradedEvent{BaseEvent: BaseEvent{EventType: NetworkDegraded, EventTime: at}, Wallet: wallet, Alert: alert, Err: err}
}

func NewQuoteReconciled(inputSOL float64, in quote.Insights, alert bool, at time.Time) QuoteReconciledEvent {
	return QuoteReconciledEvent{BaseEvent: BaseEvent{EventType: QuoteReconciled, EventTime: at}, InputSOL: inputSOL, Insights: in, Alert: alert}
}

func NewActivityRecorded(wallet string, e activity.Entry, at time.Time) ActivityRecordedEvent {
	return ActivityRecordedEvent{BaseEvent: BaseEvent{EventType: ActivityRecorded, EventTime: at}, Wallet: wallet, Entry: e}
}
