// Package activity builds the wallet activity feed from confirmed chain
// history and optimistic local records.
package activity

import (
	"encoding/json"
	"strings"
	"time"
)

// Status is the lifecycle state of an entry.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusPending Status = "pending"
)

// Source tells whether an entry was observed on chain or recorded locally.
type Source string

const (
	SourceOnchain Source = "onchain"
	SourceLocal   Source = "local"
)

// DefaultLabel is used for chain transactions without a memo.
const DefaultLabel = "Transaction"

// Entry is one item of the activity feed. A zero Timestamp means the time is
// not known yet. In JSON the timestamp is unix milliseconds or null.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Label     string    `json:"label"`
	Detail    string    `json:"detail"`
	Status    Status    `json:"status"`
	Source    Source    `json:"source"`
	Link      string    `json:"link,omitempty"`
	Signature string    `json:"signature,omitempty"`
}

// HasTimestamp reports whether the entry time is known.
func (e Entry) HasTimestamp() bool {
	return !e.Timestamp.IsZero()
}

type entryAlias Entry

type entryJSON struct {
	entryAlias
	Timestamp *int64 `json:"timestamp"`
}

func (e Entry) MarshalJSON() ([]byte, error) {
	out := entryJSON{entryAlias: entryAlias(e)}
	if e.HasTimestamp() {
		ms := e.Timestamp.UnixMilli()
		out.Timestamp = &ms
	}
	return json.Marshal(out)
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var in entryJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*e = Entry(in.entryAlias)
	e.Timestamp = time.Time{}
	if in.Timestamp != nil {
		e.Timestamp = time.UnixMilli(*in.Timestamp).UTC()
	}
	return nil
}

// TxHistoryEntry is a transaction signature as reported by the chain.
type TxHistoryEntry struct {
	Signature string
	Slot      uint64
	// BlockTime is unix seconds; nil while the block is not finalized.
	BlockTime *int64
	// Err is empty for successful transactions.
	Err  string
	Memo string
}

func sameLabel(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
