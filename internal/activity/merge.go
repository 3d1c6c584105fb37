package activity

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultExplorerURL prefixes transaction links.
const DefaultExplorerURL = "https://solscan.io/tx/"

// Options tune Merge.
type Options struct {
	// MatchWindow bounds the time distance for matching local entries that
	// carry no signature.
	MatchWindow time.Duration
	// ExplorerURL is prepended to signatures to build links. Empty disables
	// links.
	ExplorerURL string
	// Label names an on-chain entry. Defaults to the memo or DefaultLabel.
	Label func(TxHistoryEntry) string
}

// Merge unions chain history with local entries using default options.
func Merge(onchain []TxHistoryEntry, local []Entry, matchWindow time.Duration) []Entry {
	return MergeWith(onchain, local, Options{MatchWindow: matchWindow, ExplorerURL: DefaultExplorerURL})
}

// MergeWith unions chain history with local entries into one feed sorted by
// time, newest first, with unknown times last.
//
// A local entry that records a signature is confirmed only by the chain entry
// with that signature. A local entry without one is confirmed by the nearest
// unclaimed chain entry inside the match window whose label matches; chain
// entries that fell back to DefaultLabel carry no label and match any.
// Confirmed local entries are replaced by their chain entry, and each chain
// entry confirms at most one local entry.
func MergeWith(onchain []TxHistoryEntry, local []Entry, opts Options) []Entry {
	chain := make([]Entry, 0, len(onchain))
	unlabeled := make([]bool, 0, len(onchain))
	bySig := make(map[string]int, len(onchain))
	for _, tx := range onchain {
		if tx.Signature == "" {
			continue
		}
		if _, dup := bySig[tx.Signature]; dup {
			continue
		}
		bySig[tx.Signature] = len(chain)
		e, labeled := fromChain(tx, opts)
		chain = append(chain, e)
		unlabeled = append(unlabeled, !labeled)
	}

	claimed := make([]bool, len(chain))
	seen := make(map[string]struct{}, len(local))
	pending := make([]Entry, 0, len(local))
	for _, e := range local {
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}

		if i, ok := bySig[e.ID]; ok {
			claimed[i] = true
			continue
		}
		if e.Signature != "" {
			if i, ok := bySig[e.Signature]; ok {
				claimed[i] = true
				continue
			}
		}
		pending = append(pending, e)
	}

	kept := pending[:0]
	for _, e := range pending {
		if e.Signature == "" && e.Source != SourceOnchain {
			if i := nearest(chain, unlabeled, claimed, e, opts.MatchWindow); i >= 0 {
				claimed[i] = true
				continue
			}
		}
		kept = append(kept, e)
	}

	out := make([]Entry, 0, len(chain)+len(kept))
	out = append(out, chain...)
	out = append(out, kept...)
	sortFeed(out)
	return out
}

func nearest(chain []Entry, unlabeled, claimed []bool, e Entry, window time.Duration) int {
	if !e.HasTimestamp() || window < 0 {
		return -1
	}
	best, bestDist := -1, time.Duration(0)
	for i, c := range chain {
		if claimed[i] || !c.HasTimestamp() {
			continue
		}
		if !unlabeled[i] && !sameLabel(c.Label, e.Label) {
			continue
		}
		d := c.Timestamp.Sub(e.Timestamp)
		if d < 0 {
			d = -d
		}
		if d > window {
			continue
		}
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// fromChain reports whether the label came from the memo or opts.Label.
func fromChain(tx TxHistoryEntry, opts Options) (Entry, bool) {
	label, labeled := chainLabel(tx, opts)
	e := Entry{
		ID:        tx.Signature,
		Signature: tx.Signature,
		Source:    SourceOnchain,
		Status:    StatusSuccess,
		Label:     label,
		Detail:    fmt.Sprintf("Slot %d", tx.Slot),
	}
	if tx.BlockTime != nil {
		e.Timestamp = time.Unix(*tx.BlockTime, 0).UTC()
	}
	if tx.Err != "" {
		e.Status = StatusError
		e.Detail += ": " + tx.Err
	}
	if opts.ExplorerURL != "" {
		e.Link = opts.ExplorerURL + tx.Signature
	}
	return e, labeled
}

func chainLabel(tx TxHistoryEntry, opts Options) (string, bool) {
	if opts.Label != nil {
		if l := opts.Label(tx); l != "" {
			return l, true
		}
	}
	if m := strings.TrimSpace(tx.Memo); m != "" {
		return m, true
	}
	return DefaultLabel, false
}

func sortFeed(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch {
		case a.HasTimestamp() && b.HasTimestamp():
			return a.Timestamp.After(b.Timestamp)
		case a.HasTimestamp():
			return true
		default:
			return false
		}
	})
}

// Prune drops local pending entries older than maxAge. Entries without a
// timestamp and non-pending entries are kept.
func Prune(entries []Entry, now time.Time, maxAge time.Duration) []Entry {
	if maxAge <= 0 {
		return entries
	}
	cutoff := now.Add(-maxAge)
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Source == SourceLocal && e.Status == StatusPending &&
			e.HasTimestamp() && e.Timestamp.Before(cutoff) {
			continue
		}
		out = append(out, e)
	}
	return out
}
