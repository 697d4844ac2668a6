package activity

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	DefaultShortGap = 30 * time.Minute
	DefaultLongGap  = 60 * time.Minute
)

// Normalizer sorts and denoises a driver's state-change stream
type Normalizer struct {
	shortGap int64
	longGap  int64
}

// NewNormalizer creates a normalizer. Non-positive thresholds fall back to the
// defaults and the long gap is never shorter than the short gap.
func NewNormalizer(shortGap, longGap time.Duration) *Normalizer {
	if shortGap <= 0 {
		shortGap = DefaultShortGap
	}
	if longGap <= 0 {
		longGap = DefaultLongGap
	}
	if longGap < shortGap {
		longGap = shortGap
	}
	return &Normalizer{
		shortGap: int64(shortGap / time.Second),
		longGap:  int64(longGap / time.Second),
	}
}

// Normalize converts raw feed entries into a normalized log. Entries without a
// timestamp or with an unknown state label are dropped; the number dropped is
// returned alongside the log.
func (n *Normalizer) Normalize(raw []StateLogEntry) (NormalizedLog, int) {
	entries := make([]LogEntry, 0, len(raw))
	dropped := 0
	for _, r := range raw {
		state, ok := ParseState(r.State)
		if r.Timestamp <= 0 || !ok {
			dropped++
			continue
		}
		entries = append(entries, LogEntry{
			ID:        r.ID,
			Timestamp: r.Timestamp,
			State:     state,
			Lat:       r.Lat,
			Lng:       r.Lng,
			Origin:    OriginFeed,
		})
	}
	return n.run(entries), dropped
}

func (n *Normalizer) run(entries []LogEntry) NormalizedLog {
	sortEntries(entries)
	entries = dedupe(entries)

	out := make([]LogEntry, 0, len(entries))
	absorbed := make([]bool, len(entries))

	for i, cur := range entries {
		var prev, next *LogEntry
		if i > 0 {
			prev = &entries[i-1]
		}
		if i+1 < len(entries) {
			next = &entries[i+1]
		}

		// waiting -> inactive -> waiting within the short gap is a connectivity blip.
		// Boundary entries never take part, they already mark a long gap.
		if prev != nil && next != nil && !prev.IsSynthetic() && !next.IsSynthetic() &&
			prev.State == StateWaiting && cur.State == StateInactive && next.State == StateWaiting &&
			next.Timestamp-prev.Timestamp <= n.shortGap {
			absorbed[i] = true
			continue
		}

		skip := false

		// returning from a long (or final) offline period closes the earlier waiting period
		if prev != nil && cur.State == StateWaiting && prev.State == StateInactive && !absorbed[i-1] &&
			(next == nil || cur.Timestamp-prev.Timestamp > n.longGap) {
			if w, ok := lastWaiting(entries, i-2, 0); ok {
				out = append(out, boundary(w, prev.Timestamp))
			}
			if next == nil {
				skip = true
			}
		}

		// an offline entry followed by a long silence
		if cur.State == StateInactive && next != nil && next.Timestamp-cur.Timestamp > n.longGap {
			if w, ok := lastWaiting(entries, i-1, cur.Timestamp); ok {
				out = append(out, boundary(w, cur.Timestamp))
			}
		}

		if !skip {
			out = append(out, cur)
		}
	}

	out = dedupe(out)
	sortEntries(out)
	return NormalizedLog(out)
}

// lastWaiting searches backward from index from for a waiting entry. When
// before is positive the entry must be strictly earlier than it.
func lastWaiting(entries []LogEntry, from int, before int64) (LogEntry, bool) {
	for j := from; j >= 0; j-- {
		e := entries[j]
		if e.State != StateWaiting {
			continue
		}
		if before > 0 && e.Timestamp >= before {
			continue
		}
		return e, true
	}
	return LogEntry{}, false
}

// boundary copies a waiting entry to ts, marking the end of its period.
func boundary(w LogEntry, ts int64) LogEntry {
	root := w.ID
	if w.IsSynthetic() {
		root = syntheticRoot(w.ID)
	}
	return LogEntry{
		ID:        fmt.Sprintf("%s#end@%d", root, ts),
		Timestamp: ts,
		State:     StateWaiting,
		Lat:       w.Lat,
		Lng:       w.Lng,
		Origin:    OriginSynthetic,
	}
}

func syntheticRoot(id string) string {
	if i := strings.Index(id, "#end@"); i >= 0 {
		return id[:i]
	}
	return id
}

// sortEntries orders by timestamp; synthetic entries come before feed entries
// sharing their timestamp so they close the prior period without extending it.
func sortEntries(entries []LogEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Timestamp != entries[j].Timestamp {
			return entries[i].Timestamp < entries[j].Timestamp
		}
		return entries[i].IsSynthetic() && !entries[j].IsSynthetic()
	})
}

type entryKey struct {
	ts    int64
	state State
}

// dedupe drops repeated (timestamp, state) pairs keeping the first.
func dedupe(entries []LogEntry) []LogEntry {
	seen := make(map[entryKey]struct{}, len(entries))
	out := make([]LogEntry, 0, len(entries))
	for _, e := range entries {
		k := entryKey{e.Timestamp, e.State}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	return out
}
