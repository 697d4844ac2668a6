package activity

import "sort"

// Matcher assigns trips to on-ride segments by maximal overlap
type Matcher struct{}

// NewMatcher creates a matcher.
func NewMatcher() *Matcher {
	return &Matcher{}
}

type candidate struct {
	index int // position in the trip feed
	trip  TripRecord
	start int64
	end   int64 // zero when the trip is still open
}

// Match walks on-ride segments chronologically and gives each the unassigned
// trip with the largest positive overlap. Equal overlaps go to the trip seen
// first in the feed. Trips without an id or without any start timestamp are
// never matched. Days are updated in place; the returned slice lists every
// assignment together with the number of trips skipped.
func (m *Matcher) Match(days []DayBucket, trips []TripRecord) ([]Match, int) {
	pending := make([]candidate, 0, len(trips))
	skipped := 0
	for i, t := range trips {
		if t.ID == "" || t.IntervalStart() <= 0 {
			skipped++
			continue
		}
		pending = append(pending, candidate{index: i, trip: t, start: t.IntervalStart(), end: t.IntervalEnd()})
	}
	sort.SliceStable(pending, func(i, j int) bool { return pending[i].start < pending[j].start })

	used := make(map[string]struct{}, len(pending))
	var active []candidate
	next := 0
	var matches []Match

	for d := range days {
		for s := range days[d].Segments {
			seg := &days[d].Segments[s]
			if seg.State != StateOnRide {
				continue
			}

			for next < len(pending) && pending[next].start < seg.End {
				active = append(active, pending[next])
				next++
			}

			best := -1
			var bestOverlap int64
			kept := active[:0]
			for _, c := range active {
				if _, ok := used[c.trip.ID]; ok {
					continue
				}
				// segments only move forward, a closed trip ending before this one is done
				if c.end > 0 && c.end <= seg.Start {
					continue
				}
				kept = append(kept, c)

				overlap := overlapSeconds(seg.Start, seg.End, c.start, c.end)
				if overlap <= 0 {
					continue
				}
				if best < 0 || overlap > bestOverlap || (overlap == bestOverlap && c.index < kept[best].index) {
					best = len(kept) - 1
					bestOverlap = overlap
				}
			}
			active = kept

			if best < 0 {
				continue
			}
			chosen := active[best].trip
			used[chosen.ID] = struct{}{}
			seg.MatchedTrip = &chosen
			matches = append(matches, Match{
				DayIndex:       d,
				SegmentIndex:   s,
				TripID:         chosen.ID,
				OverlapSeconds: bestOverlap,
			})
		}
	}
	return matches, skipped
}

// overlapSeconds measures the intersection of a segment with a trip interval.
// An open trip is treated as ending with the segment.
func overlapSeconds(segStart, segEnd, tripStart, tripEnd int64) int64 {
	if tripEnd <= 0 {
		tripEnd = segEnd
	}
	return min(segEnd, tripEnd) - max(segStart, tripStart)
}
