package activity

import "sort"

// Segmenter turns a normalized log into per-day tiled timelines
type Segmenter struct{}

// NewSegmenter creates a segmenter.
func NewSegmenter() *Segmenter {
	return &Segmenter{}
}

// Segment builds one DayBucket per local calendar day touched by the range.
// Each day is segmented from its own logs only: the time before the day's
// first log is inactive and the last log runs to the end of the day.
func (s *Segmenter) Segment(log NormalizedLog, r DateRange) []DayBucket {
	windows := r.dayWindows()
	buckets := make([]DayBucket, 0, len(windows))

	for _, w := range windows {
		lo := sort.Search(len(log), func(i int) bool { return log[i].Timestamp >= w.start })
		hi := sort.Search(len(log), func(i int) bool { return log[i].Timestamp >= w.end })

		bucket := DayBucket{
			LocalDate: w.date,
			Start:     w.start,
			End:       w.end,
			Segments:  segmentDay(log[lo:hi], w.start, w.end),
		}
		for _, seg := range bucket.Segments {
			switch seg.State {
			case StateOnRide:
				bucket.OnRideSeconds += seg.Duration()
			case StateWaiting:
				bucket.WaitingSeconds += seg.Duration()
			}
		}
		bucket.WorkingSeconds = bucket.OnRideSeconds + bucket.WaitingSeconds
		buckets = append(buckets, bucket)
	}
	return buckets
}

func segmentDay(logs []LogEntry, start, end int64) []Segment {
	if len(logs) == 0 {
		return []Segment{{Start: start, End: end, State: StateInactive, SourceLogIDs: []string{}}}
	}

	pieces := make([]Segment, 0, len(logs)+2)
	if logs[0].Timestamp > start {
		pieces = append(pieces, Segment{Start: start, End: logs[0].Timestamp, State: StateInactive, SourceLogIDs: []string{}})
	}
	for i, e := range logs {
		pieceEnd := end
		if i+1 < len(logs) {
			pieceEnd = logs[i+1].Timestamp
		}
		ids := []string{}
		if e.ID != "" {
			ids = append(ids, e.ID)
		}
		pieces = append(pieces, Segment{
			Start:        e.Timestamp,
			End:          pieceEnd,
			State:        e.State,
			SourceLogIDs: ids,
			Lat:          e.Lat,
			Lng:          e.Lng,
		})
	}
	if last := pieces[len(pieces)-1]; last.End < end {
		pieces = append(pieces, Segment{Start: last.End, End: end, State: StateInactive, SourceLogIDs: []string{}})
	}

	return mergeSegments(pieces)
}

// mergeSegments drops zero-length pieces and joins neighbours sharing a state.
// The merged segment keeps the most recent coordinates.
func mergeSegments(pieces []Segment) []Segment {
	out := make([]Segment, 0, len(pieces))
	for _, p := range pieces {
		if p.Duration() <= 0 {
			continue
		}
		if n := len(out); n > 0 && out[n-1].State == p.State && out[n-1].End == p.Start {
			last := &out[n-1]
			last.End = p.End
			last.SourceLogIDs = append(last.SourceLogIDs, p.SourceLogIDs...)
			if p.Lat != nil && p.Lng != nil {
				last.Lat, last.Lng = p.Lat, p.Lng
			}
			continue
		}
		out = append(out, p)
	}
	return out
}
