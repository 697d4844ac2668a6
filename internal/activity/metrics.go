package activity

import "time"

// Aggregator computes KPI snapshots from segments and trips
type Aggregator struct{}

// NewAggregator creates an aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Snapshot computes the KPIs for the window [from, to). Segments are clipped
// to the window; trips are selected by their earnings timestamp for money and
// distance and by their creation timestamp for acceptance and finish rate.
func (a *Aggregator) Snapshot(trips []TripRecord, segments []Segment, from, to int64) KpiSnapshot {
	var k KpiSnapshot

	for _, seg := range segments {
		d := clippedDuration(seg, from, to)
		if d <= 0 {
			continue
		}
		switch seg.State {
		case StateOnRide:
			k.OnRideSeconds += d
			k.WorkingSeconds += d
		case StateWaiting:
			k.WorkingSeconds += d
		}
	}
	k.WaitingSeconds = k.WorkingSeconds - k.OnRideSeconds

	for _, t := range trips {
		if ts := t.EarningsTimestamp(); ts >= from && ts < to && t.HasEarnings() {
			k.EarningTrips++
			k.GrossEarnings += t.GrossAmount()
			k.NetEarnings += t.NetAmount()
			if t.IsFinished() && t.FinishedAt > 0 {
				k.TotalDistanceKm += t.DistanceMeters / 1000
			}
		}
		if t.CreatedAt >= from && t.CreatedAt < to {
			k.CreatedTrips++
			if t.AcceptedAt > 0 {
				k.AcceptedTrips++
			}
		}
		if t.IsFinished() && t.FinishedAt >= from && t.FinishedAt < to {
			k.FinishedTrips++
		}
	}

	if k.WorkingSeconds > 0 {
		hours := float64(k.WorkingSeconds) / 3600
		k.EarningsPerHourGross = k.GrossEarnings / hours
		k.EarningsPerHourNet = k.NetEarnings / hours
		k.UtilizationPct = float64(k.OnRideSeconds) / float64(k.WorkingSeconds) * 100
	}
	if k.CreatedTrips > 0 {
		k.AcceptanceRatePct = float64(k.AcceptedTrips) / float64(k.CreatedTrips) * 100
		k.FinishRatePct = float64(k.FinishedTrips) / float64(k.CreatedTrips) * 100
	}
	return k
}

// Range computes the range-level snapshot over all day buckets.
func (a *Aggregator) Range(trips []TripRecord, days []DayBucket, r DateRange) KpiSnapshot {
	return a.Snapshot(trips, flatten(days), r.From.Unix(), r.To.Unix())
}

// Daily computes one snapshot per day bucket with the same formulas.
func (a *Aggregator) Daily(trips []TripRecord, days []DayBucket) []DailyKpis {
	out := make([]DailyKpis, 0, len(days))
	for _, day := range days {
		out = append(out, DailyKpis{
			LocalDate: day.LocalDate,
			Kpis:      a.Snapshot(trips, day.Segments, day.Start, day.End),
		})
	}
	return out
}

// Hourly splits every day bucket into local clock hours.
func (a *Aggregator) Hourly(trips []TripRecord, days []DayBucket, loc *time.Location) []DailyHours {
	if loc == nil {
		loc = time.UTC
	}
	out := make([]DailyHours, 0, len(days))
	for _, day := range days {
		dh := DailyHours{LocalDate: day.LocalDate, Hours: []HourlyBucket{}}
		for start := day.Start; start < day.End; {
			t := time.Unix(start, 0).In(loc)
			hourStart := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc)
			end := hourStart.Add(time.Hour).Unix()
			if end <= start {
				end = start + 3600
			}
			if end > day.End {
				end = day.End
			}
			dh.Hours = append(dh.Hours, hourBucket(trips, day.Segments, t.Hour(), start, end))
			start = end
		}
		out = append(out, dh)
	}
	return out
}

func hourBucket(trips []TripRecord, segments []Segment, hour int, from, to int64) HourlyBucket {
	hb := HourlyBucket{Hour: hour, Start: from, End: to}
	for _, seg := range segments {
		d := clippedDuration(seg, from, to)
		if d <= 0 {
			continue
		}
		switch seg.State {
		case StateOnRide:
			hb.OnRideSeconds += d
		case StateWaiting:
			hb.WaitingSeconds += d
		}
	}
	hb.WorkingSeconds = hb.OnRideSeconds + hb.WaitingSeconds
	for _, t := range trips {
		if ts := t.EarningsTimestamp(); ts >= from && ts < to && t.HasEarnings() {
			hb.Trips++
			hb.GrossEarnings += t.GrossAmount()
			hb.NetEarnings += t.NetAmount()
		}
	}
	return hb
}

func clippedDuration(seg Segment, from, to int64) int64 {
	return min(seg.End, to) - max(seg.Start, from)
}

func flatten(days []DayBucket) []Segment {
	n := 0
	for _, d := range days {
		n += len(d.Segments)
	}
	out := make([]Segment, 0, n)
	for _, d := range days {
		out = append(out, d.Segments...)
	}
	return out
}
