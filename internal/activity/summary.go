package activity

import (
	"math"
	"strings"
	"time"
)

const (
	targetNetPerTrip  = 15.0
	targetTripsPerHr  = 2.0
	targetActiveDays  = 20.0
	cancelPenalty     = 2.0
	secondsPerHour    = 3600.0
	riderReasonMarker = "rider"
)

// Activity summarizes working time for the range. Total hours are the shift
// spans of each day, from the first to the last working segment, so inactive
// time inside a shift counts as a break. TotalHours is therefore the
// first-to-last span per day, not the sum of working segments.
func Activity(days []DayBucket) ActivitySummary {
	var shift, onRide, waiting, covered int64
	for _, d := range days {
		onRide += d.OnRideSeconds
		waiting += d.WaitingSeconds
		covered += d.CoveredSeconds()
		shift += shiftSpan(d.Segments)
	}

	s := ActivitySummary{
		TotalHours:   float64(shift) / secondsPerHour,
		OnRideHours:  float64(onRide) / secondsPerHour,
		WaitingHours: float64(waiting) / secondsPerHour,
	}
	s.OnBreakHours = math.Max(0, s.TotalHours-s.OnRideHours-s.WaitingHours)
	s.InactiveHours = float64(covered-onRide-waiting) / secondsPerHour
	if s.TotalHours > 0 {
		s.OnRidePct = s.OnRideHours / s.TotalHours * 100
		s.WaitingPct = s.WaitingHours / s.TotalHours * 100
		s.OnBreakPct = s.OnBreakHours / s.TotalHours * 100
	}
	return s
}

func shiftSpan(segments []Segment) int64 {
	first, last := -1, -1
	for i, seg := range segments {
		if seg.State.IsWorking() {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return 0
	}
	return segments[last].End - segments[first].Start
}

// Rides classifies the trips created inside the range.
func Rides(trips []TripRecord, r DateRange) RidesSummary {
	var s RidesSummary
	for _, t := range trips {
		if !r.Contains(t.CreatedAt) {
			continue
		}
		s.Total++

		status := strings.ToLower(t.Status)
		reason := strings.ToLower(strings.TrimSpace(t.DriverCancelledReason))
		riderReason := strings.Contains(reason, riderReasonMarker)

		if t.IsFinished() {
			s.Finished++
		}
		if reason != "" && riderReason {
			s.RiderCancelled++
		}
		if strings.Contains(status, "no_show") {
			s.RiderNoShow++
		}
		if reason != "" && !riderReason {
			s.DriverCancelled++
		}
		if strings.Contains(status, "rejected") {
			s.DriverRejected++
		}
		if t.AcceptedAt <= 0 {
			s.DriverNoResponse++
		}
	}
	s.Accepted = s.Finished + s.RiderCancelled + s.RiderNoShow
	s.Declined = s.DriverCancelled + s.DriverRejected + s.DriverNoResponse
	return s
}

// Scores rates the driver on income, efficiency and sustainability from the
// trips created inside the range. Every score is zero without trips.
func Scores(trips []TripRecord, r DateRange) PerformanceScores {
	var (
		total, completed int
		net, rideHours   float64
		activeDays       = map[string]struct{}{}
	)
	loc := r.location()
	for _, t := range trips {
		if !r.Contains(t.CreatedAt) {
			continue
		}
		total++
		net += t.NetEarnings
		if t.PickupAt > 0 && t.DropoffAt > 0 {
			rideHours += float64(t.DropoffAt-t.PickupAt) / secondsPerHour
		}
		if t.IsFinished() {
			completed++
		}
		activeDays[time.Unix(t.CreatedAt, 0).In(loc).Format(LocalDateLayout)] = struct{}{}
	}
	if total == 0 {
		return PerformanceScores{}
	}

	completionRate := float64(completed) / float64(total) * 100
	cancelRate := 100 - completionRate

	income := clampScore(net / float64(total) / targetNetPerTrip * 100)

	var tripsPerHour float64
	if rideHours > 0 {
		tripsPerHour = float64(total) / rideHours
	}
	efficiency := clampScore(0.6*math.Min(100, tripsPerHour/targetTripsPerHr*100) + 0.4*completionRate)

	sustainability := clampScore(0.7*math.Max(0, 100-cancelPenalty*cancelRate) +
		0.3*math.Min(100, float64(len(activeDays))/targetActiveDays*100))

	overall := clampScore(0.4*income + 0.3*efficiency + 0.3*sustainability)

	return PerformanceScores{
		Income:         int(math.Round(income)),
		Efficiency:     int(math.Round(efficiency)),
		Sustainability: int(math.Round(sustainability)),
		Overall:        int(math.Round(overall)),
	}
}

func clampScore(v float64) float64 {
	return math.Min(100, math.Max(0, v))
}
