package activity

import (
	"fmt"
	"time"
)

const DefaultMinEventDuration = 10 * time.Second

// EventBuilder groups segments into timeline events
type EventBuilder struct {
	minDuration int64
}

// NewEventBuilder creates a builder dropping events shorter than minDuration.
func NewEventBuilder(minDuration time.Duration) *EventBuilder {
	if minDuration < 0 {
		minDuration = DefaultMinEventDuration
	}
	return &EventBuilder{minDuration: int64(minDuration / time.Second)}
}

// Build stitches segments across day boundaries, joins neighbours sharing a
// state, drops short events and assigns identifiers. It returns the events and
// the number filtered out.
func (b *EventBuilder) Build(days []DayBucket) ([]ActivityEvent, int) {
	var grouped []ActivityEvent
	for _, day := range days {
		for _, seg := range day.Segments {
			if n := len(grouped); n > 0 && grouped[n-1].State == seg.State && grouped[n-1].End == seg.Start {
				extendEvent(&grouped[n-1], seg)
				continue
			}
			ev := ActivityEvent{Start: seg.Start, State: seg.State, SourceLogIDs: []string{}}
			extendEvent(&ev, seg)
			grouped = append(grouped, ev)
		}
	}

	events := make([]ActivityEvent, 0, len(grouped))
	filtered := 0
	for _, ev := range grouped {
		if ev.Duration < b.minDuration {
			filtered++
			continue
		}
		ev.ID = eventID(ev, len(events))
		events = append(events, ev)
	}
	return events, filtered
}

func extendEvent(ev *ActivityEvent, seg Segment) {
	ev.End = seg.End
	ev.Duration = ev.End - ev.Start
	ev.SourceLogIDs = append(ev.SourceLogIDs, seg.SourceLogIDs...)
	if seg.MatchedTrip != nil {
		ev.Trips = append(ev.Trips, *seg.MatchedTrip)
	}
	if seg.Lat != nil && seg.Lng != nil {
		ev.Lat, ev.Lng = seg.Lat, seg.Lng
	}
}

// eventID derives an identifier from the event start, its output position and
// its first source log or matched trip.
func eventID(ev ActivityEvent, position int) string {
	ref := fmt.Sprint(position)
	switch {
	case len(ev.SourceLogIDs) > 0:
		ref = ev.SourceLogIDs[0]
	case len(ev.Trips) > 0:
		ref = ev.Trips[0].ID
	}
	return fmt.Sprintf("event-%d-%d-%s", ev.Start, position, ref)
}

// EventsForDay keeps the events starting on the given local date.
func EventsForDay(events []ActivityEvent, localDate string, loc *time.Location) ([]ActivityEvent, error) {
	start, end, err := dayBounds(localDate, loc)
	if err != nil {
		return nil, err
	}
	out := []ActivityEvent{}
	for _, ev := range events {
		if ev.Start >= start && ev.Start < end {
			out = append(out, ev)
		}
	}
	return out, nil
}

const locateWindow = int64(time.Hour / time.Second)

// LocateEvent finds the event a caller should focus for timestamp ts on the
// given local date: the event containing ts, else the first event starting
// within an hour of ts, else the first event of the day.
func LocateEvent(events []ActivityEvent, ts int64, localDate string, loc *time.Location) (ActivityEvent, bool, error) {
	day, err := EventsForDay(events, localDate, loc)
	if err != nil {
		return ActivityEvent{}, false, err
	}
	if len(day) == 0 {
		return ActivityEvent{}, false, nil
	}
	for _, ev := range day {
		if ev.Contains(ts) {
			return ev, true, nil
		}
	}
	for _, ev := range day {
		diff := ev.Start - ts
		if diff < 0 {
			diff = -diff
		}
		if diff <= locateWindow {
			return ev, true, nil
		}
	}
	return day[0], true, nil
}
