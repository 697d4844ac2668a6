package activity

import (
	"errors"
	"fmt"
	"time"
)

// LocalDateLayout is the layout of local calendar dates
const LocalDateLayout = "2006-01-02"

// Supported relative periods
const (
	PeriodToday     = "today"
	PeriodYesterday = "yesterday"
	PeriodLast7Days = "last_7_days"
	PeriodThisWeek  = "this_week"
	PeriodThisMonth = "this_month"
)

var (
	ErrEmptyRange    = errors.New("date range is empty")
	ErrUnknownPeriod = errors.New("unknown period")
)

// DateRange is the half-open interval [From, To) interpreted in Location.
type DateRange struct {
	From     time.Time
	To       time.Time
	Location *time.Location
}

// NewDateRange builds a range in the location of from.
func NewDateRange(from, to time.Time) (DateRange, error) {
	if !to.After(from) {
		return DateRange{}, ErrEmptyRange
	}
	loc := from.Location()
	return DateRange{From: from.In(loc), To: to.In(loc), Location: loc}, nil
}

// LocalDaysRange covers whole local days from fromDate to toDate inclusive.
func LocalDaysRange(fromDate, toDate string, loc *time.Location) (DateRange, error) {
	if loc == nil {
		loc = time.UTC
	}
	from, err := time.ParseInLocation(LocalDateLayout, fromDate, loc)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid from date %q: %w", fromDate, err)
	}
	to, err := time.ParseInLocation(LocalDateLayout, toDate, loc)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid to date %q: %w", toDate, err)
	}
	return NewDateRange(from, to.AddDate(0, 0, 1))
}

// PeriodRange resolves a named period relative to now.
func PeriodRange(period string, now time.Time, loc *time.Location) (DateRange, error) {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	today := midnight(now)

	switch period {
	case PeriodToday:
		return NewDateRange(today, today.AddDate(0, 0, 1))
	case PeriodYesterday:
		return NewDateRange(today.AddDate(0, 0, -1), today)
	case PeriodLast7Days:
		return NewDateRange(today.AddDate(0, 0, -7), now)
	case PeriodThisWeek:
		// weeks start on Monday
		offset := (int(today.Weekday()) + 6) % 7
		return NewDateRange(today.AddDate(0, 0, -offset), today.AddDate(0, 0, 7-offset))
	case PeriodThisMonth:
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, loc)
		return NewDateRange(first, first.AddDate(0, 1, 0))
	default:
		return DateRange{}, fmt.Errorf("%w: %s", ErrUnknownPeriod, period)
	}
}

// Contains reports whether the epoch second ts lies inside the range.
func (r DateRange) Contains(ts int64) bool {
	return ts >= r.From.Unix() && ts < r.To.Unix()
}

// Days returns the number of local calendar days touched by the range.
func (r DateRange) Days() int {
	return len(r.dayWindows())
}

// Key is a stable textual representation used for cache keys.
func (r DateRange) Key() string {
	return fmt.Sprintf("%d-%d-%s", r.From.Unix(), r.To.Unix(), r.location().String())
}

func (r DateRange) location() *time.Location {
	if r.Location == nil {
		return time.UTC
	}
	return r.Location
}

type dayWindow struct {
	date  string
	start int64
	end   int64
}

// dayWindows splits the range on local midnights. Boundary days are clipped
// to the range.
func (r DateRange) dayWindows() []dayWindow {
	loc := r.location()
	from, to := r.From.In(loc), r.To.In(loc)
	if !to.After(from) {
		return nil
	}

	var windows []dayWindow
	for day := midnight(from); day.Before(to); day = day.AddDate(0, 0, 1) {
		next := day.AddDate(0, 0, 1)
		start, end := day, next
		if start.Before(from) {
			start = from
		}
		if end.After(to) {
			end = to
		}
		if !end.After(start) {
			continue
		}
		windows = append(windows, dayWindow{
			date:  day.Format(LocalDateLayout),
			start: start.Unix(),
			end:   end.Unix(),
		})
	}
	return windows
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// dayBounds returns the full local day containing localDate.
func dayBounds(localDate string, loc *time.Location) (int64, int64, error) {
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation(LocalDateLayout, localDate, loc)
	if err != nil {
		return 0, 0, err
	}
	return day.Unix(), day.AddDate(0, 0, 1).Unix(), nil
}
