package performance

import (
	"errors"
	"fmt"
	"time"

	"github.com/richxcame/fleet-performance/internal/activity"
	"github.com/richxcame/fleet-performance/pkg/common"
	"github.com/richxcame/fleet-performance/pkg/validation"
)

// resolveRange turns a validated query into a date range in the requested timezone.
func resolveRange(q PerformanceQuery, now time.Time, defaultLoc *time.Location, maxDays int) (activity.DateRange, error) {
	if err := validation.ValidateStruct(q); err != nil {
		return activity.DateRange{}, validationError(err)
	}

	loc := defaultLoc
	if q.Timezone != "" {
		l, err := time.LoadLocation(q.Timezone)
		if err != nil {
			return activity.DateRange{}, common.NewBadRequestError(fmt.Sprintf("unknown timezone %q", q.Timezone), err)
		}
		loc = l
	}
	if loc == nil {
		loc = time.UTC
	}

	var (
		r   activity.DateRange
		err error
	)
	switch {
	case q.From != "":
		r, err = activity.LocalDaysRange(q.From, q.To, loc)
	case q.Period != "":
		r, err = activity.PeriodRange(q.Period, now, loc)
	default:
		r, err = activity.PeriodRange(activity.PeriodToday, now, loc)
	}
	if err != nil {
		if errors.Is(err, activity.ErrEmptyRange) {
			return activity.DateRange{}, common.NewBadRequestError("to must not be before from", err)
		}
		return activity.DateRange{}, common.NewBadRequestError(err.Error(), err)
	}

	if err := validation.ValidateDateRange(r.From, r.To, maxDays); err != nil {
		return activity.DateRange{}, common.NewBadRequestError(err.Error(), err).WithCode(common.CodeRangeTooLarge)
	}

	return r, nil
}

// validateDay checks that a local date overlaps the range.
func validateDay(localDate string, r activity.DateRange) error {
	day, err := time.ParseInLocation(activity.LocalDateLayout, localDate, r.Location)
	if err != nil {
		return common.NewBadRequestError(fmt.Sprintf("invalid date %q", localDate), err)
	}
	if !day.AddDate(0, 0, 1).After(r.From) || !day.Before(r.To) {
		return common.NewBadRequestError(fmt.Sprintf("date %s is outside the requested range", localDate), nil).
			WithCode(common.CodeDayOutOfRange)
	}
	return nil
}

func validationError(err error) error {
	var ve *validation.ValidationError
	if errors.As(err, &ve) {
		return common.NewBadRequestError(ve.Error(), err).WithCode(common.CodeValidation)
	}
	return common.NewBadRequestError(err.Error(), err)
}
