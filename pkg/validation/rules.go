package validation

import (
	"fmt"
	"time"
)

// ValidateCoordinates validates latitude and longitude
func ValidateCoordinates(latitude, longitude float64) error {
	if latitude < -90.0 || latitude > 90.0 {
		return fmt.Errorf("latitude must be between -90 and 90, got: %f", latitude)
	}
	if longitude < -180.0 || longitude > 180.0 {
		return fmt.Errorf("longitude must be between -180 and 180, got: %f", longitude)
	}
	return nil
}

// ValidateDateRange checks a half-open [from, to) range against a maximum span in days.
// maxDays <= 0 disables the span check.
func ValidateDateRange(from, to time.Time, maxDays int) error {
	if !to.After(from) {
		return &ValidationError{
			Errors: map[string]string{
				"date_range": "to must be after from",
			},
		}
	}
	if maxDays > 0 && to.Sub(from) > time.Duration(maxDays)*24*time.Hour+time.Hour {
		return &ValidationError{
			Errors: map[string]string{
				"date_range": fmt.Sprintf("range must not exceed %d days", maxDays),
			},
		}
	}
	return nil
}

// ParseLocalDate parses a YYYY-MM-DD value
func ParseLocalDate(value string) (time.Time, error) {
	t, err := time.Parse(LocalDateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", value)
	}
	return t, nil
}
