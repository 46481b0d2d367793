package payroll

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const minutesPerDay = 24 * 60

var (
	// ErrInvalidClock indicates a time of day that is not in HH:MM form
	ErrInvalidClock = errors.New("time must be in HH:MM format")
)

// ParseClock converts an HH:MM time of day into minutes after midnight
func ParseClock(value string) (int, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}

	return hour*60 + minute, nil
}

// Minutes returns the length of a shift in whole minutes.
// An end before the start is an overnight shift and wraps past midnight.
func Minutes(start, end string) (int, error) {
	startMinutes, err := ParseClock(start)
	if err != nil {
		return 0, err
	}

	endMinutes, err := ParseClock(end)
	if err != nil {
		return 0, err
	}

	diff := endMinutes - startMinutes
	if diff < 0 {
		diff += minutesPerDay
	}

	return diff, nil
}

// Hours returns the length of a shift in fractional hours
func Hours(start, end string) (float64, error) {
	minutes, err := Minutes(start, end)
	if err != nil {
		return 0, err
	}
	return MinutesToHours(minutes), nil
}

// MinutesToHours converts whole minutes into fractional hours
func MinutesToHours(minutes int) float64 {
	return float64(minutes) / 60
}

// Pay returns hours multiplied by the hourly rate, unrounded
func Pay(hours, rate float64) float64 {
	return hours * rate
}
