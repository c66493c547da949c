// Package recurrence computes the next trigger time of recurring scheduled messages.
package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/vhvplatform/go-whatsapp-automation-service/internal/domain"
)

// ErrInvalidRecurrence is returned for unknown patterns or malformed custom configs
var ErrInvalidRecurrence = errors.New("invalid recurrence")

// Validate checks that pattern is known and, for custom patterns, that cfg
// has a positive interval and a supported unit.
func Validate(pattern domain.RecurrencePattern, cfg *domain.RecurrenceConfig) error {
	switch pattern {
	case domain.RecurrenceDaily, domain.RecurrenceWeekly, domain.RecurrenceMonthly:
		return nil
	case domain.RecurrenceCustom:
		if cfg == nil {
			return fmt.Errorf("%w: custom pattern requires recurrence_config", ErrInvalidRecurrence)
		}
		if cfg.Interval <= 0 {
			return fmt.Errorf("%w: interval must be > 0, got %d", ErrInvalidRecurrence, cfg.Interval)
		}
		switch cfg.Unit {
		case domain.UnitMinutes, domain.UnitHours, domain.UnitDays, domain.UnitWeeks, domain.UnitMonths:
			return nil
		}
		return fmt.Errorf("%w: unknown unit %q", ErrInvalidRecurrence, cfg.Unit)
	case "":
		return fmt.Errorf("%w: recurrence_pattern is required for recurring messages", ErrInvalidRecurrence)
	}
	return fmt.Errorf("%w: unknown pattern %q", ErrInvalidRecurrence, pattern)
}

// NextTrigger returns the next trigger time after current. The result is
// always strictly after current for valid input.
//
// Month arithmetic keeps the day of month when the target month has it and
// otherwise clamps to the target month's last day (Jan 31 + 1 month = Feb 28/29).
func NextTrigger(current time.Time, pattern domain.RecurrencePattern, cfg *domain.RecurrenceConfig) (time.Time, error) {
	if err := Validate(pattern, cfg); err != nil {
		return time.Time{}, err
	}

	switch pattern {
	case domain.RecurrenceDaily:
		return current.AddDate(0, 0, 1), nil
	case domain.RecurrenceWeekly:
		return current.AddDate(0, 0, 7), nil
	case domain.RecurrenceMonthly:
		return AddMonths(current, 1), nil
	}

	n := cfg.Interval
	switch cfg.Unit {
	case domain.UnitMinutes:
		return current.Add(time.Duration(n) * time.Minute), nil
	case domain.UnitHours:
		return current.Add(time.Duration(n) * time.Hour), nil
	case domain.UnitDays:
		return current.AddDate(0, 0, n), nil
	case domain.UnitWeeks:
		return current.AddDate(0, 0, 7*n), nil
	default:
		return AddMonths(current, n), nil
	}
}

// AddMonths adds n calendar months to t, clamping the day of month to the
// last day of the target month.
func AddMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	first := time.Date(year, month+time.Month(n), 1, hour, min, sec, t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month(), t.Location()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, hour, min, sec, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	// day 0 of the next month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
