package shared

import (
	"fmt"
	"time"
)

// Date layouts accepted by listing filters.
const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

const lastMillisecond = 24*time.Hour - time.Millisecond

// TimeWindow is an inclusive UTC time range.
type TimeWindow struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}

// DayWindow covers a single UTC calendar day [00:00:00.000, 23:59:59.999].
func DayWindow(raw string) (TimeWindow, error) {
	day, err := time.ParseInLocation(DateLayout, raw, time.UTC)
	if err != nil {
		return TimeWindow{}, fmt.Errorf("%w: invalid date format. Expected format: YYYY-MM-DD", ErrInvalidInput)
	}
	return TimeWindow{From: day, To: day.Add(lastMillisecond)}, nil
}

// RangeWindow covers start through end inclusive, both YYYY-MM-DD.
func RangeWindow(rawStart, rawEnd string) (TimeWindow, error) {
	start, err := time.ParseInLocation(DateLayout, rawStart, time.UTC)
	if err != nil {
		return TimeWindow{}, fmt.Errorf("%w: invalid start date format. Expected format: YYYY-MM-DD", ErrInvalidInput)
	}
	end, err := time.ParseInLocation(DateLayout, rawEnd, time.UTC)
	if err != nil {
		return TimeWindow{}, fmt.Errorf("%w: invalid end date format. Expected format: YYYY-MM-DD", ErrInvalidInput)
	}
	if start.After(end) {
		return TimeWindow{}, fmt.Errorf("%w: start date cannot be after end date", ErrInvalidInput)
	}
	return TimeWindow{From: start, To: end.Add(lastMillisecond)}, nil
}

// MonthWindow covers the first through last calendar day of a YYYY-MM month.
func MonthWindow(raw string) (TimeWindow, error) {
	first, err := time.ParseInLocation(MonthLayout, raw, time.UTC)
	if err != nil {
		return TimeWindow{}, fmt.Errorf("%w: invalid month format. Expected format: YYYY-MM", ErrInvalidInput)
	}
	next := first.AddDate(0, 1, 0)
	return TimeWindow{From: first, To: next.Add(-time.Millisecond)}, nil
}
