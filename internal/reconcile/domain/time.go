package reconcile

import "time"

const dayLayout = "2006-01-02"

// DayKey is the persisted representation of a calendar day.
type DayKey string

// NewDayKey builds a DayKey for the given instant.
func NewDayKey(t time.Time) (DayKey, error) {
	if t.IsZero() {
		return "", ErrInvalidDay
	}
	return DayKey(t.UTC().Format(dayLayout)), nil
}

// ParseDayKey validates a raw day string.
func ParseDayKey(raw string) (DayKey, error) {
	if _, err := time.Parse(dayLayout, raw); err != nil {
		return "", ErrInvalidDay
	}
	return DayKey(raw), nil
}

// String returns the raw string for storage.
func (k DayKey) String() string { return string(k) }

// Time returns the UTC midnight of the day.
func (k DayKey) Time() time.Time {
	t, err := time.Parse(dayLayout, string(k))
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
