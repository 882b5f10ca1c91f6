package attendance

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

var ErrInvalidTimeFormat = errors.New("invalid time format")

// Resolver rebases timestamps into one reference zone.
type Resolver struct {
	loc *time.Location
}

func NewResolver(loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{loc: loc}
}

// LoadResolver resolves an IANA zone name such as "Asia/Seoul".
func LoadResolver(zone string) (*Resolver, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(zone))
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", zone, err)
	}
	return NewResolver(loc), nil
}

func (r *Resolver) Location() *time.Location {
	return r.loc
}

// ScheduledStart returns date@slot as an instant in the reference zone.
func (r *Resolver) ScheduledStart(date, slot string) (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), r.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidTimeFormat, date)
	}
	hour, minute, err := ParseSlot(slot)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, r.loc), nil
}

// Elapsed returns now minus the scheduled start in minutes. Negative means early.
func (r *Resolver) Elapsed(now time.Time, date, slot string) (float64, error) {
	start, err := r.ScheduledStart(date, slot)
	if err != nil {
		return 0, err
	}
	return now.In(r.loc).Sub(start).Minutes(), nil
}

// Stamp formats the submission instant as ledger date and clock columns.
func (r *Resolver) Stamp(now time.Time) (string, string) {
	local := now.In(r.loc)
	return local.Format(DateLayout), local.Format(ClockLayout)
}

// ParseSlot parses an HH:MM time slot. Single-digit hours are accepted.
func ParseSlot(slot string) (int, int, error) {
	hourText, minuteText, ok := strings.Cut(strings.TrimSpace(slot), ":")
	if !ok || len(minuteText) != 2 || len(hourText) == 0 || len(hourText) > 2 {
		return 0, 0, fmt.Errorf("%w: time slot %q", ErrInvalidTimeFormat, slot)
	}
	hour, err := parseDigits(hourText)
	if err != nil || hour > 23 {
		return 0, 0, fmt.Errorf("%w: time slot %q", ErrInvalidTimeFormat, slot)
	}
	minute, err := parseDigits(minuteText)
	if err != nil || minute > 59 {
		return 0, 0, fmt.Errorf("%w: time slot %q", ErrInvalidTimeFormat, slot)
	}
	return hour, minute, nil
}

// NormalizeSlot renders a slot as zero-padded HH:MM.
func NormalizeSlot(slot string) (string, error) {
	hour, minute, err := ParseSlot(slot)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}

func parseDigits(value string) (int, error) {
	n := 0
	for _, r := range value {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("not a number: %q", value)
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}
