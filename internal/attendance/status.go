// Package attendance holds the pure attendance rules: time resolution, status
// classification, reconciliation against existing ledger rows and the
// construction of the mutation batch that is sent to the ledger.
package attendance

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusPresent        Status = "present"
	StatusLate           Status = "late"
	StatusAbsent         Status = "absent"
	StatusGeneralExcused Status = "general-excused"
	StatusFixedExcused   Status = "fixed-excused"
	StatusFixedLate      Status = "fixed-late"
)

// Labels written to the status column of the shared ledger.
var statusLabels = map[Status]string{
	StatusPresent:        "출석",
	StatusLate:           "지각",
	StatusAbsent:         "결석",
	StatusGeneralExcused: "일반결석계",
	StatusFixedExcused:   "고정결석계",
	StatusFixedLate:      "고정지각",
}

var labelStatuses = func() map[string]Status {
	out := make(map[string]Status, len(statusLabels))
	for status, label := range statusLabels {
		out[label] = status
	}
	return out
}()

// ParseStatus accepts either the canonical name or the ledger label.
func ParseStatus(value string) (Status, error) {
	trimmed := strings.TrimSpace(value)
	if status, ok := labelStatuses[trimmed]; ok {
		return status, nil
	}
	status := Status(strings.ToLower(trimmed))
	if _, ok := statusLabels[status]; ok {
		return status, nil
	}
	return "", fmt.Errorf("unknown status %q", value)
}

func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Requestable reports whether a caller may ask for this status. Late and
// absent are only ever derived from elapsed time.
func (s Status) Requestable() bool {
	switch s {
	case StatusPresent, StatusGeneralExcused, StatusFixedExcused, StatusFixedLate:
		return true
	default:
		return false
	}
}

func (s Status) Excused() bool {
	return s == StatusGeneralExcused || s == StatusFixedExcused
}

// Observed reports whether the status is a real attendance observation.
func (s Status) Observed() bool {
	return s == StatusPresent || s == StatusLate || s == StatusAbsent
}

// RequiresReason reports whether a request for this status must carry a reason.
func (s Status) RequiresReason() bool {
	return s.Excused() || s == StatusFixedLate
}

type Category string

const (
	CategoryExcused   Category = "excused-blue"
	CategoryFixedLate Category = "fixed-late-purple"
	CategoryPresent   Category = "present-green"
	CategoryLate      Category = "late-yellow"
	CategoryAbsent    Category = "absent-red"
)

// Color is an RGB background with channels in [0, 1].
type Color struct {
	Red   float64
	Green float64
	Blue  float64
}

var categoryColors = map[Category]Color{
	CategoryExcused:   {Red: 0.8, Green: 0.93, Blue: 1},
	CategoryFixedLate: {Red: 0.9, Green: 0.8, Blue: 1},
	CategoryPresent:   {Red: 0.8, Green: 1, Blue: 0.8},
	CategoryLate:      {Red: 1, Green: 1, Blue: 0.6},
	CategoryAbsent:    {Red: 1, Green: 0.8, Blue: 0.8},
}

func (c Category) Color() Color {
	return categoryColors[c]
}

func (c Category) Valid() bool {
	_, ok := categoryColors[c]
	return ok
}
