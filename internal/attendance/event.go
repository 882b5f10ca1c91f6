package attendance

import "strings"

// ColumnCount is the width of a ledger row: activity, name, date, slot,
// status, reason, submitted date, submitted clock.
const ColumnCount = 8

// HeaderRows is the number of header rows above the data region of a sheet.
const HeaderRows = 1

// Event is one attendance submission as received from a caller.
type Event struct {
	Activity    string
	PersonName  string
	SessionDate string
	TimeSlot    string
	Requested   Status
	Reason      string
}

// ClassifiedEvent is an Event after time resolution and classification.
type ClassifiedEvent struct {
	Event
	Final          Status
	Category       Category
	Rule           string
	Elapsed        float64
	SubmittedDate  string
	SubmittedClock string
}

func (e ClassifiedEvent) Identity() Identity {
	return NewIdentity(e.PersonName, e.SessionDate, e.TimeSlot)
}

// Row returns the ledger row that records this event.
func (e ClassifiedEvent) Row() Row {
	return Row{
		Activity:       e.Activity,
		PersonName:     e.PersonName,
		SessionDate:    e.SessionDate,
		TimeSlot:       e.TimeSlot,
		Status:         e.Final.Label(),
		Reason:         e.Reason,
		SubmittedDate:  e.SubmittedDate,
		SubmittedClock: e.SubmittedClock,
	}
}

// Row is one data row of a ledger sheet.
type Row struct {
	Activity       string
	PersonName     string
	SessionDate    string
	TimeSlot       string
	Status         string
	Reason         string
	SubmittedDate  string
	SubmittedClock string
}

// RowFromValues maps raw cell values onto a Row. Short rows are padded with
// empty cells and extra cells are ignored.
func RowFromValues(values []string) Row {
	cell := func(i int) string {
		if i < len(values) {
			return values[i]
		}
		return ""
	}
	return Row{
		Activity:       cell(0),
		PersonName:     cell(1),
		SessionDate:    cell(2),
		TimeSlot:       cell(3),
		Status:         cell(4),
		Reason:         cell(5),
		SubmittedDate:  cell(6),
		SubmittedClock: cell(7),
	}
}

func (r Row) Values() []string {
	return []string{
		r.Activity,
		r.PersonName,
		r.SessionDate,
		r.TimeSlot,
		r.Status,
		r.Reason,
		r.SubmittedDate,
		r.SubmittedClock,
	}
}

// ParsedStatus returns the row status, or false for labels the engine does not know.
func (r Row) ParsedStatus() (Status, bool) {
	status, err := ParseStatus(r.Status)
	if err != nil {
		return "", false
	}
	return status, true
}

func (r Row) Blank() bool {
	for _, v := range r.Values() {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
