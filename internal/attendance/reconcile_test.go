package attendance

import (
	"reflect"
	"testing"
)

func classified(name, date, slot string, final Status) ClassifiedEvent {
	category := CategoryPresent
	switch final {
	case StatusLate:
		category = CategoryLate
	case StatusAbsent:
		category = CategoryAbsent
	case StatusGeneralExcused, StatusFixedExcused:
		category = CategoryExcused
	case StatusFixedLate:
		category = CategoryFixedLate
	}
	return ClassifiedEvent{
		Event: Event{
			Activity:    "취타",
			PersonName:  name,
			SessionDate: date,
			TimeSlot:    slot,
			Requested:   StatusPresent,
		},
		Final:          final,
		Category:       category,
		SubmittedDate:  date,
		SubmittedClock: "19:05",
	}
}

func row(name, date, slot string, status Status) Row {
	return Row{
		Activity:    "취타",
		PersonName:  name,
		SessionDate: date,
		TimeSlot:    slot,
		Status:      status.Label(),
	}
}

func TestFindSupersededMatchesExcusedRowsOnly(t *testing.T) {
	rows := []Row{
		row("김민수", "2026-03-14", "19:00", StatusGeneralExcused), // 0 match
		row("김민수", "2026-03-14", "19:00", StatusPresent),        // 1 not excused
		row("이서연", "2026-03-14", "19:00", StatusFixedExcused),   // 2 other person
		row("김민수", "2026-03-15", "19:00", StatusFixedExcused),   // 3 other date
		row("김민수", "2026-03-14", "20:30", StatusFixedExcused),   // 4 other slot
		row(" 김민수 ", "2026-03-14", "", StatusFixedExcused),      // 5 legacy wildcard, padded name
		row("김민수", "2026-03-14", "19:00", StatusFixedLate),      // 6 fixed-late is not excused
		row("김민수", "2026-03-14", "19:00", StatusFixedExcused),   // 7 match
	}

	got := FindSuperseded(rows, classified("김민수", "2026-03-14", "19:00", StatusLate))
	want := []int{7, 5, 0}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FindSuperseded = %v, want %v", got, want)
	}
}

func TestFindSupersededComparesSlotsByTime(t *testing.T) {
	tests := []struct {
		name      string
		rowSlot   string
		eventSlot string
		want      int
	}{
		{"unpadded row", "9:00", "09:00", 1},
		{"unpadded event", "09:00", "9:00", 1},
		{"range row", "09:00-11:00", "09:00", 1},
		{"padded whitespace", " 9:00 ", "09:00", 1},
		{"different time", "9:30", "09:00", 0},
		{"unparseable row kept verbatim", "morning", "09:00", 0},
		{"unparseable on both sides", "morning", " morning ", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := []Row{row("김민수", "2026-03-14", tt.rowSlot, StatusGeneralExcused)}
			got := FindSuperseded(rows, classified("김민수", "2026-03-14", tt.eventSlot, StatusPresent))
			if len(got) != tt.want {
				t.Errorf("FindSuperseded = %v, want %d match", got, tt.want)
			}
		})
	}
}

func TestCanonicalSlot(t *testing.T) {
	for in, want := range map[string]string{
		"9:00":        "09:00",
		" 19:05 ":     "19:05",
		"19:00-21:00": "19:00",
		"":            "",
		"25:00":       "25:00",
		"morning":     "morning",
	} {
		if got := CanonicalSlot(in); got != want {
			t.Errorf("CanonicalSlot(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFindSupersededRequiresObservedStatus(t *testing.T) {
	rows := []Row{row("김민수", "2026-03-14", "19:00", StatusGeneralExcused)}
	for _, final := range []Status{StatusGeneralExcused, StatusFixedExcused, StatusFixedLate} {
		if got := FindSuperseded(rows, classified("김민수", "2026-03-14", "19:00", final)); len(got) != 0 {
			t.Errorf("%s event superseded rows %v", final, got)
		}
	}
	for _, final := range []Status{StatusPresent, StatusLate, StatusAbsent} {
		if got := FindSuperseded(rows, classified("김민수", "2026-03-14", "19:00", final)); len(got) != 1 {
			t.Errorf("%s event superseded %v, want one row", final, got)
		}
	}
}

func TestFindSupersededAcceptsCanonicalStatusNames(t *testing.T) {
	rows := []Row{
		{PersonName: "Alex", SessionDate: "2026-03-14", TimeSlot: "19:00", Status: "general-excused"},
		{PersonName: "Alex", SessionDate: "2026-03-14", TimeSlot: "19:00", Status: "something else"},
	}
	got := FindSuperseded(rows, classified("Alex", "2026-03-14", "19:00", StatusPresent))
	if !reflect.DeepEqual(got, []int{0}) {
		t.Errorf("FindSuperseded = %v, want [0]", got)
	}
}

func TestFindSupersededNormalizesComposedNames(t *testing.T) {
	// "한" spelled with conjoining jamo (NFD) must match the composed form.
	decomposed := "\u1112\u1161\u11ab"
	rows := []Row{row(decomposed, "2026-03-14", "19:00", StatusFixedExcused)}
	got := FindSuperseded(rows, classified("한", "2026-03-14", "19:00", StatusPresent))
	if !reflect.DeepEqual(got, []int{0}) {
		t.Errorf("FindSuperseded = %v, want [0]", got)
	}
}

func TestFindSupersededEmptyLedger(t *testing.T) {
	if got := FindSuperseded(nil, classified("Alex", "2026-03-14", "19:00", StatusPresent)); len(got) != 0 {
		t.Errorf("FindSuperseded on empty ledger = %v", got)
	}
}

func TestRowFromValuesPadsShortRows(t *testing.T) {
	r := RowFromValues([]string{"취타", "김민수", "2026-03-14"})
	if r.TimeSlot != "" || r.SubmittedClock != "" {
		t.Errorf("expected missing cells to be empty, got %+v", r)
	}
	if r.PersonName != "김민수" {
		t.Errorf("PersonName = %q", r.PersonName)
	}
	if len(r.Values()) != ColumnCount {
		t.Errorf("Values() has %d cells, want %d", len(r.Values()), ColumnCount)
	}
}
