package attendance

import (
	"fmt"
	"strings"
	"testing"
)

// applyToGrid replays a batch against an in-memory sheet the way the ledger
// does: deletes shift later rows up, appends land after the last row.
func applyToGrid(grid []Row, b Batch) ([]Row, int, error) {
	out := append([]Row(nil), grid...)
	colored := -1
	for _, op := range b.Ops {
		switch op.Kind {
		case OpDelete:
			if op.Row < HeaderRows || op.Row >= len(out) {
				return nil, -1, fmt.Errorf("delete row %d outside grid of %d", op.Row, len(out))
			}
			out = append(out[:op.Row], out[op.Row+1:]...)
		case OpAppend:
			out = append(out, op.Values)
		case OpColor:
			if op.Row < 0 || op.Row >= len(out) {
				return nil, -1, fmt.Errorf("color row %d outside grid of %d", op.Row, len(out))
			}
			colored = op.Row
		}
	}
	return out, colored, nil
}

func header() Row {
	return Row{Activity: "곡", PersonName: "이름", SessionDate: "날짜", TimeSlot: "시간", Status: "상태"}
}

func TestBuildBatchOrdersOperations(t *testing.T) {
	rows := []Row{
		row("김민수", "2026-03-14", "19:00", StatusGeneralExcused),
		row("이서연", "2026-03-14", "19:00", StatusPresent),
		row("김민수", "2026-03-14", "", StatusFixedExcused),
	}
	ev := classified("김민수", "2026-03-14", "19:00", StatusPresent)

	b, err := BuildBatch(42, rows, ev, FindSuperseded(rows, ev))
	if err != nil {
		t.Fatalf("BuildBatch: %v", err)
	}

	var kinds []string
	for _, op := range b.Ops {
		kinds = append(kinds, fmt.Sprintf("%s:%d", op.Kind, op.Row))
	}
	want := "delete:3 delete:1 append:0 color:2"
	if got := strings.Join(kinds, " "); got != want {
		t.Errorf("ops = %s, want %s", got, want)
	}
	if b.TargetRow != 3 {
		t.Errorf("TargetRow = %d, want 3", b.TargetRow)
	}
	if b.SheetID != 42 || b.Activity != "취타" {
		t.Errorf("batch identity = %d/%s", b.SheetID, b.Activity)
	}
	if b.Deletes() != 2 {
		t.Errorf("Deletes() = %d, want 2", b.Deletes())
	}
	if last := b.Ops[len(b.Ops)-1]; last.Category != CategoryPresent {
		t.Errorf("color category = %s", last.Category)
	}
}

func TestBuildBatchWithoutDeletions(t *testing.T) {
	rows := []Row{row("이서연", "2026-03-14", "19:00", StatusPresent)}
	b, err := BuildBatch(0, rows, classified("김민수", "2026-03-14", "19:00", StatusLate), nil)
	if err != nil {
		t.Fatalf("BuildBatch: %v", err)
	}
	if len(b.Ops) != 2 || b.Ops[0].Kind != OpAppend || b.Ops[1].Kind != OpColor {
		t.Fatalf("unexpected ops %+v", b.Ops)
	}
	// header + one data row + new row
	if b.TargetRow != 3 || b.TargetIndex() != 2 {
		t.Errorf("TargetRow = %d, TargetIndex = %d", b.TargetRow, b.TargetIndex())
	}
}

func TestBuildBatchRejectsBadIndices(t *testing.T) {
	rows := []Row{
		row("a", "2026-03-14", "19:00", StatusGeneralExcused),
		row("b", "2026-03-14", "19:00", StatusGeneralExcused),
	}
	ev := classified("a", "2026-03-14", "19:00", StatusPresent)
	for _, bad := range [][]int{{2}, {-1}, {0, 1}, {1, 1}} {
		if _, err := BuildBatch(1, rows, ev, bad); err == nil {
			t.Errorf("BuildBatch accepted indices %v", bad)
		}
	}
	ev.Category = "plaid"
	if _, err := BuildBatch(1, rows, ev, nil); err == nil {
		t.Error("BuildBatch accepted unknown category")
	}
}

// Every subset of excused rows of a small sheet is superseded in turn; the
// coloured row must always be the appended one and no other row may move.
func TestBuildBatchIndexSafety(t *testing.T) {
	for n := 0; n <= 6; n++ {
		for mask := 0; mask < 1<<n; mask++ {
			rows := make([]Row, n)
			for i := range rows {
				if mask&(1<<i) != 0 {
					rows[i] = row("target", "2026-03-14", "19:00", StatusGeneralExcused)
				} else {
					rows[i] = row(fmt.Sprintf("other-%d", i), "2026-03-14", "19:00", StatusGeneralExcused)
				}
			}
			ev := classified("target", "2026-03-14", "19:00", StatusPresent)
			superseded := FindSuperseded(rows, ev)

			b, err := BuildBatch(7, rows, ev, superseded)
			if err != nil {
				t.Fatalf("n=%d mask=%b: BuildBatch: %v", n, mask, err)
			}
			grid := append([]Row{header()}, rows...)
			after, colored, err := applyToGrid(grid, b)
			if err != nil {
				t.Fatalf("n=%d mask=%b: apply: %v", n, mask, err)
			}

			if colored != len(after)-1 {
				t.Fatalf("n=%d mask=%b: colored row %d, appended row is %d", n, mask, colored, len(after)-1)
			}
			if after[colored] != ev.Row() {
				t.Fatalf("n=%d mask=%b: colored row holds %+v", n, mask, after[colored])
			}
			if b.TargetRow != len(after) {
				t.Fatalf("n=%d mask=%b: TargetRow %d, sheet has %d rows", n, mask, b.TargetRow, len(after))
			}
			if after[0] != header() {
				t.Fatalf("n=%d mask=%b: header changed", n, mask)
			}

			survivors := 0
			for _, r := range after[1 : len(after)-1] {
				if r.PersonName == "target" {
					t.Fatalf("n=%d mask=%b: superseded row survived", n, mask)
				}
				survivors++
			}
			if survivors != n-len(superseded) {
				t.Fatalf("n=%d mask=%b: %d untouched rows, want %d", n, mask, survivors, n-len(superseded))
			}
		}
	}
}
