package attendance

import "fmt"

type OpKind string

const (
	OpDelete OpKind = "delete"
	OpAppend OpKind = "append"
	OpColor  OpKind = "color"
)

// Operation is one step of a Batch. Row is a 0-based grid index with the
// header at 0; it is unused for appends, which always land after the last row.
type Operation struct {
	Kind     OpKind
	Row      int
	Values   Row
	Category Category
}

// Batch is the ordered set of mutations for one submission. The ledger must
// apply it as a single unit.
type Batch struct {
	Activity  string
	SheetID   int64
	Ops       []Operation
	TargetRow int
}

// Deletes returns the number of delete operations in the batch.
func (b Batch) Deletes() int {
	n := 0
	for _, op := range b.Ops {
		if op.Kind == OpDelete {
			n++
		}
	}
	return n
}

// TargetIndex is the 0-based grid index of the appended row.
func (b Batch) TargetIndex() int {
	return b.TargetRow - 1
}

// BuildBatch deletes the superseded rows, appends the event row and colours it.
// superseded holds data-region indices in strictly descending order, as
// returned by FindSuperseded.
func BuildBatch(sheetID int64, rows []Row, ev ClassifiedEvent, superseded []int) (Batch, error) {
	if !ev.Category.Valid() {
		return Batch{}, fmt.Errorf("build batch: unknown category %q", ev.Category)
	}
	ops := make([]Operation, 0, len(superseded)+2)
	for i, idx := range superseded {
		if idx < 0 || idx >= len(rows) {
			return Batch{}, fmt.Errorf("build batch: superseded index %d outside %d data rows", idx, len(rows))
		}
		if i > 0 && idx >= superseded[i-1] {
			return Batch{}, fmt.Errorf("build batch: superseded indices must be strictly descending, got %v", superseded)
		}
		ops = append(ops, Operation{Kind: OpDelete, Row: HeaderRows + idx})
	}

	remaining := len(rows) - len(superseded)
	target := HeaderRows + remaining + 1
	ops = append(ops,
		Operation{Kind: OpAppend, Values: ev.Row()},
		Operation{Kind: OpColor, Row: target - 1, Category: ev.Category},
	)
	return Batch{
		Activity:  ev.Activity,
		SheetID:   sheetID,
		Ops:       ops,
		TargetRow: target,
	}, nil
}
