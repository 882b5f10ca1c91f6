package attendance

import "sort"

// FindSuperseded returns the data-region indices of rows the event replaces,
// highest first so they can be deleted one after another without shifting a
// row that is still pending. Only observed statuses replace excused rows.
func FindSuperseded(rows []Row, ev ClassifiedEvent) []int {
	if !ev.Final.Observed() {
		return nil
	}
	id := ev.Identity()
	var indices []int
	for i, row := range rows {
		status, ok := row.ParsedStatus()
		if !ok || !status.Excused() {
			continue
		}
		if id.Matches(row) {
			indices = append(indices, i)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(indices)))
	return indices
}
