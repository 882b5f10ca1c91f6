package search

import (
	"context"
	"fmt"

	"rehearsal/api/internal/store"
)

// SubmissionLister is the part of the audit store the fallback needs.
type SubmissionLister interface {
	ListSubmissions(ctx context.Context, filter store.SubmissionFilter) ([]store.Submission, error)
}

// PgSearch answers history queries straight from the audit table.
type PgSearch struct {
	lister SubmissionLister
}

func NewPgSearch(lister SubmissionLister) *PgSearch {
	return &PgSearch{lister: lister}
}

func (p *PgSearch) Search(ctx context.Context, q Query) ([]Record, int, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	subs, err := p.lister.ListSubmissions(ctx, store.SubmissionFilter{
		Activity: q.Activity,
		Query:    q.Text,
		Limit:    limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("pg search: %w", err)
	}
	records := make([]Record, 0, len(subs))
	for _, sub := range subs {
		records = append(records, RecordFromSubmission(sub))
	}
	return records, len(records), nil
}
