package search

import (
	"context"
	"log"

	"rehearsal/api/internal/store"
)

// Index is the subset of Meili the facade uses.
type Index interface {
	Healthy() bool
	Search(q Query) ([]Record, int, error)
	Index(records ...Record) error
}

// Service is the facade that tries Meilisearch first and falls back to
// Postgres.
type Service struct {
	index    Index
	fallback *PgSearch
}

// NewService creates a search service. index may be nil if Meilisearch is
// not configured; fallback may be nil when there is no audit database.
func NewService(index Index, fallback *PgSearch) *Service {
	return &Service{index: index, fallback: fallback}
}

func (s *Service) indexReady() bool {
	return s.index != nil && s.index.Healthy()
}

func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.indexReady() {
		results, total, err := s.index.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Source: "meilisearch"}
		}
		log.Printf("search: meilisearch error, falling back to postgres: %v", err)
	}

	if s.fallback == nil {
		return Response{Results: []Record{}, Query: q.Text, Source: "none"}
	}
	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		log.Printf("search: postgres error: %v", err)
		return Response{Results: []Record{}, Query: q.Text, Source: "postgres"}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Source: "postgres"}
}

// IndexSubmission pushes one submission to Meilisearch in the background.
func (s *Service) IndexSubmission(sub store.Submission) {
	if !s.indexReady() {
		return
	}
	rec := RecordFromSubmission(sub)
	go func() {
		if err := s.index.Index(rec); err != nil {
			log.Printf("search: index submission %s: %v", rec.ID, err)
		}
	}()
}

// Backfill copies the newest submissions from Postgres into Meilisearch.
// Called at startup so a fresh index is not empty.
func (s *Service) Backfill(ctx context.Context, limit int) {
	if !s.indexReady() || s.fallback == nil {
		return
	}
	records, _, err := s.fallback.Search(ctx, Query{Limit: limit})
	if err != nil {
		log.Printf("search: backfill load failed: %v", err)
		return
	}
	if err := s.index.Index(records...); err != nil {
		log.Printf("search: backfill: %v", err)
		return
	}
	log.Printf("search: backfilled %d submissions", len(records))
}

func nonNil(r []Record) []Record {
	if r == nil {
		return []Record{}
	}
	return r
}
