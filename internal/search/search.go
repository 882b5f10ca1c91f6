package search

import (
	"time"

	"rehearsal/api/internal/store"
)

// Record is the searchable view of one audited submission.
type Record struct {
	ID              string `json:"id"`
	Activity        string `json:"activity"`
	PersonName      string `json:"name"`
	SessionDate     string `json:"date"`
	TimeSlot        string `json:"timeSlot"`
	RequestedStatus string `json:"requestedStatus"`
	FinalStatus     string `json:"finalStatus"`
	Category        string `json:"category"`
	Reason          string `json:"reason"`
	Outcome         string `json:"outcome"`
	TargetRow       int    `json:"targetRow"`
	CreatedAt       int64  `json:"createdAt"`
}

func RecordFromSubmission(sub store.Submission) Record {
	created := sub.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return Record{
		ID:              sub.ID,
		Activity:        sub.Activity,
		PersonName:      sub.PersonName,
		SessionDate:     sub.SessionDate,
		TimeSlot:        sub.TimeSlot,
		RequestedStatus: sub.RequestedStatus,
		FinalStatus:     sub.FinalStatus,
		Category:        sub.Category,
		Reason:          sub.Reason,
		Outcome:         sub.Outcome,
		TargetRow:       sub.TargetRow,
		CreatedAt:       created.Unix(),
	}
}

// Query describes a history search. An empty Text lists the newest
// submissions.
type Query struct {
	Text     string
	Activity string
	Limit    int
}

// Response is the envelope returned by the history endpoint.
type Response struct {
	Results []Record `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Source  string   `json:"source"`
}
