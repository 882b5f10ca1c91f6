package store

import "time"

const (
	OutcomeApplied   = "applied"
	OutcomeFailed    = "failed"
	OutcomeAmbiguous = "ambiguous"
)

// Submission is one audited attempt to write an attendance row.
type Submission struct {
	ID              string    `json:"id"`
	RequestID       string    `json:"requestId,omitempty"`
	Activity        string    `json:"activity"`
	PersonName      string    `json:"name"`
	SessionDate     string    `json:"date"`
	TimeSlot        string    `json:"timeSlot"`
	RequestedStatus string    `json:"requestedStatus"`
	FinalStatus     string    `json:"finalStatus,omitempty"`
	Category        string    `json:"category,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	Superseded      int       `json:"superseded"`
	TargetRow       int       `json:"targetRow,omitempty"`
	SubmittedDate   string    `json:"submittedDate,omitempty"`
	SubmittedClock  string    `json:"submittedClock,omitempty"`
	Outcome         string    `json:"outcome"`
	ErrorCode       string    `json:"errorCode,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

type SubmissionFilter struct {
	Activity string
	Query    string
	Limit    int
}
