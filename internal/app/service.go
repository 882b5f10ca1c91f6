package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"rehearsal/api/internal/attendance"
	"rehearsal/api/internal/catalog"
	"rehearsal/api/internal/dedupe"
	"rehearsal/api/internal/email"
	"rehearsal/api/internal/ledger"
	"rehearsal/api/internal/lock"
	"rehearsal/api/internal/search"
	"rehearsal/api/internal/store"
	"rehearsal/api/internal/util"
)

// SubmitInput is one attendance submission as sent by the form. Song is the
// older name of Activity and is accepted when Activity is empty.
type SubmitInput struct {
	Activity  string `json:"activity" validate:"required,max=100"`
	Song      string `json:"song,omitempty" validate:"-"`
	Name      string `json:"name" validate:"required,max=100"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	TimeSlot  string `json:"timeSlot" validate:"required,max=16"`
	Status    string `json:"status" validate:"required"`
	Reason    string `json:"reason" validate:"max=500"`
	RequestID string `json:"requestId,omitempty" validate:"omitempty,max=128,printascii"`
}

type SubmitResult struct {
	OK             bool                `json:"ok"`
	SubmissionID   string              `json:"submissionId"`
	Activity       string              `json:"activity"`
	FinalStatus    attendance.Status   `json:"finalStatus"`
	StatusLabel    string              `json:"statusLabel"`
	Category       attendance.Category `json:"category"`
	Rule           string              `json:"rule"`
	ElapsedMinutes float64             `json:"elapsedMinutes"`
	Superseded     int                 `json:"superseded"`
	TargetRow      int                 `json:"targetRow"`
	SubmittedDate  string              `json:"submittedDate"`
	SubmittedClock string              `json:"submittedClock"`
	Replayed       bool                `json:"replayed"`
}

type OptionsResult struct {
	Activities []string `json:"activities"`
	Songs      []string `json:"songs"`
	TimeSlots  []string `json:"timeSlots"`
}

type auditStore interface {
	RecordSubmission(context.Context, store.Submission) error
}

// Check is one readiness probe.
type Check func(context.Context) error

// Deps wires the service. Ledger, Catalog, Lock, Resolver and Classifier are
// required; everything else may be nil and the matching feature is skipped.
type Deps struct {
	Ledger     ledger.Gateway
	Catalog    *catalog.Registry
	Lock       lock.Serializer
	Requests   dedupe.Store
	Audit      auditStore
	Search     *search.Service
	Alerts     *email.Alerter
	Resolver   *attendance.Resolver
	Classifier *attendance.Classifier
	Checks     map[string]Check
	Now        func() time.Time
}

type Service struct {
	ledger     ledger.Gateway
	catalog    *catalog.Registry
	lock       lock.Serializer
	requests   dedupe.Store
	audit      auditStore
	search     *search.Service
	alerts     *email.Alerter
	resolver   *attendance.Resolver
	classifier *attendance.Classifier
	checks     map[string]Check
	now        func() time.Time
	validate   *validator.Validate
}

func NewService(deps Deps) (*Service, error) {
	switch {
	case deps.Ledger == nil:
		return nil, errors.New("ledger gateway is required")
	case deps.Catalog == nil:
		return nil, errors.New("catalog is required")
	case deps.Lock == nil:
		return nil, errors.New("lock is required")
	case deps.Resolver == nil:
		return nil, errors.New("time resolver is required")
	case deps.Classifier == nil:
		return nil, errors.New("classifier is required")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		ledger:     deps.Ledger,
		catalog:    deps.Catalog,
		lock:       deps.Lock,
		requests:   deps.Requests,
		audit:      deps.Audit,
		search:     deps.Search,
		alerts:     deps.Alerts,
		resolver:   deps.Resolver,
		classifier: deps.Classifier,
		checks:     deps.Checks,
		now:        now,
		validate:   newValidator(),
	}, nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

func normalizeInput(in SubmitInput) SubmitInput {
	in.Activity = strings.TrimSpace(in.Activity)
	if in.Activity == "" {
		in.Activity = strings.TrimSpace(in.Song)
	}
	in.Song = ""
	in.Name = strings.TrimSpace(in.Name)
	in.Date = strings.TrimSpace(in.Date)
	// the form sends "9:00", "09:00" or the whole "19:00-21:00" range
	in.TimeSlot = attendance.CanonicalSlot(in.TimeSlot)
	in.Status = strings.TrimSpace(in.Status)
	in.Reason = strings.TrimSpace(in.Reason)
	in.RequestID = strings.TrimSpace(in.RequestID)
	return in
}

func (s *Service) validateInput(in SubmitInput) (attendance.Status, error) {
	if err := s.validate.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			details := make(map[string]string, len(fieldErrs))
			for _, fe := range fieldErrs {
				details[fe.Field()] = fe.Tag()
			}
			return "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid submission", details)
		}
		return "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}

	status, err := attendance.ParseStatus(in.Status)
	if err != nil || !status.Requestable() {
		return "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Status cannot be requested", map[string]string{"status": "oneof"})
	}
	if status.RequiresReason() && in.Reason == "" {
		return "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "A reason is required for this status", map[string]string{"reason": "required"})
	}
	return status, nil
}

// Submit runs the whole pipeline for one submission: validation, time
// classification, then read, reconcile and apply under the activity lock.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (SubmitResult, error) {
	in = normalizeInput(in)
	requested, err := s.validateInput(in)
	if err != nil {
		return SubmitResult{}, err
	}

	now := s.now()
	elapsed, err := s.resolver.Elapsed(now, in.Date, in.TimeSlot)
	if err != nil {
		return SubmitResult{}, classifyError(err)
	}
	if err := s.catalog.Validate(ctx, in.Activity, in.TimeSlot); err != nil {
		return SubmitResult{}, classifyError(err)
	}

	decision := s.classifier.Classify(requested, in.Reason, elapsed)
	submittedDate, submittedClock := s.resolver.Stamp(now)
	ev := attendance.ClassifiedEvent{
		Event: attendance.Event{
			Activity:    in.Activity,
			PersonName:  in.Name,
			SessionDate: in.Date,
			TimeSlot:    in.TimeSlot,
			Requested:   requested,
			Reason:      in.Reason,
		},
		Final:          decision.Status,
		Category:       decision.Category,
		Rule:           decision.Rule,
		Elapsed:        elapsed,
		SubmittedDate:  submittedDate,
		SubmittedClock: submittedClock,
	}

	result := SubmitResult{
		OK:             true,
		SubmissionID:   util.NewID("sub"),
		Activity:       in.Activity,
		FinalStatus:    decision.Status,
		StatusLabel:    decision.Status.Label(),
		Category:       decision.Category,
		Rule:           decision.Rule,
		ElapsedMinutes: elapsed,
		SubmittedDate:  submittedDate,
		SubmittedClock: submittedClock,
	}

	var replay *SubmitResult
	err = s.lock.WithSheetLock(ctx, in.Activity, func(lctx context.Context) error {
		var lockErr error
		replay, lockErr = s.applyLocked(lctx, in, ev, &result)
		return lockErr
	})
	if replay != nil {
		replay.Replayed = true
		log.Printf("submit: replayed request %s for %q", in.RequestID, in.Activity)
		return *replay, nil
	}

	s.record(ctx, in, ev, result, err)
	if err != nil {
		return SubmitResult{}, classifyError(err)
	}
	log.Printf("submit: %s %q %s/%s -> %s (%s), superseded=%d row=%d",
		result.SubmissionID, in.Activity, in.Name, in.Date, result.FinalStatus, result.Rule, result.Superseded, result.TargetRow)
	return result, nil
}

func requestKey(activity, requestID string) string {
	if requestID == "" {
		return ""
	}
	return activity + ":" + requestID
}

// applyLocked runs with the activity lock held. A non-nil replay means the
// request was already applied and nothing was written this time.
func (s *Service) applyLocked(ctx context.Context, in SubmitInput, ev attendance.ClassifiedEvent, result *SubmitResult) (replay *SubmitResult, err error) {
	key := ""
	if s.requests != nil {
		key = requestKey(in.Activity, in.RequestID)
	}
	if err := lockLost(ctx); err != nil {
		return nil, err
	}
	if key != "" {
		rec, created, beginErr := s.requests.Begin(ctx, key)
		if beginErr != nil {
			if err := lockLost(ctx); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", errRequestsUnavailable, beginErr)
		}
		if !created {
			if rec.State == dedupe.StateDone {
				var prior SubmitResult
				if uErr := json.Unmarshal(rec.Result, &prior); uErr != nil {
					return nil, fmt.Errorf("decode stored result: %w", uErr)
				}
				return &prior, nil
			}
			return nil, errRequestPending
		}
		defer func() { s.settleRequest(ctx, key, *result, err) }()
	}

	snap, err := ledger.Load(ctx, s.ledger, in.Activity)
	if err != nil {
		if lost := lockLost(ctx); lost != nil {
			return nil, lost
		}
		return nil, err
	}
	superseded := attendance.FindSuperseded(snap.Rows, ev)
	batch, err := attendance.BuildBatch(snap.SheetID, snap.Rows, ev, superseded)
	if err != nil {
		return nil, err
	}
	if err := lockLost(ctx); err != nil {
		return nil, err
	}
	// once sent, the batch must not be abandoned because the caller went away
	if err := s.ledger.ApplyBatch(context.WithoutCancel(ctx), batch); err != nil {
		return nil, err
	}
	result.Superseded = batch.Deletes()
	result.TargetRow = batch.TargetRow
	return nil, nil
}

// lockLost returns the cancellation cause when the activity lock was lost
// while held. Nothing may be written after that.
func lockLost(ctx context.Context) error {
	if cause := context.Cause(ctx); errors.Is(cause, lock.ErrLockLost) {
		return cause
	}
	return nil
}

// settleRequest records the outcome of a claimed request key. An ambiguous
// failure leaves the key pending so a retry cannot write twice.
func (s *Service) settleRequest(ctx context.Context, key string, result SubmitResult, err error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	switch {
	case err == nil:
		data, mErr := json.Marshal(result)
		if mErr == nil {
			mErr = s.requests.Complete(ctx, key, data)
		}
		if mErr != nil {
			log.Printf("submit: complete request %s: %v", key, mErr)
		}
	case ledger.IsAmbiguous(err):
		log.Printf("submit: request %s left pending after ambiguous outcome", key)
	default:
		if aErr := s.requests.Abandon(ctx, key); aErr != nil {
			log.Printf("submit: abandon request %s: %v", key, aErr)
		}
	}
}

// record writes the audit row, indexes it and raises drift alerts. None of
// it changes the caller's result.
func (s *Service) record(ctx context.Context, in SubmitInput, ev attendance.ClassifiedEvent, result SubmitResult, err error) {
	if errors.Is(err, ledger.ErrSheetNotFound) {
		s.alertSheetMissing(ev)
	}
	if errors.Is(err, errRequestPending) || errors.Is(err, lock.ErrLockTimeout) {
		return
	}

	sub := store.Submission{
		ID:              result.SubmissionID,
		RequestID:       in.RequestID,
		Activity:        ev.Activity,
		PersonName:      ev.PersonName,
		SessionDate:     ev.SessionDate,
		TimeSlot:        ev.TimeSlot,
		RequestedStatus: string(ev.Requested),
		FinalStatus:     string(ev.Final),
		Category:        string(ev.Category),
		Reason:          ev.Reason,
		Superseded:      result.Superseded,
		TargetRow:       result.TargetRow,
		SubmittedDate:   ev.SubmittedDate,
		SubmittedClock:  ev.SubmittedClock,
		Outcome:         store.OutcomeApplied,
		CreatedAt:       s.now().UTC(),
	}
	if err != nil {
		sub.Outcome = store.OutcomeFailed
		if ledger.IsAmbiguous(err) {
			sub.Outcome = store.OutcomeAmbiguous
		}
		sub.ErrorCode = classifyError(err).Code
		log.Printf("submit: %s %q %s/%s failed: %v", sub.ID, ev.Activity, ev.PersonName, ev.SessionDate, err)
	}

	if s.audit != nil {
		auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if aErr := s.audit.RecordSubmission(auditCtx, sub); aErr != nil {
			log.Printf("submit: audit %s: %v", sub.ID, aErr)
		}
	}
	if s.search != nil {
		s.search.IndexSubmission(sub)
	}
}

func (s *Service) alertSheetMissing(ev attendance.ClassifiedEvent) {
	if !s.alerts.Enabled() {
		return
	}
	alert := email.SheetAlert{
		Activity:    ev.Activity,
		PersonName:  ev.PersonName,
		SessionDate: ev.SessionDate,
		At:          s.now(),
	}
	go func() {
		if _, err := s.alerts.SheetMissing(alert); err != nil {
			log.Printf("submit: %v", err)
		}
	}()
}

func (s *Service) Options(ctx context.Context) (OptionsResult, error) {
	opts, err := s.catalog.Options(ctx)
	if err != nil {
		return OptionsResult{}, classifyError(err)
	}
	activities := nonNilStrings(opts.Activities)
	return OptionsResult{
		Activities: activities,
		Songs:      activities,
		TimeSlots:  nonNilStrings(opts.TimeSlots),
	}, nil
}

func (s *Service) SearchSubmissions(ctx context.Context, q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Record{}, Query: q.Text, Source: "none"}
	}
	if q.Limit <= 0 || q.Limit > 200 {
		q.Limit = 50
	}
	return s.search.Search(ctx, q)
}

// CheckResult is the outcome of one readiness probe.
type CheckResult struct {
	Name  string
	Error error
}

// Ready runs every readiness probe in name order.
func (s *Service) Ready(ctx context.Context) []CheckResult {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]CheckResult, 0, len(names))
	for _, name := range names {
		results = append(results, CheckResult{Name: name, Error: s.checks[name](ctx)})
	}
	return results
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
