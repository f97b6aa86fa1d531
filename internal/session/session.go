// Package session owns the state of one processing run: the records under
// evaluation, the manager's override decisions and the reconciled outcome.
//
// A session moves AwaitingProcessing -> IssuesPending -> Reconciled, or
// straight to Reconciled when no record needs review. Once its outcome is
// committed the session is locked and rejects every mutation.
package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/stwalsh4118/fieldtrack/internal/codes"
	"github.com/stwalsh4118/fieldtrack/internal/models"
	"github.com/stwalsh4118/fieldtrack/internal/validation"
)

var (
	// ErrInvalidTransition is returned when an operation is not allowed in
	// the session's current state.
	ErrInvalidTransition = errors.New("operation not allowed in current session state")

	// ErrUnresolvedIssues is returned when reconciliation is attempted while
	// flagged records still lack a decision.
	ErrUnresolvedIssues = errors.New("validation issues without a decision")

	// ErrNoPendingIssue is returned when a decision names a record that is
	// not awaiting review.
	ErrNoPendingIssue = errors.New("no pending validation issue for composite key")

	// ErrLocked is returned for any mutation after the session committed.
	ErrLocked = errors.New("session is locked")

	// ErrNotReconciled is returned when an outcome is requested before
	// reconciliation.
	ErrNotReconciled = errors.New("session has not been reconciled")
)

// State is a position in the reconciliation state machine.
type State string

const (
	StateAwaitingProcessing State = "awaiting_processing"
	StateIssuesPending      State = "issues_pending"
	StateReconciled         State = "reconciled"
)

// Counts summarizes how the session's records were routed.
type Counts struct {
	Total             int `json:"total"`
	Valid             int `json:"valid"`
	HardExcluded      int `json:"hardExcluded"`
	PendingIssues     int `json:"pendingIssues"`
	Decided           int `json:"decided"`
	OverridesAccepted int `json:"overridesAccepted"`
}

// Summary is a point-in-time view of a session.
type Summary struct {
	StartDate   time.Time `json:"startDate"`
	CreatedAt   time.Time `json:"createdAt"`
	ID          string    `json:"id"`
	JobID       string    `json:"jobId"`
	Vendor      string    `json:"vendor"`
	State       State     `json:"state"`
	Counts      Counts    `json:"counts"`
	FileVersion int       `json:"fileVersion"`
	Locked      bool      `json:"locked"`
	Committing  bool      `json:"committing"`
}

// ProcessingSession holds one run over a job's file version. All methods are
// safe for concurrent use.
type ProcessingSession struct {
	mu sync.Mutex

	createdAt   time.Time
	startDate   time.Time
	now         func() time.Time
	directory   validation.Directory
	classifier  *codes.Classifier
	engine      *validation.Engine
	decisions   map[string]models.OverrideDecision
	pending     map[string]bool
	outcome     *Outcome
	jobID       string
	state       State
	records     []models.PropertyRecord
	results     []validation.Result
	config      codes.CategoryConfig
	fileVersion int
	id          uuid.UUID
	locked      bool
	committing  bool
}

// Option configures a session.
type Option func(*ProcessingSession)

// WithClock overrides the clock used to stamp decisions.
func WithClock(now func() time.Time) Option {
	return func(s *ProcessingSession) {
		s.now = now
	}
}

// New creates a session for jobID's fileVersion. A malformed category
// configuration is rejected with a *codes.ConfigError.
func New(jobID string, fileVersion int, startDate time.Time, cfg codes.CategoryConfig, directory validation.Directory, opts ...Option) (*ProcessingSession, error) {
	classifier, err := codes.NewClassifier(cfg)
	if err != nil {
		return nil, err
	}
	s := &ProcessingSession{
		id:          uuid.New(),
		jobID:       jobID,
		fileVersion: fileVersion,
		startDate:   validation.DateOnly(startDate),
		directory:   directory,
		config:      cfg.Canonicalize(),
		classifier:  classifier,
		state:       StateAwaitingProcessing,
		decisions:   make(map[string]models.OverrideDecision),
		pending:     make(map[string]bool),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.createdAt = s.now().UTC()
	s.engine = validation.NewEngine(classifier, directory, s.startDate)
	return s, nil
}

// ID returns the session's import session id.
func (s *ProcessingSession) ID() string {
	return s.id.String()
}

// JobID returns the job the session processes.
func (s *ProcessingSession) JobID() string {
	return s.jobID
}

// FileVersion returns the file version the session processes.
func (s *ProcessingSession) FileVersion() int {
	return s.fileVersion
}

// RecordCount returns the number of records ingested so far.
func (s *ProcessingSession) RecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Config returns the canonical category configuration in use.
func (s *ProcessingSession) Config() codes.CategoryConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// Summary returns the session's current state and counts.
func (s *ProcessingSession) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Summary{
		ID:          s.id.String(),
		JobID:       s.jobID,
		FileVersion: s.fileVersion,
		StartDate:   s.startDate,
		CreatedAt:   s.createdAt,
		Vendor:      s.config.Vendor.String(),
		State:       s.state,
		Locked:      s.locked,
		Committing:  s.committing,
		Counts:      s.counts(),
	}
}

// Counts returns how records are currently routed.
func (s *ProcessingSession) Counts() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts()
}

func (s *ProcessingSession) counts() Counts {
	c := Counts{Total: len(s.records)}
	if s.state == StateAwaitingProcessing {
		return c
	}
	for i, res := range s.results {
		switch {
		case res.Excluded():
			c.HardExcluded++
		case res.Valid():
			c.Valid++
		default:
			c.PendingIssues++
			if d, ok := s.decisions[s.records[i].Key()]; ok {
				c.Decided++
				if d.Accepted {
					c.OverridesAccepted++
				}
			}
		}
	}
	return c
}

func (s *ProcessingSession) checkMutable() error {
	if s.locked {
		return ErrLocked
	}
	if s.committing {
		return eris.Wrap(ErrLocked, "commit in progress")
	}
	return nil
}

// Ingest appends records in retrieval order. Records can only be added before
// processing.
func (s *ProcessingSession) Ingest(records ...models.PropertyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable(); err != nil {
		return err
	}
	if s.state != StateAwaitingProcessing {
		return eris.Wrapf(ErrInvalidTransition, "ingest in state %s", s.state)
	}
	s.records = append(s.records, records...)
	return nil
}

// UpdateConfig replaces the category configuration. Results computed under
// the previous configuration are discarded along with any decisions, and the
// session returns to AwaitingProcessing with its records kept.
func (s *ProcessingSession) UpdateConfig(cfg codes.CategoryConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable(); err != nil {
		return err
	}
	classifier, err := codes.NewClassifier(cfg)
	if err != nil {
		return err
	}
	s.config = cfg.Canonicalize()
	s.classifier = classifier
	s.engine = validation.NewEngine(classifier, s.directory, s.startDate)
	s.reset()
	return nil
}

func (s *ProcessingSession) reset() {
	s.state = StateAwaitingProcessing
	s.results = nil
	s.outcome = nil
	s.decisions = make(map[string]models.OverrideDecision)
	s.pending = make(map[string]bool)
}

// Process evaluates every ingested record in order. The session moves to
// IssuesPending when any record needs review, otherwise straight to
// Reconciled.
func (s *ProcessingSession) Process() (Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable(); err != nil {
		return Counts{}, err
	}
	if s.state != StateAwaitingProcessing {
		return Counts{}, eris.Wrapf(ErrInvalidTransition, "process in state %s", s.state)
	}

	s.results = make([]validation.Result, len(s.records))
	for i, rec := range s.records {
		res := s.engine.Evaluate(rec)
		s.results[i] = res
		if res.NeedsReview() {
			s.pending[rec.Key()] = true
		}
	}

	if len(s.pending) > 0 {
		s.state = StateIssuesPending
		return s.counts(), nil
	}
	s.state = StateReconciled
	s.outcome = s.compute()
	return s.counts(), nil
}

// PendingIssues returns every flagged record's compound issue in record
// order, with its decision attached when one was made.
func (s *ProcessingSession) PendingIssues() ([]models.ValidationIssue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateAwaitingProcessing {
		return nil, eris.Wrap(ErrInvalidTransition, "session has not been processed")
	}
	issues := make([]models.ValidationIssue, 0, len(s.pending))
	for i, res := range s.results {
		if !res.NeedsReview() {
			continue
		}
		issue := validation.Issue(s.records[i], res)
		if d, ok := s.decisions[issue.CompositeKey]; ok {
			decision := d
			issue.Decision = &decision
		}
		issues = append(issues, issue)
	}
	return issues, nil
}

// Decide records a manager's ruling on a flagged record. Deciding the same
// key again replaces the earlier ruling. Rejected decisions leave the record
// excluded.
func (s *ProcessingSession) Decide(d models.OverrideDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable(); err != nil {
		return err
	}
	if s.state != StateIssuesPending {
		return eris.Wrapf(ErrInvalidTransition, "decide in state %s", s.state)
	}
	key := strings.TrimSpace(d.CompositeKey)
	if !s.pending[key] {
		return eris.Wrapf(ErrNoPendingIssue, "composite key %q", key)
	}
	d.CompositeKey = key
	if d.DecidedAt.IsZero() {
		d.DecidedAt = s.now().UTC()
	}
	s.decisions[key] = d
	return nil
}

// Reconcile merges the decisions into the ledger batch and aggregates. Every
// flagged record must have a decision first. The outcome is recomputed from
// the evaluation results on every call, so reconciling again with the same
// decisions yields an identical outcome.
func (s *ProcessingSession) Reconcile() (*Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable(); err != nil {
		return nil, err
	}
	switch s.state {
	case StateIssuesPending, StateReconciled:
	default:
		return nil, eris.Wrapf(ErrInvalidTransition, "reconcile in state %s", s.state)
	}

	undecided := 0
	for key := range s.pending {
		if _, ok := s.decisions[key]; !ok {
			undecided++
		}
	}
	if undecided > 0 {
		return nil, eris.Wrapf(ErrUnresolvedIssues, "%d of %d issues undecided", undecided, len(s.pending))
	}

	s.outcome = s.compute()
	s.state = StateReconciled
	return s.outcome, nil
}

// Outcome returns the reconciled outcome.
func (s *ProcessingSession) Outcome() (*Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReconciled || s.outcome == nil {
		return nil, ErrNotReconciled
	}
	return s.outcome, nil
}

// BeginCommit freezes the session while its outcome is persisted. Mutations
// fail until EndCommit is called.
func (s *ProcessingSession) BeginCommit() (*Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable(); err != nil {
		return nil, err
	}
	if s.state != StateReconciled || s.outcome == nil {
		return nil, ErrNotReconciled
	}
	s.committing = true
	return s.outcome, nil
}

// EndCommit releases the commit freeze. A successful commit locks the
// session permanently; a failed one leaves it reconciled and retryable.
func (s *ProcessingSession) EndCommit(committed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committing = false
	if committed {
		s.locked = true
	}
}

// Locked reports whether the session's outcome was committed.
func (s *ProcessingSession) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked
}
