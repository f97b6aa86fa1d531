package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stwalsh4118/fieldtrack/internal/codes"
	"github.com/stwalsh4118/fieldtrack/internal/config"
	"github.com/stwalsh4118/fieldtrack/internal/logger"
	"github.com/stwalsh4118/fieldtrack/internal/metrics"
	"github.com/stwalsh4118/fieldtrack/internal/models"
	"github.com/stwalsh4118/fieldtrack/internal/repository"
	"github.com/stwalsh4118/fieldtrack/internal/resilience"
	"github.com/stwalsh4118/fieldtrack/internal/session"
	"golang.org/x/time/rate"
)

// Options tunes record retrieval and commits.
type Options struct {
	Now           func() time.Time
	Retry         resilience.Policy
	DefaultVendor codes.VendorDialect
	PageSize      int
	Concurrency   int
	RatePerSecond float64
}

// OptionsFromConfig builds Options from the processing configuration.
func OptionsFromConfig(cfg config.ProcessingConfig) Options {
	vendor, err := codes.ParseVendor(cfg.DefaultVendor)
	if err != nil {
		vendor = codes.VendorBRT
	}
	retry := resilience.DefaultPolicy()
	retry.MaxAttempts = cfg.RetryMaxAttempts
	retry.InitialBackoff = cfg.RetryInitialBackoff
	retry.MaxBackoff = cfg.RetryMaxBackoff
	return Options{
		DefaultVendor: vendor,
		PageSize:      cfg.PageSize,
		Concurrency:   cfg.Concurrency,
		RatePerSecond: cfg.RatePerSecond,
		Retry:         retry,
	}
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.DefaultVendor == codes.VendorUnknown {
		o.DefaultVendor = codes.VendorBRT
	}
	if o.PageSize < 1 {
		o.PageSize = 1000
	}
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	if o.RatePerSecond <= 0 {
		o.RatePerSecond = 20
	}
	return o
}

// SessionView is a session summary plus retrieval progress.
type SessionView struct {
	session.Summary
	// ExpectedRecords is -1 until the record source has been counted.
	ExpectedRecords int `json:"expectedRecords"`
}

// InspectionService orchestrates processing sessions: configuration, record
// retrieval, evaluation, override decisions, reconciliation and commit.
type InspectionService interface {
	// GetConfig returns the job's category configuration with its vendor
	// resolved. Returns ErrNoConfig when none has been saved.
	GetConfig(ctx context.Context, jobID string) (codes.CategoryConfig, error)

	// SaveConfig canonicalizes and stores the job's configuration, then
	// resets every open session of the job to re-evaluate under it.
	// Returns *codes.ConfigError for contradictory membership and
	// ErrConfigLocked while one of the job's sessions is committing.
	SaveConfig(ctx context.Context, jobID string, cfg codes.CategoryConfig) (codes.CategoryConfig, error)

	// BootstrapConfig derives a configuration from code descriptions and
	// saves it. When defs is empty the job's parsed code file is used.
	BootstrapConfig(ctx context.Context, jobID string, vendor codes.VendorDialect, defs []codes.CodeDefinition) (codes.CategoryConfig, error)

	// CreateSession opens a session over the job's file version using the
	// saved configuration and the current employee directory.
	CreateSession(ctx context.Context, jobID string, fileVersion int, startDate time.Time) (SessionView, error)

	// GetSession returns the session's current state.
	GetSession(sessionID string) (SessionView, error)

	// Fetch retrieves the session's remaining records and evaluates them
	// once all are present. A failed retrieval keeps what was fetched and
	// returns *PartialProgressError; calling Fetch again resumes.
	Fetch(ctx context.Context, sessionID string) (SessionView, error)

	// Issues lists every flagged record with its decision, if any.
	Issues(sessionID string) ([]models.ValidationIssue, error)

	// Decide records a manager's ruling on one flagged record.
	Decide(sessionID string, decision models.OverrideDecision) (SessionView, error)

	// Reconcile folds the decisions into the ledger batch and analytics.
	Reconcile(sessionID string) (*session.Outcome, error)

	// Outcome returns the reconciled outcome without recomputing it.
	Outcome(sessionID string) (*session.Outcome, error)

	// Commit persists the ledger batch and analytics bundle atomically and
	// locks the session. A failed commit leaves the session retryable.
	Commit(ctx context.Context, sessionID string) (repository.CommitResult, error)

	// Abandon discards the session's in-memory state. Nothing is persisted.
	Abandon(sessionID string) error
}

type trackedSession struct {
	fetchMu sync.Mutex
	sess    *session.ProcessingSession
	log     *logger.Logger
	// expected is -1 until the record source has been counted.
	expected atomic.Int64
}

type inspectionService struct {
	mu        sync.RWMutex
	sessions  map[string]*trackedSession
	jobLocks  map[string]*sync.Mutex
	records   repository.RecordRepository
	employees repository.EmployeeRepository
	jobs      repository.JobRepository
	ledger    repository.LedgerRepository
	limiter   *rate.Limiter
	log       *logger.Logger
	opts      Options
}

// NewInspectionService creates an InspectionService.
func NewInspectionService(
	records repository.RecordRepository,
	employees repository.EmployeeRepository,
	jobs repository.JobRepository,
	ledger repository.LedgerRepository,
	log *logger.Logger,
	opts Options,
) InspectionService {
	opts = opts.withDefaults()
	return &inspectionService{
		sessions:  make(map[string]*trackedSession),
		jobLocks:  make(map[string]*sync.Mutex),
		records:   records,
		employees: employees,
		jobs:      jobs,
		ledger:    ledger,
		limiter:   rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.Concurrency),
		log:       log.WithComponent("inspection_service"),
		opts:      opts,
	}
}

func (s *inspectionService) policy(log *logger.Logger, operation string) resilience.Policy {
	p := s.opts.Retry
	p.OnRetry = resilience.LogRetries(log, operation)
	return p
}

func (s *inspectionService) lookup(sessionID string) (*trackedSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.sessions[sessionID]
	if !ok {
		return nil, eris.Wrapf(ErrSessionNotFound, "session %s", sessionID)
	}
	return t, nil
}

// jobLock returns the mutex that serializes config changes, session creation
// and the start of a commit within one job.
func (s *inspectionService) jobLock(jobID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.jobLocks[jobID]
	if !ok {
		l = &sync.Mutex{}
		s.jobLocks[jobID] = l
	}
	return l
}

func (s *inspectionService) view(t *trackedSession) SessionView {
	return SessionView{Summary: t.sess.Summary(), ExpectedRecords: int(t.expected.Load())}
}

// resolveVendor picks the configuration's vendor, then the job's vendor tag,
// then the default vendor.
func (s *inspectionService) resolveVendor(candidates ...codes.VendorDialect) codes.VendorDialect {
	for _, v := range candidates {
		if v != codes.VendorUnknown {
			return v
		}
	}
	return s.opts.DefaultVendor
}

func (s *inspectionService) GetConfig(ctx context.Context, jobID string) (codes.CategoryConfig, error) {
	stored, err := s.jobs.LoadConfig(ctx, jobID)
	if err != nil {
		s.log.Error("Failed to load category config", err, map[string]interface{}{"job_id": jobID})
		return codes.CategoryConfig{}, err
	}
	if !stored.Found {
		return codes.CategoryConfig{}, eris.Wrapf(ErrNoConfig, "job %s", jobID)
	}
	cfg := stored.Config
	cfg.Vendor = s.resolveVendor(cfg.Vendor, stored.Vendor)
	return cfg, nil
}

func (s *inspectionService) SaveConfig(ctx context.Context, jobID string, cfg codes.CategoryConfig) (codes.CategoryConfig, error) {
	if cfg.Vendor == codes.VendorUnknown {
		stored, err := s.jobs.LoadConfig(ctx, jobID)
		if err != nil {
			return codes.CategoryConfig{}, err
		}
		cfg.Vendor = s.resolveVendor(stored.Vendor)
	}

	lock := s.jobLock(jobID)
	lock.Lock()
	defer lock.Unlock()

	open := s.jobSessions(jobID)
	for _, t := range open {
		if t.sess.Summary().Committing {
			s.log.Warn("Category config change refused during commit", map[string]interface{}{
				"job_id":     jobID,
				"session_id": t.sess.ID(),
			})
			return codes.CategoryConfig{}, eris.Wrapf(ErrConfigLocked, "job %s", jobID)
		}
	}

	saved, err := s.jobs.SaveConfig(ctx, jobID, cfg)
	if err != nil {
		var cfgErr *codes.ConfigError
		if errors.As(err, &cfgErr) {
			s.log.Warn("Rejected malformed category config", map[string]interface{}{
				"job_id": jobID,
				"reason": cfgErr.Error(),
			})
		} else {
			s.log.Error("Failed to save category config", err, map[string]interface{}{"job_id": jobID})
		}
		return codes.CategoryConfig{}, err
	}

	reset := 0
	for _, t := range open {
		if t.sess.Locked() {
			continue
		}
		if err := t.sess.UpdateConfig(saved); err != nil {
			t.log.Warn("Session kept previous category config", map[string]interface{}{"error": err.Error()})
			continue
		}
		reset++
	}

	s.log.Info("Category config saved", map[string]interface{}{
		"job_id":         jobID,
		"vendor":         saved.Vendor.String(),
		"sessions_reset": reset,
	})
	return saved, nil
}

func (s *inspectionService) jobSessions(jobID string) []*trackedSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*trackedSession
	for _, t := range s.sessions {
		if t.sess.JobID() == jobID {
			out = append(out, t)
		}
	}
	return out
}

func (s *inspectionService) BootstrapConfig(ctx context.Context, jobID string, vendor codes.VendorDialect, defs []codes.CodeDefinition) (codes.CategoryConfig, error) {
	if len(defs) == 0 {
		fileVendor, fileDefs, err := s.jobs.CodeDefinitions(ctx, jobID)
		if err != nil {
			s.log.Error("Failed to read code definitions", err, map[string]interface{}{"job_id": jobID})
			return codes.CategoryConfig{}, err
		}
		vendor = s.resolveVendor(vendor, fileVendor)
		defs = fileDefs
	}
	vendor = s.resolveVendor(vendor)

	cfg := codes.Bootstrap(vendor, defs)
	s.log.Info("Bootstrapped category config", map[string]interface{}{
		"job_id":      jobID,
		"vendor":      vendor.String(),
		"definitions": len(defs),
		"entry":       len(cfg.Entry),
		"refusal":     len(cfg.Refusal),
		"estimation":  len(cfg.Estimation),
		"priced":      len(cfg.Priced),
		"special":     len(cfg.Special),
	})
	return s.SaveConfig(ctx, jobID, cfg)
}

func (s *inspectionService) CreateSession(ctx context.Context, jobID string, fileVersion int, startDate time.Time) (SessionView, error) {
	if startDate.IsZero() {
		return SessionView{}, ErrInvalidStartDate
	}
	if fileVersion < 1 {
		return SessionView{}, eris.Wrapf(ErrInvalidVersion, "got %d", fileVersion)
	}

	lock := s.jobLock(jobID)
	lock.Lock()
	defer lock.Unlock()

	cfg, err := s.GetConfig(ctx, jobID)
	if err != nil {
		return SessionView{}, err
	}

	directory, err := resilience.DoVal(ctx, s.policy(s.log, "load employee directory"),
		func(ctx context.Context) (models.EmployeeDirectory, error) {
			return s.employees.Directory(ctx)
		})
	if err != nil {
		s.log.Error("Failed to load employee directory", err, map[string]interface{}{"job_id": jobID})
		return SessionView{}, err
	}

	sess, err := session.New(jobID, fileVersion, startDate, cfg, directory, session.WithClock(s.opts.Now))
	if err != nil {
		return SessionView{}, err
	}

	t := &trackedSession{
		sess: sess,
		log:  s.log.WithSession(sess.ID(), jobID),
	}
	t.expected.Store(-1)
	s.mu.Lock()
	s.sessions[sess.ID()] = t
	s.mu.Unlock()

	metrics.SessionsActive.Inc()
	metrics.SessionsTotal.WithLabelValues("created").Inc()
	t.log.Info("Session created", map[string]interface{}{
		"file_version": fileVersion,
		"start_date":   startDate.Format(time.DateOnly),
		"vendor":       cfg.Vendor.String(),
		"employees":    len(directory),
	})

	return s.view(t), nil
}

func (s *inspectionService) GetSession(sessionID string) (SessionView, error) {
	t, err := s.lookup(sessionID)
	if err != nil {
		return SessionView{}, err
	}
	return s.view(t), nil
}

func (s *inspectionService) Fetch(ctx context.Context, sessionID string) (SessionView, error) {
	t, err := s.lookup(sessionID)
	if err != nil {
		return SessionView{}, err
	}
	t.fetchMu.Lock()
	defer t.fetchMu.Unlock()

	summary := t.sess.Summary()
	if summary.Locked {
		return s.view(t), ErrSessionLocked
	}
	if summary.State != session.StateAwaitingProcessing {
		return s.view(t), nil
	}

	started := time.Now()
	if err := s.fetchAll(ctx, t); err != nil {
		metrics.FetchDurationSeconds.WithLabelValues("failure").Observe(time.Since(started).Seconds())
		partial := &PartialProgressError{Processed: t.sess.RecordCount(), Expected: int(t.expected.Load()), Err: err}
		t.log.Error("Record retrieval stopped", err, map[string]interface{}{
			"processed": partial.Processed,
			"expected":  partial.Expected,
		})
		return s.view(t), partial
	}
	metrics.FetchDurationSeconds.WithLabelValues("success").Observe(time.Since(started).Seconds())

	counts, err := t.sess.Process()
	if err != nil {
		return s.view(t), err
	}
	metrics.RecordsEvaluatedTotal.WithLabelValues(metrics.OutcomeValid).Add(float64(counts.Valid))
	metrics.RecordsEvaluatedTotal.WithLabelValues(metrics.OutcomeExcluded).Add(float64(counts.HardExcluded))
	metrics.RecordsEvaluatedTotal.WithLabelValues(metrics.OutcomeIssue).Add(float64(counts.PendingIssues))

	t.log.Info("Session processed", map[string]interface{}{
		"total":          counts.Total,
		"valid":          counts.Valid,
		"hard_excluded":  counts.HardExcluded,
		"pending_issues": counts.PendingIssues,
	})
	return s.view(t), nil
}

func (s *inspectionService) Issues(sessionID string) ([]models.ValidationIssue, error) {
	t, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return t.sess.PendingIssues()
}

func (s *inspectionService) Decide(sessionID string, decision models.OverrideDecision) (SessionView, error) {
	t, err := s.lookup(sessionID)
	if err != nil {
		return SessionView{}, err
	}
	if err := t.sess.Decide(decision); err != nil {
		t.log.Warn("Decision rejected", map[string]interface{}{
			"composite_key": decision.CompositeKey,
			"error":         err.Error(),
		})
		return SessionView{}, err
	}

	label := "rejected"
	if decision.Accepted {
		label = "accepted"
	}
	metrics.OverridesTotal.WithLabelValues(label).Inc()
	t.log.Info("Decision recorded", map[string]interface{}{
		"composite_key": decision.CompositeKey,
		"accepted":      decision.Accepted,
		"approved_by":   decision.ApprovedBy,
	})
	return s.view(t), nil
}

func (s *inspectionService) Reconcile(sessionID string) (*session.Outcome, error) {
	t, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	outcome, err := t.sess.Reconcile()
	if err != nil {
		t.log.Warn("Reconciliation refused", map[string]interface{}{"error": err.Error()})
		return nil, err
	}
	job := outcome.Bundle.Analytics.Job
	t.log.Info("Session reconciled", map[string]interface{}{
		"ledger_records":     len(outcome.Ledger),
		"valid_inspections":  job.ValidInspections,
		"overrides_accepted": job.OverridesAccepted,
		"missing":            outcome.Bundle.MissingProperties.TotalMissing,
	})
	return outcome, nil
}

func (s *inspectionService) Outcome(sessionID string) (*session.Outcome, error) {
	t, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return t.sess.Outcome()
}

func (s *inspectionService) Commit(ctx context.Context, sessionID string) (repository.CommitResult, error) {
	t, err := s.lookup(sessionID)
	if err != nil {
		return repository.CommitResult{}, err
	}

	lock := s.jobLock(t.sess.JobID())
	lock.Lock()
	outcome, err := t.sess.BeginCommit()
	lock.Unlock()
	if err != nil {
		return repository.CommitResult{}, err
	}

	res, err := resilience.DoVal(ctx, s.policy(t.log, "commit"),
		func(ctx context.Context) (repository.CommitResult, error) {
			return s.ledger.Commit(ctx, t.sess.JobID(), outcome.Ledger, outcome.Bundle)
		})
	t.sess.EndCommit(err == nil)
	if err != nil {
		metrics.CommitsTotal.WithLabelValues("failure").Inc()
		t.log.Error("Commit failed", err, map[string]interface{}{"ledger_records": len(outcome.Ledger)})
		return repository.CommitResult{}, err
	}

	metrics.CommitsTotal.WithLabelValues("success").Inc()
	metrics.SessionsTotal.WithLabelValues("committed").Inc()
	t.log.Info("Session committed", map[string]interface{}{
		"ledger_rows":  res.LedgerRows,
		"committed_at": res.CommittedAt,
	})
	return res, nil
}

func (s *inspectionService) Abandon(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.sessions[sessionID]
	if !ok {
		return eris.Wrapf(ErrSessionNotFound, "session %s", sessionID)
	}
	summary := t.sess.Summary()
	if summary.Committing {
		return eris.Wrap(ErrSessionLocked, "commit in progress")
	}
	delete(s.sessions, sessionID)

	metrics.SessionsActive.Dec()
	if !summary.Locked {
		metrics.SessionsTotal.WithLabelValues("abandoned").Inc()
	}
	t.log.Info("Session discarded", map[string]interface{}{
		"state":     summary.State,
		"committed": summary.Locked,
	})
	return nil
}
