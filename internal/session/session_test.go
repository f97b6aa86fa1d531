package session

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/fieldtrack/internal/codes"
	"github.com/stwalsh4118/fieldtrack/internal/models"
)

var (
	start      = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	fixedClock = func() time.Time { return time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC) }
)

var directory = models.EmployeeDirectory{
	"AB": {Code: "AB", Name: "Ann", FullName: "Ann Baker", Type: models.InspectorResidential},
	"CD": {Code: "CD", Name: "Carl", FullName: "Carl Dunn", Type: models.InspectorCommercial},
}

func brtConfig() codes.CategoryConfig {
	return codes.CategoryConfig{
		Vendor:     codes.VendorBRT,
		Entry:      []codes.CanonicalCode{"7"},
		Refusal:    []codes.CanonicalCode{"6"},
		Estimation: []codes.CanonicalCode{"3"},
	}
}

func date(offset int) *time.Time {
	d := start.AddDate(0, 0, offset)
	return &d
}

func listed(key, inspector, class, code string) models.PropertyRecord {
	return models.PropertyRecord{
		JobID:         "job-1",
		CompositeKey:  key,
		Block:         "10",
		Lot:           key,
		PropertyClass: class,
		InspectorCode: inspector,
		MeasureDate:   date(1),
		InfoByCode:    code,
		ListerCode:    inspector,
		ListDate:      date(1),
	}
}

// fixtureRecords returns two valid records, three hard exclusions and two
// records that need review (K5 and K6).
func fixtureRecords() []models.PropertyRecord {
	preStart := listed("K3", "AB", "2", "07")
	preStart.MeasureDate = date(-2)

	return []models.PropertyRecord{
		listed("K1", "AB", "2", "07"),
		{JobID: "job-1", CompositeKey: "K2", PropertyClass: "2", InfoByCode: "07"},
		preStart,
		listed("K4", "ZZ", "2", "07"),
		listed("K5", "AB", "2", "25"),
		listed("K6", "AB", "4A", "07"),
		listed("K7", "CD", "4A", "07"),
	}
}

func newProcessed(t *testing.T) *ProcessingSession {
	t.Helper()
	s, err := New("job-1", 3, start, brtConfig(), directory, WithClock(fixedClock))
	require.NoError(t, err)
	require.NoError(t, s.Ingest(fixtureRecords()...))
	_, err = s.Process()
	require.NoError(t, err)
	return s
}

func TestNew_RejectsMalformedConfig(t *testing.T) {
	cfg := brtConfig()
	cfg.Refusal = append(cfg.Refusal, "07")

	s, err := New("job-1", 1, start, cfg, directory)

	assert.Nil(t, s)
	var cfgErr *codes.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestProcess_CountsPartitionRecords(t *testing.T) {
	s := newProcessed(t)

	c := s.Counts()
	assert.Equal(t, 7, c.Total)
	assert.Equal(t, 2, c.Valid)
	assert.Equal(t, 3, c.HardExcluded)
	assert.Equal(t, 2, c.PendingIssues)
	assert.Equal(t, c.Total, c.Valid+c.HardExcluded+c.PendingIssues)
	assert.Equal(t, StateIssuesPending, s.Summary().State)
}

func TestProcess_NoIssuesGoesStraightToReconciled(t *testing.T) {
	s, err := New("job-1", 1, start, brtConfig(), directory)
	require.NoError(t, err)
	require.NoError(t, s.Ingest(listed("K1", "AB", "2", "07"), listed("K2", "CD", "4B", "7")))

	_, err = s.Process()
	require.NoError(t, err)

	assert.Equal(t, StateReconciled, s.Summary().State)
	out, err := s.Outcome()
	require.NoError(t, err)
	assert.Len(t, out.Ledger, 2)
	assert.Equal(t, 2, out.Bundle.Analytics.Job.ValidInspections)
}

func TestProcess_RejectsSecondRun(t *testing.T) {
	s := newProcessed(t)

	_, err := s.Process()

	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestIngest_AfterProcessFails(t *testing.T) {
	s := newProcessed(t)

	err := s.Ingest(listed("K9", "AB", "2", "07"))

	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPendingIssues_ListsFlaggedRecords(t *testing.T) {
	s := newProcessed(t)

	issues, err := s.PendingIssues()
	require.NoError(t, err)

	require.Len(t, issues, 2)
	assert.Equal(t, "K5", issues[0].CompositeKey)
	assert.Equal(t, []string{"Invalid InfoBy code: 25"}, issues[0].Issues)
	assert.Equal(t, "K6", issues[1].CompositeKey)
	assert.Equal(t, []string{"Residential inspector on commercial property"}, issues[1].Issues)
	assert.Nil(t, issues[0].Decision)
}

func TestDecide_UnknownKey(t *testing.T) {
	s := newProcessed(t)

	err := s.Decide(models.OverrideDecision{CompositeKey: "K1", Accepted: true, ApprovedBy: "mgr"})

	assert.ErrorIs(t, err, ErrNoPendingIssue)
}

func TestDecide_MatchesPaddedCompositeKeys(t *testing.T) {
	recs := fixtureRecords()
	recs[4].CompositeKey = " K5 "
	recs[5].CompositeKey = "K6\t"
	s, err := New("job-1", 3, start, brtConfig(), directory, WithClock(fixedClock))
	require.NoError(t, err)
	require.NoError(t, s.Ingest(recs...))
	_, err = s.Process()
	require.NoError(t, err)

	issues, err := s.PendingIssues()
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, "K5", issues[0].CompositeKey)

	require.NoError(t, s.Decide(models.OverrideDecision{CompositeKey: "K5", Accepted: true, ApprovedBy: "mgr"}))
	require.NoError(t, s.Decide(models.OverrideDecision{CompositeKey: " K6 ", Accepted: false, ApprovedBy: "mgr"}))

	out, err := s.Reconcile()
	require.NoError(t, err)
	assert.Equal(t, 1, out.Bundle.Analytics.Job.OverridesAccepted)
	assert.Contains(t, out.Bundle.Overrides, "K5")
	assert.Contains(t, out.Bundle.Overrides, "K6")
}

func TestReconcile_RequiresEveryDecision(t *testing.T) {
	s := newProcessed(t)
	require.NoError(t, s.Decide(models.OverrideDecision{CompositeKey: "K5", Accepted: true, ApprovedBy: "mgr"}))

	out, err := s.Reconcile()

	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrUnresolvedIssues)
	assert.Contains(t, err.Error(), "1 of 2")
	assert.Equal(t, StateIssuesPending, s.Summary().State)
}

func decideFixture(t *testing.T, s *ProcessingSession) {
	t.Helper()
	require.NoError(t, s.Decide(models.OverrideDecision{CompositeKey: "K5", Accepted: true, Reason: "code typo", ApprovedBy: "mgr"}))
	require.NoError(t, s.Decide(models.OverrideDecision{CompositeKey: "K6", Accepted: false, ApprovedBy: "mgr"}))
}

func TestReconcile_OverridesAreAdditive(t *testing.T) {
	s := newProcessed(t)
	before := s.Counts()
	decideFixture(t, s)

	out, err := s.Reconcile()
	require.NoError(t, err)

	job := out.Bundle.Analytics.Job
	assert.Equal(t, before.Valid, job.ValidInspections)
	assert.Equal(t, 1, job.OverridesAccepted)
	assert.Equal(t, before.Valid+1, job.TotalInspections)
	assert.Equal(t, 2, job.ValidationIssues)
	assert.Len(t, out.Ledger, 3)

	missing := out.Bundle.MissingProperties
	assert.Equal(t, job.TotalRecords-job.ValidInspections-job.OverridesAccepted, missing.TotalMissing)
	assert.Equal(t, 1, missing.ByReason[models.ReasonUnassigned])
	assert.Equal(t, 1, missing.ByReason[models.ReasonPreStartDate])
	assert.Equal(t, 1, missing.ByReason[models.ReasonUnknownInspector])
	assert.Equal(t, 1, missing.ValidationFailedCount)
	assert.Equal(t, 1, missing.ByInspector["UNASSIGNED"])

	assert.Len(t, out.Bundle.Overrides, 2)
	assert.Equal(t, 2, out.Bundle.ValidationReport.TotalIssues)
	require.Len(t, out.Bundle.ValidationReport.InspectorBreakdown, 1)
	assert.Equal(t, "Ann Baker", out.Bundle.ValidationReport.InspectorBreakdown[0].InspectorName)
}

func TestReconcile_LedgerCarriesOverrideMetadata(t *testing.T) {
	s := newProcessed(t)
	decideFixture(t, s)

	out, err := s.Reconcile()
	require.NoError(t, err)

	var overridden *models.LedgerRecord
	for i := range out.Ledger {
		assert.NotEqual(t, "K2", out.Ledger[i].CompositeKey)
		assert.NotEqual(t, "K6", out.Ledger[i].CompositeKey)
		assert.Equal(t, s.ID(), out.Ledger[i].ImportSessionID)
		assert.Equal(t, 3, out.Ledger[i].FileVersion)
		assert.Equal(t, "1", out.Ledger[i].Card)
		if out.Ledger[i].CompositeKey == "K5" {
			overridden = &out.Ledger[i]
		}
	}
	require.NotNil(t, overridden)
	require.NotNil(t, overridden.Override)
	assert.True(t, overridden.Override.Accepted)
	assert.Equal(t, "code typo", overridden.Override.Reason)
	assert.Equal(t, fixedClock(), overridden.Override.DecidedAt)
	assert.Equal(t, []string{"Invalid InfoBy code: 25"}, overridden.Issues)
	assert.Equal(t, models.SeverityMedium, overridden.Severity)
}

func TestReconcile_IsIdempotent(t *testing.T) {
	s := newProcessed(t)
	decideFixture(t, s)

	first, err := s.Reconcile()
	require.NoError(t, err)
	firstJSON, err := json.Marshal(first.Bundle)
	require.NoError(t, err)

	second, err := s.Reconcile()
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second.Bundle)
	require.NoError(t, err)

	assert.Equal(t, string(firstJSON), string(secondJSON))
	assert.Equal(t, first.Ledger, second.Ledger)
	assert.Equal(t, 1, second.Bundle.Analytics.Job.OverridesAccepted)
}

func TestReconcile_UnassignedNeverInLedger(t *testing.T) {
	s, err := New("job-1", 1, start, brtConfig(), directory)
	require.NoError(t, err)
	for _, code := range []string{"", "UNASSIGNED", " unassigned "} {
		rec := listed("U"+code, code, "2", "07")
		require.NoError(t, s.Ingest(rec))
	}

	_, err = s.Process()
	require.NoError(t, err)
	out, err := s.Outcome()
	require.NoError(t, err)

	assert.Empty(t, out.Ledger)
	assert.Equal(t, 3, out.Bundle.MissingProperties.ByReason[models.ReasonUnassigned])
	assert.Empty(t, out.Bundle.ValidationReport.Issues)
}

func TestCommit_LocksSession(t *testing.T) {
	s := newProcessed(t)
	decideFixture(t, s)
	_, err := s.Reconcile()
	require.NoError(t, err)

	out, err := s.BeginCommit()
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.ErrorIs(t, s.UpdateConfig(brtConfig()), ErrLocked)

	s.EndCommit(true)

	assert.True(t, s.Locked())
	assert.ErrorIs(t, s.UpdateConfig(brtConfig()), ErrLocked)
	_, err = s.Reconcile()
	assert.ErrorIs(t, err, ErrLocked)
	_, err = s.BeginCommit()
	assert.ErrorIs(t, err, ErrLocked)
}

func TestCommit_FailureLeavesSessionRetryable(t *testing.T) {
	s := newProcessed(t)
	decideFixture(t, s)
	_, err := s.Reconcile()
	require.NoError(t, err)

	_, err = s.BeginCommit()
	require.NoError(t, err)
	s.EndCommit(false)

	assert.False(t, s.Locked())
	_, err = s.BeginCommit()
	assert.NoError(t, err)
}

func TestCommit_RequiresReconciliation(t *testing.T) {
	s := newProcessed(t)

	_, err := s.BeginCommit()

	assert.ErrorIs(t, err, ErrNotReconciled)
}

func TestUpdateConfig_ResetsResults(t *testing.T) {
	s := newProcessed(t)
	decideFixture(t, s)

	cfg := brtConfig()
	cfg.Entry = append(cfg.Entry, "25")
	require.NoError(t, s.UpdateConfig(cfg))

	assert.Equal(t, StateAwaitingProcessing, s.Summary().State)
	assert.Equal(t, 7, s.RecordCount())

	c, err := s.Process()
	require.NoError(t, err)
	assert.Equal(t, 3, c.Valid)
	assert.Equal(t, 1, c.PendingIssues)
	assert.Equal(t, 0, c.Decided)
}

func TestUpdateConfig_RejectsMalformedConfig(t *testing.T) {
	s := newProcessed(t)
	cfg := brtConfig()
	cfg.Estimation = append(cfg.Estimation, "7")

	err := s.UpdateConfig(cfg)

	var cfgErr *codes.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, StateIssuesPending, s.Summary().State)
}
