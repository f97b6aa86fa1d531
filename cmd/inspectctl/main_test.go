package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/fieldtrack/internal/codes"
	"github.com/stwalsh4118/fieldtrack/internal/models"
	"github.com/stwalsh4118/fieldtrack/internal/services"
	"github.com/stwalsh4118/fieldtrack/internal/session"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"process", "bootstrap"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestProcessCommand_Flags(t *testing.T) {
	for _, name := range []string{"job", "file-version", "start-date", "decisions", "export", "commit"} {
		assert.NotNil(t, processCmd.Flags().Lookup(name), "process should have --%s flag", name)
	}
	assert.Equal(t, "false", processCmd.Flags().Lookup("commit").DefValue)
}

func TestLoadDecisions(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		in := `[{"compositeKey":"K5","accepted":true,"approvedBy":"mgr","reason":"verified"},
		        {"compositeKey":"K6","accepted":false,"approvedBy":"mgr"}]`

		got, err := loadDecisions(strings.NewReader(in))

		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, models.OverrideDecision{CompositeKey: "K5", Accepted: true, ApprovedBy: "mgr", Reason: "verified"}, got[0])
		assert.False(t, got[1].Accepted)
	})

	t.Run("missing ruling", func(t *testing.T) {
		_, err := loadDecisions(strings.NewReader(`[{"compositeKey":"K5","approvedBy":"mgr"}]`))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "decision 1")
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := loadDecisions(strings.NewReader(`{`))
		assert.Error(t, err)
	})
}

func TestReadDefinitions(t *testing.T) {
	t.Run("definition list", func(t *testing.T) {
		defs, err := readDefinitions(codes.VendorBRT, []byte(` [{"code":"01","description":"OWNER"}]`))

		require.NoError(t, err)
		assert.Equal(t, []codes.CodeDefinition{{Code: "01", Description: "OWNER"}}, defs)
	})

	t.Run("vendor code file", func(t *testing.T) {
		raw := []byte(`{"field_codes":{"140":{"A":{"description":"AGENT"},"O":{"description":"OWNER"}}}}`)

		defs, err := readDefinitions(codes.VendorMicrosystems, raw)

		require.NoError(t, err)
		assert.Len(t, defs, 2)
	})
}

func TestPrintIssues(t *testing.T) {
	var buf bytes.Buffer
	printIssues(&buf, []models.ValidationIssue{{
		CompositeKey:  "K5",
		PropertyClass: "2",
		Inspector:     "AB",
		InfoByCode:    "25",
		Severity:      models.SeverityMedium,
		Issues:        []string{"Invalid InfoBy code: 25"},
		Decision:      &models.OverrideDecision{Accepted: true},
	}})

	out := buf.String()
	assert.Contains(t, out, "KEY")
	assert.Contains(t, out, "K5")
	assert.Contains(t, out, "accepted")
	assert.Contains(t, out, "Invalid InfoBy code: 25")
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, &session.Outcome{
		Ledger: make([]models.LedgerRecord, 2),
		Bundle: models.WorkflowBundle{Analytics: models.Analytics{Job: models.JobMetrics{
			TotalRecords: 3, ValidInspections: 1, OverridesAccepted: 1, TotalInspections: 2, JobEntryRate: 50,
		}}},
	})

	out := buf.String()
	assert.Regexp(t, `Total inspections\s+2`, out)
	assert.Regexp(t, `Entry rate\s+50%`, out)
	assert.Regexp(t, `Ledger batch\s+2`, out)
}

type recordingDecider struct {
	decided []models.OverrideDecision
}

func (d *recordingDecider) Decide(sessionID string, decision models.OverrideDecision) (services.SessionView, error) {
	d.decided = append(d.decided, decision)
	view := services.SessionView{}
	view.ID = sessionID
	view.State = session.StateIssuesPending
	view.Counts.Decided = len(d.decided)
	return view, nil
}

func TestApplyDecisions(t *testing.T) {
	decisions := []models.OverrideDecision{
		{CompositeKey: "K5", Accepted: true, ApprovedBy: "mgr"},
		{CompositeKey: "K6", ApprovedBy: "mgr"},
	}

	t.Run("pending session", func(t *testing.T) {
		svc := &recordingDecider{}
		view := services.SessionView{}
		view.ID = "sess-1"
		view.State = session.StateIssuesPending
		var buf bytes.Buffer

		got, err := applyDecisions(svc, view, decisions, &buf)

		require.NoError(t, err)
		assert.Len(t, svc.decided, 2)
		assert.Equal(t, 2, got.Counts.Decided)
		assert.Empty(t, buf.String())
	})

	t.Run("reconciled session", func(t *testing.T) {
		svc := &recordingDecider{}
		view := services.SessionView{}
		view.ID = "sess-1"
		view.State = session.StateReconciled
		var buf bytes.Buffer

		got, err := applyDecisions(svc, view, decisions, &buf)

		require.NoError(t, err)
		assert.Empty(t, svc.decided)
		assert.Equal(t, session.StateReconciled, got.State)
		assert.Contains(t, buf.String(), "2 decisions unused")
	})
}
