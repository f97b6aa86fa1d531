package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/stwalsh4118/fieldtrack/internal/export"
	"github.com/stwalsh4118/fieldtrack/internal/models"
	"github.com/stwalsh4118/fieldtrack/internal/services"
	"github.com/stwalsh4118/fieldtrack/internal/session"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Validate a file version and optionally commit it",
	Long: `Opens a session over one file version, fetches and validates every record,
applies decisions from --decisions and reconciles.

Flagged records need a decision before the session can reconcile. Without
one for every flagged record the command lists them and stops.

Examples:
  # Dry run: validate and print the summary
  process --job 42 --file-version 3 --start-date 2026-03-01

  # Apply decisions, export the reports and commit
  process --job 42 --file-version 3 --start-date 2026-03-01 \
    --decisions decisions.json --export reports/ --commit`,
	RunE: runProcess,
}

func init() {
	f := processCmd.Flags()
	f.String("job", "", "job ID")
	f.Int("file-version", 0, "source file version to process")
	f.String("start-date", "", "project start date (YYYY-MM-DD)")
	f.String("decisions", "", "JSON file of override decisions to apply")
	f.String("export", "", "directory or .xlsx path for the report workbook")
	f.Bool("commit", false, "persist the ledger batch and analytics")
	_ = processCmd.MarkFlagRequired("job")
	_ = processCmd.MarkFlagRequired("file-version")
	_ = processCmd.MarkFlagRequired("start-date")

	rootCmd.AddCommand(processCmd)
}

// decisionFile is one entry of a --decisions file.
type decisionFile struct {
	Accepted     *bool  `json:"accepted"`
	CompositeKey string `json:"compositeKey"`
	ApprovedBy   string `json:"approvedBy"`
	Reason       string `json:"reason"`
}

func loadDecisions(r io.Reader) ([]models.OverrideDecision, error) {
	var entries []decisionFile
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, eris.Wrap(err, "decode decisions")
	}
	out := make([]models.OverrideDecision, 0, len(entries))
	for i, e := range entries {
		if e.CompositeKey == "" || e.Accepted == nil || e.ApprovedBy == "" {
			return nil, eris.Errorf("decision %d: compositeKey, accepted and approvedBy are required", i+1)
		}
		out = append(out, models.OverrideDecision{
			CompositeKey: e.CompositeKey,
			Accepted:     *e.Accepted,
			ApprovedBy:   e.ApprovedBy,
			Reason:       e.Reason,
		})
	}
	return out, nil
}

func runProcess(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobID, _ := cmd.Flags().GetString("job")
	fileVersion, _ := cmd.Flags().GetInt("file-version")
	startRaw, _ := cmd.Flags().GetString("start-date")
	decisionsPath, _ := cmd.Flags().GetString("decisions")
	exportPath, _ := cmd.Flags().GetString("export")
	commit, _ := cmd.Flags().GetBool("commit")

	startDate, err := time.Parse(time.DateOnly, startRaw)
	if err != nil {
		return eris.Errorf("process: --start-date must be YYYY-MM-DD (got %q)", startRaw)
	}

	var decisions []models.OverrideDecision
	if decisionsPath != "" {
		f, err := os.Open(decisionsPath)
		if err != nil {
			return eris.Wrap(err, "process: open decisions")
		}
		decisions, err = loadDecisions(f)
		_ = f.Close()
		if err != nil {
			return err
		}
	}

	svc, closeDB, err := openService(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	out := cmd.OutOrStdout()
	view, err := svc.CreateSession(ctx, jobID, fileVersion, startDate)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Abandon(view.ID) }()

	view, err = fetchWithResume(ctx, svc, view.ID, out)
	if err != nil {
		return err
	}

	if view, err = applyDecisions(svc, view, decisions, out); err != nil {
		return err
	}

	if view.State == session.StateIssuesPending && view.Counts.Decided < view.Counts.PendingIssues {
		issues, err := svc.Issues(view.ID)
		if err != nil {
			return err
		}
		printIssues(out, issues)
		return eris.Errorf("process: %d of %d flagged records still need a decision",
			view.Counts.PendingIssues-view.Counts.Decided, view.Counts.PendingIssues)
	}

	outcome, err := svc.Reconcile(view.ID)
	if err != nil {
		return err
	}
	printSummary(out, outcome)

	if exportPath != "" {
		path := exportPath
		if filepath.Ext(path) != ".xlsx" {
			path = filepath.Join(exportPath, export.FileName(outcome.Bundle))
		}
		if err := export.WriteFile(path, outcome.Bundle); err != nil {
			return err
		}
		fmt.Fprintf(out, "Report written to %s\n", path)
	}

	if !commit {
		fmt.Fprintln(out, "Dry run: nothing committed (pass --commit to persist)")
		return nil
	}
	res, err := svc.Commit(ctx, view.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Committed %d ledger records at %s\n", res.LedgerRows, res.CommittedAt.Format(time.RFC3339))
	return nil
}

type decider interface {
	Decide(sessionID string, decision models.OverrideDecision) (services.SessionView, error)
}

// applyDecisions records each decision against the session. A session that
// reconciled without flagged records has nothing to decide, so the decisions
// are reported as unused.
func applyDecisions(svc decider, view services.SessionView, decisions []models.OverrideDecision, out io.Writer) (services.SessionView, error) {
	if len(decisions) == 0 {
		return view, nil
	}
	if view.State != session.StateIssuesPending {
		fmt.Fprintf(out, "No flagged records: %d decisions unused\n", len(decisions))
		return view, nil
	}
	for _, d := range decisions {
		next, err := svc.Decide(view.ID, d)
		if err != nil {
			return view, eris.Wrapf(err, "process: decision for %s", d.CompositeKey)
		}
		view = next
	}
	return view, nil
}

// fetchWithResume retries a partial retrieval once. The second call resumes
// after the records the first one kept.
func fetchWithResume(ctx context.Context, svc services.InspectionService, sessionID string, out io.Writer) (services.SessionView, error) {
	var view services.SessionView
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		view, err = svc.Fetch(ctx, sessionID)
		var partial *services.PartialProgressError
		if !errors.As(err, &partial) {
			break
		}
		fmt.Fprintf(out, "Retrieval stopped: %s\n", partial.Error())
	}
	return view, err
}

func printIssues(out io.Writer, issues []models.ValidationIssue) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tCLASS\tINSPECTOR\tINFOBY\tSEVERITY\tDECISION\tISSUES")
	for _, issue := range issues {
		decision := "-"
		if issue.Decision != nil {
			decision = "rejected"
			if issue.Decision.Accepted {
				decision = "accepted"
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			issue.CompositeKey, issue.PropertyClass, issue.Inspector, issue.InfoByCode,
			issue.Severity, decision, issue.Message())
	}
	_ = w.Flush()
}

func printSummary(out io.Writer, outcome *session.Outcome) {
	job := outcome.Bundle.Analytics.Job
	missing := outcome.Bundle.MissingProperties

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Records\t%d\n", job.TotalRecords)
	fmt.Fprintf(w, "Valid inspections\t%d\n", job.ValidInspections)
	fmt.Fprintf(w, "Overrides accepted\t%d\n", job.OverridesAccepted)
	fmt.Fprintf(w, "Total inspections\t%d\n", job.TotalInspections)
	fmt.Fprintf(w, "Entry rate\t%d%%\n", job.JobEntryRate)
	fmt.Fprintf(w, "Refusal rate\t%d%%\n", job.JobRefusalRate)
	fmt.Fprintf(w, "Commercial complete\t%d%%\n", job.CommercialCompletePercent)
	fmt.Fprintf(w, "Pricing complete\t%d%%\n", job.PricingCompletePercent)
	fmt.Fprintf(w, "Billable\t%d\n", outcome.Bundle.Analytics.Billing.TotalBillable)
	fmt.Fprintf(w, "Missing\t%d\n", missing.TotalMissing)
	fmt.Fprintf(w, "Ledger batch\t%d\n", len(outcome.Ledger))
	_ = w.Flush()
}
