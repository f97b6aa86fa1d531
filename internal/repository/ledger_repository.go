package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/stwalsh4118/fieldtrack/internal/database"
	"github.com/stwalsh4118/fieldtrack/internal/models"
)

// ledgerUpsert writes inspection_data rows keyed by job, file version and
// composite key.
var ledgerUpsert = database.UpsertConfig{
	Table: "inspection_data",
	Columns: []string{
		"job_id",
		"file_version",
		"property_composite_key",
		"block",
		"lot",
		"qualifier",
		"card",
		"property_location",
		"property_class",
		"measure_by",
		"measure_date",
		"info_by_code",
		"list_by",
		"list_date",
		"price_by",
		"price_date",
		"project_start_date",
		"source_file_name",
		"upload_date",
		"validation_report",
		"import_session_id",
		"override_applied",
		"override_reason",
		"override_by",
		"override_date",
	},
	ConflictKeys: []string{"job_id", "file_version", "property_composite_key"},
}

// CommitResult reports what a commit wrote.
type CommitResult struct {
	CommittedAt  time.Time
	LedgerRows   int64
	BundleStored bool
}

// LedgerRepository persists a reconciled session.
type LedgerRepository interface {
	// Commit upserts the ledger batch and stores the workflow bundle in one
	// transaction. Nothing is written when either step fails.
	Commit(ctx context.Context, jobID string, ledger []models.LedgerRecord, bundle models.WorkflowBundle) (CommitResult, error)
}

type ledgerRepository struct {
	db  *database.Database
	now func() time.Time
}

// NewLedgerRepository creates a LedgerRepository backed by inspection_data
// and jobs.workflow_stats.
func NewLedgerRepository(db *database.Database) LedgerRepository {
	return &ledgerRepository{db: db, now: time.Now}
}

// workflowStats is the document kept in jobs.workflow_stats.
type workflowStats struct {
	models.WorkflowBundle
	BillingAnalytics models.BillingRollup `json:"billingAnalytics"`
	LastProcessed    time.Time            `json:"lastProcessed"`
}

type validationReport struct {
	Severity models.Severity `json:"severity"`
	Issues   []string        `json:"issues"`
}

func (r *ledgerRepository) Commit(ctx context.Context, jobID string, ledger []models.LedgerRecord, bundle models.WorkflowBundle) (CommitResult, error) {
	committedAt := r.now().UTC()

	rows, err := ledgerRows(ledger, committedAt)
	if err != nil {
		return CommitResult{}, err
	}

	stats, err := json.Marshal(workflowStats{
		WorkflowBundle:   bundle,
		BillingAnalytics: bundle.Analytics.Billing,
		LastProcessed:    committedAt,
	})
	if err != nil {
		return CommitResult{}, eris.Wrap(err, "encode workflow stats")
	}

	result := CommitResult{CommittedAt: committedAt}
	err = database.WithTx(ctx, r.db.Pool, func(tx pgx.Tx) error {
		n, err := database.BulkUpsert(ctx, tx, ledgerUpsert, rows)
		if err != nil {
			return err
		}
		result.LedgerRows = n

		query := `
			UPDATE jobs
			SET workflow_stats = $2, last_processed = $3, needs_refresh = false
			WHERE id = $1
		`
		tag, err := tx.Exec(ctx, query, jobID, stats, committedAt)
		if err != nil {
			return eris.Wrapf(err, "store workflow stats for job %s", jobID)
		}
		if tag.RowsAffected() == 0 {
			return eris.Wrapf(ErrJobNotFound, "job %s", jobID)
		}
		result.BundleStored = true
		return nil
	})
	if err != nil {
		return CommitResult{}, err
	}
	return result, nil
}

func ledgerRows(ledger []models.LedgerRecord, uploadedAt time.Time) ([][]any, error) {
	rows := make([][]any, 0, len(ledger))
	for _, rec := range ledger {
		var report any
		if len(rec.Issues) > 0 {
			raw, err := json.Marshal(validationReport{Severity: rec.Severity, Issues: rec.Issues})
			if err != nil {
				return nil, eris.Wrapf(err, "encode validation report for %s", rec.CompositeKey)
			}
			report = raw
		}

		var (
			overridden bool
			reason     any
			by         any
			decidedAt  any
		)
		if rec.Override != nil {
			overridden = true
			reason = nullable(rec.Override.Reason)
			by = nullable(rec.Override.ApprovedBy)
			decidedAt = rec.Override.DecidedAt
		}

		rows = append(rows, []any{
			rec.JobID,
			rec.FileVersion,
			rec.CompositeKey,
			rec.Block,
			rec.Lot,
			rec.Qualifier,
			rec.Card,
			rec.Location,
			rec.PropertyClass,
			rec.InspectorCode,
			dateOrNil(rec.MeasureDate),
			rec.InfoByCode,
			nullable(rec.ListerCode),
			dateOrNil(rec.ListDate),
			nullable(rec.PriceByCode),
			dateOrNil(rec.PriceDate),
			rec.ProjectStartDate,
			nullable(rec.SourceFileName),
			uploadedAt,
			report,
			rec.ImportSessionID,
			overridden,
			reason,
			by,
			decidedAt,
		})
	}
	return rows, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func dateOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
