package session

import (
	"strings"

	"github.com/stwalsh4118/fieldtrack/internal/analytics"
	"github.com/stwalsh4118/fieldtrack/internal/models"
	"github.com/stwalsh4118/fieldtrack/internal/validation"
)

// defaultCard is stamped on ledger records whose source row had no card.
const defaultCard = "1"

// Outcome is the reconciled result of a session: the ledger batch and the
// bundle handed to the analytics store in one commit.
type Outcome struct {
	Ledger []models.LedgerRecord
	Bundle models.WorkflowBundle
}

// compute folds the evaluation results and current decisions into a fresh
// outcome. It never reads a previous outcome.
func (s *ProcessingSession) compute() *Outcome {
	agg := analytics.NewAggregator(s.classifier.Dialect(), s.directory, s.startDate)
	audit := newAuditor()
	report := newIssueReport(s.directory)
	ledger := make([]models.LedgerRecord, 0, len(s.records))
	overrides := make(map[string]models.OverrideDecision)

	for i, rec := range s.records {
		res := s.results[i]
		agg.Observe(rec)

		switch {
		case res.Excluded():
			audit.exclude(rec, res.Exclusion, nil)

		case res.Valid():
			agg.Include(rec, res, false)
			ledger = append(ledger, s.ledgerRecord(rec, res, nil))

		default:
			issue := validation.Issue(rec, res)
			d, decided := s.decisions[issue.CompositeKey]
			if decided {
				decision := d
				issue.Decision = &decision
				overrides[issue.CompositeKey] = d
			}
			report.add(issue)

			if decided && d.Accepted {
				agg.Include(rec, res, true)
				ledger = append(ledger, s.ledgerRecord(rec, res, issue.Decision))
				continue
			}
			audit.exclude(rec, models.ReasonFailedValidation, res.Issues)
		}
	}

	result := agg.Result()
	result.Job.ValidationIssues = len(report.issues)

	return &Outcome{
		Ledger: ledger,
		Bundle: models.WorkflowBundle{
			SessionID:         s.id.String(),
			VendorType:        s.config.Vendor.String(),
			FileVersion:       s.fileVersion,
			Analytics:         result,
			ValidationReport:  report.build(),
			MissingProperties: audit.build(),
			Overrides:         overrides,
		},
	}
}

func (s *ProcessingSession) ledgerRecord(rec models.PropertyRecord, res validation.Result, decision *models.OverrideDecision) models.LedgerRecord {
	card := rec.Card
	if card == "" {
		card = defaultCard
	}
	lr := models.LedgerRecord{
		JobID:            s.jobID,
		FileVersion:      s.fileVersion,
		CompositeKey:     rec.Key(),
		ImportSessionID:  s.id.String(),
		Block:            rec.Block,
		Lot:              rec.Lot,
		Qualifier:        rec.Qualifier,
		Card:             card,
		Location:         rec.Location,
		PropertyClass:    rec.ClassOrUnknown(),
		InspectorCode:    strings.TrimSpace(rec.InspectorCode),
		MeasureDate:      rec.MeasureDate,
		InfoByCode:       strings.TrimSpace(rec.InfoByCode),
		ListerCode:       strings.TrimSpace(rec.ListerCode),
		ListDate:         rec.ListDate,
		PriceByCode:      strings.TrimSpace(rec.PriceByCode),
		PriceDate:        rec.PriceDate,
		ProjectStartDate: s.startDate,
		SourceFileName:   rec.SourceFileName,
		Override:         decision,
	}
	if len(res.Issues) > 0 {
		lr.Issues = append([]string(nil), res.Issues...)
		lr.Severity = models.SeverityFor(len(res.Issues))
	}
	return lr
}
