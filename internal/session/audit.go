package session

import (
	"sort"
	"strings"

	"github.com/stwalsh4118/fieldtrack/internal/models"
	"github.com/stwalsh4118/fieldtrack/internal/validation"
)

// auditor collects one missing-property entry per record that does not reach
// the ledger.
type auditor struct {
	entries []models.MissingProperty
}

func newAuditor() *auditor {
	return &auditor{}
}

func (a *auditor) exclude(rec models.PropertyRecord, reason models.MissingReason, issues []string) {
	inspector := strings.TrimSpace(rec.InspectorCode)
	if inspector == "" {
		inspector = validation.UnassignedSentinel
	}
	a.entries = append(a.entries, models.MissingProperty{
		CompositeKey:     rec.Key(),
		Block:            rec.Block,
		Lot:              rec.Lot,
		Qualifier:        rec.Qualifier,
		Location:         rec.Location,
		PropertyClass:    rec.ClassOrUnknown(),
		Inspector:        inspector,
		InfoByCode:       rec.InfoByCode,
		MeasureDate:      rec.MeasureDate,
		Reason:           reason,
		ValidationIssues: append([]string{}, issues...),
	})
}

func (a *auditor) build() models.MissingPropertyReport {
	report := models.MissingPropertyReport{
		ByReason:     make(map[models.MissingReason]int),
		ByInspector:  make(map[string]int),
		Entries:      make([]models.MissingProperty, 0, len(a.entries)),
		TotalMissing: len(a.entries),
	}
	for _, e := range a.entries {
		report.Entries = append(report.Entries, e)
		report.ByReason[e.Reason]++
		report.ByInspector[e.Inspector]++
		switch e.Reason {
		case models.ReasonNoAttempt:
			report.UninspectedCount++
		case models.ReasonFailedValidation:
			report.ValidationFailedCount++
		}
	}
	return report
}

// issueReport groups compound issues by inspector.
type issueReport struct {
	directory validation.Directory
	issues    []models.ValidationIssue
}

func newIssueReport(directory validation.Directory) *issueReport {
	return &issueReport{directory: directory}
}

func (r *issueReport) add(issue models.ValidationIssue) {
	r.issues = append(r.issues, issue)
}

func (r *issueReport) build() models.ValidationReport {
	counts := make(map[string]int)
	for _, issue := range r.issues {
		counts[issue.Inspector]++
	}
	inspectors := make([]string, 0, len(counts))
	for code := range counts {
		inspectors = append(inspectors, code)
	}
	sort.Strings(inspectors)

	breakdown := make([]models.InspectorIssueCount, 0, len(inspectors))
	for _, code := range inspectors {
		name := code
		if emp, ok := r.directory.Lookup(code); ok && emp.FullName != "" {
			name = emp.FullName
		}
		breakdown = append(breakdown, models.InspectorIssueCount{
			InspectorCode: code,
			InspectorName: name,
			TotalIssues:   counts[code],
		})
	}

	issues := make([]models.ValidationIssue, len(r.issues))
	copy(issues, r.issues)
	return models.ValidationReport{
		InspectorBreakdown: breakdown,
		Issues:             issues,
		TotalInspectors:    len(breakdown),
		TotalIssues:        len(issues),
	}
}
