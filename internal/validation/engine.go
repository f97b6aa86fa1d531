// Package validation decides whether a recorded inspection attempt counts.
//
// Each record is first screened for hard exclusions (unassigned inspector,
// inspection before the project start date, unknown inspector, no attempt),
// which route it straight to the missing-property audit. Records that pass
// are then checked against every soft rule; failures accumulate into one
// compound issue that a manager may override.
package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/stwalsh4118/fieldtrack/internal/codes"
	"github.com/stwalsh4118/fieldtrack/internal/models"
)

// UnassignedSentinel is the inspector code vendors export for parcels with
// no measuring inspector.
const UnassignedSentinel = "UNASSIGNED"

// Directory resolves inspector codes to employees.
type Directory interface {
	Lookup(code string) (models.Employee, bool)
}

// Result is the outcome of evaluating one record.
type Result struct {
	Inspector models.Employee
	Code      codes.CanonicalCode
	Category  codes.Category
	// Exclusion is empty unless a hard-exclusion rule fired.
	Exclusion models.MissingReason
	Issues    []string
}

// Excluded reports whether a hard-exclusion rule fired.
func (r Result) Excluded() bool {
	return r.Exclusion != ""
}

// Valid reports whether the record is ledger-eligible without review.
func (r Result) Valid() bool {
	return !r.Excluded() && len(r.Issues) == 0
}

// NeedsReview reports whether the record carries soft issues only.
func (r Result) NeedsReview() bool {
	return !r.Excluded() && len(r.Issues) > 0
}

// Engine evaluates records for one processing session.
type Engine struct {
	classifier *codes.Classifier
	directory  Directory
	startDate  time.Time
}

// NewEngine creates an engine bound to a job's classifier, the employee
// directory and the project start date.
func NewEngine(classifier *codes.Classifier, directory Directory, startDate time.Time) *Engine {
	return &Engine{
		classifier: classifier,
		directory:  directory,
		startDate:  DateOnly(startDate),
	}
}

// StartDate returns the project start date the engine compares against.
func (e *Engine) StartDate() time.Time {
	return e.startDate
}

// Evaluate applies every rule to rec. Hard exclusions are checked in a fixed
// order and stop evaluation; soft rules are all applied so their issues
// compound.
func (e *Engine) Evaluate(rec models.PropertyRecord) Result {
	var res Result

	inspector := strings.TrimSpace(rec.InspectorCode)
	if inspector == "" || strings.EqualFold(inspector, UnassignedSentinel) {
		res.Exclusion = models.ReasonUnassigned
		return res
	}

	if rec.MeasureDate != nil && DateOnly(*rec.MeasureDate).Before(e.startDate) {
		res.Exclusion = models.ReasonPreStartDate
		return res
	}

	emp, ok := e.directory.Lookup(inspector)
	if !ok {
		res.Exclusion = models.ReasonUnknownInspector
		return res
	}
	res.Inspector = emp

	if !HasAttempt(rec) {
		res.Exclusion = models.ReasonNoAttempt
		return res
	}

	res.Code, res.Category = e.classifier.ClassifyRaw(rec.InfoByCode)

	if res.Category == codes.CategoryUnclassified {
		res.Issues = append(res.Issues, fmt.Sprintf("Invalid InfoBy code: %s", displayCode(rec.InfoByCode)))
	}
	if rec.MeasureDate == nil {
		res.Issues = append(res.Issues, "Missing measure date")
	}
	res.Issues = append(res.Issues, listingIssues(rec, res.Code, res.Category)...)
	if emp.Type == models.InspectorResidential && models.IsCommercialClass(rec.ClassOrUnknown()) {
		res.Issues = append(res.Issues, "Residential inspector on commercial property")
	}
	if rec.ZeroImprovement && !rec.HasListing() {
		res.Issues = append(res.Issues, "Zero improvement property missing listing data")
	}

	return res
}

// HasAttempt reports whether any inspection field was recorded.
func HasAttempt(rec models.PropertyRecord) bool {
	return strings.TrimSpace(rec.InspectorCode) != "" ||
		rec.MeasureDate != nil ||
		strings.TrimSpace(rec.InfoByCode) != "" ||
		strings.TrimSpace(rec.ListerCode) != "" ||
		strings.TrimSpace(rec.PriceByCode) != ""
}

// listingIssues checks that listing data agrees with the code's category.
// Special codes are exempt.
func listingIssues(rec models.PropertyRecord, code codes.CanonicalCode, cat codes.Category) []string {
	switch cat {
	case codes.CategoryEntry:
		if !rec.HasListing() {
			return []string{fmt.Sprintf("Entry code %s but missing listing data", code)}
		}
	case codes.CategoryRefusal:
		if !rec.HasListing() {
			return []string{fmt.Sprintf("Refusal code %s but missing listing data", code)}
		}
	case codes.CategoryEstimation:
		if rec.HasAnyListing() {
			return []string{fmt.Sprintf("Estimation code %s but has listing data", code)}
		}
	}
	return nil
}

// Issue builds the compound validation issue for a record under review.
func Issue(rec models.PropertyRecord, res Result) models.ValidationIssue {
	return models.ValidationIssue{
		CompositeKey:  rec.Key(),
		Block:         rec.Block,
		Lot:           rec.Lot,
		Qualifier:     rec.Qualifier,
		Card:          rec.Card,
		Location:      rec.Location,
		PropertyClass: rec.ClassOrUnknown(),
		Inspector:     strings.TrimSpace(rec.InspectorCode),
		InfoByCode:    rec.InfoByCode,
		Severity:      models.SeverityFor(len(res.Issues)),
		Issues:        append([]string(nil), res.Issues...),
	}
}

// DateOnly truncates t to its UTC calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func displayCode(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "(none)"
	}
	return strings.TrimSpace(raw)
}
