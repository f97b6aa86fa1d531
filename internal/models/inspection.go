package models

import (
	"strings"
	"time"
)

// Severity grades a compound validation issue by how many rules failed.
type Severity string

const (
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// SeverityFor returns high when more than two issues accumulated on a record.
func SeverityFor(issueCount int) Severity {
	if issueCount > 2 {
		return SeverityHigh
	}
	return SeverityMedium
}

// ValidationIssue is the single compound issue record for one property.
type ValidationIssue struct {
	Decision      *OverrideDecision `json:"decision,omitempty"`
	CompositeKey  string            `json:"compositeKey"`
	Block         string            `json:"block"`
	Lot           string            `json:"lot"`
	Qualifier     string            `json:"qualifier,omitempty"`
	Card          string            `json:"card,omitempty"`
	Location      string            `json:"location,omitempty"`
	PropertyClass string            `json:"propertyClass"`
	Inspector     string            `json:"inspector"`
	InfoByCode    string            `json:"infoByCode,omitempty"`
	Severity      Severity          `json:"severity"`
	Issues        []string          `json:"issues"`
}

// Message joins the accumulated issues into one line.
func (v ValidationIssue) Message() string {
	return strings.Join(v.Issues, " | ")
}

// OverrideDecision is a manager's ruling on a flagged record. Accepted
// decisions make the record billable and ledger-eligible; rejected decisions
// leave it excluded.
type OverrideDecision struct {
	DecidedAt    time.Time `json:"decidedAt"`
	CompositeKey string    `json:"compositeKey"`
	Reason       string    `json:"reason,omitempty"`
	ApprovedBy   string    `json:"approvedBy"`
	Accepted     bool      `json:"accepted"`
}

// MissingReason is the single reason a record never reached the ledger.
type MissingReason string

const (
	ReasonUnassigned       MissingReason = "unassigned_inspector"
	ReasonPreStartDate     MissingReason = "pre_start_date"
	ReasonUnknownInspector MissingReason = "unknown_inspector"
	ReasonNoAttempt        MissingReason = "no_attempt"
	ReasonFailedValidation MissingReason = "failed_validation"
)

// Label returns the operator-facing description of the reason.
func (r MissingReason) Label() string {
	switch r {
	case ReasonUnassigned:
		return "Inspector UNASSIGNED"
	case ReasonPreStartDate:
		return "Inspection date before project start date"
	case ReasonUnknownInspector:
		return "Inspector not found in employee database"
	case ReasonNoAttempt:
		return "No inspection attempt - completely uninspected"
	case ReasonFailedValidation:
		return "Failed validation"
	default:
		return string(r)
	}
}

// MissingProperty explains why one record is absent from the ledger batch.
type MissingProperty struct {
	MeasureDate      *time.Time    `json:"measureDate,omitempty"`
	CompositeKey     string        `json:"compositeKey"`
	Block            string        `json:"block"`
	Lot              string        `json:"lot"`
	Qualifier        string        `json:"qualifier,omitempty"`
	Location         string        `json:"location,omitempty"`
	PropertyClass    string        `json:"propertyClass"`
	Inspector        string        `json:"inspector"`
	InfoByCode       string        `json:"infoByCode,omitempty"`
	Reason           MissingReason `json:"reason"`
	ValidationIssues []string      `json:"validationIssues"`
}

// LedgerRecord is one accepted inspection, upserted by
// (job, file version, composite key).
type LedgerRecord struct {
	MeasureDate      *time.Time        `json:"measureDate,omitempty"`
	ListDate         *time.Time        `json:"listDate,omitempty"`
	PriceDate        *time.Time        `json:"priceDate,omitempty"`
	Override         *OverrideDecision `json:"override,omitempty"`
	ProjectStartDate time.Time         `json:"projectStartDate"`
	JobID            string            `json:"jobId"`
	CompositeKey     string            `json:"compositeKey"`
	ImportSessionID  string            `json:"importSessionId"`
	Block            string            `json:"block"`
	Lot              string            `json:"lot"`
	Qualifier        string            `json:"qualifier"`
	Card             string            `json:"card"`
	Location         string            `json:"location"`
	PropertyClass    string            `json:"propertyClass"`
	InspectorCode    string            `json:"inspectorCode"`
	InfoByCode       string            `json:"infoByCode"`
	ListerCode       string            `json:"listerCode,omitempty"`
	PriceByCode      string            `json:"priceByCode,omitempty"`
	SourceFileName   string            `json:"sourceFileName,omitempty"`
	Severity         Severity          `json:"severity,omitempty"`
	Issues           []string          `json:"issues,omitempty"`
	FileVersion      int               `json:"fileVersion"`
}
