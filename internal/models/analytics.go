package models

// InspectorStats is the per-inspector rollup for one processing session.
// Averages are nil when the formula does not apply to the inspector's type.
// CreditedResidential counts the residential attempts whose entry or refusal
// outcome is credited to this inspector; EntryRate and RefusalRate are taken
// over it.
type InspectorStats struct {
	DailyAverage         *int          `json:"dailyAverage,omitempty"`
	CommercialAverage    *int          `json:"commercialAverage,omitempty"`
	PricingAverage       *int          `json:"pricingAverage,omitempty"`
	Code                 string        `json:"code"`
	Name                 string        `json:"name"`
	FullName             string        `json:"fullName"`
	Type                 InspectorType `json:"type"`
	TotalInspected       int           `json:"totalInspected"`
	ResidentialInspected int           `json:"residentialInspected"`
	CommercialInspected  int           `json:"commercialInspected"`
	OverrideInspected    int           `json:"overrideInspected"`
	CreditedResidential  int           `json:"creditedResidential"`
	Entry                int           `json:"entry"`
	Refusal              int           `json:"refusal"`
	Priced               int           `json:"priced"`
	FieldDays            int           `json:"fieldDays"`
	ResidentialFieldDays int           `json:"residentialFieldDays"`
	CommercialFieldDays  int           `json:"commercialFieldDays"`
	PricingDays          int           `json:"pricingDays"`
	EntryRate            int           `json:"entryRate"`
	RefusalRate          int           `json:"refusalRate"`
}

// ClassBreakdown counts one property class. Total counts every record of the
// class; the remaining counters count only ledger-bound inspections.
type ClassBreakdown struct {
	Total             int `json:"total"`
	Inspected         int `json:"inspected"`
	OverrideInspected int `json:"overrideInspected"`
	Entry             int `json:"entry"`
	Refusal           int `json:"refusal"`
	Priced            int `json:"priced"`
	Billable          int `json:"billable"`
}

// BillingGroup is one billing bucket.
type BillingGroup struct {
	Total    int `json:"total"`
	Billable int `json:"billable"`
}

// BillingRollup groups class counts into billing buckets.
type BillingRollup struct {
	ByClass          map[string]BillingGroup `json:"byClass"`
	Commercial       BillingGroup            `json:"commercial"`
	Exempt           BillingGroup            `json:"exempt"`
	Railroad         BillingGroup            `json:"railroad"`
	PersonalProperty BillingGroup            `json:"personalProperty"`
	TotalBillable    int                     `json:"totalBillable"`
}

// JobMetrics are the job-level totals. ValidInspections is the base count
// from fully valid records; OverridesAccepted is always reported separately
// so TotalInspections = ValidInspections + OverridesAccepted.
type JobMetrics struct {
	TotalRecords              int `json:"totalRecords"`
	ValidInspections          int `json:"validInspections"`
	OverridesAccepted         int `json:"overridesAccepted"`
	TotalInspections          int `json:"totalInspections"`
	ValidationIssues          int `json:"validationIssues"`
	JobEntryRate              int `json:"jobEntryRate"`
	JobRefusalRate            int `json:"jobRefusalRate"`
	CommercialInspections     int `json:"commercialInspections"`
	CommercialPricing         int `json:"commercialPricing"`
	TotalCommercialProperties int `json:"totalCommercialProperties"`
	CommercialCompletePercent int `json:"commercialCompletePercent"`
	PricingCompletePercent    int `json:"pricingCompletePercent"`
}

// InspectorIssueCount is one row of the validation report summary.
type InspectorIssueCount struct {
	InspectorCode string `json:"inspectorCode"`
	InspectorName string `json:"inspectorName"`
	TotalIssues   int    `json:"totalIssues"`
}

// ValidationReport lists every compound issue raised in a session.
type ValidationReport struct {
	InspectorBreakdown []InspectorIssueCount `json:"inspectorBreakdown"`
	Issues             []ValidationIssue     `json:"issues"`
	TotalInspectors    int                   `json:"totalInspectors"`
	TotalIssues        int                   `json:"totalIssues"`
}

// MissingPropertyReport lists every record that did not reach the ledger.
type MissingPropertyReport struct {
	ByReason              map[MissingReason]int `json:"byReason"`
	ByInspector           map[string]int        `json:"byInspector"`
	Entries               []MissingProperty     `json:"entries"`
	TotalMissing          int                   `json:"totalMissing"`
	UninspectedCount      int                   `json:"uninspectedCount"`
	ValidationFailedCount int                   `json:"validationFailedCount"`
}

// Analytics is the aggregate bundle persisted per session.
type Analytics struct {
	Inspectors     []InspectorStats          `json:"inspectors"`
	ClassBreakdown map[string]ClassBreakdown `json:"classBreakdown"`
	Billing        BillingRollup             `json:"billing"`
	Job            JobMetrics                `json:"job"`
}

// WorkflowBundle is everything persisted to the analytics store when a
// session commits.
type WorkflowBundle struct {
	Overrides         map[string]OverrideDecision `json:"overrides"`
	Analytics         Analytics                   `json:"analytics"`
	ValidationReport  ValidationReport            `json:"validationReport"`
	MissingProperties MissingPropertyReport       `json:"missingProperties"`
	SessionID         string                      `json:"sessionId"`
	VendorType        string                      `json:"vendorType"`
	FileVersion       int                         `json:"fileVersion"`
}
