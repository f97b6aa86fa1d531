// Package export writes a session's validation and missing-property reports
// as an XLSX workbook.
package export

import (
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stwalsh4118/fieldtrack/internal/models"
	"github.com/tealeg/xlsx/v2"
)

// Sheet names in the exported workbook.
const (
	SheetSummary    = "Summary"
	SheetIssues     = "Validation Issues"
	SheetMissing    = "Missing Properties"
	SheetInspectors = "Inspectors"
)

var (
	issueHeader = []string{
		"Composite Key", "Block", "Lot", "Qualifier", "Card", "Location", "Class",
		"Inspector", "InfoBy", "Severity", "Issues", "Decision", "Approved By", "Reason",
	}
	missingHeader = []string{
		"Composite Key", "Block", "Lot", "Qualifier", "Location", "Class",
		"Inspector", "InfoBy", "Measure Date", "Reason", "Validation Issues",
	}
	inspectorHeader = []string{
		"Code", "Name", "Type", "Total", "Residential", "Commercial", "Overrides",
		"Credited Residential", "Entry", "Refusal", "Priced", "Field Days", "Entry Rate", "Refusal Rate",
		"Daily Avg", "Commercial Avg", "Pricing Avg",
	}
)

// Workbook builds the report workbook for bundle.
func Workbook(bundle models.WorkflowBundle) (*xlsx.File, error) {
	f := xlsx.NewFile()

	if err := addSummary(f, bundle); err != nil {
		return nil, err
	}
	if err := addIssues(f, bundle.ValidationReport); err != nil {
		return nil, err
	}
	if err := addMissing(f, bundle.MissingProperties); err != nil {
		return nil, err
	}
	if err := addInspectors(f, bundle.Analytics.Inspectors); err != nil {
		return nil, err
	}
	return f, nil
}

// Write encodes the workbook for bundle to w.
func Write(w io.Writer, bundle models.WorkflowBundle) error {
	f, err := Workbook(bundle)
	if err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "xlsx: write workbook")
	}
	return nil
}

// WriteFile saves the workbook for bundle at path.
func WriteFile(path string, bundle models.WorkflowBundle) error {
	f, err := Workbook(bundle)
	if err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", path)
	}
	return nil
}

// FileName is the suggested download name for a session's workbook.
func FileName(bundle models.WorkflowBundle) string {
	return "inspection-report-v" + strconv.Itoa(bundle.FileVersion) + "-" + bundle.SessionID + ".xlsx"
}

func addSummary(f *xlsx.File, bundle models.WorkflowBundle) error {
	sheet, err := f.AddSheet(SheetSummary)
	if err != nil {
		return eris.Wrap(err, "xlsx: add summary sheet")
	}
	job := bundle.Analytics.Job
	missing := bundle.MissingProperties

	rows := [][2]interface{}{
		{"Session", bundle.SessionID},
		{"Vendor", bundle.VendorType},
		{"File Version", bundle.FileVersion},
		{"Total Records", job.TotalRecords},
		{"Valid Inspections", job.ValidInspections},
		{"Overrides Accepted", job.OverridesAccepted},
		{"Total Inspections", job.TotalInspections},
		{"Validation Issues", job.ValidationIssues},
		{"Job Entry Rate %", job.JobEntryRate},
		{"Job Refusal Rate %", job.JobRefusalRate},
		{"Commercial Complete %", job.CommercialCompletePercent},
		{"Pricing Complete %", job.PricingCompletePercent},
		{"Total Billable", bundle.Analytics.Billing.TotalBillable},
		{"Missing Properties", missing.TotalMissing},
		{"Uninspected", missing.UninspectedCount},
		{"Failed Validation", missing.ValidationFailedCount},
	}
	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().SetString(r[0].(string))
		setCell(row.AddCell(), r[1])
	}

	reasons := make([]models.MissingReason, 0, len(missing.ByReason))
	for reason := range missing.ByReason {
		reasons = append(reasons, reason)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
	for _, reason := range reasons {
		row := sheet.AddRow()
		row.AddCell().SetString("Missing: " + reason.Label())
		row.AddCell().SetInt(missing.ByReason[reason])
	}
	return nil
}

func addIssues(f *xlsx.File, report models.ValidationReport) error {
	sheet, err := f.AddSheet(SheetIssues)
	if err != nil {
		return eris.Wrap(err, "xlsx: add issues sheet")
	}
	addHeader(sheet, issueHeader)

	for _, issue := range report.Issues {
		decision, approver, reason := "pending", "", ""
		if d := issue.Decision; d != nil {
			decision = "rejected"
			if d.Accepted {
				decision = "accepted"
			}
			approver, reason = d.ApprovedBy, d.Reason
		}
		addStrings(sheet.AddRow(),
			issue.CompositeKey, issue.Block, issue.Lot, issue.Qualifier, issue.Card, issue.Location,
			issue.PropertyClass, issue.Inspector, issue.InfoByCode, string(issue.Severity),
			issue.Message(), decision, approver, reason,
		)
	}
	return nil
}

func addMissing(f *xlsx.File, report models.MissingPropertyReport) error {
	sheet, err := f.AddSheet(SheetMissing)
	if err != nil {
		return eris.Wrap(err, "xlsx: add missing sheet")
	}
	addHeader(sheet, missingHeader)

	for _, m := range report.Entries {
		measured := ""
		if m.MeasureDate != nil {
			measured = m.MeasureDate.Format(time.DateOnly)
		}
		addStrings(sheet.AddRow(),
			m.CompositeKey, m.Block, m.Lot, m.Qualifier, m.Location, m.PropertyClass,
			m.Inspector, m.InfoByCode, measured, m.Reason.Label(),
			strings.Join(m.ValidationIssues, " | "),
		)
	}
	return nil
}

func addInspectors(f *xlsx.File, inspectors []models.InspectorStats) error {
	sheet, err := f.AddSheet(SheetInspectors)
	if err != nil {
		return eris.Wrap(err, "xlsx: add inspectors sheet")
	}
	addHeader(sheet, inspectorHeader)

	for _, s := range inspectors {
		row := sheet.AddRow()
		addStrings(row, s.Code, s.Name, string(s.Type))
		for _, n := range []int{
			s.TotalInspected, s.ResidentialInspected, s.CommercialInspected, s.OverrideInspected,
			s.CreditedResidential, s.Entry, s.Refusal, s.Priced, s.FieldDays, s.EntryRate, s.RefusalRate,
		} {
			row.AddCell().SetInt(n)
		}
		for _, avg := range []*int{s.DailyAverage, s.CommercialAverage, s.PricingAverage} {
			cell := row.AddCell()
			if avg != nil {
				cell.SetInt(*avg)
			}
		}
	}
	return nil
}

func addHeader(sheet *xlsx.Sheet, header []string) {
	row := sheet.AddRow()
	for _, h := range header {
		cell := row.AddCell()
		cell.SetString(h)
		style := xlsx.NewStyle()
		style.Font.Bold = true
		cell.SetStyle(style)
	}
}

func addStrings(row *xlsx.Row, values ...string) {
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func setCell(cell *xlsx.Cell, v interface{}) {
	switch val := v.(type) {
	case int:
		cell.SetInt(val)
	case string:
		cell.SetString(val)
	}
}
