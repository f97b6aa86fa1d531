package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/fieldtrack/internal/codes"
	"github.com/stwalsh4118/fieldtrack/internal/models"
	"github.com/stwalsh4118/fieldtrack/internal/validation"
)

var start = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

var directory = models.EmployeeDirectory{
	"AB": {Code: "AB", Name: "Ann", FullName: "Ann Baker", Type: models.InspectorResidential},
	"CD": {Code: "CD", Name: "Carl", FullName: "Carl Dunn", Type: models.InspectorCommercial},
	"EF": {Code: "EF", Name: "Eve", FullName: "Eve Ford", Type: models.InspectorManagement},
	"GH": {Code: "GH", Name: "Gus", Type: models.InspectorResidential},
}

func at(offset int, hour int) *time.Time {
	t := start.AddDate(0, 0, offset).Add(time.Duration(hour) * time.Hour)
	return &t
}

func record(inspector, class string, measured *time.Time) models.PropertyRecord {
	return models.PropertyRecord{
		InspectorCode: inspector,
		PropertyClass: class,
		MeasureDate:   measured,
	}
}

func result(inspector string, cat codes.Category) validation.Result {
	emp, _ := directory.Lookup(inspector)
	return validation.Result{Inspector: emp, Category: cat}
}

func include(agg *Aggregator, rec models.PropertyRecord, cat codes.Category, override bool) {
	agg.Observe(rec)
	agg.Include(rec, result(rec.InspectorCode, cat), override)
}

func findInspector(t *testing.T, a models.Analytics, code string) models.InspectorStats {
	t.Helper()
	for _, s := range a.Inspectors {
		if s.Code == code {
			return s
		}
	}
	require.Failf(t, "inspector not found", "code %s", code)
	return models.InspectorStats{}
}

func TestAggregator_FieldDaysAreDistinctDates(t *testing.T) {
	agg := NewAggregator(codes.VendorBRT, directory, start)

	for i := 0; i < 50; i++ {
		include(agg, record("AB", "2", at(0, i%10)), codes.CategoryEstimation, false)
	}
	include(agg, record("AB", "2", at(1, 0)), codes.CategoryEstimation, false)

	stats := findInspector(t, agg.Result(), "AB")
	assert.Equal(t, 51, stats.TotalInspected)
	assert.Equal(t, 2, stats.FieldDays)
	assert.Equal(t, 2, stats.ResidentialFieldDays)
	require.NotNil(t, stats.DailyAverage)
	assert.Equal(t, 26, *stats.DailyAverage)
}

func TestAggregator_GlobalEntryRateUsesResidentialTotals(t *testing.T) {
	agg := NewAggregator(codes.VendorBRT, directory, start)

	// AB: one entry out of one. GH: no entries out of three.
	include(agg, record("AB", "2", at(0, 0)), codes.CategoryEntry, false)
	include(agg, record("GH", "2", at(0, 0)), codes.CategoryEstimation, false)
	include(agg, record("GH", "3A", at(0, 0)), codes.CategoryEstimation, false)
	include(agg, record("GH", "2", at(0, 0)), codes.CategoryEstimation, false)

	a := agg.Result()
	assert.Equal(t, 100, findInspector(t, a, "AB").EntryRate)
	assert.Equal(t, 0, findInspector(t, a, "GH").EntryRate)
	assert.Equal(t, 25, a.Job.JobEntryRate)
}

func TestAggregator_GlobalRateCountsUninspectedResidentialRecords(t *testing.T) {
	agg := NewAggregator(codes.VendorBRT, directory, start)

	include(agg, record("AB", "2", at(0, 0)), codes.CategoryRefusal, false)
	agg.Observe(record("", "2", nil))

	a := agg.Result()
	assert.Equal(t, 50, a.Job.JobRefusalRate)
	assert.Equal(t, 2, a.ClassBreakdown["2"].Total)
	assert.Equal(t, 1, a.ClassBreakdown["2"].Inspected)
}

func TestAggregator_EntryCreditGoesToLister(t *testing.T) {
	agg := NewAggregator(codes.VendorBRT, directory, start)
	rec := record("AB", "2", at(0, 0))
	rec.ListerCode = "GH"

	include(agg, rec, codes.CategoryEntry, false)

	a := agg.Result()
	ab := findInspector(t, a, "AB")
	gh := findInspector(t, a, "GH")
	assert.Equal(t, 1, ab.TotalInspected)
	assert.Equal(t, 0, ab.Entry)
	assert.Equal(t, 1, gh.Entry)
	assert.Equal(t, 0, gh.TotalInspected)
	assert.Equal(t, "Gus", gh.Name)
	assert.Equal(t, 1, a.ClassBreakdown["2"].Entry)
}

func TestAggregator_ListerRatesUseCreditedAttempts(t *testing.T) {
	agg := NewAggregator(codes.VendorBRT, directory, start)

	// GH measures one estimation and lists two of AB's entries.
	include(agg, record("GH", "2", at(0, 0)), codes.CategoryEstimation, false)
	for i := 0; i < 2; i++ {
		rec := record("AB", "2", at(i, 0))
		rec.ListerCode = "GH"
		include(agg, rec, codes.CategoryEntry, false)
	}
	// A lister with no measured work of its own.
	listed := record("AB", "3A", at(0, 0))
	listed.ListerCode = "QQ"
	include(agg, listed, codes.CategoryRefusal, false)

	a := agg.Result()
	gh := findInspector(t, a, "GH")
	assert.Equal(t, 2, gh.Entry)
	assert.Equal(t, 3, gh.CreditedResidential)
	assert.Equal(t, 67, gh.EntryRate)

	ab := findInspector(t, a, "AB")
	assert.Equal(t, 3, ab.ResidentialInspected)
	assert.Equal(t, 0, ab.CreditedResidential)
	assert.Equal(t, 0, ab.EntryRate)

	qq := findInspector(t, a, "QQ")
	assert.Equal(t, 1, qq.CreditedResidential)
	assert.Equal(t, 100, qq.RefusalRate)

	for _, s := range a.Inspectors {
		assert.GreaterOrEqual(t, s.EntryRate, 0, s.Code)
		assert.LessOrEqual(t, s.EntryRate, 100, s.Code)
		assert.GreaterOrEqual(t, s.RefusalRate, 0, s.Code)
		assert.LessOrEqual(t, s.RefusalRate, 100, s.Code)
	}
}

func TestAggregator_UnknownListerStillCredited(t *testing.T) {
	agg := NewAggregator(codes.VendorBRT, directory, start)
	rec := record("AB", "2", at(0, 0))
	rec.ListerCode = "QQ"

	include(agg, rec, codes.CategoryRefusal, false)

	qq := findInspector(t, agg.Result(), "QQ")
	assert.Equal(t, 1, qq.Refusal)
	assert.Equal(t, "QQ", qq.Name)
	assert.Equal(t, models.InspectorUntyped, qq.Type)
}

func TestAggregator_EntryNotCountedOnNonResidentialClass(t *testing.T) {
	agg := NewAggregator(codes.VendorBRT, directory, start)

	include(agg, record("CD", "4A", at(0, 0)), codes.CategoryEntry, false)

	a := agg.Result()
	assert.Equal(t, 0, findInspector(t, a, "CD").Entry)
	assert.Equal(t, 0, a.ClassBreakdown["4A"].Entry)
	assert.Equal(t, 1, a.ClassBreakdown["4A"].Inspected)
}

func TestAggregator_NumericDialectPricing(t *testing.T) {
	agg := NewAggregator(codes.VendorBRT, directory, start)

	priced := record("CD", "4A", at(0, 0))
	priced.PriceByCode = "CD"
	priced.PriceDate = at(2, 0)
	include(agg, priced, codes.CategoryEntry, false)

	early := record("CD", "4B", at(0, 0))
	early.PriceByCode = "CD"
	early.PriceDate = at(-3, 0)
	include(agg, early, codes.CategoryEntry, false)

	include(agg, record("CD", "4C", at(1, 0)), codes.CategoryPriced, false)

	a := agg.Result()
	cd := findInspector(t, a, "CD")
	assert.Equal(t, 3, cd.CommercialInspected)
	assert.Equal(t, 1, cd.Priced)
	assert.Equal(t, 1, cd.PricingDays)
	assert.Equal(t, 2, cd.CommercialFieldDays)
	require.NotNil(t, cd.CommercialAverage)
	assert.Equal(t, 2, *cd.CommercialAverage)
	require.NotNil(t, cd.PricingAverage)
	assert.Equal(t, 1, *cd.PricingAverage)
	assert.Nil(t, cd.DailyAverage)

	assert.Equal(t, 3, a.Job.CommercialInspections)
	assert.Equal(t, 1, a.Job.CommercialPricing)
	assert.Equal(t, 3, a.Job.TotalCommercialProperties)
	assert.Equal(t, 100, a.Job.CommercialCompletePercent)
	assert.Equal(t, 33, a.Job.PricingCompletePercent)
}

func TestAggregator_AlphabeticDialectPricing(t *testing.T) {
	agg := NewAggregator(codes.VendorMicrosystems, directory, start)

	include(agg, record("CD", "4A", at(0, 0)), codes.CategoryPriced, false)
	withFields := record("CD", "4A", at(0, 0))
	withFields.PriceByCode = "CD"
	withFields.PriceDate = at(0, 0)
	include(agg, withFields, codes.CategoryEntry, false)

	cd := findInspector(t, agg.Result(), "CD")
	assert.Equal(t, 1, cd.Priced)
	assert.Equal(t, 0, cd.PricingDays)
	assert.Nil(t, cd.PricingAverage)
	require.NotNil(t, cd.CommercialAverage)
}

func TestAggregator_ManagementAverage(t *testing.T) {
	agg := NewAggregator(codes.VendorBRT, directory, start)

	include(agg, record("EF", "2", at(0, 0)), codes.CategoryEstimation, false)
	include(agg, record("EF", "4A", at(0, 0)), codes.CategoryEstimation, false)
	include(agg, record("EF", "15A", at(1, 0)), codes.CategoryEstimation, false)

	ef := findInspector(t, agg.Result(), "EF")
	require.NotNil(t, ef.DailyAverage)
	assert.Equal(t, 2, *ef.DailyAverage)
	assert.Nil(t, ef.CommercialAverage)
}

func TestAggregator_OverridesAreAdditive(t *testing.T) {
	agg := NewAggregator(codes.VendorBRT, directory, start)

	include(agg, record("AB", "2", at(0, 0)), codes.CategoryEstimation, false)
	include(agg, record("AB", "2", at(0, 0)), codes.CategoryEstimation, true)

	a := agg.Result()
	assert.Equal(t, 1, a.Job.ValidInspections)
	assert.Equal(t, 1, a.Job.OverridesAccepted)
	assert.Equal(t, 2, a.Job.TotalInspections)
	assert.Equal(t, 2, a.ClassBreakdown["2"].Billable)
	assert.Equal(t, 1, a.ClassBreakdown["2"].OverrideInspected)
	assert.Equal(t, 1, findInspector(t, a, "AB").OverrideInspected)
}

func TestAggregator_UntrackedClassCountsRecordOnly(t *testing.T) {
	agg := NewAggregator(codes.VendorBRT, directory, start)

	include(agg, record("AB", "", at(0, 0)), codes.CategoryEstimation, false)

	a := agg.Result()
	assert.Equal(t, 1, a.Job.TotalRecords)
	assert.Equal(t, 0, a.Billing.TotalBillable)
	assert.Len(t, a.ClassBreakdown, len(models.AllClasses))
}

func TestAggregator_ResultIsRepeatable(t *testing.T) {
	agg := NewAggregator(codes.VendorBRT, directory, start)
	include(agg, record("AB", "2", at(0, 0)), codes.CategoryEntry, false)

	assert.Equal(t, agg.Result(), agg.Result())
}

func TestBilling_Groups(t *testing.T) {
	classes := map[string]models.ClassBreakdown{
		"2":   {Total: 10, Billable: 4},
		"4A":  {Total: 3, Billable: 1},
		"4B":  {Total: 2, Billable: 2},
		"15C": {Total: 5, Billable: 5},
		"5A":  {Total: 1},
		"6B":  {Total: 2, Billable: 1},
	}

	rollup := Billing(classes)

	assert.Equal(t, models.BillingGroup{Total: 5, Billable: 3}, rollup.Commercial)
	assert.Equal(t, models.BillingGroup{Total: 5, Billable: 5}, rollup.Exempt)
	assert.Equal(t, models.BillingGroup{Total: 1, Billable: 0}, rollup.Railroad)
	assert.Equal(t, models.BillingGroup{Total: 2, Billable: 1}, rollup.PersonalProperty)
	assert.Equal(t, 13, rollup.TotalBillable)
	assert.Equal(t, models.BillingGroup{Total: 10, Billable: 4}, rollup.ByClass["2"])
}

func TestPercentAndAverage(t *testing.T) {
	assert.Equal(t, 0, Percent(1, 0))
	assert.Equal(t, 33, Percent(1, 3))
	assert.Equal(t, 67, Percent(2, 3))
	assert.Equal(t, 50, Percent(1, 2))
	assert.Equal(t, 3, Average(5, 2))
	assert.Equal(t, 2, Average(7, 4))
	assert.Equal(t, 0, Average(3, 0))
}
