// Package analytics folds evaluated inspection records into per-inspector
// statistics, per-class breakdowns, the billing rollup and job-level metrics.
package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/stwalsh4118/fieldtrack/internal/codes"
	"github.com/stwalsh4118/fieldtrack/internal/models"
	"github.com/stwalsh4118/fieldtrack/internal/validation"
)

const dayLayout = "2006-01-02"

// daySet holds distinct calendar dates.
type daySet map[string]struct{}

func (d daySet) add(t *time.Time) {
	if t == nil {
		return
	}
	d[t.UTC().Format(dayLayout)] = struct{}{}
}

type inspectorAccumulator struct {
	stats           models.InspectorStats
	allDays         daySet
	residentialDays daySet
	commercialDays  daySet
	pricingDays     daySet
}

// Aggregator accumulates the analytics for one processing session. It is not
// safe for concurrent use; a session folds its records in retrieval order.
type Aggregator struct {
	directory  validation.Directory
	classes    map[string]*models.ClassBreakdown
	inspectors map[string]*inspectorAccumulator
	startDate  time.Time
	dialect    codes.VendorDialect
	records    int
	valid      int
	overrides  int
}

// NewAggregator creates an aggregator with a zeroed counter for every tracked
// property class.
func NewAggregator(dialect codes.VendorDialect, directory validation.Directory, startDate time.Time) *Aggregator {
	classes := make(map[string]*models.ClassBreakdown, len(models.AllClasses))
	for _, class := range models.AllClasses {
		classes[class] = &models.ClassBreakdown{}
	}
	return &Aggregator{
		directory:  directory,
		classes:    classes,
		inspectors: make(map[string]*inspectorAccumulator),
		startDate:  validation.DateOnly(startDate),
		dialect:    dialect,
	}
}

// Observe counts rec toward its class total. Every record in the session is
// observed, whether or not it reaches the ledger.
func (a *Aggregator) Observe(rec models.PropertyRecord) {
	a.records++
	if cb, ok := a.classes[rec.ClassOrUnknown()]; ok {
		cb.Total++
	}
}

// Include folds a ledger-bound record into the inspector and class counters.
// override marks records admitted by an accepted override decision; they are
// counted in the same totals and also in the separate override counters.
func (a *Aggregator) Include(rec models.PropertyRecord, res validation.Result, override bool) {
	if override {
		a.overrides++
	} else {
		a.valid++
	}

	code := strings.TrimSpace(rec.InspectorCode)
	acc := a.accumulator(code, res.Inspector)
	class := rec.ClassOrUnknown()
	cb := a.classes[class]

	if cb != nil {
		cb.Inspected++
		cb.Billable++
		if override {
			cb.OverrideInspected++
		}
	}

	acc.stats.TotalInspected++
	if override {
		acc.stats.OverrideInspected++
	}
	acc.allDays.add(rec.MeasureDate)

	if models.IsResidentialClass(class) {
		acc.stats.ResidentialInspected++
		acc.residentialDays.add(rec.MeasureDate)

		credited := a.creditee(rec, code, acc)
		credited.stats.CreditedResidential++
		switch res.Category {
		case codes.CategoryEntry:
			credited.stats.Entry++
			if cb != nil {
				cb.Entry++
			}
		case codes.CategoryRefusal:
			credited.stats.Refusal++
			if cb != nil {
				cb.Refusal++
			}
		}
	}

	if models.IsCommercialClass(class) {
		acc.stats.CommercialInspected++
		acc.commercialDays.add(rec.MeasureDate)

		if a.priced(rec, res) {
			acc.stats.Priced++
			if a.dialect == codes.VendorBRT {
				acc.pricingDays.add(rec.PriceDate)
			}
			if cb != nil {
				cb.Priced++
			}
		}
	}
}

// priced reports whether a commercial inspection counts as priced. The
// numeric dialect records pricing in dedicated fields; the alphabetic dialect
// marks it with a priced InfoBy code.
func (a *Aggregator) priced(rec models.PropertyRecord, res validation.Result) bool {
	switch a.dialect {
	case codes.VendorBRT:
		return strings.TrimSpace(rec.PriceByCode) != "" &&
			rec.PriceDate != nil &&
			!validation.DateOnly(*rec.PriceDate).Before(a.startDate)
	case codes.VendorMicrosystems:
		return res.Category == codes.CategoryPriced
	default:
		return false
	}
}

// creditee returns the accumulator that receives entry and refusal credit:
// the lister when one is recorded and differs from the measuring inspector.
// The same accumulator counts the attempt in CreditedResidential, the
// denominator of its entry and refusal rates.
func (a *Aggregator) creditee(rec models.PropertyRecord, measuredBy string, measurer *inspectorAccumulator) *inspectorAccumulator {
	lister := strings.TrimSpace(rec.ListerCode)
	if lister == "" || lister == measuredBy {
		return measurer
	}
	emp, _ := a.directory.Lookup(lister)
	return a.accumulator(lister, emp)
}

func (a *Aggregator) accumulator(code string, emp models.Employee) *inspectorAccumulator {
	if acc, ok := a.inspectors[code]; ok {
		return acc
	}
	name := emp.Name
	if name == "" {
		name = code
	}
	fullName := emp.FullName
	if fullName == "" {
		fullName = name
	}
	typ := emp.Type
	if typ == "" {
		typ = models.InspectorUntyped
	}
	acc := &inspectorAccumulator{
		stats: models.InspectorStats{
			Code:     code,
			Name:     name,
			FullName: fullName,
			Type:     typ,
		},
		allDays:         make(daySet),
		residentialDays: make(daySet),
		commercialDays:  make(daySet),
		pricingDays:     make(daySet),
	}
	a.inspectors[code] = acc
	return acc
}

// Result derives the analytics bundle from the current counters. It does not
// modify the aggregator, so repeated calls return equal bundles.
func (a *Aggregator) Result() models.Analytics {
	out := models.Analytics{
		Inspectors:     a.inspectorStats(),
		ClassBreakdown: make(map[string]models.ClassBreakdown, len(a.classes)),
	}
	for class, cb := range a.classes {
		out.ClassBreakdown[class] = *cb
	}
	out.Billing = Billing(out.ClassBreakdown)
	out.Job = a.jobMetrics(out.ClassBreakdown)
	return out
}

func (a *Aggregator) inspectorStats() []models.InspectorStats {
	codesSeen := make([]string, 0, len(a.inspectors))
	for code := range a.inspectors {
		codesSeen = append(codesSeen, code)
	}
	sort.Strings(codesSeen)

	stats := make([]models.InspectorStats, 0, len(codesSeen))
	for _, code := range codesSeen {
		acc := a.inspectors[code]
		s := acc.stats
		s.FieldDays = len(acc.allDays)
		s.ResidentialFieldDays = len(acc.residentialDays)
		s.CommercialFieldDays = len(acc.commercialDays)
		s.PricingDays = len(acc.pricingDays)
		s.EntryRate = Percent(s.Entry, s.CreditedResidential)
		s.RefusalRate = Percent(s.Refusal, s.CreditedResidential)

		switch s.Type {
		case models.InspectorResidential:
			s.DailyAverage = intPtr(Average(s.ResidentialInspected, s.ResidentialFieldDays))
		case models.InspectorCommercial:
			s.CommercialAverage = intPtr(Average(s.CommercialInspected, s.CommercialFieldDays))
			if a.dialect == codes.VendorBRT {
				s.PricingAverage = intPtr(Average(s.Priced, s.PricingDays))
			}
		case models.InspectorManagement:
			s.DailyAverage = intPtr(Average(s.TotalInspected, s.FieldDays))
		}
		stats = append(stats, s)
	}
	return stats
}

func (a *Aggregator) jobMetrics(classes map[string]models.ClassBreakdown) models.JobMetrics {
	residential := sumClasses(classes, models.ResidentialClasses)
	commercial := sumClasses(classes, models.CommercialClasses)

	return models.JobMetrics{
		TotalRecords:              a.records,
		ValidInspections:          a.valid,
		OverridesAccepted:         a.overrides,
		TotalInspections:          a.valid + a.overrides,
		JobEntryRate:              Percent(residential.Entry, residential.Total),
		JobRefusalRate:            Percent(residential.Refusal, residential.Total),
		CommercialInspections:     commercial.Inspected,
		CommercialPricing:         commercial.Priced,
		TotalCommercialProperties: commercial.Total,
		CommercialCompletePercent: Percent(commercial.Inspected, commercial.Total),
		PricingCompletePercent:    Percent(commercial.Priced, commercial.Total),
	}
}

func sumClasses(classes map[string]models.ClassBreakdown, group []string) models.ClassBreakdown {
	var sum models.ClassBreakdown
	for _, class := range group {
		cb := classes[class]
		sum.Total += cb.Total
		sum.Inspected += cb.Inspected
		sum.OverrideInspected += cb.OverrideInspected
		sum.Entry += cb.Entry
		sum.Refusal += cb.Refusal
		sum.Priced += cb.Priced
		sum.Billable += cb.Billable
	}
	return sum
}

func intPtr(v int) *int {
	return &v
}
