package analytics

import "github.com/stwalsh4118/fieldtrack/internal/models"

// Billing groups class counts into billing buckets. Billable counts come from
// the class Billable counter, which only ledger-bound records increment.
func Billing(classes map[string]models.ClassBreakdown) models.BillingRollup {
	rollup := models.BillingRollup{
		ByClass: make(map[string]models.BillingGroup, len(classes)),
	}
	for class, cb := range classes {
		rollup.ByClass[class] = models.BillingGroup{Total: cb.Total, Billable: cb.Billable}
		rollup.TotalBillable += cb.Billable
	}
	rollup.Commercial = group(classes, models.CommercialClasses)
	rollup.Exempt = group(classes, models.ExemptClasses)
	rollup.Railroad = group(classes, models.RailroadClasses)
	rollup.PersonalProperty = group(classes, models.PersonalPropertyClasses)
	return rollup
}

func group(classes map[string]models.ClassBreakdown, members []string) models.BillingGroup {
	sum := sumClasses(classes, members)
	return models.BillingGroup{Total: sum.Total, Billable: sum.Billable}
}
