package codes

import "strings"

// CodeDefinition is one InfoBy code and its description from the vendor's
// code file.
type CodeDefinition struct {
	Code        string `json:"code" binding:"required"`
	Description string `json:"description"`
}

// Bootstrap seeds a configuration by scanning code descriptions for
// keywords. It runs once when a job has no saved configuration; records are
// never classified by description at processing time. Codes whose
// description matches nothing stay unmapped and are therefore invalid.
func Bootstrap(vendor VendorDialect, defs []CodeDefinition) CategoryConfig {
	cfg := CategoryConfig{Vendor: vendor}
	for _, def := range defs {
		code := vendor.Normalize(def.Code)
		if code == NoCode {
			continue
		}
		cat, ok := guessCategory(vendor, strings.ToUpper(def.Description))
		if !ok {
			continue
		}
		cfg.set(cat, append(cfg.Members(cat), code))
	}
	return cfg.Canonicalize()
}

func guessCategory(vendor VendorDialect, desc string) (Category, bool) {
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(desc, w) {
				return true
			}
		}
		return false
	}

	switch vendor {
	case VendorBRT:
		switch {
		case has("OWNER", "SPOUSE", "TENANT", "AGENT"):
			return CategoryEntry, true
		case has("REFUSED"):
			return CategoryRefusal, true
		case has("ESTIMATED"):
			return CategoryEstimation, true
		case has("DOOR"):
			// door tags are not countable attempts
			return CategoryUnclassified, false
		case has("CONVERSION", "PRICED"):
			return CategoryPriced, true
		}
	case VendorMicrosystems:
		switch {
		case has("VACANT LAND", "NARRATIVE"):
			return CategorySpecial, true
		case has("AGENT", "OWNER", "SPOUSE", "TENANT"):
			return CategoryEntry, true
		case has("REFUSED"):
			return CategoryRefusal, true
		case has("ESTIMATED", "VACANT"):
			return CategoryEstimation, true
		case has("PRICED", "ENCODED"):
			return CategoryPriced, true
		}
	}
	return CategoryUnclassified, false
}
