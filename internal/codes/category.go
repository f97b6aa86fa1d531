package codes

import (
	"fmt"
	"sort"
	"strings"
)

// Category is the inspection outcome an InfoBy code stands for.
type Category string

const (
	CategoryEntry        Category = "entry"
	CategoryRefusal      Category = "refusal"
	CategoryEstimation   Category = "estimation"
	CategoryPriced       Category = "priced"
	CategorySpecial      Category = "special"
	CategoryUnclassified Category = "unclassified"
)

// Categories lists the assignable categories in configuration order.
var Categories = []Category{
	CategoryEntry,
	CategoryRefusal,
	CategoryEstimation,
	CategoryPriced,
	CategorySpecial,
}

// CategoryConfig is a job's mapping of canonical codes to categories. It is
// stored as one list of codes per category along with the vendor tag.
type CategoryConfig struct {
	Vendor     VendorDialect   `json:"vendor_type"`
	Entry      []CanonicalCode `json:"entry"`
	Refusal    []CanonicalCode `json:"refusal"`
	Estimation []CanonicalCode `json:"estimation"`
	Priced     []CanonicalCode `json:"priced"`
	Special    []CanonicalCode `json:"special"`
}

// Members returns the codes assigned to cat.
func (c CategoryConfig) Members(cat Category) []CanonicalCode {
	switch cat {
	case CategoryEntry:
		return c.Entry
	case CategoryRefusal:
		return c.Refusal
	case CategoryEstimation:
		return c.Estimation
	case CategoryPriced:
		return c.Priced
	case CategorySpecial:
		return c.Special
	default:
		return nil
	}
}

func (c *CategoryConfig) set(cat Category, list []CanonicalCode) {
	switch cat {
	case CategoryEntry:
		c.Entry = list
	case CategoryRefusal:
		c.Refusal = list
	case CategoryEstimation:
		c.Estimation = list
	case CategoryPriced:
		c.Priced = list
	case CategorySpecial:
		c.Special = list
	}
}

// Canonicalize returns a copy with every code normalized under the config's
// vendor dialect, blanks dropped, and repeats within a category removed.
// Configurations are canonicalized before they are saved so that authored
// codes and live record codes always compare under the same convention.
func (c CategoryConfig) Canonicalize() CategoryConfig {
	out := CategoryConfig{Vendor: c.Vendor}
	for _, cat := range Categories {
		seen := make(map[CanonicalCode]bool)
		list := make([]CanonicalCode, 0, len(c.Members(cat)))
		for _, code := range c.Members(cat) {
			canon := c.Vendor.Normalize(string(code))
			if canon == NoCode || seen[canon] {
				continue
			}
			seen[canon] = true
			list = append(list, canon)
		}
		out.set(cat, list)
	}
	return out
}

// Validate reports contradictory membership (one canonical code claimed by
// more than one category) and an unknown vendor.
func (c CategoryConfig) Validate() error {
	if c.Vendor == VendorUnknown {
		return &ConfigError{Reason: "vendor is not set"}
	}
	claims := make(map[CanonicalCode][]Category)
	for _, cat := range Categories {
		seen := make(map[CanonicalCode]bool)
		for _, code := range c.Members(cat) {
			canon := c.Vendor.Normalize(string(code))
			if canon == NoCode || seen[canon] {
				continue
			}
			seen[canon] = true
			claims[canon] = append(claims[canon], cat)
		}
	}
	dups := make(map[CanonicalCode][]Category)
	for code, cats := range claims {
		if len(cats) > 1 {
			dups[code] = cats
		}
	}
	if len(dups) > 0 {
		return &ConfigError{Reason: "codes assigned to more than one category", Duplicates: dups}
	}
	return nil
}

// ConfigError describes a malformed category configuration. It is reported
// separately from per-record validation issues.
type ConfigError struct {
	Duplicates map[CanonicalCode][]Category
	Reason     string
}

func (e *ConfigError) Error() string {
	if len(e.Duplicates) == 0 {
		return "category configuration: " + e.Reason
	}
	keys := make([]string, 0, len(e.Duplicates))
	for code := range e.Duplicates {
		keys = append(keys, string(code))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		cats := e.Duplicates[CanonicalCode(k)]
		names := make([]string, len(cats))
		for i, cat := range cats {
			names[i] = string(cat)
		}
		parts = append(parts, fmt.Sprintf("%s in [%s]", k, strings.Join(names, ", ")))
	}
	return fmt.Sprintf("category configuration: %s: %s", e.Reason, strings.Join(parts, "; "))
}
