package models

import (
	"strings"
	"time"
)

// PropertyRecord is one parcel's inspection fields for a single file version.
// It is read from the property_records table and never modified during a
// processing session. Nullable dates use pointers to distinguish a missing
// date from the zero time.
type PropertyRecord struct {
	MeasureDate     *time.Time `json:"measureDate,omitempty"`
	ListDate        *time.Time `json:"listDate,omitempty"`
	PriceDate       *time.Time `json:"priceDate,omitempty"`
	JobID           string     `json:"jobId"`
	CompositeKey    string     `json:"compositeKey"`
	Block           string     `json:"block"`
	Lot             string     `json:"lot"`
	Qualifier       string     `json:"qualifier,omitempty"`
	Card            string     `json:"card,omitempty"`
	Location        string     `json:"location,omitempty"`
	PropertyClass   string     `json:"propertyClass"`
	InspectorCode   string     `json:"inspectorCode,omitempty"`
	InfoByCode      string     `json:"infoByCode,omitempty"`
	ListerCode      string     `json:"listerCode,omitempty"`
	PriceByCode     string     `json:"priceByCode,omitempty"`
	SourceFileName  string     `json:"sourceFileName,omitempty"`
	FileVersion     int        `json:"fileVersion"`
	ZeroImprovement bool       `json:"zeroImprovement"`
}

// Key returns the trimmed composite key, deriving block-lot-qualifier when
// the source row carried none.
func (r PropertyRecord) Key() string {
	if key := strings.TrimSpace(r.CompositeKey); key != "" {
		return key
	}
	return strings.TrimSpace(r.Block) + "-" + strings.TrimSpace(r.Lot) + "-" + strings.TrimSpace(r.Qualifier)
}

// HasListing reports whether both the lister code and lister date are present.
func (r PropertyRecord) HasListing() bool {
	return strings.TrimSpace(r.ListerCode) != "" && r.ListDate != nil
}

// HasAnyListing reports whether either listing field is present.
func (r PropertyRecord) HasAnyListing() bool {
	return strings.TrimSpace(r.ListerCode) != "" || r.ListDate != nil
}

// ClassOrUnknown returns the property class, or UnknownClass when blank.
func (r PropertyRecord) ClassOrUnknown() string {
	if c := strings.TrimSpace(r.PropertyClass); c != "" {
		return c
	}
	return UnknownClass
}
