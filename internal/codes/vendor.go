// Package codes canonicalizes vendor InfoBy codes and classifies them against
// a job's category configuration.
package codes

import (
	"strings"

	"github.com/rotisserie/eris"
)

// VendorDialect identifies how a CAMA vendor encodes InfoBy codes.
type VendorDialect int

const (
	// VendorUnknown is never valid for classification.
	VendorUnknown VendorDialect = iota
	// VendorBRT uses numeric codes that must be zero-padded to two digits.
	VendorBRT
	// VendorMicrosystems uses alphabetic codes, sometimes embedded in a
	// "140<code> <noise>" composite key.
	VendorMicrosystems
)

// InfoByPrefix is the Microsystems field-code category for InfoBy.
const InfoByPrefix = "140"

// ErrUnknownVendor is returned when a vendor tag is not recognized.
var ErrUnknownVendor = eris.New("unknown vendor")

// ParseVendor maps a stored vendor tag to a dialect.
func ParseVendor(s string) (VendorDialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "brt":
		return VendorBRT, nil
	case "microsystems":
		return VendorMicrosystems, nil
	default:
		return VendorUnknown, eris.Wrapf(ErrUnknownVendor, "vendor %q", s)
	}
}

func (v VendorDialect) String() string {
	switch v {
	case VendorBRT:
		return "BRT"
	case VendorMicrosystems:
		return "Microsystems"
	default:
		return "unknown"
	}
}

// MarshalText encodes the dialect as its vendor tag.
func (v VendorDialect) MarshalText() ([]byte, error) {
	if v == VendorUnknown {
		return []byte(""), nil
	}
	return []byte(v.String()), nil
}

// UnmarshalText decodes a vendor tag. An empty tag decodes to VendorUnknown.
func (v *VendorDialect) UnmarshalText(b []byte) error {
	if strings.TrimSpace(string(b)) == "" {
		*v = VendorUnknown
		return nil
	}
	d, err := ParseVendor(string(b))
	if err != nil {
		return err
	}
	*v = d
	return nil
}

// CanonicalCode is an InfoBy code after vendor normalization.
type CanonicalCode string

// NoCode is the sentinel for an empty or unusable raw code.
const NoCode CanonicalCode = ""

// Normalize canonicalizes raw under the dialect's rules. Applying it to its
// own output returns the same value.
func (v VendorDialect) Normalize(raw string) CanonicalCode {
	switch v {
	case VendorBRT:
		return normalizeNumeric(raw)
	case VendorMicrosystems:
		return normalizeAlphabetic(raw)
	default:
		return NoCode
	}
}

// Normalize is shorthand for v.Normalize(raw).
func Normalize(raw string, v VendorDialect) CanonicalCode {
	return v.Normalize(raw)
}

func normalizeNumeric(raw string) CanonicalCode {
	s := strings.TrimSpace(raw)
	if s == "" {
		return NoCode
	}
	if len(s) < 2 {
		s = strings.Repeat("0", 2-len(s)) + s
	}
	return CanonicalCode(s)
}

func normalizeAlphabetic(raw string) CanonicalCode {
	s := strings.TrimSpace(raw)
	for len(s) > len(InfoByPrefix) && strings.HasPrefix(s, InfoByPrefix) {
		s = strings.TrimSpace(s[len(InfoByPrefix):])
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return NoCode
	}
	return CanonicalCode(strings.ToUpper(fields[0]))
}
