package models

// UnknownClass is recorded for records that carry no property class.
const UnknownClass = "UNKNOWN"

// Property class groupings used by analytics and billing.
var (
	ResidentialClasses      = []string{"2", "3A"}
	CommercialClasses       = []string{"4A", "4B", "4C"}
	ExemptClasses           = []string{"15A", "15B", "15C", "15D", "15E", "15F"}
	RailroadClasses         = []string{"5A", "5B"}
	PersonalPropertyClasses = []string{"6A", "6B"}
)

// AllClasses lists every tracked class in report order. Counters for each of
// these are initialized even when a job has no parcels in the class.
var AllClasses = []string{
	"1", "2", "3A", "3B",
	"4A", "4B", "4C",
	"15A", "15B", "15C", "15D", "15E", "15F",
	"5A", "5B", "6A", "6B",
}

// IsResidentialClass reports whether class is 2 or 3A.
func IsResidentialClass(class string) bool {
	return contains(ResidentialClasses, class)
}

// IsCommercialClass reports whether class is 4A, 4B or 4C.
func IsCommercialClass(class string) bool {
	return contains(CommercialClasses, class)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
