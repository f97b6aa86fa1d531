package models

import "strings"

// InspectorType drives which daily-average formula applies to an inspector.
type InspectorType string

const (
	InspectorResidential InspectorType = "residential"
	InspectorCommercial  InspectorType = "commercial"
	InspectorManagement  InspectorType = "management"
	InspectorUntyped     InspectorType = "untyped"
)

// ParseInspectorType maps a stored inspector_type value to an InspectorType.
// Blank or unrecognized values are untyped.
func ParseInspectorType(s string) InspectorType {
	switch InspectorType(strings.ToLower(strings.TrimSpace(s))) {
	case InspectorResidential:
		return InspectorResidential
	case InspectorCommercial:
		return InspectorCommercial
	case InspectorManagement:
		return InspectorManagement
	default:
		return InspectorUntyped
	}
}

// Employee is a directory entry keyed by inspector initials.
type Employee struct {
	Code     string        `json:"code"`
	Name     string        `json:"name"`
	FullName string        `json:"fullName"`
	Type     InspectorType `json:"type"`
}

// EmployeeDirectory is an in-memory directory keyed by inspector code.
type EmployeeDirectory map[string]Employee

// Lookup returns the employee for code.
func (d EmployeeDirectory) Lookup(code string) (Employee, bool) {
	e, ok := d[code]
	return e, ok
}
