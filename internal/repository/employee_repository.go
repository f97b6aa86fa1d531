package repository

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/stwalsh4118/fieldtrack/internal/database"
	"github.com/stwalsh4118/fieldtrack/internal/models"
)

// EmployeeRepository loads the inspector directory.
type EmployeeRepository interface {
	// Directory returns every employee keyed by inspector initials.
	Directory(ctx context.Context) (models.EmployeeDirectory, error)
}

type employeeRepository struct {
	db *database.Database
}

// NewEmployeeRepository creates an EmployeeRepository backed by employees.
func NewEmployeeRepository(db *database.Database) EmployeeRepository {
	return &employeeRepository{db: db}
}

func (r *employeeRepository) Directory(ctx context.Context) (models.EmployeeDirectory, error) {
	query := `
		SELECT first_name, last_name, inspector_type, initials
		FROM employees
		ORDER BY last_name, first_name
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "query employees")
	}
	defer rows.Close()

	dir := make(models.EmployeeDirectory)
	for rows.Next() {
		var first, last, inspectorType, initials *string
		if err := rows.Scan(&first, &last, &inspectorType, &initials); err != nil {
			return nil, eris.Wrap(err, "scan employee row")
		}
		emp := newEmployee(deref(first), deref(last), deref(inspectorType), deref(initials))
		if emp.Code == "" {
			continue
		}
		dir[emp.Code] = emp
	}

	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "iterate employee rows")
	}

	return dir, nil
}

// newEmployee builds a directory entry. Without stored initials the code is
// the first letters of the first and last names.
func newEmployee(first, last, inspectorType, initials string) models.Employee {
	first = strings.TrimSpace(first)
	last = strings.TrimSpace(last)

	code := strings.TrimSpace(initials)
	if code == "" {
		code = firstLetter(first) + firstLetter(last)
	}

	return models.Employee{
		Code:     code,
		Name:     strings.TrimSpace(first + " " + last),
		FullName: last + ", " + first,
		Type:     models.ParseInspectorType(inspectorType),
	}
}

func firstLetter(s string) string {
	for _, r := range s {
		return string(r)
	}
	return ""
}
