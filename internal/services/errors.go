package services

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/stwalsh4118/fieldtrack/internal/session"
)

// Service-level errors
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionLocked    = session.ErrLocked
	ErrInvalidStartDate = errors.New("project start date is required")
	ErrInvalidVersion   = errors.New("file version must be positive")
	ErrConfigLocked     = errors.New("category configuration is in use by a committing session")
	ErrNoConfig         = errors.New("no category configuration saved for job")
)

// PartialProgressError reports an upstream failure part way through record
// retrieval. The records counted in Processed are kept, and the next fetch
// resumes after them.
type PartialProgressError struct {
	Err       error
	Processed int
	Expected  int
}

func (e *PartialProgressError) Error() string {
	expected := "unknown"
	if e.Expected >= 0 {
		expected = strconv.Itoa(e.Expected)
	}
	if e.Err == nil {
		return fmt.Sprintf("%d of %s processed", e.Processed, expected)
	}
	return fmt.Sprintf("%d of %s processed: %v", e.Processed, expected, e.Err)
}

func (e *PartialProgressError) Unwrap() error {
	return e.Err
}
