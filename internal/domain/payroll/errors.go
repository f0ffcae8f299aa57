package payroll

import (
	"errors"
	"fmt"
)

var (
	ErrPeriodNotFound        = errors.New("payroll period not found")
	ErrPayrollNotFound       = errors.New("payroll not found")
	ErrInvalidPeriodDates    = errors.New("period start date must be before end date")
	ErrPayrollsNotCalculated = errors.New("not every payroll in the period is calculated")
	ErrDependencyUnresolved  = errors.New("formula depends on data not available in its evaluation pass")
	ErrRunCancelled          = errors.New("payroll run cancelled")
	ErrPayrollConflict       = errors.New("concurrent payroll write conflict")
)

// StateError reports a lifecycle violation: an operation attempted against
// a period or payroll whose status forbids it. Always surfaced
// synchronously, never retried.
type StateError struct {
	Entity    string // "period" or "payroll"
	ID        string
	Status    string
	Operation string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s %s is %s: %s not permitted", e.Entity, e.ID, e.Status, e.Operation)
}

// IsStateError reports whether err carries a *StateError.
func IsStateError(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}
