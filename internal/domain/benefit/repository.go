package benefit

import (
	"context"
	"time"
)

type BenefitRepository interface {
	// GetActiveForPeriod returns the employee's active assignments whose
	// date range overlaps [start, end].
	GetActiveForPeriod(ctx context.Context, employeeID string, start, end time.Time) ([]EmployeeBenefit, error)
}
