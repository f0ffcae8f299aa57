package leave

import (
	"context"
	"time"
)

type LeaveRepository interface {
	// GetApprovedForPeriod returns the employee's approved requests whose
	// date range overlaps [start, end].
	GetApprovedForPeriod(ctx context.Context, employeeID string, start, end time.Time) ([]LeaveRequest, error)
}
