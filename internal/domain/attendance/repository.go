package attendance

import (
	"context"
	"time"
)

type AttendanceRepository interface {
	// GetByEmployeePeriod returns the employee's rows with date inside
	// [start, end], ordered by date.
	GetByEmployeePeriod(ctx context.Context, employeeID string, start, end time.Time) ([]Attendance, error)
}
