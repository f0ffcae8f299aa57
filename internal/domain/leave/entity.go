package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

type LeaveStatus string

const (
	StatusPending  LeaveStatus = "pending"
	StatusApproved LeaveStatus = "approved"
	StatusRejected LeaveStatus = "rejected"
)

// LeaveRequest is consumed as an input: only approved requests overlapping
// the period participate in calculation. Approval workflow lives elsewhere.
type LeaveRequest struct {
	ID              string
	EmployeeID      string
	StartDate       time.Time
	EndDate         time.Time
	IsPaid          bool
	DeductionAmount *decimal.Decimal
	Status          LeaveStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DaysWithin counts the request's calendar days that fall inside
// [start, end].
func (l LeaveRequest) DaysWithin(start, end time.Time) int {
	from := l.StartDate
	if from.Before(start) {
		from = start
	}
	to := l.EndDate
	if to.After(end) {
		to = end
	}
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from).Hours()/24) + 1
}
