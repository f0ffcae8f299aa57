package benefit

import (
	"time"

	"github.com/shopspring/decimal"
)

type BenefitStatus string

const (
	StatusActive    BenefitStatus = "active"
	StatusInactive  BenefitStatus = "inactive"
	StatusSuspended BenefitStatus = "suspended"
)

type Frequency string

const (
	FrequencyRecurring Frequency = "recurring"
	FrequencyOneTime   Frequency = "one_time"
)

// EmployeeBenefit assigns a concept to an employee, with an optional amount
// override. Only active assignments whose date range covers the period feed
// the calculator.
type EmployeeBenefit struct {
	ID               string
	EmployeeID       string
	PayrollConceptID string
	Amount           *decimal.Decimal
	Frequency        Frequency
	StartDate        time.Time
	EndDate          *time.Time
	Status           BenefitStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CoversPeriod reports whether the assignment is eligible for a period:
// active, started on or before the period end, and not ended before the
// period start.
func (b EmployeeBenefit) CoversPeriod(start, end time.Time) bool {
	if b.Status != StatusActive {
		return false
	}
	if b.StartDate.After(end) {
		return false
	}
	if b.EndDate != nil && b.EndDate.Before(start) {
		return false
	}
	return true
}
