package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// PeriodType enum
type PeriodType string

const (
	PeriodTypeWeekly    PeriodType = "weekly"
	PeriodTypeBiweekly  PeriodType = "biweekly"
	PeriodTypeMonthly   PeriodType = "monthly"
	PeriodTypeQuarterly PeriodType = "quarterly"
)

func (t PeriodType) Valid() bool {
	switch t {
	case PeriodTypeWeekly, PeriodTypeBiweekly, PeriodTypeMonthly, PeriodTypeQuarterly:
		return true
	}
	return false
}

// PeriodStatus enum. Transitions are strictly forward:
// draft → processing → approved → paid → closed.
type PeriodStatus string

const (
	PeriodStatusDraft      PeriodStatus = "draft"
	PeriodStatusProcessing PeriodStatus = "processing"
	PeriodStatusApproved   PeriodStatus = "approved"
	PeriodStatusPaid       PeriodStatus = "paid"
	PeriodStatusClosed     PeriodStatus = "closed"
)

// CanTransitionTo reports whether next is the legal forward step from s.
func (s PeriodStatus) CanTransitionTo(next PeriodStatus) bool {
	switch s {
	case PeriodStatusDraft:
		return next == PeriodStatusProcessing
	case PeriodStatusProcessing:
		return next == PeriodStatusApproved
	case PeriodStatusApproved:
		return next == PeriodStatusPaid
	case PeriodStatusPaid:
		return next == PeriodStatusClosed
	}
	return false
}

// AllowsRecalculation reports whether payroll rows under a period in this
// status may still be replaced. From approved onward results are immutable.
func (s PeriodStatus) AllowsRecalculation() bool {
	return s == PeriodStatusDraft || s == PeriodStatusProcessing
}

// PayrollStatus enum. rejected is terminal-for-reporting; there is no
// reopening transition.
type PayrollStatus string

const (
	PayrollStatusDraft      PayrollStatus = "draft"
	PayrollStatusCalculated PayrollStatus = "calculated"
	PayrollStatusApproved   PayrollStatus = "approved"
	PayrollStatusPaid       PayrollStatus = "paid"
	PayrollStatusRejected   PayrollStatus = "rejected"
)

// AllowsRecalculation reports whether the payroll row itself may be
// replaced by a recompute.
func (s PayrollStatus) AllowsRecalculation() bool {
	return s == PayrollStatusDraft || s == PayrollStatusCalculated || s == PayrollStatusRejected
}

// PayrollPeriod is a bounded date range payroll is computed for, with
// canonical aggregate totals always equal to the sum of its Payroll rows.
type PayrollPeriod struct {
	ID              string
	Name            string
	StartDate       time.Time
	EndDate         time.Time
	PayDate         time.Time
	PeriodType      PeriodType
	Status          PeriodStatus
	TotalGross      decimal.Decimal
	TotalDeductions decimal.Decimal
	TotalNet        decimal.Decimal
	ApprovedAt      *time.Time
	ApprovedBy      *string
	PaidAt          *time.Time
	ClosedAt        *time.Time
	ClosedBy        *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Payroll is one employee's computed result for one period, unique per
// (employee_id, payroll_period_id).
type Payroll struct {
	ID                    string
	EmployeeID            string
	PayrollPeriodID       string
	BaseSalary            decimal.Decimal
	GrossSalary           decimal.Decimal
	TotalEarnings         decimal.Decimal
	TotalDeductions       decimal.Decimal
	TotalTaxes            decimal.Decimal
	EmployerContributions decimal.Decimal
	NetSalary             decimal.Decimal
	WorkedDays            decimal.Decimal
	WorkedHours           decimal.Decimal
	OvertimeHours         decimal.Decimal
	OvertimeAmount        decimal.Decimal
	Status                PayrollStatus
	CalculatedAt          *time.Time
	ApprovedAt            *time.Time
	PaidAt                *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// PayrollDetail is one concept's contribution to a Payroll, unique per
// (payroll_id, payroll_concept_id). BaseAmount, Rate and Quantity carry the
// resolved computation trace where the calculation shape provides them.
type PayrollDetail struct {
	ID               string
	PayrollID        string
	PayrollConceptID string
	ConceptCode      string
	ConceptType      string
	Amount           decimal.Decimal
	BaseAmount       *decimal.Decimal
	Rate             *decimal.Decimal
	Quantity         *decimal.Decimal
	Trace            string
	DisplayOrder     int
	CreatedAt        time.Time
}
