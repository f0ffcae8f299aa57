package payroll

import (
	"time"

	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

type CreatePeriodRequest struct {
	Name       string `json:"name"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	PayDate    string `json:"pay_date"`
	PeriodType string `json:"period_type"`
}

// PeriodDates carries the boundaries parsed during validation so
// callers never re-parse the request strings.
type PeriodDates struct {
	Start   time.Time
	End     time.Time
	PayDate time.Time
}

func (r *CreatePeriodRequest) Validate() (PeriodDates, error) {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.Name) {
		errs = append(errs, validator.ValidationError{Field: "name", Message: "is required"})
	}
	start, okStart := validator.IsValidDate(r.StartDate)
	if !okStart {
		errs = append(errs, validator.ValidationError{Field: "start_date", Message: "must be YYYY-MM-DD"})
	}
	end, okEnd := validator.IsValidDate(r.EndDate)
	if !okEnd {
		errs = append(errs, validator.ValidationError{Field: "end_date", Message: "must be YYYY-MM-DD"})
	}
	payDate, okPay := validator.IsValidDate(r.PayDate)
	if !okPay {
		errs = append(errs, validator.ValidationError{Field: "pay_date", Message: "must be YYYY-MM-DD"})
	}
	if okStart && okEnd && !start.Before(end) {
		errs = append(errs, validator.ValidationError{Field: "start_date", Message: "must be before end_date"})
	}
	if !PeriodType(r.PeriodType).Valid() {
		errs = append(errs, validator.ValidationError{Field: "period_type", Message: "must be 'weekly', 'biweekly', 'monthly' or 'quarterly'"})
	}

	if len(errs) > 0 {
		return PeriodDates{}, errs
	}
	return PeriodDates{Start: start, End: end, PayDate: payDate}, nil
}

type PeriodResponse struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	StartDate       string          `json:"start_date"`
	EndDate         string          `json:"end_date"`
	PayDate         string          `json:"pay_date"`
	PeriodType      string          `json:"period_type"`
	Status          string          `json:"status"`
	TotalGross      decimal.Decimal `json:"total_gross"`
	TotalDeductions decimal.Decimal `json:"total_deductions"`
	TotalNet        decimal.Decimal `json:"total_net"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty"`
	ApprovedBy      *string         `json:"approved_by,omitempty"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	ClosedAt        *time.Time      `json:"closed_at,omitempty"`
	ClosedBy        *string         `json:"closed_by,omitempty"`
}

func ToPeriodResponse(p PayrollPeriod) PeriodResponse {
	return PeriodResponse{
		ID:              p.ID,
		Name:            p.Name,
		StartDate:       p.StartDate.Format("2006-01-02"),
		EndDate:         p.EndDate.Format("2006-01-02"),
		PayDate:         p.PayDate.Format("2006-01-02"),
		PeriodType:      string(p.PeriodType),
		Status:          string(p.Status),
		TotalGross:      p.TotalGross,
		TotalDeductions: p.TotalDeductions,
		TotalNet:        p.TotalNet,
		ApprovedAt:      p.ApprovedAt,
		ApprovedBy:      p.ApprovedBy,
		PaidAt:          p.PaidAt,
		ClosedAt:        p.ClosedAt,
		ClosedBy:        p.ClosedBy,
	}
}

type PayrollResponse struct {
	ID                    string          `json:"id"`
	EmployeeID            string          `json:"employee_id"`
	PayrollPeriodID       string          `json:"payroll_period_id"`
	BaseSalary            decimal.Decimal `json:"base_salary"`
	GrossSalary           decimal.Decimal `json:"gross_salary"`
	TotalEarnings         decimal.Decimal `json:"total_earnings"`
	TotalDeductions       decimal.Decimal `json:"total_deductions"`
	TotalTaxes            decimal.Decimal `json:"total_taxes"`
	EmployerContributions decimal.Decimal `json:"employer_contributions"`
	NetSalary             decimal.Decimal `json:"net_salary"`
	WorkedDays            decimal.Decimal `json:"worked_days"`
	WorkedHours           decimal.Decimal `json:"worked_hours"`
	OvertimeHours         decimal.Decimal `json:"overtime_hours"`
	OvertimeAmount        decimal.Decimal `json:"overtime_amount"`
	Status                string          `json:"status"`
	CalculatedAt          *time.Time      `json:"calculated_at,omitempty"`
}

func ToPayrollResponse(p Payroll) PayrollResponse {
	return PayrollResponse{
		ID:                    p.ID,
		EmployeeID:            p.EmployeeID,
		PayrollPeriodID:       p.PayrollPeriodID,
		BaseSalary:            p.BaseSalary,
		GrossSalary:           p.GrossSalary,
		TotalEarnings:         p.TotalEarnings,
		TotalDeductions:       p.TotalDeductions,
		TotalTaxes:            p.TotalTaxes,
		EmployerContributions: p.EmployerContributions,
		NetSalary:             p.NetSalary,
		WorkedDays:            p.WorkedDays,
		WorkedHours:           p.WorkedHours,
		OvertimeHours:         p.OvertimeHours,
		OvertimeAmount:        p.OvertimeAmount,
		Status:                string(p.Status),
		CalculatedAt:          p.CalculatedAt,
	}
}

type PayrollDetailResponse struct {
	ID               string           `json:"id"`
	PayrollConceptID string           `json:"payroll_concept_id"`
	ConceptCode      string           `json:"concept_code"`
	ConceptType      string           `json:"concept_type"`
	Amount           decimal.Decimal  `json:"amount"`
	BaseAmount       *decimal.Decimal `json:"base_amount,omitempty"`
	Rate             *decimal.Decimal `json:"rate,omitempty"`
	Quantity         *decimal.Decimal `json:"quantity,omitempty"`
	Trace            string           `json:"trace,omitempty"`
}

type PayrollWithDetails struct {
	Payroll PayrollResponse         `json:"payroll"`
	Details []PayrollDetailResponse `json:"details"`
}

func ToDetailResponse(d PayrollDetail) PayrollDetailResponse {
	return PayrollDetailResponse{
		ID:               d.ID,
		PayrollConceptID: d.PayrollConceptID,
		ConceptCode:      d.ConceptCode,
		ConceptType:      d.ConceptType,
		Amount:           d.Amount,
		BaseAmount:       d.BaseAmount,
		Rate:             d.Rate,
		Quantity:         d.Quantity,
		Trace:            d.Trace,
	}
}

// FailureKind classifies per-employee run failures for the run summary.
type FailureKind string

const (
	FailureKindConfiguration FailureKind = "configuration"
	FailureKindDependency    FailureKind = "dependency"
	FailureKindState         FailureKind = "state"
	FailureKindPersistence   FailureKind = "persistence"
	FailureKindTimeout       FailureKind = "timeout"
	FailureKindInternal      FailureKind = "internal"
)

type RunFailure struct {
	EmployeeID string      `json:"employee_id"`
	Kind       FailureKind `json:"kind"`
	Message    string      `json:"message"`
}

// RunResult is the structured outcome of a period run: the caller decides
// whether to fix inputs and re-run just the failures.
type RunResult struct {
	PeriodID  string       `json:"period_id"`
	Succeeded []string     `json:"succeeded"`
	Failed    []RunFailure `json:"failed"`
	Warnings  []string     `json:"warnings,omitempty"`
}

// PeriodTotals is the SQL-side aggregation over a period's payroll rows.
type PeriodTotals struct {
	TotalGross      decimal.Decimal
	TotalDeductions decimal.Decimal
	TotalNet        decimal.Decimal
	PayrollCount    int
}
