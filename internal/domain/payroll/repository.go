package payroll

import (
	"context"
	"time"
)

// PeriodRepository defines data access for payroll periods. Status moves
// only through CompareAndSwapStatus so two concurrent transitions cannot
// both win.
type PeriodRepository interface {
	Create(ctx context.Context, p PayrollPeriod) (PayrollPeriod, error)
	GetByID(ctx context.Context, id string) (PayrollPeriod, error)
	List(ctx context.Context) ([]PayrollPeriod, error)

	// CompareAndSwapStatus moves the period from exactly `from` to `to`,
	// stamping approved/paid/closed columns as the target status requires.
	// It returns false when the period was not in `from`.
	CompareAndSwapStatus(ctx context.Context, id string, from, to PeriodStatus, actorID *string) (bool, error)

	// UpdateTotals recomputes total_gross, total_deductions and total_net
	// as sums over the period's payroll rows.
	UpdateTotals(ctx context.Context, id string) (PeriodTotals, error)
}

// PayrollRepository defines data access for payroll rows and their details.
type PayrollRepository interface {
	GetByID(ctx context.Context, id string) (Payroll, error)
	GetByEmployeePeriod(ctx context.Context, employeeID, periodID string) (Payroll, error)
	ListByPeriod(ctx context.Context, periodID string) ([]Payroll, error)
	ListDetails(ctx context.Context, payrollID string) ([]PayrollDetail, error)

	// ReplaceResult atomically upserts the payroll row under the
	// (employee_id, payroll_period_id) unique constraint, deletes any prior
	// details and inserts the new set, all in one transaction.
	ReplaceResult(ctx context.Context, p Payroll, details []PayrollDetail) (Payroll, error)

	CountByPeriodNotInStatus(ctx context.Context, periodID string, status PayrollStatus) (int, error)
	MarkApprovedByPeriod(ctx context.Context, periodID string, at time.Time) error
	MarkPaidByPeriod(ctx context.Context, periodID string, at time.Time) error
}
