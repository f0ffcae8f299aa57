package payroll

import "context"

// CalculatorService computes and persists one employee's payroll for a
// period. Safe to call concurrently for distinct employees.
type CalculatorService interface {
	CalculateEmployee(ctx context.Context, employeeID, periodID string) (Payroll, []PayrollDetail, error)
}

// PeriodService owns the period lifecycle and the batch run.
type PeriodService interface {
	Create(ctx context.Context, req CreatePeriodRequest) (PeriodResponse, error)
	Get(ctx context.Context, id string) (PeriodResponse, error)
	List(ctx context.Context) ([]PeriodResponse, error)

	Process(ctx context.Context, periodID string, actorID string) (RunResult, error)
	Approve(ctx context.Context, periodID string, actorID string) error
	MarkPaid(ctx context.Context, periodID string) error
	Close(ctx context.Context, periodID string, actorID string) error

	ListPayrolls(ctx context.Context, periodID string) ([]PayrollResponse, error)
	GetPayroll(ctx context.Context, payrollID string) (PayrollWithDetails, error)
}
