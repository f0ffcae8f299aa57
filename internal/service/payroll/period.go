package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/formula"
	conceptService "github.com/cmlabs-hris/payroll-engine-go/internal/service/concept"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Calculator is the per-employee computation the run fans out to. Workers
// are stateless and never share an employee, so the run needs no
// synchronization beyond collecting results.
type Calculator interface {
	CalculateForRun(ctx context.Context, emp employee.Employee, period payroll.PayrollPeriod, reg *conceptService.Registry) (payroll.Payroll, []payroll.PayrollDetail, []string, error)
}

type PeriodServiceImpl struct {
	periodRepo     payroll.PeriodRepository
	payrollRepo    payroll.PayrollRepository
	employeeRepo   employee.EmployeeRepository
	calculator     Calculator
	registryLoader conceptService.RegistryLoader
	logger         *slog.Logger

	workers         int
	employeeTimeout time.Duration
}

func NewPeriodService(
	periodRepo payroll.PeriodRepository,
	payrollRepo payroll.PayrollRepository,
	employeeRepo employee.EmployeeRepository,
	calculator Calculator,
	registryLoader conceptService.RegistryLoader,
	logger *slog.Logger,
	workers int,
	employeeTimeout time.Duration,
) *PeriodServiceImpl {
	if workers < 1 {
		workers = 1
	}
	return &PeriodServiceImpl{
		periodRepo:      periodRepo,
		payrollRepo:     payrollRepo,
		employeeRepo:    employeeRepo,
		calculator:      calculator,
		registryLoader:  registryLoader,
		logger:          logger,
		workers:         workers,
		employeeTimeout: employeeTimeout,
	}
}

var _ payroll.PeriodService = (*PeriodServiceImpl)(nil)

func (s *PeriodServiceImpl) Create(ctx context.Context, req payroll.CreatePeriodRequest) (payroll.PeriodResponse, error) {
	dates, err := req.Validate()
	if err != nil {
		return payroll.PeriodResponse{}, err
	}

	period := payroll.PayrollPeriod{
		Name:            req.Name,
		StartDate:       dates.Start,
		EndDate:         dates.End,
		PayDate:         dates.PayDate,
		PeriodType:      payroll.PeriodType(req.PeriodType),
		Status:          payroll.PeriodStatusDraft,
		TotalGross:      decimal.Zero,
		TotalDeductions: decimal.Zero,
		TotalNet:        decimal.Zero,
	}

	created, err := s.periodRepo.Create(ctx, period)
	if err != nil {
		return payroll.PeriodResponse{}, err
	}
	return payroll.ToPeriodResponse(created), nil
}

func (s *PeriodServiceImpl) Get(ctx context.Context, id string) (payroll.PeriodResponse, error) {
	period, err := s.periodRepo.GetByID(ctx, id)
	if err != nil {
		return payroll.PeriodResponse{}, err
	}
	return payroll.ToPeriodResponse(period), nil
}

func (s *PeriodServiceImpl) List(ctx context.Context) ([]payroll.PeriodResponse, error) {
	periods, err := s.periodRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	var result []payroll.PeriodResponse
	for _, p := range periods {
		result = append(result, payroll.ToPeriodResponse(p))
	}
	return result, nil
}

// Process runs the calculation batch for a period. The registry loads once;
// a configuration error aborts before any employee is touched. Employee
// failures are isolated into the run result and never move the period
// backward. Re-running a period still in draft or processing is safe
// because each employee calculation is idempotent.
func (s *PeriodServiceImpl) Process(ctx context.Context, periodID string, actorID string) (payroll.RunResult, error) {
	period, err := s.periodRepo.GetByID(ctx, periodID)
	if err != nil {
		return payroll.RunResult{}, err
	}

	switch period.Status {
	case payroll.PeriodStatusDraft:
		swapped, err := s.periodRepo.CompareAndSwapStatus(ctx, periodID, payroll.PeriodStatusDraft, payroll.PeriodStatusProcessing, nil)
		if err != nil {
			return payroll.RunResult{}, err
		}
		if !swapped {
			// Another caller advanced the period first; only proceed if it
			// landed in processing.
			period, err = s.periodRepo.GetByID(ctx, periodID)
			if err != nil {
				return payroll.RunResult{}, err
			}
			if period.Status != payroll.PeriodStatusProcessing {
				return payroll.RunResult{}, &payroll.StateError{
					Entity: "period", ID: periodID, Status: string(period.Status), Operation: "process",
				}
			}
		} else {
			period.Status = payroll.PeriodStatusProcessing
		}
	case payroll.PeriodStatusProcessing:
		// re-run: recompute everything still mutable
	default:
		return payroll.RunResult{}, &payroll.StateError{
			Entity: "period", ID: periodID, Status: string(period.Status), Operation: "process",
		}
	}

	reg, err := s.registryLoader.LoadRegistry(ctx)
	if err != nil {
		return payroll.RunResult{}, fmt.Errorf("concept catalog is invalid, run aborted: %w", err)
	}

	roster, err := s.employeeRepo.GetActive(ctx)
	if err != nil {
		return payroll.RunResult{}, fmt.Errorf("load employee roster: %w", err)
	}

	result := payroll.RunResult{PeriodID: periodID}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, emp := range roster {
		emp := emp
		g.Go(func() error {
			// Cancellation happens between employees; committed work stays.
			if err := gctx.Err(); err != nil {
				return err
			}

			empCtx := gctx
			var cancel context.CancelFunc
			if s.employeeTimeout > 0 {
				empCtx, cancel = context.WithTimeout(gctx, s.employeeTimeout)
				defer cancel()
			}

			_, _, warnings, err := s.calculator.CalculateForRun(empCtx, emp, period, reg)

			mu.Lock()
			defer mu.Unlock()
			result.Warnings = append(result.Warnings, warnings...)
			if err != nil {
				if gctx.Err() != nil && !errors.Is(err, context.DeadlineExceeded) {
					return gctx.Err()
				}
				result.Failed = append(result.Failed, payroll.RunFailure{
					EmployeeID: emp.ID,
					Kind:       classifyFailure(err),
					Message:    err.Error(),
				})
				s.logger.Error("employee calculation failed",
					slog.String("period_id", periodID),
					slog.String("employee_id", emp.ID),
					slog.String("error", err.Error()),
				)
				return nil
			}
			result.Succeeded = append(result.Succeeded, emp.ID)
			return nil
		})
	}

	runErr := g.Wait()

	sort.Strings(result.Succeeded)
	sort.Slice(result.Failed, func(i, j int) bool { return result.Failed[i].EmployeeID < result.Failed[j].EmployeeID })

	// Totals reflect whatever committed, even on a cancelled run.
	if _, err := s.periodRepo.UpdateTotals(ctx, periodID); err != nil {
		s.logger.Error("failed to update period totals", slog.String("period_id", periodID), slog.String("error", err.Error()))
	}

	if runErr != nil {
		return result, fmt.Errorf("%w: %v", payroll.ErrRunCancelled, runErr)
	}

	s.logger.Info("payroll run finished",
		slog.String("period_id", periodID),
		slog.String("actor_id", actorID),
		slog.Int("succeeded", len(result.Succeeded)),
		slog.Int("failed", len(result.Failed)),
		slog.Int("warnings", len(result.Warnings)),
	)

	return result, nil
}

// Approve freezes the period's results. Every in-scope payroll must be
// calculated first.
func (s *PeriodServiceImpl) Approve(ctx context.Context, periodID string, actorID string) error {
	period, err := s.periodRepo.GetByID(ctx, periodID)
	if err != nil {
		return err
	}
	if !period.Status.CanTransitionTo(payroll.PeriodStatusApproved) {
		return &payroll.StateError{
			Entity: "period", ID: periodID, Status: string(period.Status), Operation: "approve",
		}
	}

	pending, err := s.payrollRepo.CountByPeriodNotInStatus(ctx, periodID, payroll.PayrollStatusCalculated)
	if err != nil {
		return err
	}
	if pending > 0 {
		return fmt.Errorf("%w: %d payroll(s) pending", payroll.ErrPayrollsNotCalculated, pending)
	}

	swapped, err := s.periodRepo.CompareAndSwapStatus(ctx, periodID, payroll.PeriodStatusProcessing, payroll.PeriodStatusApproved, &actorID)
	if err != nil {
		return err
	}
	if !swapped {
		return s.staleTransitionError(ctx, periodID, "approve")
	}

	now := time.Now().UTC()
	if err := s.payrollRepo.MarkApprovedByPeriod(ctx, periodID, now); err != nil {
		return err
	}
	if _, err := s.periodRepo.UpdateTotals(ctx, periodID); err != nil {
		return err
	}

	s.logger.Info("period approved", slog.String("period_id", periodID), slog.String("actor_id", actorID))
	return nil
}

// MarkPaid is bookkeeping only: no recomputation.
func (s *PeriodServiceImpl) MarkPaid(ctx context.Context, periodID string) error {
	swapped, err := s.periodRepo.CompareAndSwapStatus(ctx, periodID, payroll.PeriodStatusApproved, payroll.PeriodStatusPaid, nil)
	if err != nil {
		return err
	}
	if !swapped {
		return s.staleTransitionError(ctx, periodID, "mark paid")
	}

	now := time.Now().UTC()
	if err := s.payrollRepo.MarkPaidByPeriod(ctx, periodID, now); err != nil {
		return err
	}

	s.logger.Info("period marked paid", slog.String("period_id", periodID))
	return nil
}

// Close is terminal.
func (s *PeriodServiceImpl) Close(ctx context.Context, periodID string, actorID string) error {
	swapped, err := s.periodRepo.CompareAndSwapStatus(ctx, periodID, payroll.PeriodStatusPaid, payroll.PeriodStatusClosed, &actorID)
	if err != nil {
		return err
	}
	if !swapped {
		return s.staleTransitionError(ctx, periodID, "close")
	}

	s.logger.Info("period closed", slog.String("period_id", periodID), slog.String("actor_id", actorID))
	return nil
}

func (s *PeriodServiceImpl) ListPayrolls(ctx context.Context, periodID string) ([]payroll.PayrollResponse, error) {
	if _, err := s.periodRepo.GetByID(ctx, periodID); err != nil {
		return nil, err
	}

	payrolls, err := s.payrollRepo.ListByPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}

	var result []payroll.PayrollResponse
	for _, p := range payrolls {
		result = append(result, payroll.ToPayrollResponse(p))
	}
	return result, nil
}

func (s *PeriodServiceImpl) GetPayroll(ctx context.Context, payrollID string) (payroll.PayrollWithDetails, error) {
	p, err := s.payrollRepo.GetByID(ctx, payrollID)
	if err != nil {
		return payroll.PayrollWithDetails{}, err
	}

	details, err := s.payrollRepo.ListDetails(ctx, payrollID)
	if err != nil {
		return payroll.PayrollWithDetails{}, err
	}

	result := payroll.PayrollWithDetails{Payroll: payroll.ToPayrollResponse(p)}
	for _, d := range details {
		result.Details = append(result.Details, payroll.ToDetailResponse(d))
	}
	return result, nil
}

// staleTransitionError reports the period's actual status after a
// compare-and-swap miss: a concurrent caller won the transition.
func (s *PeriodServiceImpl) staleTransitionError(ctx context.Context, periodID, operation string) error {
	period, err := s.periodRepo.GetByID(ctx, periodID)
	if err != nil {
		return err
	}
	return &payroll.StateError{
		Entity: "period", ID: periodID, Status: string(period.Status), Operation: operation,
	}
}

func classifyFailure(err error) payroll.FailureKind {
	var fErr *formula.Error

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return payroll.FailureKindTimeout
	case payroll.IsStateError(err):
		return payroll.FailureKindState
	case errors.Is(err, payroll.ErrDependencyUnresolved):
		return payroll.FailureKindDependency
	case errors.Is(err, payroll.ErrPayrollConflict):
		return payroll.FailureKindPersistence
	case errors.As(err, &fErr):
		return payroll.FailureKindConfiguration
	}
	return payroll.FailureKindInternal
}
