package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/attendance"
	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/benefit"
	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/concept"
	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/leave"
	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/formula"
	attendanceService "github.com/cmlabs-hris/payroll-engine-go/internal/service/attendance"
	conceptService "github.com/cmlabs-hris/payroll-engine-go/internal/service/concept"
	"github.com/shopspring/decimal"
)

type CalculatorServiceImpl struct {
	payrollRepo    payroll.PayrollRepository
	periodRepo     payroll.PeriodRepository
	employeeRepo   employee.EmployeeRepository
	attendanceRepo attendance.AttendanceRepository
	benefitRepo    benefit.BenefitRepository
	leaveRepo      leave.LeaveRepository
	registryLoader conceptService.RegistryLoader
	aggregator     *attendanceService.Aggregator
	policy         attendanceService.PayPolicy
	logger         *slog.Logger

	conflictRetries int
}

func NewCalculatorService(
	payrollRepo payroll.PayrollRepository,
	periodRepo payroll.PeriodRepository,
	employeeRepo employee.EmployeeRepository,
	attendanceRepo attendance.AttendanceRepository,
	benefitRepo benefit.BenefitRepository,
	leaveRepo leave.LeaveRepository,
	registryLoader conceptService.RegistryLoader,
	aggregator *attendanceService.Aggregator,
	policy attendanceService.PayPolicy,
	logger *slog.Logger,
	conflictRetries int,
) *CalculatorServiceImpl {
	if conflictRetries < 1 {
		conflictRetries = 1
	}
	return &CalculatorServiceImpl{
		payrollRepo:     payrollRepo,
		periodRepo:      periodRepo,
		employeeRepo:    employeeRepo,
		attendanceRepo:  attendanceRepo,
		benefitRepo:     benefitRepo,
		leaveRepo:       leaveRepo,
		registryLoader:  registryLoader,
		aggregator:      aggregator,
		policy:          policy,
		logger:          logger,
		conflictRetries: conflictRetries,
	}
}

var _ payroll.CalculatorService = (*CalculatorServiceImpl)(nil)

// CalculateEmployee recomputes a single employee against a period, loading
// the registry itself. Period runs use CalculateForRun with a registry
// loaded once for the whole batch.
func (s *CalculatorServiceImpl) CalculateEmployee(ctx context.Context, employeeID, periodID string) (payroll.Payroll, []payroll.PayrollDetail, error) {
	period, err := s.periodRepo.GetByID(ctx, periodID)
	if err != nil {
		return payroll.Payroll{}, nil, err
	}

	emp, err := s.employeeRepo.GetByID(ctx, employeeID)
	if err != nil {
		return payroll.Payroll{}, nil, err
	}

	reg, err := s.registryLoader.LoadRegistry(ctx)
	if err != nil {
		return payroll.Payroll{}, nil, err
	}

	stored, details, warnings, err := s.CalculateForRun(ctx, emp, period, reg)
	for _, w := range warnings {
		s.logger.Warn("missing input", slog.String("employee_id", employeeID), slog.String("warning", w))
	}
	return stored, details, err
}

// CalculateForRun assembles one employee's inputs, runs the two-pass
// computation and persists the result in a single transaction. It is
// idempotent: unchanged inputs produce identical details and totals, and
// the (employee, period) unique constraint means two concurrent callers
// can never create duplicate rows.
func (s *CalculatorServiceImpl) CalculateForRun(
	ctx context.Context,
	emp employee.Employee,
	period payroll.PayrollPeriod,
	reg *conceptService.Registry,
) (payroll.Payroll, []payroll.PayrollDetail, []string, error) {
	if !period.Status.AllowsRecalculation() {
		return payroll.Payroll{}, nil, nil, &payroll.StateError{
			Entity: "period", ID: period.ID, Status: string(period.Status), Operation: "recalculate",
		}
	}

	existing, err := s.payrollRepo.GetByEmployeePeriod(ctx, emp.ID, period.ID)
	switch {
	case err == nil:
		if !existing.Status.AllowsRecalculation() {
			return payroll.Payroll{}, nil, nil, &payroll.StateError{
				Entity: "payroll", ID: existing.ID, Status: string(existing.Status), Operation: "recalculate",
			}
		}
	case errors.Is(err, payroll.ErrPayrollNotFound):
		// first calculation for this employee/period
	default:
		return payroll.Payroll{}, nil, nil, err
	}

	rows, err := s.attendanceRepo.GetByEmployeePeriod(ctx, emp.ID, period.StartDate, period.EndDate)
	if err != nil {
		return payroll.Payroll{}, nil, nil, fmt.Errorf("load attendance: %w", err)
	}
	summary, warnings := s.aggregator.Aggregate(emp.ID, rows, period.StartDate, period.EndDate, s.policy)

	benefits, err := s.benefitRepo.GetActiveForPeriod(ctx, emp.ID, period.StartDate, period.EndDate)
	if err != nil {
		return payroll.Payroll{}, nil, nil, fmt.Errorf("load benefits: %w", err)
	}

	leaves, err := s.leaveRepo.GetApprovedForPeriod(ctx, emp.ID, period.StartDate, period.EndDate)
	if err != nil {
		return payroll.Payroll{}, nil, nil, fmt.Errorf("load leave requests: %w", err)
	}

	result, details, computeWarnings, err := s.compute(emp, period, reg, summary, benefits, leaves)
	if err != nil {
		return payroll.Payroll{}, nil, nil, err
	}
	warnings = append(warnings, computeWarnings...)

	now := time.Now().UTC()
	result.Status = payroll.PayrollStatusCalculated
	result.CalculatedAt = &now

	var stored payroll.Payroll
	for attempt := 1; ; attempt++ {
		stored, err = s.payrollRepo.ReplaceResult(ctx, result, details)
		if err == nil {
			break
		}
		if errors.Is(err, payroll.ErrPayrollConflict) && attempt < s.conflictRetries {
			s.logger.Warn("payroll write conflict, retrying",
				slog.String("employee_id", emp.ID),
				slog.String("period_id", period.ID),
				slog.Int("attempt", attempt),
			)
			continue
		}
		return payroll.Payroll{}, nil, nil, err
	}

	return stored, details, warnings, nil
}

// compute runs the two ordered passes against the compiled registry. It is
// pure: no clock, no I/O, deterministic for fixed inputs.
func (s *CalculatorServiceImpl) compute(
	emp employee.Employee,
	period payroll.PayrollPeriod,
	reg *conceptService.Registry,
	summary attendance.Summary,
	benefits []benefit.EmployeeBenefit,
	leaves []leave.LeaveRequest,
) (payroll.Payroll, []payroll.PayrollDetail, []string, error) {
	var warnings []string

	assigned := make(map[string]benefit.EmployeeBenefit, len(benefits))
	for _, b := range benefits {
		if !b.CoversPeriod(period.StartDate, period.EndDate) {
			continue
		}
		// An assignment pointing at a concept outside the active catalog
		// (deactivated since the assignment was made) is a missing input,
		// not a fatal error.
		if _, ok := reg.ByID(b.PayrollConceptID); !ok {
			warnings = append(warnings, fmt.Sprintf(
				"employee %s: benefit assignment %s references concept %s which is not in the active catalog, skipped",
				emp.ID, b.ID, b.PayrollConceptID,
			))
			continue
		}
		assigned[b.PayrollConceptID] = b
	}

	workedDays := s.effectiveWorkedDays(summary, leaves, period)
	periodDays := decimal.NewFromInt(int64(period.EndDate.Sub(period.StartDate).Hours()/24) + 1)

	vars := formula.Variables{
		formula.VarBaseSalary:           emp.BaseSalary,
		formula.VarWorkedDays:           workedDays,
		formula.VarWorkedHours:          summary.WorkedHours,
		formula.VarOvertimeHours:        summary.OvertimeHours,
		formula.VarCesantiasAccumulated: decimal.Zero,
		formula.VarPeriodDays:           periodDays,
	}

	var details []payroll.PayrollDetail

	totalEarnings := decimal.Zero
	taxableIncome := decimal.Zero
	overtimeAmount := decimal.Zero

	// Pass 1: earnings build the taxable base.
	for _, cc := range reg.Pass1 {
		b, hasAssignment := assigned[cc.Concept.ID]
		if !cc.Concept.IsMandatory && !hasAssignment {
			continue
		}

		var override *decimal.Decimal
		if hasAssignment {
			override = b.Amount
		}

		detail, err := evaluateConcept(cc, vars, override)
		if err != nil {
			return payroll.Payroll{}, nil, nil, err
		}

		totalEarnings = totalEarnings.Add(detail.Amount)
		if cc.Concept.IsTaxable {
			taxableIncome = taxableIncome.Add(detail.Amount)
		}
		if cc.Program != nil && cc.Program.References(formula.VarOvertimeHours) {
			overtimeAmount = overtimeAmount.Add(detail.Amount)
			qty := summary.OvertimeHours
			detail.Quantity = &qty
		}
		details = append(details, detail)
	}

	// The taxable base is final: pass 2 may now read it.
	vars[formula.VarTaxableIncome] = taxableIncome

	totalDeductions := decimal.Zero
	totalTaxes := decimal.Zero
	employerContributions := decimal.Zero

	// Pass 2: deductions, taxes and employer-side contributions.
	for _, cc := range reg.Pass2 {
		b, hasAssignment := assigned[cc.Concept.ID]
		if !cc.Concept.IsMandatory && !hasAssignment {
			continue
		}

		var override *decimal.Decimal
		if hasAssignment {
			override = b.Amount
		}

		detail, err := evaluateConcept(cc, vars, override)
		if err != nil {
			return payroll.Payroll{}, nil, nil, err
		}

		switch cc.Concept.Type {
		case concept.ConceptTypeDeduction:
			totalDeductions = totalDeductions.Add(detail.Amount)
		case concept.ConceptTypeTax:
			totalTaxes = totalTaxes.Add(detail.Amount)
		case concept.ConceptTypeBenefit:
			// Employer-side: reported, never withheld from the employee.
			employerContributions = employerContributions.Add(detail.Amount)
		}
		details = append(details, detail)
	}

	// Approved leave may carry an explicit deduction on top of the
	// worked-days reduction.
	leaveDeduction := decimal.Zero
	var leaveIDs []string
	for _, l := range leaves {
		if l.DeductionAmount != nil && l.DeductionAmount.IsPositive() {
			leaveDeduction = leaveDeduction.Add(*l.DeductionAmount)
			leaveIDs = append(leaveIDs, l.ID)
		}
	}
	if leaveDeduction.IsPositive() {
		if cc, ok := reg.ByCode(concept.CodeLeaveDeduction); ok {
			amount := leaveDeduction.Round(2)
			totalDeductions = totalDeductions.Add(amount)
			details = append(details, payroll.PayrollDetail{
				PayrollConceptID: cc.Concept.ID,
				ConceptCode:      cc.Concept.Code,
				ConceptType:      string(cc.Concept.Type),
				Amount:           amount,
				Trace:            fmt.Sprintf("leave deduction from request(s) %s", strings.Join(leaveIDs, ", ")),
				DisplayOrder:     cc.Concept.DisplayOrder,
			})
		} else {
			warnings = append(warnings, fmt.Sprintf(
				"employee %s: leave deduction of %s skipped, concept %s is not registered",
				emp.ID, leaveDeduction, concept.CodeLeaveDeduction,
			))
		}
	}

	grossSalary := totalEarnings
	netSalary := grossSalary.Sub(totalDeductions).Sub(totalTaxes)

	result := payroll.Payroll{
		EmployeeID:            emp.ID,
		PayrollPeriodID:       period.ID,
		BaseSalary:            emp.BaseSalary,
		GrossSalary:           grossSalary,
		TotalEarnings:         totalEarnings,
		TotalDeductions:       totalDeductions,
		TotalTaxes:            totalTaxes,
		EmployerContributions: employerContributions,
		NetSalary:             netSalary,
		WorkedDays:            workedDays,
		WorkedHours:           summary.WorkedHours,
		OvertimeHours:         summary.OvertimeHours,
		OvertimeAmount:        overtimeAmount,
		Status:                payroll.PayrollStatusDraft,
	}

	return result, details, warnings, nil
}

// effectiveWorkedDays subtracts unpaid approved-leave days from the
// aggregated worked days. The subtraction only applies when the pay policy
// counted leave days as worked in the first place; otherwise the aggregator
// already excluded them.
func (s *CalculatorServiceImpl) effectiveWorkedDays(summary attendance.Summary, leaves []leave.LeaveRequest, period payroll.PayrollPeriod) decimal.Decimal {
	workedDays := summary.WorkedDays
	if !s.policy.PaidLeave {
		return workedDays
	}
	for _, l := range leaves {
		if l.IsPaid {
			continue
		}
		days := decimal.NewFromInt(int64(l.DaysWithin(period.StartDate, period.EndDate)))
		workedDays = workedDays.Sub(days)
	}
	if workedDays.IsNegative() {
		return decimal.Zero
	}
	return workedDays
}

// evaluateConcept resolves one concept against the context. Amounts round
// to cents half-up so recomputation is exact.
func evaluateConcept(cc conceptService.CompiledConcept, vars formula.Variables, override *decimal.Decimal) (payroll.PayrollDetail, error) {
	detail := payroll.PayrollDetail{
		PayrollConceptID: cc.Concept.ID,
		ConceptCode:      cc.Concept.Code,
		ConceptType:      string(cc.Concept.Type),
		DisplayOrder:     cc.Concept.DisplayOrder,
	}

	switch cc.Concept.CalculationType {
	case concept.CalculationTypeFixed:
		value := cc.Concept.DefaultValue
		if override != nil {
			value = *override
		}
		detail.Amount = value.Round(2)
		detail.Trace = "fixed"

	case concept.CalculationTypePercentage:
		base, ok := vars[cc.BaseVariable]
		if !ok {
			return payroll.PayrollDetail{}, fmt.Errorf("concept %s: %w", cc.Concept.Code, payroll.ErrDependencyUnresolved)
		}
		rate := cc.Rate
		if override != nil {
			rate = *override
		}
		detail.Amount = base.Mul(rate).Round(2)
		detail.BaseAmount = &base
		detail.Rate = &rate
		detail.Trace = fmt.Sprintf("%s * %s", cc.BaseVariable, rate)

	case concept.CalculationTypeFormula:
		// The registry blocks taxable_income in pass 1 at registration;
		// this guards catalog rows that predate validation.
		if conceptService.PassFor(cc.Concept.Type) == conceptService.PassEarnings && cc.Program.References(formula.VarTaxableIncome) {
			return payroll.PayrollDetail{}, fmt.Errorf("concept %s: %w", cc.Concept.Code, payroll.ErrDependencyUnresolved)
		}
		value, err := cc.Program.Evaluate(vars)
		if err != nil {
			return payroll.PayrollDetail{}, fmt.Errorf("concept %s: %w", cc.Concept.Code, err)
		}
		detail.Amount = value.Round(2)
		detail.Trace = fmt.Sprintf("%s = %s", cc.Program.Source(), detail.Amount)
	}

	return detail, nil
}
