package payroll

import (
	"context"
	"fmt"
	"testing"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/concept"
	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPeriodFixture(t *testing.T, catalog []concept.PayrollConcept) (*engineFixture, *PeriodServiceImpl) {
	t.Helper()
	f := newEngineFixture(t, catalog, testVocab())
	svc := NewPeriodService(
		f.periodRepo,
		f.payrollRepo,
		f.employeeRepo,
		f.calculator,
		f.conceptSvc,
		testLogger(),
		4,
		0,
	)
	return f, svc
}

func addEmployee(t *testing.T, f *engineFixture, id, code, salary string) {
	t.Helper()
	f.employeeRepo.employees = append(f.employeeRepo.employees, employee.Employee{
		ID:               id,
		EmployeeCode:     code,
		FullName:         code,
		EmploymentStatus: employee.EmploymentStatusActive,
		BaseSalary:       dec(salary),
	})
	f.attendanceRepo.rows[id] = fullAttendance(t, id, "2025-06-01", "2025-06-30")
}

func TestPeriodService_CreateValidation(t *testing.T) {
	_, svc := newPeriodFixture(t, testCatalog())

	_, err := svc.Create(context.Background(), payroll.CreatePeriodRequest{
		Name:       "Backwards",
		StartDate:  "2025-06-30",
		EndDate:    "2025-06-01",
		PayDate:    "2025-07-01",
		PeriodType: "monthly",
	})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)

	created, err := svc.Create(context.Background(), payroll.CreatePeriodRequest{
		Name:       "Junio 2025",
		StartDate:  "2025-06-01",
		EndDate:    "2025-06-30",
		PayDate:    "2025-07-01",
		PeriodType: "monthly",
	})
	require.NoError(t, err)
	assert.Equal(t, string(payroll.PeriodStatusDraft), created.Status)
	assert.Equal(t, "2025-06-01", created.StartDate)
	assert.Equal(t, "2025-06-30", created.EndDate)
	assert.Equal(t, "2025-07-01", created.PayDate)
}

func TestPeriodService_Lifecycle(t *testing.T) {
	f, svc := newPeriodFixture(t, testCatalog())
	ctx := context.Background()

	addEmployee(t, f, "emp-2", "E002", "3600000")

	// Process: draft moves to processing, everyone succeeds.
	result, err := svc.Process(ctx, "period-jun", "actor-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"emp-1", "emp-2"}, result.Succeeded)
	assert.Empty(t, result.Failed)

	period, err := f.periodRepo.GetByID(ctx, "period-jun")
	require.NoError(t, err)
	assert.Equal(t, payroll.PeriodStatusProcessing, period.Status)

	// Totals are the exact sums over both payroll rows.
	rows, err := f.payrollRepo.ListByPeriod(ctx, "period-jun")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	wantGross, wantNet := decimal.Zero, decimal.Zero
	for _, p := range rows {
		wantGross = wantGross.Add(p.GrossSalary)
		wantNet = wantNet.Add(p.NetSalary)
	}
	assert.True(t, period.TotalGross.Equal(wantGross), "gross %s != %s", period.TotalGross, wantGross)
	assert.True(t, period.TotalNet.Equal(wantNet))

	// Approve freezes results and stamps the actor.
	require.NoError(t, svc.Approve(ctx, "period-jun", "actor-1"))
	period, err = f.periodRepo.GetByID(ctx, "period-jun")
	require.NoError(t, err)
	assert.Equal(t, payroll.PeriodStatusApproved, period.Status)
	require.NotNil(t, period.ApprovedBy)
	assert.Equal(t, "actor-1", *period.ApprovedBy)

	rows, err = f.payrollRepo.ListByPeriod(ctx, "period-jun")
	require.NoError(t, err)
	for _, p := range rows {
		assert.Equal(t, payroll.PayrollStatusApproved, p.Status)
		assert.NotNil(t, p.ApprovedAt)
	}

	// Processing an approved period is a state violation.
	_, err = svc.Process(ctx, "period-jun", "actor-1")
	var stateErr *payroll.StateError
	require.ErrorAs(t, err, &stateErr)

	// Approving twice is too.
	err = svc.Approve(ctx, "period-jun", "actor-1")
	require.ErrorAs(t, err, &stateErr)

	require.NoError(t, svc.MarkPaid(ctx, "period-jun"))
	rows, err = f.payrollRepo.ListByPeriod(ctx, "period-jun")
	require.NoError(t, err)
	for _, p := range rows {
		assert.Equal(t, payroll.PayrollStatusPaid, p.Status)
		assert.NotNil(t, p.PaidAt)
	}

	require.NoError(t, svc.Close(ctx, "period-jun", "actor-2"))
	period, err = f.periodRepo.GetByID(ctx, "period-jun")
	require.NoError(t, err)
	assert.Equal(t, payroll.PeriodStatusClosed, period.Status)
	require.NotNil(t, period.ClosedBy)
	assert.Equal(t, "actor-2", *period.ClosedBy)
}

func TestPeriodService_Process_Rerun(t *testing.T) {
	f, svc := newPeriodFixture(t, testCatalog())
	ctx := context.Background()

	_, err := svc.Process(ctx, "period-jun", "actor-1")
	require.NoError(t, err)

	// A second run over a processing period recomputes without duplicating.
	result, err := svc.Process(ctx, "period-jun", "actor-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"emp-1"}, result.Succeeded)

	rows, err := f.payrollRepo.ListByPeriod(ctx, "period-jun")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestPeriodService_Process_PartialFailure(t *testing.T) {
	// A per-employee formula failure must not sink the rest of the run.
	catalog := append(testCatalog(), concept.PayrollConcept{
		ID: "c-promedio", Code: "PROMEDIO_HORA", Name: "Valor hora promedio",
		Type: concept.ConceptTypeEarning, CalculationType: concept.CalculationTypeFormula,
		Formula:     strPtr("worked_hours / worked_days * 10"),
		IsMandatory: true, DisplayOrder: 35, Status: concept.ConceptStatusActive,
	})
	f, svc := newPeriodFixture(t, catalog)
	ctx := context.Background()

	// emp-2 has no attendance at all: worked_days is zero and the formula
	// divides by it.
	f.employeeRepo.employees = append(f.employeeRepo.employees, employee.Employee{
		ID: "emp-2", EmployeeCode: "E002", EmploymentStatus: employee.EmploymentStatusActive,
		BaseSalary: dec("3000000"),
	})

	result, err := svc.Process(ctx, "period-jun", "actor-1")
	require.NoError(t, err, "isolated employee failures do not fail the run")

	assert.Equal(t, []string{"emp-1"}, result.Succeeded)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "emp-2", result.Failed[0].EmployeeID)
	assert.Equal(t, payroll.FailureKindConfiguration, result.Failed[0].Kind)
	assert.Contains(t, result.Failed[0].Message, "PROMEDIO_HORA")

	// Totals cover only what committed.
	period, err := f.periodRepo.GetByID(ctx, "period-jun")
	require.NoError(t, err)
	row, err := f.payrollRepo.GetByEmployeePeriod(ctx, "emp-1", "period-jun")
	require.NoError(t, err)
	assert.True(t, period.TotalNet.Equal(row.NetSalary))
}

func TestPeriodService_Process_InvalidCatalogAborts(t *testing.T) {
	catalog := append(testCatalog(), concept.PayrollConcept{
		ID: "c-roto", Code: "ROTO", Name: "Broken",
		Type: concept.ConceptTypeEarning, CalculationType: concept.CalculationTypeFormula,
		Formula:     strPtr("base_salary +"),
		IsMandatory: true, DisplayOrder: 5, Status: concept.ConceptStatusActive,
	})
	f, svc := newPeriodFixture(t, catalog)

	_, err := svc.Process(context.Background(), "period-jun", "actor-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog")
	assert.Empty(t, f.payrollRepo.rows, "no employee may be processed against a broken catalog")
}

func TestPeriodService_Approve_RequiresAllCalculated(t *testing.T) {
	f, svc := newPeriodFixture(t, testCatalog())
	ctx := context.Background()

	_, err := svc.Process(ctx, "period-jun", "actor-1")
	require.NoError(t, err)

	// Knock one payroll back to draft behind the service's back.
	f.payrollRepo.mu.Lock()
	for id, p := range f.payrollRepo.rows {
		p.Status = payroll.PayrollStatusDraft
		f.payrollRepo.rows[id] = p
	}
	f.payrollRepo.mu.Unlock()

	err = svc.Approve(ctx, "period-jun", "actor-1")
	require.ErrorIs(t, err, payroll.ErrPayrollsNotCalculated)
}

func TestPeriodService_MarkPaid_WrongState(t *testing.T) {
	_, svc := newPeriodFixture(t, testCatalog())

	err := svc.MarkPaid(context.Background(), "period-jun")
	var stateErr *payroll.StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, "mark paid", stateErr.Operation)
}

func TestPeriodService_Process_NotFound(t *testing.T) {
	_, svc := newPeriodFixture(t, testCatalog())

	_, err := svc.Process(context.Background(), "missing", "actor-1")
	require.ErrorIs(t, err, payroll.ErrPeriodNotFound)
}

func TestPeriodService_GetPayrollWithDetails(t *testing.T) {
	f, svc := newPeriodFixture(t, testCatalog())
	ctx := context.Background()

	_, err := svc.Process(ctx, "period-jun", "actor-1")
	require.NoError(t, err)

	row, err := f.payrollRepo.GetByEmployeePeriod(ctx, "emp-1", "period-jun")
	require.NoError(t, err)

	got, err := svc.GetPayroll(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, row.ID, got.Payroll.ID)
	assert.NotEmpty(t, got.Details)
}

func TestPeriodService_Process_ManyEmployeesConcurrently(t *testing.T) {
	f, svc := newPeriodFixture(t, testCatalog())
	ctx := context.Background()

	for i := 2; i <= 20; i++ {
		addEmployee(t, f, fmt.Sprintf("emp-%02d", i), fmt.Sprintf("E%03d", i), "2000000")
	}

	result, err := svc.Process(ctx, "period-jun", "actor-1")
	require.NoError(t, err)
	require.Len(t, result.Succeeded, 20)
	assert.Empty(t, result.Failed)

	// All rows committed, totals consistent.
	rows, err := f.payrollRepo.ListByPeriod(ctx, "period-jun")
	require.NoError(t, err)
	assert.Len(t, rows, 20)

	period, err := f.periodRepo.GetByID(ctx, "period-jun")
	require.NoError(t, err)
	sum := decimal.Zero
	for _, p := range rows {
		sum = sum.Add(p.NetSalary)
	}
	assert.True(t, period.TotalNet.Equal(sum))
}
