package payroll

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
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
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- in-memory repositories ----

type memEmployeeRepo struct {
	employees []employee.Employee
}

func (r *memEmployeeRepo) GetByID(_ context.Context, id string) (employee.Employee, error) {
	for _, e := range r.employees {
		if e.ID == id {
			return e, nil
		}
	}
	return employee.Employee{}, employee.ErrEmployeeNotFound
}

func (r *memEmployeeRepo) GetActive(_ context.Context) ([]employee.Employee, error) {
	var active []employee.Employee
	for _, e := range r.employees {
		if e.EmploymentStatus == employee.EmploymentStatusActive {
			active = append(active, e)
		}
	}
	return active, nil
}

type memAttendanceRepo struct {
	rows map[string][]attendance.Attendance
}

func (r *memAttendanceRepo) GetByEmployeePeriod(_ context.Context, employeeID string, start, end time.Time) ([]attendance.Attendance, error) {
	var result []attendance.Attendance
	for _, row := range r.rows[employeeID] {
		if !row.Date.Before(start) && !row.Date.After(end) {
			result = append(result, row)
		}
	}
	return result, nil
}

type memBenefitRepo struct {
	benefits map[string][]benefit.EmployeeBenefit
}

func (r *memBenefitRepo) GetActiveForPeriod(_ context.Context, employeeID string, start, end time.Time) ([]benefit.EmployeeBenefit, error) {
	var result []benefit.EmployeeBenefit
	for _, b := range r.benefits[employeeID] {
		if b.CoversPeriod(start, end) {
			result = append(result, b)
		}
	}
	return result, nil
}

type memLeaveRepo struct {
	leaves map[string][]leave.LeaveRequest
}

func (r *memLeaveRepo) GetApprovedForPeriod(_ context.Context, employeeID string, start, end time.Time) ([]leave.LeaveRequest, error) {
	var result []leave.LeaveRequest
	for _, l := range r.leaves[employeeID] {
		if l.Status != leave.StatusApproved {
			continue
		}
		if l.StartDate.After(end) || l.EndDate.Before(start) {
			continue
		}
		result = append(result, l)
	}
	return result, nil
}

type memPayrollRepo struct {
	mu          sync.Mutex
	rows        map[string]payroll.Payroll
	details     map[string][]payroll.PayrollDetail
	byEmpPeriod map[string]string

	conflictsLeft int
}

func newMemPayrollRepo() *memPayrollRepo {
	return &memPayrollRepo{
		rows:        make(map[string]payroll.Payroll),
		details:     make(map[string][]payroll.PayrollDetail),
		byEmpPeriod: make(map[string]string),
	}
}

func empPeriodKey(employeeID, periodID string) string {
	return employeeID + "|" + periodID
}

func (r *memPayrollRepo) GetByID(_ context.Context, id string) (payroll.Payroll, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return payroll.Payroll{}, payroll.ErrPayrollNotFound
	}
	return p, nil
}

func (r *memPayrollRepo) GetByEmployeePeriod(_ context.Context, employeeID, periodID string) (payroll.Payroll, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byEmpPeriod[empPeriodKey(employeeID, periodID)]
	if !ok {
		return payroll.Payroll{}, payroll.ErrPayrollNotFound
	}
	return r.rows[id], nil
}

func (r *memPayrollRepo) ListByPeriod(_ context.Context, periodID string) ([]payroll.Payroll, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []payroll.Payroll
	for _, p := range r.rows {
		if p.PayrollPeriodID == periodID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (r *memPayrollRepo) ListDetails(_ context.Context, payrollID string) ([]payroll.PayrollDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]payroll.PayrollDetail(nil), r.details[payrollID]...), nil
}

func (r *memPayrollRepo) ReplaceResult(_ context.Context, p payroll.Payroll, details []payroll.PayrollDetail) (payroll.Payroll, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conflictsLeft > 0 {
		r.conflictsLeft--
		return payroll.Payroll{}, payroll.ErrPayrollConflict
	}

	key := empPeriodKey(p.EmployeeID, p.PayrollPeriodID)
	if existingID, ok := r.byEmpPeriod[key]; ok {
		if existing := r.rows[existingID]; !existing.Status.AllowsRecalculation() {
			return payroll.Payroll{}, &payroll.StateError{
				Entity: "payroll", ID: existing.ID, Status: string(existing.Status), Operation: "recalculate",
			}
		}
		p.ID = existingID
	} else if p.ID == "" {
		p.ID = uuid.New().String()
	}

	stored := make([]payroll.PayrollDetail, len(details))
	for i, d := range details {
		if d.ID == "" {
			d.ID = uuid.New().String()
		}
		d.PayrollID = p.ID
		stored[i] = d
	}

	r.rows[p.ID] = p
	r.details[p.ID] = stored
	r.byEmpPeriod[key] = p.ID
	return p, nil
}

func (r *memPayrollRepo) CountByPeriodNotInStatus(_ context.Context, periodID string, status payroll.PayrollStatus) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, p := range r.rows {
		if p.PayrollPeriodID == periodID && p.Status != status {
			count++
		}
	}
	return count, nil
}

func (r *memPayrollRepo) MarkApprovedByPeriod(_ context.Context, periodID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range r.rows {
		if p.PayrollPeriodID == periodID && p.Status == payroll.PayrollStatusCalculated {
			p.Status = payroll.PayrollStatusApproved
			p.ApprovedAt = &at
			r.rows[id] = p
		}
	}
	return nil
}

func (r *memPayrollRepo) MarkPaidByPeriod(_ context.Context, periodID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range r.rows {
		if p.PayrollPeriodID == periodID && p.Status == payroll.PayrollStatusApproved {
			p.Status = payroll.PayrollStatusPaid
			p.PaidAt = &at
			r.rows[id] = p
		}
	}
	return nil
}

type memPeriodRepo struct {
	mu       sync.Mutex
	periods  map[string]payroll.PayrollPeriod
	payrolls *memPayrollRepo
}

func newMemPeriodRepo(payrolls *memPayrollRepo) *memPeriodRepo {
	return &memPeriodRepo{
		periods:  make(map[string]payroll.PayrollPeriod),
		payrolls: payrolls,
	}
}

func (r *memPeriodRepo) Create(_ context.Context, p payroll.PayrollPeriod) (payroll.PayrollPeriod, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	r.periods[p.ID] = p
	return p, nil
}

func (r *memPeriodRepo) GetByID(_ context.Context, id string) (payroll.PayrollPeriod, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.periods[id]
	if !ok {
		return payroll.PayrollPeriod{}, payroll.ErrPeriodNotFound
	}
	return p, nil
}

func (r *memPeriodRepo) List(_ context.Context) ([]payroll.PayrollPeriod, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []payroll.PayrollPeriod
	for _, p := range r.periods {
		result = append(result, p)
	}
	return result, nil
}

func (r *memPeriodRepo) CompareAndSwapStatus(_ context.Context, id string, from, to payroll.PeriodStatus, actorID *string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.periods[id]
	if !ok || p.Status != from {
		return false, nil
	}
	now := time.Now().UTC()
	p.Status = to
	switch to {
	case payroll.PeriodStatusApproved:
		p.ApprovedAt = &now
		p.ApprovedBy = actorID
	case payroll.PeriodStatusPaid:
		p.PaidAt = &now
	case payroll.PeriodStatusClosed:
		p.ClosedAt = &now
		p.ClosedBy = actorID
	}
	r.periods[id] = p
	return true, nil
}

func (r *memPeriodRepo) UpdateTotals(ctx context.Context, id string) (payroll.PeriodTotals, error) {
	rows, err := r.payrolls.ListByPeriod(ctx, id)
	if err != nil {
		return payroll.PeriodTotals{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.periods[id]
	if !ok {
		return payroll.PeriodTotals{}, payroll.ErrPeriodNotFound
	}

	totals := payroll.PeriodTotals{
		TotalGross:      decimal.Zero,
		TotalDeductions: decimal.Zero,
		TotalNet:        decimal.Zero,
		PayrollCount:    len(rows),
	}
	for _, row := range rows {
		totals.TotalGross = totals.TotalGross.Add(row.GrossSalary)
		totals.TotalDeductions = totals.TotalDeductions.Add(row.TotalDeductions.Add(row.TotalTaxes))
		totals.TotalNet = totals.TotalNet.Add(row.NetSalary)
	}
	p.TotalGross = totals.TotalGross
	p.TotalDeductions = totals.TotalDeductions
	p.TotalNet = totals.TotalNet
	r.periods[id] = p
	return totals, nil
}

type memConceptRepo struct {
	mu       sync.Mutex
	concepts []concept.PayrollConcept
}

func (r *memConceptRepo) Create(_ context.Context, c concept.PayrollConcept) (concept.PayrollConcept, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	r.concepts = append(r.concepts, c)
	return c, nil
}

func (r *memConceptRepo) GetByID(_ context.Context, id string) (concept.PayrollConcept, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.concepts {
		if c.ID == id {
			return c, nil
		}
	}
	return concept.PayrollConcept{}, concept.ErrConceptNotFound
}

func (r *memConceptRepo) GetByCode(_ context.Context, code string) (concept.PayrollConcept, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.concepts {
		if c.Code == code {
			return c, nil
		}
	}
	return concept.PayrollConcept{}, concept.ErrConceptNotFound
}

func (r *memConceptRepo) List(_ context.Context, activeOnly bool) ([]concept.PayrollConcept, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []concept.PayrollConcept
	for _, c := range r.concepts {
		if activeOnly && c.Status != concept.ConceptStatusActive {
			continue
		}
		result = append(result, c)
	}
	return result, nil
}

func (r *memConceptRepo) Update(_ context.Context, req concept.UpdateConceptRequest) error {
	return nil
}

func (r *memConceptRepo) IsReferenced(_ context.Context, id string) (bool, error) {
	return false, nil
}

// ---- fixture ----

type engineFixture struct {
	employeeRepo   *memEmployeeRepo
	attendanceRepo *memAttendanceRepo
	benefitRepo    *memBenefitRepo
	leaveRepo      *memLeaveRepo
	payrollRepo    *memPayrollRepo
	periodRepo     *memPeriodRepo
	conceptRepo    *memConceptRepo
	conceptSvc     *conceptService.ConceptServiceImpl
	calculator     *CalculatorServiceImpl
	period         payroll.PayrollPeriod
}

func strPtr(s string) *string { return &s }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func fullAttendance(t *testing.T, employeeID, from, to string) []attendance.Attendance {
	t.Helper()
	var rows []attendance.Attendance
	for d := testDate(t, from); !d.After(testDate(t, to)); d = d.AddDate(0, 0, 1) {
		rows = append(rows, attendance.Attendance{
			ID:          uuid.New().String(),
			EmployeeID:  employeeID,
			Date:        d,
			WorkedHours: decimal.NewFromInt(8),
			Status:      attendance.StatusPresent,
		})
	}
	return rows
}

// testCatalog is the working catalog the calculator tests run against:
// a proportional base salary, an overtime formula, a 4% health withholding
// and an 8.5% employer health contribution.
func testCatalog() []concept.PayrollConcept {
	return []concept.PayrollConcept{
		{
			ID: "c-salario", Code: "SALARIO_BASE", Name: "Salario base",
			Type: concept.ConceptTypeEarning, CalculationType: concept.CalculationTypeFormula,
			Formula:   strPtr("base_salary / period_days * worked_days"),
			IsTaxable: true, IsMandatory: true, DisplayOrder: 10, Status: concept.ConceptStatusActive,
		},
		{
			ID: "c-bono", Code: "BONO", Name: "Bono",
			Type: concept.ConceptTypeEarning, CalculationType: concept.CalculationTypeFixed,
			DefaultValue: dec("100000"),
			DisplayOrder: 20, Status: concept.ConceptStatusActive,
		},
		{
			ID: "c-horas", Code: "HORAS_EXTRA", Name: "Horas extra",
			Type: concept.ConceptTypeEarning, CalculationType: concept.CalculationTypeFormula,
			Formula:   strPtr("base_salary / 240 * overtime_hours * 1.25"),
			IsTaxable: true, IsMandatory: true, DisplayOrder: 30, Status: concept.ConceptStatusActive,
		},
		{
			ID: "c-salud", Code: "SALUD_EMPLEADO", Name: "Salud empleado",
			Type: concept.ConceptTypeDeduction, CalculationType: concept.CalculationTypePercentage,
			Formula:     strPtr("taxable_income * 0.04"),
			IsMandatory: true, DisplayOrder: 40, Status: concept.ConceptStatusActive,
		},
		{
			ID: "c-salud-er", Code: "SALUD_EMPLEADOR", Name: "Salud empleador",
			Type: concept.ConceptTypeBenefit, CalculationType: concept.CalculationTypePercentage,
			Formula:               strPtr("taxable_income * 0.085"),
			AffectsSocialSecurity: true, IsMandatory: true, DisplayOrder: 80, Status: concept.ConceptStatusActive,
		},
		{
			ID: "c-ausencia", Code: concept.CodeLeaveDeduction, Name: "Deducción por ausencia",
			Type: concept.ConceptTypeDeduction, CalculationType: concept.CalculationTypeFixed,
			DisplayOrder: 200, Status: concept.ConceptStatusActive,
		},
	}
}

func testVocab() *formula.Vocabulary {
	return formula.NewVocabulary(
		formula.VarBaseSalary,
		formula.VarWorkedDays,
		formula.VarWorkedHours,
		formula.VarOvertimeHours,
		formula.VarTaxableIncome,
		formula.VarCesantiasAccumulated,
		formula.VarPeriodDays,
	)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngineFixture(t *testing.T, catalog []concept.PayrollConcept, vocab *formula.Vocabulary) *engineFixture {
	t.Helper()

	f := &engineFixture{
		employeeRepo:   &memEmployeeRepo{},
		attendanceRepo: &memAttendanceRepo{rows: make(map[string][]attendance.Attendance)},
		benefitRepo:    &memBenefitRepo{benefits: make(map[string][]benefit.EmployeeBenefit)},
		leaveRepo:      &memLeaveRepo{leaves: make(map[string][]leave.LeaveRequest)},
		payrollRepo:    newMemPayrollRepo(),
		conceptRepo:    &memConceptRepo{concepts: catalog},
	}
	f.periodRepo = newMemPeriodRepo(f.payrollRepo)
	f.conceptSvc = conceptService.NewConceptService(f.conceptRepo, vocab)
	f.calculator = NewCalculatorService(
		f.payrollRepo,
		f.periodRepo,
		f.employeeRepo,
		f.attendanceRepo,
		f.benefitRepo,
		f.leaveRepo,
		f.conceptSvc,
		attendanceService.NewAggregator(),
		attendanceService.PayPolicy{PaidLeave: true, PaidHolidays: true},
		testLogger(),
		3,
	)

	f.employeeRepo.employees = []employee.Employee{{
		ID:               "emp-1",
		EmployeeCode:     "E001",
		FullName:         "Ana Gómez",
		EmploymentStatus: employee.EmploymentStatusActive,
		BaseSalary:       dec("2400000"),
	}}

	f.period = payroll.PayrollPeriod{
		ID:         "period-jun",
		Name:       "Junio 2025",
		StartDate:  testDate(t, "2025-06-01"),
		EndDate:    testDate(t, "2025-06-30"),
		PayDate:    testDate(t, "2025-07-01"),
		PeriodType: payroll.PeriodTypeMonthly,
		Status:     payroll.PeriodStatusDraft,
	}
	_, err := f.periodRepo.Create(context.Background(), f.period)
	require.NoError(t, err)

	f.attendanceRepo.rows["emp-1"] = fullAttendance(t, "emp-1", "2025-06-01", "2025-06-30")

	return f
}

func (f *engineFixture) detailByCode(t *testing.T, details []payroll.PayrollDetail, code string) payroll.PayrollDetail {
	t.Helper()
	for _, d := range details {
		if d.ConceptCode == code {
			return d
		}
	}
	t.Fatalf("no detail for concept %s", code)
	return payroll.PayrollDetail{}
}

// ---- tests ----

func TestCalculateEmployee_TwoPassTotals(t *testing.T) {
	f := newEngineFixture(t, testCatalog(), testVocab())
	ctx := context.Background()

	// 10 approved overtime hours on one day.
	rows := f.attendanceRepo.rows["emp-1"]
	rows[9].OvertimeHours = decimal.NewFromInt(10)
	rows[9].IsOvertimeApproved = true

	p, details, err := f.calculator.CalculateEmployee(ctx, "emp-1", "period-jun")
	require.NoError(t, err)

	salario := f.detailByCode(t, details, "SALARIO_BASE")
	assert.True(t, salario.Amount.Equal(dec("2400000")), "salario = %s", salario.Amount)

	horas := f.detailByCode(t, details, "HORAS_EXTRA")
	assert.True(t, horas.Amount.Equal(dec("125000")), "horas extra = %s", horas.Amount)
	require.NotNil(t, horas.Quantity)
	assert.True(t, horas.Quantity.Equal(dec("10")))

	// Earnings seed the taxable base; the 4% withholding reads it in pass 2.
	salud := f.detailByCode(t, details, "SALUD_EMPLEADO")
	assert.True(t, salud.Amount.Equal(dec("101000")), "salud = %s", salud.Amount)
	require.NotNil(t, salud.BaseAmount)
	assert.True(t, salud.BaseAmount.Equal(dec("2525000")))

	saludER := f.detailByCode(t, details, "SALUD_EMPLEADOR")
	assert.True(t, saludER.Amount.Equal(dec("214625")), "salud empleador = %s", saludER.Amount)

	assert.True(t, p.GrossSalary.Equal(dec("2525000")))
	assert.True(t, p.TotalDeductions.Equal(dec("101000")))
	assert.True(t, p.EmployerContributions.Equal(dec("214625")))
	// Employer contributions never reduce the employee's net.
	assert.True(t, p.NetSalary.Equal(dec("2424000")), "net = %s", p.NetSalary)
	assert.True(t, p.OvertimeAmount.Equal(dec("125000")))
	assert.True(t, p.WorkedDays.Equal(dec("30")))
	assert.Equal(t, payroll.PayrollStatusCalculated, p.Status)
	require.NotNil(t, p.CalculatedAt)

	// Non-mandatory BONO has no assignment, so it must not appear.
	for _, d := range details {
		assert.NotEqual(t, "BONO", d.ConceptCode)
	}
}

func TestCalculateEmployee_Idempotent(t *testing.T) {
	f := newEngineFixture(t, testCatalog(), testVocab())
	ctx := context.Background()

	first, firstDetails, err := f.calculator.CalculateEmployee(ctx, "emp-1", "period-jun")
	require.NoError(t, err)

	second, secondDetails, err := f.calculator.CalculateEmployee(ctx, "emp-1", "period-jun")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "recompute must reuse the payroll row")
	assert.Len(t, f.payrollRepo.rows, 1)

	require.Equal(t, len(firstDetails), len(secondDetails))
	for i := range firstDetails {
		assert.Equal(t, firstDetails[i].ConceptCode, secondDetails[i].ConceptCode)
		assert.True(t, firstDetails[i].Amount.Equal(secondDetails[i].Amount),
			"%s: %s != %s", firstDetails[i].ConceptCode, firstDetails[i].Amount, secondDetails[i].Amount)
	}

	stored, err := f.payrollRepo.ListDetails(ctx, second.ID)
	require.NoError(t, err)
	assert.Len(t, stored, len(firstDetails), "second run must not duplicate details")
}

func TestCalculateForRun_PeriodStateGuard(t *testing.T) {
	f := newEngineFixture(t, testCatalog(), testVocab())
	ctx := context.Background()

	f.period.Status = payroll.PeriodStatusApproved

	emp, err := f.employeeRepo.GetByID(ctx, "emp-1")
	require.NoError(t, err)
	reg, err := f.conceptSvc.LoadRegistry(ctx)
	require.NoError(t, err)

	_, _, _, err = f.calculator.CalculateForRun(ctx, emp, f.period, reg)
	var stateErr *payroll.StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, "period", stateErr.Entity)
	assert.Empty(t, f.payrollRepo.rows, "no rows may be written")
}

func TestCalculateForRun_FrozenPayrollGuard(t *testing.T) {
	f := newEngineFixture(t, testCatalog(), testVocab())
	ctx := context.Background()

	p, _, err := f.calculator.CalculateEmployee(ctx, "emp-1", "period-jun")
	require.NoError(t, err)

	// Freeze the row the way an approval would.
	f.payrollRepo.mu.Lock()
	frozen := f.payrollRepo.rows[p.ID]
	frozen.Status = payroll.PayrollStatusApproved
	f.payrollRepo.rows[p.ID] = frozen
	f.payrollRepo.mu.Unlock()

	_, _, err = f.calculator.CalculateEmployee(ctx, "emp-1", "period-jun")
	var stateErr *payroll.StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, "payroll", stateErr.Entity)
}

// An approval that lands after the calculator's status check but before the
// write must still be refused at the write itself: the persistence layer is
// the serialization point, and a frozen row is never downgraded.
func TestReplaceResult_RefusesFrozenRow(t *testing.T) {
	f := newEngineFixture(t, testCatalog(), testVocab())
	ctx := context.Background()

	p, details, err := f.calculator.CalculateEmployee(ctx, "emp-1", "period-jun")
	require.NoError(t, err)

	require.NoError(t, f.payrollRepo.MarkApprovedByPeriod(ctx, "period-jun", time.Now().UTC()))

	// Recompute payload built before the approval landed.
	recompute := p
	recompute.NetSalary = dec("1")
	recompute.Status = payroll.PayrollStatusCalculated
	_, err = f.payrollRepo.ReplaceResult(ctx, recompute, details)

	var stateErr *payroll.StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, "payroll", stateErr.Entity)
	assert.Equal(t, string(payroll.PayrollStatusApproved), stateErr.Status)

	stored, err := f.payrollRepo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.PayrollStatusApproved, stored.Status)
	assert.True(t, stored.NetSalary.Equal(p.NetSalary), "amounts must be untouched")
}

func TestCalculateForRun_MissingAttendanceWarns(t *testing.T) {
	f := newEngineFixture(t, testCatalog(), testVocab())
	ctx := context.Background()

	// Only 27 of 30 days recorded.
	f.attendanceRepo.rows["emp-1"] = fullAttendance(t, "emp-1", "2025-06-01", "2025-06-27")

	emp, err := f.employeeRepo.GetByID(ctx, "emp-1")
	require.NoError(t, err)
	reg, err := f.conceptSvc.LoadRegistry(ctx)
	require.NoError(t, err)

	p, _, warnings, err := f.calculator.CalculateForRun(ctx, emp, f.period, reg)
	require.NoError(t, err, "missing attendance must not be fatal")
	assert.Len(t, warnings, 3)
	assert.True(t, p.WorkedDays.Equal(dec("27")))
	// 2,400,000 / 30 * 27
	assert.True(t, p.GrossSalary.Equal(dec("2160000")), "gross = %s", p.GrossSalary)
}

func TestCalculateForRun_BenefitAssignmentAndOverride(t *testing.T) {
	f := newEngineFixture(t, testCatalog(), testVocab())
	ctx := context.Background()

	override := dec("300000")
	f.benefitRepo.benefits["emp-1"] = []benefit.EmployeeBenefit{{
		ID:               "ben-1",
		EmployeeID:       "emp-1",
		PayrollConceptID: "c-bono",
		Amount:           &override,
		Frequency:        benefit.FrequencyRecurring,
		StartDate:        testDate(t, "2025-01-01"),
		Status:           benefit.StatusActive,
	}}

	_, details, err := f.calculator.CalculateEmployee(ctx, "emp-1", "period-jun")
	require.NoError(t, err)

	bono := f.detailByCode(t, details, "BONO")
	assert.True(t, bono.Amount.Equal(dec("300000")), "override beats the default value, got %s", bono.Amount)
}

func TestCalculateForRun_BenefitWithInactiveConceptWarns(t *testing.T) {
	f := newEngineFixture(t, testCatalog(), testVocab())
	ctx := context.Background()

	amount := dec("50000")
	f.benefitRepo.benefits["emp-1"] = []benefit.EmployeeBenefit{{
		ID:               "ben-stale",
		EmployeeID:       "emp-1",
		PayrollConceptID: "c-retired",
		Amount:           &amount,
		Frequency:        benefit.FrequencyRecurring,
		StartDate:        testDate(t, "2025-01-01"),
		Status:           benefit.StatusActive,
	}}

	emp, err := f.employeeRepo.GetByID(ctx, "emp-1")
	require.NoError(t, err)
	reg, err := f.conceptSvc.LoadRegistry(ctx)
	require.NoError(t, err)

	_, details, warnings, err := f.calculator.CalculateForRun(ctx, emp, f.period, reg)
	require.NoError(t, err)

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "ben-stale")
	assert.Contains(t, warnings[0], "not in the active catalog")
	for _, d := range details {
		assert.NotEqual(t, "c-retired", d.PayrollConceptID)
	}
}

func TestCalculateForRun_BenefitWindowExcludes(t *testing.T) {
	f := newEngineFixture(t, testCatalog(), testVocab())
	ctx := context.Background()

	ended := testDate(t, "2025-05-31")
	f.benefitRepo.benefits["emp-1"] = []benefit.EmployeeBenefit{{
		ID:               "ben-old",
		EmployeeID:       "emp-1",
		PayrollConceptID: "c-bono",
		StartDate:        testDate(t, "2025-01-01"),
		EndDate:          &ended,
		Status:           benefit.StatusActive,
	}}

	_, details, err := f.calculator.CalculateEmployee(ctx, "emp-1", "period-jun")
	require.NoError(t, err)

	for _, d := range details {
		assert.NotEqual(t, "BONO", d.ConceptCode, "assignment ended before the period")
	}
}

func TestCalculateForRun_UnpaidLeave(t *testing.T) {
	f := newEngineFixture(t, testCatalog(), testVocab())
	ctx := context.Background()

	// Two unpaid leave days with an explicit deduction attached.
	rows := f.attendanceRepo.rows["emp-1"]
	rows[4].Status = attendance.StatusLeave
	rows[4].WorkedHours = decimal.Zero
	rows[5].Status = attendance.StatusLeave
	rows[5].WorkedHours = decimal.Zero

	deduction := dec("160000")
	f.leaveRepo.leaves["emp-1"] = []leave.LeaveRequest{{
		ID:              "leave-1",
		EmployeeID:      "emp-1",
		StartDate:       testDate(t, "2025-06-05"),
		EndDate:         testDate(t, "2025-06-06"),
		IsPaid:          false,
		DeductionAmount: &deduction,
		Status:          leave.StatusApproved,
	}}

	p, details, err := f.calculator.CalculateEmployee(ctx, "emp-1", "period-jun")
	require.NoError(t, err)

	// 30 attended days minus 2 unpaid leave days.
	assert.True(t, p.WorkedDays.Equal(dec("28")), "worked days = %s", p.WorkedDays)
	// 2,400,000 / 30 * 28
	assert.True(t, p.GrossSalary.Equal(dec("2240000")), "gross = %s", p.GrossSalary)

	ausencia := f.detailByCode(t, details, concept.CodeLeaveDeduction)
	assert.True(t, ausencia.Amount.Equal(dec("160000")))
	assert.Contains(t, ausencia.Trace, "leave-1")

	// salud 4% of 2,240,000 = 89,600; net = 2,240,000 - 89,600 - 160,000.
	assert.True(t, p.TotalDeductions.Equal(dec("249600")), "deductions = %s", p.TotalDeductions)
	assert.True(t, p.NetSalary.Equal(dec("1990400")), "net = %s", p.NetSalary)
}

func TestCalculateForRun_LeaveDeductionWithoutConceptWarns(t *testing.T) {
	catalog := testCatalog()
	// Drop the reserved deduction concept from the catalog.
	var trimmed []concept.PayrollConcept
	for _, c := range catalog {
		if c.Code != concept.CodeLeaveDeduction {
			trimmed = append(trimmed, c)
		}
	}
	f := newEngineFixture(t, trimmed, testVocab())
	ctx := context.Background()

	deduction := dec("50000")
	f.leaveRepo.leaves["emp-1"] = []leave.LeaveRequest{{
		ID: "leave-9", EmployeeID: "emp-1",
		StartDate: testDate(t, "2025-06-10"), EndDate: testDate(t, "2025-06-10"),
		IsPaid: true, DeductionAmount: &deduction, Status: leave.StatusApproved,
	}}

	emp, err := f.employeeRepo.GetByID(ctx, "emp-1")
	require.NoError(t, err)
	reg, err := f.conceptSvc.LoadRegistry(ctx)
	require.NoError(t, err)

	p, _, warnings, err := f.calculator.CalculateForRun(ctx, emp, f.period, reg)
	require.NoError(t, err)
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[len(warnings)-1], concept.CodeLeaveDeduction)
	// The unbookable amount is skipped, not silently folded into totals.
	assert.True(t, p.TotalDeductions.Equal(dec("96000")), "deductions = %s", p.TotalDeductions)
}

func TestCalculateForRun_IncomeTax(t *testing.T) {
	table, err := formula.ParseTaxTable([][3]string{
		{"0", "2000000", "0"},
		{"2000000", "", "0.1"},
	})
	require.NoError(t, err)
	vocab := testVocab()
	vocab.RegisterFunc(table.IncomeTaxFunc())

	catalog := append(testCatalog(), concept.PayrollConcept{
		ID: "c-ret", Code: "RETENCION_FUENTE", Name: "Retención",
		Type: concept.ConceptTypeTax, CalculationType: concept.CalculationTypeFormula,
		Formula:     strPtr("calculateIncomeTax(taxable_income)"),
		IsMandatory: true, DisplayOrder: 70, Status: concept.ConceptStatusActive,
	})

	f := newEngineFixture(t, catalog, vocab)
	ctx := context.Background()

	p, details, err := f.calculator.CalculateEmployee(ctx, "emp-1", "period-jun")
	require.NoError(t, err)

	// taxable 2,400,000: first 2,000,000 exempt, 400,000 at 10%.
	ret := f.detailByCode(t, details, "RETENCION_FUENTE")
	assert.True(t, ret.Amount.Equal(dec("40000")), "retención = %s", ret.Amount)
	assert.True(t, p.TotalTaxes.Equal(dec("40000")))
	// net = 2,400,000 - 96,000 (salud) - 40,000.
	assert.True(t, p.NetSalary.Equal(dec("2264000")), "net = %s", p.NetSalary)
}

func TestCalculateForRun_ConflictRetry(t *testing.T) {
	f := newEngineFixture(t, testCatalog(), testVocab())
	ctx := context.Background()

	f.payrollRepo.conflictsLeft = 2
	_, _, err := f.calculator.CalculateEmployee(ctx, "emp-1", "period-jun")
	require.NoError(t, err, "two conflicts fit inside three attempts")

	f.payrollRepo.conflictsLeft = 5
	_, _, err = f.calculator.CalculateEmployee(ctx, "emp-1", "period-jun")
	require.ErrorIs(t, err, payroll.ErrPayrollConflict)
}

func TestCalculateForRun_OrderIndependence(t *testing.T) {
	// Insert the catalog in two different orders; display_order decides
	// evaluation, so results must be identical.
	catalog := testCatalog()
	reversed := make([]concept.PayrollConcept, len(catalog))
	for i, c := range catalog {
		reversed[len(catalog)-1-i] = c
	}

	run := func(cat []concept.PayrollConcept) (payroll.Payroll, []payroll.PayrollDetail) {
		f := newEngineFixture(t, cat, testVocab())
		p, details, err := f.calculator.CalculateEmployee(context.Background(), "emp-1", "period-jun")
		require.NoError(t, err)
		return p, details
	}

	p1, d1 := run(catalog)
	p2, d2 := run(reversed)

	assert.True(t, p1.NetSalary.Equal(p2.NetSalary))
	require.Equal(t, len(d1), len(d2))
	for i := range d1 {
		assert.Equal(t, d1[i].ConceptCode, d2[i].ConceptCode, "detail order must follow display_order, not insertion")
		assert.True(t, d1[i].Amount.Equal(d2[i].Amount))
	}
}

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want payroll.FailureKind
	}{
		{"timeout", context.DeadlineExceeded, payroll.FailureKindTimeout},
		{"state", &payroll.StateError{Entity: "period"}, payroll.FailureKindState},
		{"dependency", fmt.Errorf("concept X: %w", payroll.ErrDependencyUnresolved), payroll.FailureKindDependency},
		{"persistence", payroll.ErrPayrollConflict, payroll.FailureKindPersistence},
		{"configuration", &formula.Error{Kind: formula.ErrKindEval, Message: "division by zero"}, payroll.FailureKindConfiguration},
		{"internal", fmt.Errorf("boom"), payroll.FailureKindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyFailure(tt.err))
		})
	}
}
