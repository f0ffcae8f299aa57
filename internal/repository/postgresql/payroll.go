package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type payrollRepository struct {
	db *database.DB
}

func NewPayrollRepository(db *database.DB) payroll.PayrollRepository {
	return &payrollRepository{db: db}
}

const payrollColumns = `
	id, employee_id, payroll_period_id, base_salary, gross_salary,
	total_earnings, total_deductions, total_taxes, employer_contributions,
	net_salary, worked_days, worked_hours, overtime_hours, overtime_amount,
	status, calculated_at, approved_at, paid_at, created_at, updated_at
`

func scanPayroll(row pgx.Row) (payroll.Payroll, error) {
	var p payroll.Payroll
	err := row.Scan(
		&p.ID, &p.EmployeeID, &p.PayrollPeriodID, &p.BaseSalary, &p.GrossSalary,
		&p.TotalEarnings, &p.TotalDeductions, &p.TotalTaxes, &p.EmployerContributions,
		&p.NetSalary, &p.WorkedDays, &p.WorkedHours, &p.OvertimeHours, &p.OvertimeAmount,
		&p.Status, &p.CalculatedAt, &p.ApprovedAt, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (r *payrollRepository) GetByID(ctx context.Context, id string) (payroll.Payroll, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + payrollColumns + ` FROM payrolls WHERE id = $1`

	p, err := scanPayroll(q.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return payroll.Payroll{}, payroll.ErrPayrollNotFound
		}
		return payroll.Payroll{}, fmt.Errorf("failed to get payroll: %w", err)
	}

	return p, nil
}

func (r *payrollRepository) GetByEmployeePeriod(ctx context.Context, employeeID, periodID string) (payroll.Payroll, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + payrollColumns + ` FROM payrolls WHERE employee_id = $1 AND payroll_period_id = $2`

	p, err := scanPayroll(q.QueryRow(ctx, query, employeeID, periodID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return payroll.Payroll{}, payroll.ErrPayrollNotFound
		}
		return payroll.Payroll{}, fmt.Errorf("failed to get payroll by employee and period: %w", err)
	}

	return p, nil
}

func (r *payrollRepository) ListByPeriod(ctx context.Context, periodID string) ([]payroll.Payroll, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + payrollColumns + ` FROM payrolls WHERE payroll_period_id = $1 ORDER BY employee_id`

	rows, err := q.Query(ctx, query, periodID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payrolls: %w", err)
	}
	defer rows.Close()

	var payrolls []payroll.Payroll
	for rows.Next() {
		p, err := scanPayroll(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payroll: %w", err)
		}
		payrolls = append(payrolls, p)
	}

	return payrolls, rows.Err()
}

func (r *payrollRepository) ListDetails(ctx context.Context, payrollID string) ([]payroll.PayrollDetail, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT d.id, d.payroll_id, d.payroll_concept_id, c.code, c.concept_type,
			   d.amount, d.base_amount, d.rate, d.quantity, d.trace, d.display_order, d.created_at
		FROM payroll_details d
		JOIN payroll_concepts c ON c.id = d.payroll_concept_id
		WHERE d.payroll_id = $1
		ORDER BY d.display_order, c.code
	`

	rows, err := q.Query(ctx, query, payrollID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll details: %w", err)
	}
	defer rows.Close()

	var details []payroll.PayrollDetail
	for rows.Next() {
		var d payroll.PayrollDetail
		if err := rows.Scan(
			&d.ID, &d.PayrollID, &d.PayrollConceptID, &d.ConceptCode, &d.ConceptType,
			&d.Amount, &d.BaseAmount, &d.Rate, &d.Quantity, &d.Trace, &d.DisplayOrder, &d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan payroll detail: %w", err)
		}
		details = append(details, d)
	}

	return details, rows.Err()
}

// ReplaceResult upserts the payroll row and swaps its detail set in one
// transaction. The unique index on (employee_id, payroll_period_id) is the
// serialization point for concurrent recomputes of the same employee: a
// duplicate insert racing the upsert surfaces as ErrPayrollConflict so the
// caller can retry, and the conflict branch only fires while the row is
// still replaceable, so an approval landing mid-recompute can never be
// overwritten.
func (r *payrollRepository) ReplaceResult(ctx context.Context, p payroll.Payroll, details []payroll.PayrollDetail) (payroll.Payroll, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	var saved payroll.Payroll
	err := WithTransaction(ctx, r.db, func(tx pgx.Tx) error {
		// Status list must match PayrollStatus.AllowsRecalculation.
		upsert := `
			INSERT INTO payrolls (
				id, employee_id, payroll_period_id, base_salary, gross_salary,
				total_earnings, total_deductions, total_taxes, employer_contributions,
				net_salary, worked_days, worked_hours, overtime_hours, overtime_amount,
				status, calculated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			ON CONFLICT (employee_id, payroll_period_id) DO UPDATE SET
				base_salary = EXCLUDED.base_salary,
				gross_salary = EXCLUDED.gross_salary,
				total_earnings = EXCLUDED.total_earnings,
				total_deductions = EXCLUDED.total_deductions,
				total_taxes = EXCLUDED.total_taxes,
				employer_contributions = EXCLUDED.employer_contributions,
				net_salary = EXCLUDED.net_salary,
				worked_days = EXCLUDED.worked_days,
				worked_hours = EXCLUDED.worked_hours,
				overtime_hours = EXCLUDED.overtime_hours,
				overtime_amount = EXCLUDED.overtime_amount,
				status = EXCLUDED.status,
				calculated_at = EXCLUDED.calculated_at,
				updated_at = NOW()
			WHERE payrolls.status IN ('draft', 'calculated', 'rejected')
			RETURNING ` + payrollColumns

		var err error
		saved, err = scanPayroll(tx.QueryRow(ctx, upsert,
			p.ID, p.EmployeeID, p.PayrollPeriodID, p.BaseSalary, p.GrossSalary,
			p.TotalEarnings, p.TotalDeductions, p.TotalTaxes, p.EmployerContributions,
			p.NetSalary, p.WorkedDays, p.WorkedHours, p.OvertimeHours, p.OvertimeAmount,
			p.Status, p.CalculatedAt,
		))
		if err != nil {
			if err == pgx.ErrNoRows {
				// The guard blocked the update: the row froze after the
				// caller last read it. Re-read under the transaction to
				// report its actual status.
				frozen, readErr := r.GetByEmployeePeriod(WithTx(ctx, tx), p.EmployeeID, p.PayrollPeriodID)
				if readErr != nil {
					return fmt.Errorf("failed to upsert payroll: %w", err)
				}
				return &payroll.StateError{
					Entity: "payroll", ID: frozen.ID, Status: string(frozen.Status), Operation: "recalculate",
				}
			}
			if isUniqueViolation(err, "uk_payrolls_employee_period") {
				return payroll.ErrPayrollConflict
			}
			return fmt.Errorf("failed to upsert payroll: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM payroll_details WHERE payroll_id = $1`, saved.ID); err != nil {
			return fmt.Errorf("failed to clear payroll details: %w", err)
		}

		insert := `
			INSERT INTO payroll_details (
				id, payroll_id, payroll_concept_id, amount, base_amount, rate,
				quantity, trace, display_order
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`
		for _, d := range details {
			id := d.ID
			if id == "" {
				id = uuid.New().String()
			}
			if _, err := tx.Exec(ctx, insert,
				id, saved.ID, d.PayrollConceptID, d.Amount, d.BaseAmount, d.Rate,
				d.Quantity, d.Trace, d.DisplayOrder,
			); err != nil {
				if isUniqueViolation(err, "uk_payroll_details_payroll_concept") {
					return payroll.ErrPayrollConflict
				}
				return fmt.Errorf("failed to insert payroll detail: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return payroll.Payroll{}, err
	}

	return saved, nil
}

func (r *payrollRepository) CountByPeriodNotInStatus(ctx context.Context, periodID string, status payroll.PayrollStatus) (int, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT COUNT(*) FROM payrolls WHERE payroll_period_id = $1 AND status <> $2`

	var count int
	if err := q.QueryRow(ctx, query, periodID, status).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count payrolls by status: %w", err)
	}

	return count, nil
}

func (r *payrollRepository) MarkApprovedByPeriod(ctx context.Context, periodID string, at time.Time) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payrolls
		SET status = $3, approved_at = $2, updated_at = NOW()
		WHERE payroll_period_id = $1 AND status = $4
	`

	if _, err := q.Exec(ctx, query, periodID, at, payroll.PayrollStatusApproved, payroll.PayrollStatusCalculated); err != nil {
		return fmt.Errorf("failed to approve payrolls: %w", err)
	}

	return nil
}

func (r *payrollRepository) MarkPaidByPeriod(ctx context.Context, periodID string, at time.Time) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payrolls
		SET status = $3, paid_at = $2, updated_at = NOW()
		WHERE payroll_period_id = $1 AND status = $4
	`

	if _, err := q.Exec(ctx, query, periodID, at, payroll.PayrollStatusPaid, payroll.PayrollStatusApproved); err != nil {
		return fmt.Errorf("failed to mark payrolls paid: %w", err)
	}

	return nil
}
