package postgresql

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type periodRepository struct {
	db *database.DB
}

func NewPeriodRepository(db *database.DB) payroll.PeriodRepository {
	return &periodRepository{db: db}
}

const periodColumns = `
	id, name, start_date, end_date, pay_date, period_type, status,
	total_gross, total_deductions, total_net,
	approved_at, approved_by, paid_at, closed_at, closed_by,
	created_at, updated_at
`

func scanPeriod(row pgx.Row) (payroll.PayrollPeriod, error) {
	var p payroll.PayrollPeriod
	err := row.Scan(
		&p.ID, &p.Name, &p.StartDate, &p.EndDate, &p.PayDate, &p.PeriodType, &p.Status,
		&p.TotalGross, &p.TotalDeductions, &p.TotalNet,
		&p.ApprovedAt, &p.ApprovedBy, &p.PaidAt, &p.ClosedAt, &p.ClosedBy,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (r *periodRepository) Create(ctx context.Context, p payroll.PayrollPeriod) (payroll.PayrollPeriod, error) {
	q := GetQuerier(ctx, r.db)

	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	query := `
		INSERT INTO payroll_periods (
			id, name, start_date, end_date, pay_date, period_type, status,
			total_gross, total_deductions, total_net
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + periodColumns

	created, err := scanPeriod(q.QueryRow(ctx, query,
		p.ID, p.Name, p.StartDate, p.EndDate, p.PayDate, p.PeriodType, p.Status,
		p.TotalGross, p.TotalDeductions, p.TotalNet,
	))
	if err != nil {
		return payroll.PayrollPeriod{}, fmt.Errorf("failed to create payroll period: %w", err)
	}

	return created, nil
}

func (r *periodRepository) GetByID(ctx context.Context, id string) (payroll.PayrollPeriod, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + periodColumns + ` FROM payroll_periods WHERE id = $1`

	p, err := scanPeriod(q.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return payroll.PayrollPeriod{}, payroll.ErrPeriodNotFound
		}
		return payroll.PayrollPeriod{}, fmt.Errorf("failed to get payroll period: %w", err)
	}

	return p, nil
}

func (r *periodRepository) List(ctx context.Context) ([]payroll.PayrollPeriod, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + periodColumns + ` FROM payroll_periods ORDER BY start_date DESC`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll periods: %w", err)
	}
	defer rows.Close()

	var periods []payroll.PayrollPeriod
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payroll period: %w", err)
		}
		periods = append(periods, p)
	}

	return periods, rows.Err()
}

// CompareAndSwapStatus is the single-writer guard on the period lifecycle:
// the WHERE clause only matches when the period still sits in `from`, so
// concurrent transitions cannot both succeed.
func (r *periodRepository) CompareAndSwapStatus(ctx context.Context, id string, from, to payroll.PeriodStatus, actorID *string) (bool, error) {
	q := GetQuerier(ctx, r.db)

	var query string
	args := []interface{}{id, from, to}

	switch to {
	case payroll.PeriodStatusApproved:
		query = `
			UPDATE payroll_periods
			SET status = $3, approved_at = NOW(), approved_by = $4, updated_at = NOW()
			WHERE id = $1 AND status = $2
		`
		args = append(args, actorID)
	case payroll.PeriodStatusPaid:
		query = `
			UPDATE payroll_periods
			SET status = $3, paid_at = NOW(), updated_at = NOW()
			WHERE id = $1 AND status = $2
		`
	case payroll.PeriodStatusClosed:
		query = `
			UPDATE payroll_periods
			SET status = $3, closed_at = NOW(), closed_by = $4, updated_at = NOW()
			WHERE id = $1 AND status = $2
		`
		args = append(args, actorID)
	default:
		query = `
			UPDATE payroll_periods
			SET status = $3, updated_at = NOW()
			WHERE id = $1 AND status = $2
		`
	}

	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to transition payroll period: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// UpdateTotals recomputes the canonical period aggregates as sums over the
// period's payroll rows. Taxes fold into total_deductions so
// total_gross - total_deductions = total_net holds at the period level.
func (r *periodRepository) UpdateTotals(ctx context.Context, id string) (payroll.PeriodTotals, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payroll_periods
		SET total_gross = s.gross,
			total_deductions = s.deductions,
			total_net = s.net,
			updated_at = NOW()
		FROM (
			SELECT COALESCE(SUM(gross_salary), 0)                    AS gross,
				   COALESCE(SUM(total_deductions + total_taxes), 0) AS deductions,
				   COALESCE(SUM(net_salary), 0)                     AS net,
				   COUNT(*)                                         AS payroll_count
			FROM payrolls
			WHERE payroll_period_id = $1
		) s
		WHERE payroll_periods.id = $1
		RETURNING s.gross, s.deductions, s.net, s.payroll_count
	`

	var totals payroll.PeriodTotals
	err := q.QueryRow(ctx, query, id).Scan(
		&totals.TotalGross, &totals.TotalDeductions, &totals.TotalNet, &totals.PayrollCount,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return payroll.PeriodTotals{}, payroll.ErrPeriodNotFound
		}
		return payroll.PeriodTotals{}, fmt.Errorf("failed to update period totals: %w", err)
	}

	return totals, nil
}
