package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/benefit"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/database"
)

type benefitRepository struct {
	db *database.DB
}

func NewBenefitRepository(db *database.DB) benefit.BenefitRepository {
	return &benefitRepository{db: db}
}

func (r *benefitRepository) GetActiveForPeriod(ctx context.Context, employeeID string, start, end time.Time) ([]benefit.EmployeeBenefit, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, employee_id, payroll_concept_id, amount, frequency,
			   start_date, end_date, status, created_at, updated_at
		FROM employee_benefits
		WHERE employee_id = $1
		  AND status = $2
		  AND start_date <= $3
		  AND (end_date IS NULL OR end_date >= $4)
		ORDER BY start_date
	`

	rows, err := q.Query(ctx, query, employeeID, benefit.StatusActive, end, start)
	if err != nil {
		return nil, fmt.Errorf("failed to list employee benefits: %w", err)
	}
	defer rows.Close()

	var benefits []benefit.EmployeeBenefit
	for rows.Next() {
		var b benefit.EmployeeBenefit
		err := rows.Scan(
			&b.ID, &b.EmployeeID, &b.PayrollConceptID, &b.Amount, &b.Frequency,
			&b.StartDate, &b.EndDate, &b.Status, &b.CreatedAt, &b.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee benefit: %w", err)
		}
		benefits = append(benefits, b)
	}

	return benefits, rows.Err()
}
