package postgresql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/concept"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type conceptRepository struct {
	db *database.DB
}

func NewConceptRepository(db *database.DB) concept.ConceptRepository {
	return &conceptRepository{db: db}
}

const conceptColumns = `
	id, code, name, type, calculation_type, default_value, formula,
	is_taxable, affects_social_security, is_mandatory, display_order,
	status, created_at, updated_at
`

func scanConcept(row pgx.Row) (concept.PayrollConcept, error) {
	var c concept.PayrollConcept
	err := row.Scan(
		&c.ID, &c.Code, &c.Name, &c.Type, &c.CalculationType, &c.DefaultValue, &c.Formula,
		&c.IsTaxable, &c.AffectsSocialSecurity, &c.IsMandatory, &c.DisplayOrder,
		&c.Status, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func (r *conceptRepository) Create(ctx context.Context, c concept.PayrollConcept) (concept.PayrollConcept, error) {
	q := GetQuerier(ctx, r.db)

	if c.ID == "" {
		c.ID = uuid.New().String()
	}

	query := `
		INSERT INTO payroll_concepts (
			id, code, name, type, calculation_type, default_value, formula,
			is_taxable, affects_social_security, is_mandatory, display_order, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + conceptColumns

	created, err := scanConcept(q.QueryRow(ctx, query,
		c.ID, c.Code, c.Name, c.Type, c.CalculationType, c.DefaultValue, c.Formula,
		c.IsTaxable, c.AffectsSocialSecurity, c.IsMandatory, c.DisplayOrder, c.Status,
	))
	if err != nil {
		if isUniqueViolation(err, "uk_payroll_concepts_code") {
			return concept.PayrollConcept{}, concept.ErrConceptCodeExists
		}
		return concept.PayrollConcept{}, fmt.Errorf("failed to create payroll concept: %w", err)
	}

	return created, nil
}

func (r *conceptRepository) GetByID(ctx context.Context, id string) (concept.PayrollConcept, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + conceptColumns + ` FROM payroll_concepts WHERE id = $1`

	c, err := scanConcept(q.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return concept.PayrollConcept{}, concept.ErrConceptNotFound
		}
		return concept.PayrollConcept{}, fmt.Errorf("failed to get payroll concept: %w", err)
	}

	return c, nil
}

func (r *conceptRepository) GetByCode(ctx context.Context, code string) (concept.PayrollConcept, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + conceptColumns + ` FROM payroll_concepts WHERE code = $1`

	c, err := scanConcept(q.QueryRow(ctx, query, code))
	if err != nil {
		if err == pgx.ErrNoRows {
			return concept.PayrollConcept{}, concept.ErrConceptNotFound
		}
		return concept.PayrollConcept{}, fmt.Errorf("failed to get payroll concept by code: %w", err)
	}

	return c, nil
}

func (r *conceptRepository) List(ctx context.Context, activeOnly bool) ([]concept.PayrollConcept, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + conceptColumns + ` FROM payroll_concepts`
	var args []interface{}
	if activeOnly {
		query += ` WHERE status = $1`
		args = append(args, concept.ConceptStatusActive)
	}
	query += ` ORDER BY display_order, code`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll concepts: %w", err)
	}
	defer rows.Close()

	var concepts []concept.PayrollConcept
	for rows.Next() {
		c, err := scanConcept(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payroll concept: %w", err)
		}
		concepts = append(concepts, c)
	}

	return concepts, rows.Err()
}

func (r *conceptRepository) Update(ctx context.Context, req concept.UpdateConceptRequest) error {
	q := GetQuerier(ctx, r.db)

	var sets []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if req.Name != nil {
		sets = append(sets, "name = "+arg(*req.Name))
	}
	if req.DefaultValue != nil {
		sets = append(sets, "default_value = "+arg(*req.DefaultValue))
	}
	if req.Formula != nil {
		sets = append(sets, "formula = "+arg(*req.Formula))
	}
	if req.IsTaxable != nil {
		sets = append(sets, "is_taxable = "+arg(*req.IsTaxable))
	}
	if req.IsMandatory != nil {
		sets = append(sets, "is_mandatory = "+arg(*req.IsMandatory))
	}
	if req.DisplayOrder != nil {
		sets = append(sets, "display_order = "+arg(*req.DisplayOrder))
	}
	if req.Status != nil {
		sets = append(sets, "status = "+arg(*req.Status))
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = NOW()")

	query := fmt.Sprintf("UPDATE payroll_concepts SET %s WHERE id = %s", strings.Join(sets, ", "), arg(req.ID))

	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update payroll concept: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return concept.ErrConceptNotFound
	}

	return nil
}

func (r *conceptRepository) IsReferenced(ctx context.Context, id string) (bool, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT EXISTS (SELECT 1 FROM payroll_details WHERE payroll_concept_id = $1)`

	var referenced bool
	if err := q.QueryRow(ctx, query, id).Scan(&referenced); err != nil {
		return false, fmt.Errorf("failed to check concept references: %w", err)
	}

	return referenced, nil
}

// isUniqueViolation reports whether err is a unique-constraint violation,
// optionally on a specific constraint name.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
