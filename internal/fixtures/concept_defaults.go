package fixtures

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/concept"
	"github.com/shopspring/decimal"
)

func strPtr(s string) *string { return &s }

// GetDefaultConcepts returns the standard Colombian monthly payroll catalog:
// statutory earnings, employee withholdings, income tax and the employer
// contribution provisions. Rates follow the 2024 statutory tables.
func GetDefaultConcepts() []concept.PayrollConcept {
	return []concept.PayrollConcept{
		{
			Code:            "SALARIO_BASE",
			Name:            "Salario base",
			Type:            concept.ConceptTypeEarning,
			CalculationType: concept.CalculationTypeFormula,
			Formula:         strPtr("base_salary / period_days * worked_days"),
			IsTaxable:       true,
			IsMandatory:     true,
			DisplayOrder:    10,
			Status:          concept.ConceptStatusActive,
		},
		{
			Code:            "AUXILIO_TRANSPORTE",
			Name:            "Auxilio de transporte",
			Type:            concept.ConceptTypeEarning,
			CalculationType: concept.CalculationTypeFixed,
			DefaultValue:    decimal.RequireFromString("200000"),
			IsTaxable:       true,
			DisplayOrder:    20,
			Status:          concept.ConceptStatusActive,
		},
		{
			Code:            "HORAS_EXTRA",
			Name:            "Horas extra",
			Type:            concept.ConceptTypeEarning,
			CalculationType: concept.CalculationTypeFormula,
			Formula:         strPtr("base_salary / 240 * 1.25 * overtime_hours"),
			IsTaxable:       true,
			IsMandatory:     true,
			DisplayOrder:    30,
			Status:          concept.ConceptStatusActive,
		},
		{
			Code:            "SALUD_EMPLEADO",
			Name:            "Aporte salud empleado",
			Type:            concept.ConceptTypeDeduction,
			CalculationType: concept.CalculationTypePercentage,
			Formula:         strPtr("taxable_income * 0.04"),
			IsMandatory:     true,
			DisplayOrder:    40,
			Status:          concept.ConceptStatusActive,
		},
		{
			Code:            "PENSION_EMPLEADO",
			Name:            "Aporte pensión empleado",
			Type:            concept.ConceptTypeDeduction,
			CalculationType: concept.CalculationTypePercentage,
			Formula:         strPtr("taxable_income * 0.04"),
			IsMandatory:     true,
			DisplayOrder:    50,
			Status:          concept.ConceptStatusActive,
		},
		{
			Code:            "FONDO_SOLIDARIDAD",
			Name:            "Fondo de solidaridad pensional",
			Type:            concept.ConceptTypeDeduction,
			CalculationType: concept.CalculationTypeFormula,
			Formula:         strPtr("max(taxable_income - 5_694_000, 0) * 0.01"),
			IsMandatory:     true,
			DisplayOrder:    60,
			Status:          concept.ConceptStatusActive,
		},
		{
			Code:            "RETENCION_FUENTE",
			Name:            "Retención en la fuente",
			Type:            concept.ConceptTypeTax,
			CalculationType: concept.CalculationTypeFormula,
			Formula:         strPtr("calculateIncomeTax(taxable_income)"),
			IsMandatory:     true,
			DisplayOrder:    70,
			Status:          concept.ConceptStatusActive,
		},
		{
			Code:                  "SALUD_EMPLEADOR",
			Name:                  "Aporte salud empleador",
			Type:                  concept.ConceptTypeBenefit,
			CalculationType:       concept.CalculationTypePercentage,
			Formula:               strPtr("taxable_income * 0.085"),
			AffectsSocialSecurity: true,
			IsMandatory:           true,
			DisplayOrder:          80,
			Status:                concept.ConceptStatusActive,
		},
		{
			Code:                  "PENSION_EMPLEADOR",
			Name:                  "Aporte pensión empleador",
			Type:                  concept.ConceptTypeBenefit,
			CalculationType:       concept.CalculationTypePercentage,
			Formula:               strPtr("taxable_income * 0.12"),
			AffectsSocialSecurity: true,
			IsMandatory:           true,
			DisplayOrder:          90,
			Status:                concept.ConceptStatusActive,
		},
		{
			Code:                  "ARL",
			Name:                  "Riesgos laborales",
			Type:                  concept.ConceptTypeBenefit,
			CalculationType:       concept.CalculationTypePercentage,
			Formula:               strPtr("taxable_income * 0.00522"),
			AffectsSocialSecurity: true,
			IsMandatory:           true,
			DisplayOrder:          100,
			Status:                concept.ConceptStatusActive,
		},
		{
			Code:                  "CESANTIAS",
			Name:                  "Provisión cesantías",
			Type:                  concept.ConceptTypeBenefit,
			CalculationType:       concept.CalculationTypePercentage,
			Formula:               strPtr("taxable_income * 0.0833"),
			AffectsSocialSecurity: true,
			IsMandatory:           true,
			DisplayOrder:          110,
			Status:                concept.ConceptStatusActive,
		},
		{
			Code:                  "INTERESES_CESANTIAS",
			Name:                  "Intereses sobre cesantías",
			Type:                  concept.ConceptTypeBenefit,
			CalculationType:       concept.CalculationTypeFormula,
			Formula:               strPtr("cesantias_accumulated * 0.01"),
			AffectsSocialSecurity: true,
			IsMandatory:           true,
			DisplayOrder:          115,
			Status:                concept.ConceptStatusActive,
		},
		{
			Code:                  "PRIMA_SERVICIOS",
			Name:                  "Provisión prima de servicios",
			Type:                  concept.ConceptTypeBenefit,
			CalculationType:       concept.CalculationTypeFormula,
			Formula:               strPtr("base_salary / 12 * (worked_days / period_days)"),
			AffectsSocialSecurity: true,
			IsMandatory:           true,
			DisplayOrder:          120,
			Status:                concept.ConceptStatusActive,
		},
		{
			Code:            concept.CodeLeaveDeduction,
			Name:            "Deducción por ausencia",
			Type:            concept.ConceptTypeDeduction,
			CalculationType: concept.CalculationTypeFixed,
			DisplayOrder:    200,
			Status:          concept.ConceptStatusActive,
		},
	}
}

// EnsureDefaultConcepts seeds the default catalog, skipping codes that
// already exist so a restart never duplicates or overwrites operator edits.
func EnsureDefaultConcepts(ctx context.Context, repo concept.ConceptRepository) error {
	for _, c := range GetDefaultConcepts() {
		_, err := repo.GetByCode(ctx, c.Code)
		if err == nil {
			continue
		}
		if !errors.Is(err, concept.ErrConceptNotFound) {
			return fmt.Errorf("check concept %s: %w", c.Code, err)
		}
		if _, err := repo.Create(ctx, c); err != nil {
			return fmt.Errorf("seed concept %s: %w", c.Code, err)
		}
	}
	return nil
}
