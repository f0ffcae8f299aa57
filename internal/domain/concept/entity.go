package concept

import (
	"time"

	"github.com/shopspring/decimal"
)

// ConceptType enum
type ConceptType string

const (
	ConceptTypeEarning   ConceptType = "earning"
	ConceptTypeDeduction ConceptType = "deduction"
	ConceptTypeTax       ConceptType = "tax"
	ConceptTypeBenefit   ConceptType = "benefit"
)

func (t ConceptType) Valid() bool {
	switch t {
	case ConceptTypeEarning, ConceptTypeDeduction, ConceptTypeTax, ConceptTypeBenefit:
		return true
	}
	return false
}

// CalculationType enum
type CalculationType string

const (
	CalculationTypeFixed      CalculationType = "fixed"
	CalculationTypePercentage CalculationType = "percentage"
	CalculationTypeFormula    CalculationType = "formula"
)

func (t CalculationType) Valid() bool {
	switch t {
	case CalculationTypeFixed, CalculationTypePercentage, CalculationTypeFormula:
		return true
	}
	return false
}

type ConceptStatus string

const (
	ConceptStatusActive   ConceptStatus = "active"
	ConceptStatusInactive ConceptStatus = "inactive"
)

// CodeLeaveDeduction is the reserved catalog code the calculator books
// explicit leave-request deduction amounts under.
const CodeLeaveDeduction = "DEDUCCION_AUSENCIA"

// PayrollConcept is one named payroll line item: an earning, deduction, tax
// or benefit with a calculation rule. Once a closed period references a
// concept it must not be edited in place.
type PayrollConcept struct {
	ID                    string
	Code                  string
	Name                  string
	Type                  ConceptType
	CalculationType       CalculationType
	DefaultValue          decimal.Decimal
	Formula               *string
	IsTaxable             bool
	AffectsSocialSecurity bool
	IsMandatory           bool
	DisplayOrder          int
	Status                ConceptStatus
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// EmployerSide reports whether amounts for this concept are carried by the
// employer rather than withheld from the employee. Benefit concepts flagged
// affects_social_security are the employer-contribution bucket.
func (c PayrollConcept) EmployerSide() bool {
	return c.Type == ConceptTypeBenefit && c.AffectsSocialSecurity
}
