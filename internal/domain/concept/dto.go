package concept

import (
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

type CreateConceptRequest struct {
	Code                  string          `json:"code"`
	Name                  string          `json:"name"`
	Type                  string          `json:"type"`
	CalculationType       string          `json:"calculation_type"`
	DefaultValue          decimal.Decimal `json:"default_value"`
	Formula               *string         `json:"formula,omitempty"`
	IsTaxable             *bool           `json:"is_taxable,omitempty"`
	AffectsSocialSecurity *bool           `json:"affects_social_security,omitempty"`
	IsMandatory           *bool           `json:"is_mandatory,omitempty"`
	DisplayOrder          int             `json:"display_order"`
}

func (r *CreateConceptRequest) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsValidConceptCode(r.Code) {
		errs = append(errs, validator.ValidationError{Field: "code", Message: "must be uppercase letters, digits and underscores"})
	}
	if validator.IsEmpty(r.Name) {
		errs = append(errs, validator.ValidationError{Field: "name", Message: "is required"})
	}
	if !ConceptType(r.Type).Valid() {
		errs = append(errs, validator.ValidationError{Field: "type", Message: "must be 'earning', 'deduction', 'tax' or 'benefit'"})
	}
	if !CalculationType(r.CalculationType).Valid() {
		errs = append(errs, validator.ValidationError{Field: "calculation_type", Message: "must be 'fixed', 'percentage' or 'formula'"})
	}
	if CalculationType(r.CalculationType) != CalculationTypeFixed && (r.Formula == nil || validator.IsEmpty(*r.Formula)) {
		errs = append(errs, validator.ValidationError{Field: "formula", Message: "is required for percentage and formula concepts"})
	}
	if r.DisplayOrder < 0 {
		errs = append(errs, validator.ValidationError{Field: "display_order", Message: "must be non-negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type UpdateConceptRequest struct {
	ID           string
	Name         *string          `json:"name,omitempty"`
	DefaultValue *decimal.Decimal `json:"default_value,omitempty"`
	Formula      *string          `json:"formula,omitempty"`
	IsTaxable    *bool            `json:"is_taxable,omitempty"`
	IsMandatory  *bool            `json:"is_mandatory,omitempty"`
	DisplayOrder *int             `json:"display_order,omitempty"`
	Status       *string          `json:"status,omitempty"`
}

func (r *UpdateConceptRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.Name != nil && validator.IsEmpty(*r.Name) {
		errs = append(errs, validator.ValidationError{Field: "name", Message: "must not be empty"})
	}
	if r.DisplayOrder != nil && *r.DisplayOrder < 0 {
		errs = append(errs, validator.ValidationError{Field: "display_order", Message: "must be non-negative"})
	}
	if r.Status != nil && *r.Status != string(ConceptStatusActive) && *r.Status != string(ConceptStatusInactive) {
		errs = append(errs, validator.ValidationError{Field: "status", Message: "must be 'active' or 'inactive'"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type ConceptResponse struct {
	ID                    string          `json:"id"`
	Code                  string          `json:"code"`
	Name                  string          `json:"name"`
	Type                  string          `json:"type"`
	CalculationType       string          `json:"calculation_type"`
	DefaultValue          decimal.Decimal `json:"default_value"`
	Formula               *string         `json:"formula,omitempty"`
	IsTaxable             bool            `json:"is_taxable"`
	AffectsSocialSecurity bool            `json:"affects_social_security"`
	IsMandatory           bool            `json:"is_mandatory"`
	EmployerSide          bool            `json:"employer_side"`
	DisplayOrder          int             `json:"display_order"`
	Status                string          `json:"status"`
}

func ToResponse(c PayrollConcept) ConceptResponse {
	return ConceptResponse{
		ID:                    c.ID,
		Code:                  c.Code,
		Name:                  c.Name,
		Type:                  string(c.Type),
		CalculationType:       string(c.CalculationType),
		DefaultValue:          c.DefaultValue,
		Formula:               c.Formula,
		IsTaxable:             c.IsTaxable,
		AffectsSocialSecurity: c.AffectsSocialSecurity,
		IsMandatory:           c.IsMandatory,
		EmployerSide:          c.EmployerSide(),
		DisplayOrder:          c.DisplayOrder,
		Status:                string(c.Status),
	}
}
