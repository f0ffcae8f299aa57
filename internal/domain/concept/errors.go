package concept

import "errors"

var (
	ErrConceptNotFound    = errors.New("payroll concept not found")
	ErrConceptCodeExists  = errors.New("payroll concept code already exists")
	ErrInvalidFormula     = errors.New("formula does not compile against the known vocabulary")
	ErrFormulaRequired    = errors.New("formula is required for this calculation type")
	ErrNotPercentageShape = errors.New("percentage formula must be '<base-variable> * <rate>'")
	ErrInvalidPass        = errors.New("formula references a variable not available in its evaluation pass")
	ErrConceptReferenced  = errors.New("concept is referenced by payroll details and cannot be removed")
	ErrInvalidConceptType = errors.New("invalid concept type")
	ErrInvalidCalculation = errors.New("invalid calculation type")
)
