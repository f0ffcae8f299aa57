package response

import (
	"errors"
	"net/http"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/concept"
	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/formula"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	// Lifecycle violations are conflicts with the resource's current state.
	var stateErr *payroll.StateError
	if errors.As(err, &stateErr) {
		Conflict(w, stateErr.Error())
		return
	}

	// Formula compilation and evaluation problems are configuration
	// mistakes, not server faults.
	var formulaErr *formula.Error
	if errors.As(err, &formulaErr) {
		BadRequest(w, formulaErr.Error(), nil)
		return
	}

	// Concept domain errors
	switch {
	case errors.Is(err, concept.ErrConceptNotFound):
		NotFound(w, "Payroll concept not found")
	case errors.Is(err, concept.ErrConceptCodeExists):
		Conflict(w, "Payroll concept code already exists")
	case errors.Is(err, concept.ErrConceptReferenced):
		Conflict(w, "Concept is referenced by existing payroll details")
	case errors.Is(err, concept.ErrInvalidFormula),
		errors.Is(err, concept.ErrFormulaRequired),
		errors.Is(err, concept.ErrNotPercentageShape),
		errors.Is(err, concept.ErrInvalidPass),
		errors.Is(err, concept.ErrInvalidConceptType),
		errors.Is(err, concept.ErrInvalidCalculation):
		BadRequest(w, err.Error(), nil)

	// Employee domain errors
	case errors.Is(err, employee.ErrEmployeeNotFound):
		NotFound(w, "Employee not found")

	// Payroll domain errors
	case errors.Is(err, payroll.ErrPeriodNotFound):
		NotFound(w, "Payroll period not found")
	case errors.Is(err, payroll.ErrPayrollNotFound):
		NotFound(w, "Payroll not found")
	case errors.Is(err, payroll.ErrInvalidPeriodDates):
		BadRequest(w, err.Error(), nil)
	case errors.Is(err, payroll.ErrPayrollsNotCalculated):
		Conflict(w, "Not every payroll in the period has been calculated")
	case errors.Is(err, payroll.ErrPayrollConflict):
		Conflict(w, "Concurrent payroll write conflict, retry the operation")
	case errors.Is(err, payroll.ErrDependencyUnresolved):
		BadRequest(w, err.Error(), nil)

	// Default
	default:
		InternalServerError(w, "An unexpected error occurred")
	}
}
