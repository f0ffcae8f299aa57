package concept

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/concept"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/formula"
)

type ConceptServiceImpl struct {
	conceptRepo concept.ConceptRepository
	vocab       *formula.Vocabulary
}

// NewConceptService builds the registry service. vocab must already carry
// the full variable set and the configured tax function; registration
// validates formulas against it so a broken concept never reaches a run.
func NewConceptService(conceptRepo concept.ConceptRepository, vocab *formula.Vocabulary) *ConceptServiceImpl {
	return &ConceptServiceImpl{
		conceptRepo: conceptRepo,
		vocab:       vocab,
	}
}

var _ concept.ConceptService = (*ConceptServiceImpl)(nil)
var _ RegistryLoader = (*ConceptServiceImpl)(nil)

func (s *ConceptServiceImpl) Register(ctx context.Context, req concept.CreateConceptRequest) (concept.ConceptResponse, error) {
	if err := req.Validate(); err != nil {
		return concept.ConceptResponse{}, err
	}

	isTaxable := false
	if req.IsTaxable != nil {
		isTaxable = *req.IsTaxable
	}
	affectsSS := false
	if req.AffectsSocialSecurity != nil {
		affectsSS = *req.AffectsSocialSecurity
	}
	isMandatory := false
	if req.IsMandatory != nil {
		isMandatory = *req.IsMandatory
	}

	c := concept.PayrollConcept{
		Code:                  req.Code,
		Name:                  req.Name,
		Type:                  concept.ConceptType(req.Type),
		CalculationType:       concept.CalculationType(req.CalculationType),
		DefaultValue:          req.DefaultValue,
		Formula:               req.Formula,
		IsTaxable:             isTaxable,
		AffectsSocialSecurity: affectsSS,
		IsMandatory:           isMandatory,
		DisplayOrder:          req.DisplayOrder,
		Status:                concept.ConceptStatusActive,
	}

	// Static formula validation happens here, at registration time, not
	// when an employee is first calculated against the concept.
	if _, err := compileConcept(c, s.vocab); err != nil {
		return concept.ConceptResponse{}, err
	}

	created, err := s.conceptRepo.Create(ctx, c)
	if err != nil {
		return concept.ConceptResponse{}, err
	}

	return concept.ToResponse(created), nil
}

func (s *ConceptServiceImpl) Get(ctx context.Context, id string) (concept.ConceptResponse, error) {
	c, err := s.conceptRepo.GetByID(ctx, id)
	if err != nil {
		return concept.ConceptResponse{}, err
	}
	return concept.ToResponse(c), nil
}

func (s *ConceptServiceImpl) List(ctx context.Context, activeOnly bool) ([]concept.ConceptResponse, error) {
	concepts, err := s.conceptRepo.List(ctx, activeOnly)
	if err != nil {
		return nil, err
	}

	var result []concept.ConceptResponse
	for _, c := range concepts {
		result = append(result, concept.ToResponse(c))
	}
	return result, nil
}

func (s *ConceptServiceImpl) Update(ctx context.Context, req concept.UpdateConceptRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	current, err := s.conceptRepo.GetByID(ctx, req.ID)
	if err != nil {
		return err
	}

	// A closed period's details must stay reproducible, so a referenced
	// concept's calculation rule is frozen.
	if req.Formula != nil || req.DefaultValue != nil {
		referenced, err := s.conceptRepo.IsReferenced(ctx, req.ID)
		if err != nil {
			return err
		}
		if referenced {
			return concept.ErrConceptReferenced
		}
	}

	if req.Formula != nil {
		candidate := current
		candidate.Formula = req.Formula
		if req.DefaultValue != nil {
			candidate.DefaultValue = *req.DefaultValue
		}
		if _, err := compileConcept(candidate, s.vocab); err != nil {
			return err
		}
	}

	return s.conceptRepo.Update(ctx, req)
}

func (s *ConceptServiceImpl) Deactivate(ctx context.Context, id string) error {
	if _, err := s.conceptRepo.GetByID(ctx, id); err != nil {
		return err
	}
	status := string(concept.ConceptStatusInactive)
	return s.conceptRepo.Update(ctx, concept.UpdateConceptRequest{ID: id, Status: &status})
}

// LoadRegistry loads the active catalog and compiles it once for a run.
// Compilation failure here is a configuration error: the run must abort
// before any employee is processed.
func (s *ConceptServiceImpl) LoadRegistry(ctx context.Context) (*Registry, error) {
	concepts, err := s.conceptRepo.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("load concept catalog: %w", err)
	}
	return buildRegistry(concepts, s.vocab)
}

// IsConfigurationError reports whether err originates from catalog
// validation rather than a specific employee's inputs.
func IsConfigurationError(err error) bool {
	if errors.Is(err, concept.ErrInvalidFormula) ||
		errors.Is(err, concept.ErrFormulaRequired) ||
		errors.Is(err, concept.ErrNotPercentageShape) ||
		errors.Is(err, concept.ErrInvalidPass) {
		return true
	}
	var ferr *formula.Error
	return errors.As(err, &ferr)
}
