package concept

import "context"

// ConceptRepository defines data access for the concept catalog.
type ConceptRepository interface {
	Create(ctx context.Context, c PayrollConcept) (PayrollConcept, error)
	GetByID(ctx context.Context, id string) (PayrollConcept, error)
	GetByCode(ctx context.Context, code string) (PayrollConcept, error)
	List(ctx context.Context, activeOnly bool) ([]PayrollConcept, error)
	Update(ctx context.Context, req UpdateConceptRequest) error
	IsReferenced(ctx context.Context, id string) (bool, error)
}
