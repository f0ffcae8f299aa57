package concept

import "context"

// ConceptService is the registry surface: validating registration plus the
// compiled-registry load used by payroll runs.
type ConceptService interface {
	Register(ctx context.Context, req CreateConceptRequest) (ConceptResponse, error)
	Get(ctx context.Context, id string) (ConceptResponse, error)
	List(ctx context.Context, activeOnly bool) ([]ConceptResponse, error)
	Update(ctx context.Context, req UpdateConceptRequest) error
	Deactivate(ctx context.Context, id string) error
}
