package concept

import (
	"context"
	"fmt"
	"sort"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/concept"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/formula"
	"github.com/shopspring/decimal"
)

// Pass is an ordered evaluation phase. Earnings resolve first and build the
// taxable base; deductions, taxes and employer contributions resolve second
// and may read it. This is the only permitted dependency direction.
type Pass int

const (
	PassEarnings Pass = iota + 1
	PassDeductions
)

// PassFor assigns a concept type to its evaluation pass.
func PassFor(t concept.ConceptType) Pass {
	if t == concept.ConceptTypeEarning {
		return PassEarnings
	}
	return PassDeductions
}

// CompiledConcept pairs a catalog row with its parsed formula. Program is
// nil for fixed concepts. For percentage concepts BaseVariable and Rate
// hold the decomposed "<base-variable> * <rate>" shape.
type CompiledConcept struct {
	Concept      concept.PayrollConcept
	Program      *formula.Program
	BaseVariable string
	Rate         decimal.Decimal
}

// Registry is the concept catalog compiled for one run: every formula
// parsed once, split into the two passes, ordered by display_order (code
// breaks ties so insertion order never matters).
type Registry struct {
	Pass1 []CompiledConcept
	Pass2 []CompiledConcept

	byID   map[string]*CompiledConcept
	byCode map[string]*CompiledConcept
}

func (r *Registry) ByID(id string) (*CompiledConcept, bool) {
	c, ok := r.byID[id]
	return c, ok
}

func (r *Registry) ByCode(code string) (*CompiledConcept, bool) {
	c, ok := r.byCode[code]
	return c, ok
}

// RegistryLoader loads and compiles the active catalog. A period run calls
// it exactly once; the catalog is assumed stable for the run's duration.
type RegistryLoader interface {
	LoadRegistry(ctx context.Context) (*Registry, error)
}

// buildRegistry compiles concepts into a Registry. Any malformed concept is
// a configuration error that aborts the whole load: the catalog itself is
// broken and no employee should be processed against it.
func buildRegistry(concepts []concept.PayrollConcept, vocab *formula.Vocabulary) (*Registry, error) {
	reg := &Registry{
		byID:   make(map[string]*CompiledConcept, len(concepts)),
		byCode: make(map[string]*CompiledConcept, len(concepts)),
	}

	for _, c := range concepts {
		compiled, err := compileConcept(c, vocab)
		if err != nil {
			return nil, fmt.Errorf("concept %s: %w", c.Code, err)
		}
		if PassFor(c.Type) == PassEarnings {
			reg.Pass1 = append(reg.Pass1, compiled)
		} else {
			reg.Pass2 = append(reg.Pass2, compiled)
		}
	}

	sortPass(reg.Pass1)
	sortPass(reg.Pass2)

	for i := range reg.Pass1 {
		reg.byID[reg.Pass1[i].Concept.ID] = &reg.Pass1[i]
		reg.byCode[reg.Pass1[i].Concept.Code] = &reg.Pass1[i]
	}
	for i := range reg.Pass2 {
		reg.byID[reg.Pass2[i].Concept.ID] = &reg.Pass2[i]
		reg.byCode[reg.Pass2[i].Concept.Code] = &reg.Pass2[i]
	}

	return reg, nil
}

func sortPass(pass []CompiledConcept) {
	sort.SliceStable(pass, func(i, j int) bool {
		a, b := pass[i].Concept, pass[j].Concept
		if a.DisplayOrder != b.DisplayOrder {
			return a.DisplayOrder < b.DisplayOrder
		}
		return a.Code < b.Code
	})
}

// compileConcept parses and statically validates one concept against the
// vocabulary, enforcing pass discipline: an earnings formula may not read
// taxable_income, which only exists after pass 1 completes.
func compileConcept(c concept.PayrollConcept, vocab *formula.Vocabulary) (CompiledConcept, error) {
	compiled := CompiledConcept{Concept: c}

	if c.CalculationType == concept.CalculationTypeFixed {
		return compiled, nil
	}

	if c.Formula == nil || *c.Formula == "" {
		return CompiledConcept{}, concept.ErrFormulaRequired
	}

	prog, err := formula.Compile(*c.Formula, vocab)
	if err != nil {
		return CompiledConcept{}, fmt.Errorf("%w: %v", concept.ErrInvalidFormula, err)
	}

	if PassFor(c.Type) == PassEarnings && prog.References(formula.VarTaxableIncome) {
		return CompiledConcept{}, concept.ErrInvalidPass
	}

	if c.CalculationType == concept.CalculationTypePercentage {
		baseVar, rate, ok := prog.PercentageParts()
		if !ok {
			return CompiledConcept{}, concept.ErrNotPercentageShape
		}
		compiled.BaseVariable = baseVar
		compiled.Rate = rate
	}

	compiled.Program = prog
	return compiled, nil
}
