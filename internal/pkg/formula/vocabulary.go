package formula

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Canonical variable names the engine seeds into every evaluation context.
const (
	VarBaseSalary           = "base_salary"
	VarWorkedDays           = "worked_days"
	VarWorkedHours          = "worked_hours"
	VarOvertimeHours        = "overtime_hours"
	VarTaxableIncome        = "taxable_income"
	VarCesantiasAccumulated = "cesantias_accumulated"
	VarPeriodDays           = "period_days"
)

// Variables binds vocabulary names to values for one evaluation.
type Variables map[string]decimal.Decimal

// Func is a named pure function callable from formulas.
type Func struct {
	Name  string
	Arity int
	Call  func(args []decimal.Decimal) (decimal.Decimal, error)
}

// Vocabulary is the closed set of identifiers a formula may reference.
// Compilation validates against it; evaluation never sees a name outside it.
type Vocabulary struct {
	vars  map[string]struct{}
	funcs map[string]Func
}

func NewVocabulary(vars ...string) *Vocabulary {
	v := &Vocabulary{
		vars:  make(map[string]struct{}, len(vars)),
		funcs: make(map[string]Func),
	}
	for _, name := range vars {
		v.vars[name] = struct{}{}
	}
	v.RegisterFunc(Func{Name: "min", Arity: 2, Call: fnMin})
	v.RegisterFunc(Func{Name: "max", Arity: 2, Call: fnMax})
	v.RegisterFunc(Func{Name: "round", Arity: 1, Call: fnRound})
	return v
}

func (v *Vocabulary) RegisterFunc(f Func) {
	v.funcs[f.Name] = f
}

func (v *Vocabulary) HasVariable(name string) bool {
	_, ok := v.vars[name]
	return ok
}

func (v *Vocabulary) Function(name string) (Func, bool) {
	f, ok := v.funcs[name]
	return f, ok
}

// VariableNames returns the vocabulary's variables in sorted order.
func (v *Vocabulary) VariableNames() []string {
	names := make([]string, 0, len(v.vars))
	for name := range v.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithVariables returns a copy extended with additional variable names.
// Functions are shared; the receiver is not modified.
func (v *Vocabulary) WithVariables(extra ...string) *Vocabulary {
	next := &Vocabulary{
		vars:  make(map[string]struct{}, len(v.vars)+len(extra)),
		funcs: v.funcs,
	}
	for name := range v.vars {
		next.vars[name] = struct{}{}
	}
	for _, name := range extra {
		next.vars[name] = struct{}{}
	}
	return next
}

func fnMin(args []decimal.Decimal) (decimal.Decimal, error) {
	if args[0].LessThan(args[1]) {
		return args[0], nil
	}
	return args[1], nil
}

func fnMax(args []decimal.Decimal) (decimal.Decimal, error) {
	if args[0].GreaterThan(args[1]) {
		return args[0], nil
	}
	return args[1], nil
}

// fnRound rounds to cents, half up.
func fnRound(args []decimal.Decimal) (decimal.Decimal, error) {
	return args[0].Round(2), nil
}
