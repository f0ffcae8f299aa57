package formula

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TaxBracket is one band of a progressive income-tax table. A nil Ceiling
// means the bracket is open-ended.
type TaxBracket struct {
	Floor   decimal.Decimal
	Ceiling *decimal.Decimal
	Rate    decimal.Decimal
}

// TaxTable is a validated progressive bracket table.
type TaxTable struct {
	brackets []TaxBracket
}

// NewTaxTable validates the brackets: non-empty, contiguous from zero,
// ascending, with only the last bracket open-ended.
func NewTaxTable(brackets []TaxBracket) (*TaxTable, error) {
	if len(brackets) == 0 {
		return nil, fmt.Errorf("tax table: no brackets")
	}
	expectedFloor := decimal.Zero
	for i, b := range brackets {
		if !b.Floor.Equal(expectedFloor) {
			return nil, fmt.Errorf("tax table: bracket %d floor %s, want %s", i, b.Floor, expectedFloor)
		}
		if b.Rate.IsNegative() {
			return nil, fmt.Errorf("tax table: bracket %d has negative rate", i)
		}
		if b.Ceiling == nil {
			if i != len(brackets)-1 {
				return nil, fmt.Errorf("tax table: bracket %d open-ended but not last", i)
			}
			break
		}
		if !b.Ceiling.GreaterThan(b.Floor) {
			return nil, fmt.Errorf("tax table: bracket %d ceiling not above floor", i)
		}
		expectedFloor = *b.Ceiling
	}
	if last := brackets[len(brackets)-1]; last.Ceiling != nil {
		return nil, fmt.Errorf("tax table: last bracket must be open-ended")
	}
	return &TaxTable{brackets: brackets}, nil
}

// ParseTaxTable builds a table from (floor, ceiling, rate) string triples,
// the shape configuration delivers. An empty ceiling means open-ended.
func ParseTaxTable(rows [][3]string) (*TaxTable, error) {
	brackets := make([]TaxBracket, 0, len(rows))
	for i, row := range rows {
		floor, err := decimal.NewFromString(row[0])
		if err != nil {
			return nil, fmt.Errorf("tax table: bracket %d floor: %w", i, err)
		}
		var ceiling *decimal.Decimal
		if row[1] != "" {
			c, err := decimal.NewFromString(row[1])
			if err != nil {
				return nil, fmt.Errorf("tax table: bracket %d ceiling: %w", i, err)
			}
			ceiling = &c
		}
		rate, err := decimal.NewFromString(row[2])
		if err != nil {
			return nil, fmt.Errorf("tax table: bracket %d rate: %w", i, err)
		}
		brackets = append(brackets, TaxBracket{Floor: floor, Ceiling: ceiling, Rate: rate})
	}
	return NewTaxTable(brackets)
}

// Tax computes progressive tax on income: each bracket's rate applies only
// to the slice of income falling inside that bracket. Negative income owes
// nothing.
func (t *TaxTable) Tax(income decimal.Decimal) decimal.Decimal {
	if income.IsNegative() {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, b := range t.brackets {
		if income.LessThanOrEqual(b.Floor) {
			break
		}
		upper := income
		if b.Ceiling != nil && b.Ceiling.LessThan(income) {
			upper = *b.Ceiling
		}
		total = total.Add(upper.Sub(b.Floor).Mul(b.Rate))
	}
	return total.Round(2)
}

// IncomeTaxFunc exposes the table as the calculateIncomeTax formula
// function, for registration on a Vocabulary.
func (t *TaxTable) IncomeTaxFunc() Func {
	return Func{
		Name:  "calculateIncomeTax",
		Arity: 1,
		Call: func(args []decimal.Decimal) (decimal.Decimal, error) {
			return t.Tax(args[0]), nil
		},
	}
}
