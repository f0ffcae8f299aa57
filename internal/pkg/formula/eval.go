package formula

import "github.com/shopspring/decimal"

func (e *literalExpr) eval(_ *Vocabulary, _ Variables) (decimal.Decimal, error) {
	return e.value, nil
}

func (e *variableExpr) eval(_ *Vocabulary, vars Variables) (decimal.Decimal, error) {
	value, ok := vars[e.name]
	if !ok {
		return decimal.Decimal{}, errf(ErrKindEval, e.pos, "variable %q not bound", e.name)
	}
	return value, nil
}

func (e *unaryExpr) eval(vocab *Vocabulary, vars Variables) (decimal.Decimal, error) {
	value, err := e.inner.eval(vocab, vars)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return value.Neg(), nil
}

func (e *binaryExpr) eval(vocab *Vocabulary, vars Variables) (decimal.Decimal, error) {
	left, err := e.left.eval(vocab, vars)
	if err != nil {
		return decimal.Decimal{}, err
	}
	right, err := e.right.eval(vocab, vars)
	if err != nil {
		return decimal.Decimal{}, err
	}

	switch e.op {
	case '+':
		return left.Add(right), nil
	case '-':
		return left.Sub(right), nil
	case '*':
		return left.Mul(right), nil
	case '/':
		if right.IsZero() {
			return decimal.Decimal{}, errf(ErrKindEval, e.pos, "division by zero")
		}
		// 16 significant decimal digits, then callers round to cents.
		return left.DivRound(right, 16), nil
	}
	return decimal.Decimal{}, errf(ErrKindEval, e.pos, "unknown operator %q", string(e.op))
}

func (e *callExpr) eval(vocab *Vocabulary, vars Variables) (decimal.Decimal, error) {
	fn, ok := vocab.Function(e.name)
	if !ok {
		return decimal.Decimal{}, errf(ErrKindEval, e.pos, "unknown function %q", e.name)
	}
	args := make([]decimal.Decimal, len(e.args))
	for i, arg := range e.args {
		value, err := arg.eval(vocab, vars)
		if err != nil {
			return decimal.Decimal{}, err
		}
		args[i] = value
	}
	result, err := fn.Call(args)
	if err != nil {
		return decimal.Decimal{}, errf(ErrKindEval, e.pos, "%s: %v", e.name, err)
	}
	return result, nil
}
