package formula

import "fmt"

type ErrKind string

const (
	ErrKindSyntax          ErrKind = "syntax"
	ErrKindUnknownVariable ErrKind = "unknown_variable"
	ErrKindUnknownFunction ErrKind = "unknown_function"
	ErrKindArity           ErrKind = "arity"
	ErrKindEval            ErrKind = "eval"
)

// Error is returned for every compile-time and evaluation-time failure.
// Pos is a zero-based byte offset into the formula source.
type Error struct {
	Kind    ErrKind
	Pos     int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("formula error (%s) at offset %d: %s", e.Kind, e.Pos, e.Message)
}

func errf(kind ErrKind, pos int, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Pos: pos, Message: fmt.Sprintf(format, args...)}
}
