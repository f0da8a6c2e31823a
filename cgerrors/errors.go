// Package cgerrors defines the typed error taxonomy shared by every stage of
// the compilation pipeline (parser, logical plan builder, analyzer,
// optimizer, render plan builder, SQL emitter). Every pass raises one of the
// Kinds below rather than an ad-hoc error, so callers can match on Kind
// instead of string-sniffing a message.
package cgerrors

import (
	"fmt"

	uuid "github.com/satori/go.uuid"
	errors "gopkg.in/src-d/go-errors.v1"
)

// Taxonomy from spec §7. One Kind per distinguishable failure class; never
// add a new Go type for a new failure, add a Kind.
var (
	ErrParse                     = errors.NewKind("parse error: %s")
	ErrSchemaResolution          = errors.NewKind("schema resolution error: %s")
	ErrTypeInference             = errors.NewKind("type inference error: %s")
	ErrPatternExpansionOverflow  = errors.NewKind("pattern expansion overflow: %s")
	ErrInvalidVariableLengthPath = errors.NewKind("invalid variable-length path bounds: %s")
	ErrScope                     = errors.NewKind("scope error: %s")
	ErrUnsupportedConstruct      = errors.NewKind("unsupported construct: %s")
	ErrInternalInvariant         = errors.NewKind("internal invariant violation in %s: %s")
)

// Span is the byte range of the AST fragment a CompilationError concerns,
// preserved only if the raising stage still holds the original query text.
type Span struct {
	Start, End int
	Text       string
}

// CompilationError is the structured error every pipeline stage returns on
// failure. It names the offending stage, carries a human message, and
// preserves the Cypher span when the raising pass still has it (§4.10).
type CompilationError struct {
	Stage   string
	Message string
	Span    *Span
	QueryID string
	cause   error
}

func (e *CompilationError) Error() string {
	if e.Span != nil {
		return fmt.Sprintf("[%s] %s (at %q)", e.Stage, e.Message, e.Span.Text)
	}
	return fmt.Sprintf("[%s] %s", e.Stage, e.Message)
}

func (e *CompilationError) Unwrap() error { return e.cause }

// Is reports whether the wrapped cause matches kind, so callers holding a
// *CompilationError can write compErr.Is(cgerrors.ErrScope) instead of
// unwrapping it and calling cgerrors.ErrScope.Is on the raw Kind error.
func (e *CompilationError) Is(kind *errors.Kind) bool {
	return kind.Is(e.cause)
}

// Wrap attaches stage/span/query-id context to a Kind-raised cause, producing
// the structured error every exported entrypoint returns.
func Wrap(queryID, stage string, cause error, span *Span) *CompilationError {
	return &CompilationError{
		Stage:   stage,
		Message: cause.Error(),
		Span:    span,
		QueryID: queryID,
		cause:   cause,
	}
}

// NewQueryID mints a fresh compilation-scoped identifier. It has no meaning
// beyond correlating log lines and errors raised during one call to
// engine.Compile; it is not a tracing/telemetry surface.
func NewQueryID() string {
	id, err := uuid.NewV4()
	if err != nil {
		// entropy-source failure; fall back to the nil UUID rather than
		// fail a compilation over a correlation id.
		return uuid.Nil.String()
	}
	return id.String()
}
