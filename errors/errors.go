package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates which externally visible error class a failure belongs to
type Phase string

const (
	PhaseLoad        Phase = "load"        // validation or instantiation rejected the bytes
	PhaseStart       Phase = "start"       // start function trapped
	PhaseScript      Phase = "script"      // test script could not be interpreted
	PhaseInterpreter Phase = "interpreter" // any other interpreter failure
	PhaseBoundary    Phase = "boundary"    // value marshalling across the boundary
)

// Kind categorizes the error
type Kind string

const (
	KindInstantiation Kind = "instantiation"
	KindNotFound      Kind = "not_found"
	KindUnsupported   Kind = "unsupported"
	KindTypeMismatch  Kind = "type_mismatch"
	KindTrap          Kind = "trap"
	KindInvalidData   Kind = "invalid_data"
	KindInvalidInput  Kind = "invalid_input"
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the module/field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Instantiation creates an import resolution error. Resolution failures are
// interpreter-class errors.
func Instantiation(format string, args ...any) *Error {
	return &Error{
		Phase:  PhaseInterpreter,
		Kind:   KindInstantiation,
		Detail: fmt.Sprintf(format, args...),
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// Start creates an error for a trapping start function
func Start(cause error) *Error {
	return &Error{
		Phase:  PhaseStart,
		Kind:   KindTrap,
		Detail: "start function trapped",
		Cause:  cause,
	}
}

// Script wraps a script parsing error. An *Error is passed through unchanged.
func Script(cause error) *Error {
	var e *Error
	if errors.As(cause, &e) {
		return e
	}
	return &Error{
		Phase:  PhaseScript,
		Kind:   KindInvalidData,
		Detail: "parse script",
		Cause:  cause,
	}
}

// ScriptDetail creates a script error with a detail message
func ScriptDetail(format string, args ...any) *Error {
	return &Error{
		Phase:  PhaseScript,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf(format, args...),
	}
}

// Interpreter wraps an interpreter-level error. An *Error is passed through
// unchanged so the caller keeps its identity.
func Interpreter(cause error) *Error {
	if cause == nil {
		return nil
	}
	var e *Error
	if errors.As(cause, &e) {
		return e
	}
	return &Error{
		Phase:  PhaseInterpreter,
		Kind:   KindTrap,
		Detail: "interpreter error",
		Cause:  cause,
	}
}

// Trap creates an error for code that trapped during invocation
func Trap(field string, cause error) *Error {
	return &Error{
		Phase:  PhaseInterpreter,
		Kind:   KindTrap,
		Path:   []string{field},
		Detail: "invocation trapped",
		Cause:  cause,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, want, got string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   path,
		Detail: fmt.Sprintf("expected %s, got %s", want, got),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Classify maps err onto one of the four externally visible classes.
// Boundary and foreign errors are interpreter-class.
func Classify(err error) Phase {
	var e *Error
	if !errors.As(err, &e) {
		return PhaseInterpreter
	}
	switch e.Phase {
	case PhaseLoad, PhaseStart, PhaseScript:
		return e.Phase
	default:
		return PhaseInterpreter
	}
}
