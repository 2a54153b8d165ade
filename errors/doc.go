// Package errors provides the error taxonomy used across the bridge.
//
// Errors are categorized by Phase (which of the four externally visible
// classes the failure belongs to) and Kind (the error category within it):
//
//	load         raw bytes could not be turned into a runnable module
//	start        the module's start function trapped
//	script       the surrounding test script could not be interpreted
//	interpreter  every other interpreter failure, including import resolution
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseInterpreter, errors.KindInstantiation).
//		Path("spectest", "print_i64").
//		Detail("unknown host func import").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Instantiation("module not registered: %s", name)
//	err := errors.Load("compile module", cause)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
