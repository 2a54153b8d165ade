package action

import (
	"encoding/json"

	"github.com/wippyai/wasm-bridge/boundary"
	"github.com/wippyai/wasm-bridge/errors"
)

// ErrorKind is the externally visible error class of a failed command.
type ErrorKind string

const (
	ErrorLoad        ErrorKind = "Load"
	ErrorStart       ErrorKind = "Start"
	ErrorScript      ErrorKind = "Script"
	ErrorInterpreter ErrorKind = "Interpreter"
)

// ErrorRecord is the serializable form of a command failure.
type ErrorRecord struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Result is the reply to a command: no values, values, or an error.
type Result struct {
	Error  *ErrorRecord     `json:"error,omitempty"`
	Values []boundary.Value `json:"values,omitempty"`
}

// NewResult builds the reply for a completed command.
func NewResult(values []boundary.Value, err error) Result {
	if err != nil {
		return Result{Error: &ErrorRecord{
			Kind:    kindOf(err),
			Message: err.Error(),
		}}
	}
	return Result{Values: values}
}

func kindOf(err error) ErrorKind {
	switch errors.Classify(err) {
	case errors.PhaseLoad:
		return ErrorLoad
	case errors.PhaseStart:
		return ErrorStart
	case errors.PhaseScript:
		return ErrorScript
	default:
		return ErrorInterpreter
	}
}

// Value returns the single result value, or nil when there is none.
func (r Result) Value() boundary.Value {
	if len(r.Values) == 0 {
		return nil
	}
	return r.Values[0]
}

// UnmarshalJSON decodes Values through the boundary value codec.
func (r *Result) UnmarshalJSON(data []byte) error {
	var wire struct {
		Error  *ErrorRecord    `json:"error"`
		Values json.RawMessage `json:"values"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	r.Error = wire.Error
	r.Values = nil
	if len(wire.Values) > 0 && string(wire.Values) != "null" {
		vs, err := boundary.UnmarshalList(wire.Values)
		if err != nil {
			return err
		}
		r.Values = vs
	}
	return nil
}
