// Package script reads conformance scripts in the JSON form produced by
// wast2json and turns them into commands plus the expectations to check
// their results against.
package script

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/wasm-bridge/action"
	"github.com/wippyai/wasm-bridge/boundary"
	"github.com/wippyai/wasm-bridge/errors"
)

// Kind is the command type of a script step.
type Kind string

const (
	KindModule               Kind = "module"
	KindRegister             Kind = "register"
	KindAction               Kind = "action"
	KindAssertReturn         Kind = "assert_return"
	KindAssertTrap           Kind = "assert_trap"
	KindAssertExhaustion     Kind = "assert_exhaustion"
	KindAssertMalformed      Kind = "assert_malformed"
	KindAssertInvalid        Kind = "assert_invalid"
	KindAssertUnlinkable     Kind = "assert_unlinkable"
	KindAssertUninstantiable Kind = "assert_uninstantiable"
)

// NaN patterns an expected float may carry instead of a value.
const (
	NaNCanonical  = "nan:canonical"
	NaNArithmetic = "nan:arithmetic"
)

// ErrSkip marks a step this harness cannot run, such as text-format modules
// or reference and vector values.
var ErrSkip = stderrors.New("step skipped")

// Script is a parsed test script.
type Script struct {
	Source string
	Steps  []Step
}

// Expected is one expected result. Value is nil when NaN is set.
type Expected struct {
	Type  string
	Value boundary.Value
	NaN   string
}

func (e Expected) String() string {
	if e.NaN != "" {
		return e.Type + ":" + e.NaN
	}
	return fmt.Sprint(e.Value)
}

// Step is one command of a script.
type Step struct {
	Kind     Kind
	Line     int
	Action   action.Action
	Expected []Expected
	// Text is the expected error message of a failing assertion.
	Text string
	// Skip is the reason the step cannot run, or empty.
	Skip string
}

func (s Step) String() string {
	return fmt.Sprintf("%s at line %d", s.Kind, s.Line)
}

// Wire form of wast2json output.
type (
	scriptJSON struct {
		SourceFile string        `json:"source_filename"`
		Commands   []commandJSON `json:"commands"`
	}

	commandJSON struct {
		Type       string      `json:"type"`
		Line       int         `json:"line"`
		Name       string      `json:"name,omitempty"`
		Filename   string      `json:"filename,omitempty"`
		As         string      `json:"as,omitempty"`
		Action     *actionJSON `json:"action,omitempty"`
		Expected   []valueJSON `json:"expected,omitempty"`
		ModuleType string      `json:"module_type,omitempty"`
		Text       string      `json:"text,omitempty"`
	}

	actionJSON struct {
		Type   string      `json:"type"`
		Module string      `json:"module,omitempty"`
		Field  string      `json:"field"`
		Args   []valueJSON `json:"args,omitempty"`
	}

	// valueJSON carries a string for scalars and a lane list for v128.
	valueJSON struct {
		Type     string          `json:"type"`
		LaneType string          `json:"lane_type,omitempty"`
		Value    json.RawMessage `json:"value"`
	}
)

func (v valueJSON) text() (string, error) {
	var s string
	if err := json.Unmarshal(v.Value, &s); err != nil {
		return "", fmt.Errorf("%s value: %w", v.Type, err)
	}
	return s, nil
}

// errUnsupportedValue signals a value type the boundary cannot carry.
type errUnsupportedValue struct{ typ string }

func (e errUnsupportedValue) Error() string {
	return "unsupported value type " + e.typ
}

// Parse reads a wast2json script. load returns the bytes of a module file
// named by the script.
func Parse(data []byte, load func(filename string) ([]byte, error)) (*Script, error) {
	var raw scriptJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Script(err)
	}

	s := &Script{Source: raw.SourceFile}
	for _, c := range raw.Commands {
		step, err := parseCommand(c, load)
		if err != nil {
			return nil, errors.New(errors.PhaseScript, errors.KindInvalidData).
				Path(raw.SourceFile, strconv.Itoa(c.Line)).
				Detail("command %s", c.Type).
				Cause(err).
				Build()
		}
		s.Steps = append(s.Steps, step)
	}
	return s, nil
}

func parseCommand(c commandJSON, load func(string) ([]byte, error)) (Step, error) {
	step := Step{Kind: Kind(c.Type), Line: c.Line, Text: c.Text}

	switch step.Kind {
	case KindModule:
		module, err := load(c.Filename)
		if err != nil {
			return step, err
		}
		step.Action = action.LoadModule{Name: c.Name, Module: module}

	case KindRegister:
		step.Action = action.Register{Name: c.Name, AsName: c.As}

	case KindAction, KindAssertReturn, KindAssertTrap, KindAssertExhaustion:
		if c.Action == nil {
			return step, fmt.Errorf("missing action")
		}
		a, err := parseAction(*c.Action)
		if unsupported(err) {
			step.Skip = err.Error()
			return step, nil
		}
		if err != nil {
			return step, err
		}
		step.Action = a

		for _, v := range c.Expected {
			exp, err := parseExpected(v)
			if unsupported(err) {
				step.Skip = err.Error()
				return step, nil
			}
			if err != nil {
				return step, err
			}
			step.Expected = append(step.Expected, exp)
		}

	case KindAssertMalformed, KindAssertInvalid, KindAssertUnlinkable, KindAssertUninstantiable:
		if c.ModuleType == "text" {
			step.Skip = "text format module"
			return step, nil
		}
		module, err := load(c.Filename)
		if err != nil {
			return step, err
		}
		// Malformed and invalid modules fail before linking.
		compileOnly := step.Kind == KindAssertMalformed || step.Kind == KindAssertInvalid
		step.Action = action.TryLoad{Module: module, CompileOnly: compileOnly}

	default:
		step.Skip = "unknown command type " + c.Type
	}
	return step, nil
}

func unsupported(err error) bool {
	var u errUnsupportedValue
	return stderrors.As(err, &u)
}

func parseAction(a actionJSON) (action.Action, error) {
	switch a.Type {
	case "invoke":
		args := make([]boundary.Value, 0, len(a.Args))
		for _, arg := range a.Args {
			v, err := parseValue(arg)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}
		return action.Invoke{Module: a.Module, Field: a.Field, Args: args}, nil
	case "get":
		return action.Get{Module: a.Module, Field: a.Field}, nil
	default:
		return nil, fmt.Errorf("unknown action type %q", a.Type)
	}
}

func parseExpected(v valueJSON) (Expected, error) {
	if v.Type == "f32" || v.Type == "f64" {
		text, err := v.text()
		if err != nil {
			return Expected{}, err
		}
		if strings.HasPrefix(text, "nan:") {
			if text != NaNCanonical && text != NaNArithmetic {
				return Expected{}, fmt.Errorf("unknown NaN pattern %q", text)
			}
			return Expected{Type: v.Type, NaN: text}, nil
		}
	}
	bv, err := parseValue(v)
	if err != nil {
		return Expected{}, err
	}
	return Expected{Type: v.Type, Value: bv}, nil
}

// parseValue decodes a wast2json value. Integers and float bit patterns
// are unsigned decimal strings.
func parseValue(v valueJSON) (boundary.Value, error) {
	switch v.Type {
	case "i32", "i64", "f32", "f64":
	default:
		return nil, errUnsupportedValue{typ: v.Type}
	}
	text, err := v.text()
	if err != nil {
		return nil, err
	}

	switch v.Type {
	case "i32":
		n, err := strconv.ParseUint(text, 10, 32)
		if err != nil {
			return nil, err
		}
		return boundary.I32(int32(uint32(n))), nil
	case "i64":
		n, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return nil, err
		}
		return boundary.I64(int64(n)), nil
	case "f32":
		n, err := strconv.ParseUint(text, 10, 32)
		if err != nil {
			return nil, err
		}
		return boundary.F32(uint32(n)), nil
	case "f64":
		n, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return nil, err
		}
		return boundary.F64(n), nil
	default:
		return nil, errUnsupportedValue{typ: v.Type}
	}
}
