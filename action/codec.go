package action

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"

	"github.com/wippyai/wasm-bridge/boundary"
	"github.com/wippyai/wasm-bridge/errors"
)

// validate is a package-level singleton; building a validator is expensive.
var validate = validator.New()

// Envelope is the externally tagged wire form of an Action. Exactly one
// field is set.
type Envelope struct {
	Invoke     *Invoke     `json:"Invoke,omitempty"`
	Get        *Get        `json:"Get,omitempty"`
	LoadModule *LoadModule `json:"LoadModule,omitempty"`
	TryLoad    *TryLoad    `json:"TryLoad,omitempty"`
	Register   *Register   `json:"Register,omitempty"`
}

// UnmarshalJSON decodes Args through the boundary value codec.
func (i *Invoke) UnmarshalJSON(data []byte) error {
	var wire struct {
		Module string          `json:"module"`
		Field  string          `json:"field"`
		Args   json.RawMessage `json:"args"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	i.Module = wire.Module
	i.Field = wire.Field
	i.Args = nil
	if len(wire.Args) > 0 && string(wire.Args) != "null" {
		args, err := boundary.UnmarshalList(wire.Args)
		if err != nil {
			return err
		}
		i.Args = args
	}
	return nil
}

// Encode serializes a into its wire form.
func Encode(a Action) ([]byte, error) {
	var env Envelope
	switch a := a.(type) {
	case Invoke:
		env.Invoke = &a
	case *Invoke:
		env.Invoke = a
	case Get:
		env.Get = &a
	case *Get:
		env.Get = a
	case LoadModule:
		env.LoadModule = &a
	case *LoadModule:
		env.LoadModule = a
	case TryLoad:
		env.TryLoad = &a
	case *TryLoad:
		env.TryLoad = a
	case Register:
		env.Register = &a
	case *Register:
		env.Register = a
	default:
		return nil, errors.InvalidInput(errors.PhaseScript, "unknown action type")
	}
	return json.Marshal(env)
}

// Decode parses and validates a command from its wire form. The returned
// Action is always a value type, never a pointer.
func Decode(data []byte) (Action, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.New(errors.PhaseScript, errors.KindInvalidData).
			Detail("decode command").
			Cause(err).
			Build()
	}

	var (
		a     Action
		count int
		body  any
	)
	if env.Invoke != nil {
		a, body = *env.Invoke, env.Invoke
		count++
	}
	if env.Get != nil {
		a, body = *env.Get, env.Get
		count++
	}
	if env.LoadModule != nil {
		a, body = *env.LoadModule, env.LoadModule
		count++
	}
	if env.TryLoad != nil {
		a, body = *env.TryLoad, env.TryLoad
		count++
	}
	if env.Register != nil {
		a, body = *env.Register, env.Register
		count++
	}
	if count != 1 {
		return nil, errors.ScriptDetail("command must have exactly one variant, got %d", count)
	}

	if err := Validate(body); err != nil {
		return nil, err
	}
	return a, nil
}

// Validate checks the struct tags of a command.
func Validate(a any) error {
	if err := validate.Struct(a); err != nil {
		return errors.New(errors.PhaseScript, errors.KindInvalidInput).
			Detail("invalid command").
			Cause(err).
			Build()
	}
	return nil
}

// Schema returns the JSON schema of the command envelope.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(&Envelope{})
	return json.MarshalIndent(schema, "", "  ")
}
