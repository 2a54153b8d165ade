// Package action defines the commands a harness sends across the trust
// boundary and the result records it receives back.
//
// The set of commands is closed: Invoke, Get, LoadModule, TryLoad and
// Register. Each command is consumed exactly once by the driving loop.
// Optional module names are empty strings when absent; an absent module name
// refers to the most recently loaded module.
package action

import "github.com/wippyai/wasm-bridge/boundary"

// Action is a command issued by the harness.
type Action interface {
	isAction()
}

// Invoke calls an exported function.
type Invoke struct {
	Module string           `json:"module,omitempty"`
	Field  string           `json:"field" validate:"required"`
	Args   []boundary.Value `json:"args"`
}

// Get reads an exported global.
type Get struct {
	Module string `json:"module,omitempty"`
	Field  string `json:"field" validate:"required"`
}

// LoadModule instantiates module bytes and records the instance, under Name
// when given.
type LoadModule struct {
	Name   string `json:"name,omitempty"`
	Module []byte `json:"module" validate:"min=1"`
}

// TryLoad instantiates module bytes without registering the instance. Used
// for modules that are expected to be rejected. With CompileOnly the module
// is only decoded and validated, never linked.
type TryLoad struct {
	Module      []byte `json:"module" validate:"min=1"`
	CompileOnly bool   `json:"compile_only,omitempty"`
}

// Register makes a loaded module importable under AsName.
type Register struct {
	Name   string `json:"name,omitempty"`
	AsName string `json:"as_name" validate:"required"`
}

func (Invoke) isAction()     {}
func (Get) isAction()        {}
func (LoadModule) isAction() {}
func (TryLoad) isAction()    {}
func (Register) isAction()   {}

// Name returns the wire tag of a.
func Name(a Action) string {
	switch a.(type) {
	case Invoke, *Invoke:
		return "Invoke"
	case Get, *Get:
		return "Get"
	case LoadModule, *LoadModule:
		return "LoadModule"
	case TryLoad, *TryLoad:
		return "TryLoad"
	case Register, *Register:
		return "Register"
	default:
		return "unknown"
	}
}
