// Package spectest provides the "spectest" host module that conformance
// scripts import from, and the Driver that tracks loaded modules by name and
// resolves imports between them.
package spectest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/interp"
)

// ModuleName is the reserved import namespace served by Module.
const ModuleName = "spectest"

// PrintFuncIndex is the host function index shared by every print variant.
const PrintFuncIndex = 0

// Initial value of the three spectest globals.
const globalValue = 666

var printFuncs = map[string]bool{
	"print":         true,
	"print_i32":     true,
	"print_i64":     true,
	"print_i32_f32": true,
	"print_f64_f64": true,
	"print_f32":     true,
	"print_f64":     true,
}

// Module is the spectest host environment: one table, one memory and three
// immutable globals, shared by reference with every importer.
type Module struct {
	alloc   interp.Allocator
	table   interp.TableRef
	memory  interp.MemoryRef
	globals map[string]interp.GlobalRef
}

// NewModule allocates the host instances through alloc.
func NewModule(ctx context.Context, alloc interp.Allocator) (*Module, error) {
	table, err := alloc.AllocTable(ctx, interp.TableDescriptor{
		ElemType: interp.ValueTypeFuncref,
		Limits:   interp.Limits{Min: 10, Max: 20, HasMax: true},
	})
	if err != nil {
		return nil, fmt.Errorf("allocate table: %w", err)
	}

	memory, err := alloc.AllocMemory(ctx, interp.MemoryDescriptor{
		Limits: interp.Limits{Min: 1, Max: 2, HasMax: true},
	})
	if err != nil {
		return nil, fmt.Errorf("allocate memory: %w", err)
	}

	m := &Module{
		alloc:   alloc,
		table:   table,
		memory:  memory,
		globals: make(map[string]interp.GlobalRef, 3),
	}
	for name, v := range map[string]interp.Value{
		"global_i32": interp.I32(globalValue),
		"global_f32": interp.F32(globalValue),
		"global_f64": interp.F64(globalValue),
	} {
		g, err := alloc.AllocGlobal(ctx, v, false)
		if err != nil {
			return nil, fmt.Errorf("allocate %s: %w", name, err)
		}
		m.globals[name] = g
	}
	return m, nil
}

// Table returns the shared table.
func (m *Module) Table() interp.TableRef { return m.table }

// Memory returns the shared memory.
func (m *Module) Memory() interp.MemoryRef { return m.memory }

// Global returns the named global, or nil.
func (m *Module) Global(name string) interp.GlobalRef { return m.globals[name] }

// ResolveFunc binds a print import to PrintFuncIndex with the importer's
// signature. Every print variant must return nothing.
func (m *Module) ResolveFunc(ctx context.Context, field string, sig interp.Signature) (interp.FuncRef, error) {
	if !printFuncs[field] {
		return nil, errors.Instantiation("unknown host func import %s", field)
	}
	if !sig.Unit() {
		return nil, errors.Instantiation("function %s must return nothing, got signature %s", field, sig)
	}
	return m.alloc.AllocHostFunc(ctx, sig, PrintFuncIndex, m)
}

func (m *Module) ResolveGlobal(_ context.Context, field string, _ interp.GlobalDescriptor) (interp.GlobalRef, error) {
	g, ok := m.globals[field]
	if !ok {
		return nil, errors.Instantiation("unknown host global import %s", field)
	}
	return g, nil
}

func (m *Module) ResolveMemory(_ context.Context, field string, _ interp.MemoryDescriptor) (interp.MemoryRef, error) {
	if field != "memory" {
		return nil, errors.Instantiation("unknown host memory import %s", field)
	}
	return m.memory, nil
}

func (m *Module) ResolveTable(_ context.Context, field string, _ interp.TableDescriptor) (interp.TableRef, error) {
	if field != "table" {
		return nil, errors.Instantiation("unknown host table import %s", field)
	}
	return m.table, nil
}

// InvokeIndex runs host function index. Print logs its arguments and returns
// nothing. Any other index means resolution and dispatch disagree, which
// terminates the process.
func (m *Module) InvokeIndex(_ context.Context, index int, args []interp.Value) ([]interp.Value, error) {
	if index != PrintFuncIndex {
		Logger().Fatal("spectest host function index out of range",
			zap.Int("index", index),
			zap.Int("known", PrintFuncIndex))
		return nil, fmt.Errorf("spectest: unknown host function index %d", index)
	}
	Logger().Info("print", zap.Stringers("args", args))
	return nil, nil
}
