package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/internal/wasm"
	"github.com/wippyai/wasm-bridge/interp"
)

// instantiateHost instantiates a synthesized single-export module under a
// fresh host name.
func (e *Engine) instantiateHost(ctx context.Context, what string, b *wasm.Builder) (api.Module, error) {
	name := e.nextName(prefixHost)
	mod, err := e.runtime.InstantiateWithConfig(ctx, b.Build(),
		wazero.NewModuleConfig().WithName(name).WithStartFunctions())
	if err != nil {
		return nil, errors.New(errors.PhaseInterpreter, errors.KindInstantiation).
			Detail("allocate %s", what).
			Cause(err).
			Build()
	}
	Logger().Debug("host instance allocated", zap.String("name", name), zap.String("kind", what))
	return mod, nil
}

// AllocTable creates a table shared by every module that imports it.
func (e *Engine) AllocTable(ctx context.Context, desc interp.TableDescriptor) (interp.TableRef, error) {
	b := wasm.NewBuilder()
	b.Export(exportTable, wasm.ExternTable, b.Table(desc))
	mod, err := e.instantiateHost(ctx, "table", b)
	if err != nil {
		return nil, err
	}
	return &tableRef{
		source: source{mod: mod, export: exportTable},
		engine: e,
		desc:   desc,
	}, nil
}

// AllocMemory creates a linear memory shared by every module that imports it.
func (e *Engine) AllocMemory(ctx context.Context, desc interp.MemoryDescriptor) (interp.MemoryRef, error) {
	b := wasm.NewBuilder()
	b.Export(exportMemory, wasm.ExternMemory, b.Memory(desc))
	mod, err := e.instantiateHost(ctx, "memory", b)
	if err != nil {
		return nil, err
	}
	return &memoryRef{
		source: source{mod: mod, export: exportMemory},
		mem:    mod.ExportedMemory(exportMemory),
		desc:   desc,
	}, nil
}

// AllocGlobal creates a global cell initialized to v.
func (e *Engine) AllocGlobal(ctx context.Context, v interp.Value, mutable bool) (interp.GlobalRef, error) {
	switch v.Type {
	case api.ValueTypeI32, api.ValueTypeI64, api.ValueTypeF32, api.ValueTypeF64:
	default:
		return nil, errors.Unsupported(errors.PhaseInterpreter, "global of type "+interp.TypeName(v.Type))
	}

	b := wasm.NewBuilder()
	b.Export(exportGlobal, wasm.ExternGlobal, b.Global(v, mutable))
	mod, err := e.instantiateHost(ctx, "global", b)
	if err != nil {
		return nil, err
	}
	return &globalRef{
		source: source{mod: mod, export: exportGlobal},
		g:      mod.ExportedGlobal(exportGlobal),
	}, nil
}

// AllocHostFunc creates a function with signature sig whose calls are
// dispatched to ext.InvokeIndex(index). An error from the dispatcher traps
// the calling module.
func (e *Engine) AllocHostFunc(ctx context.Context, sig interp.Signature, index int, ext interp.Externals) (interp.FuncRef, error) {
	sig = interp.Signature{Params: slices.Clone(sig.Params), Results: slices.Clone(sig.Results)}

	fn := api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		args := make([]interp.Value, len(sig.Params))
		for i, t := range sig.Params {
			args[i] = interp.Value{Type: t, Bits: stack[i]}
		}
		results, err := ext.InvokeIndex(ctx, index, args)
		if err != nil {
			panic(err)
		}
		if len(results) != len(sig.Results) {
			panic(fmt.Errorf("host function %d returned %d values, signature %s", index, len(results), sig))
		}
		for i, r := range results {
			stack[i] = r.Bits
		}
	})

	name := e.nextName(prefixHost)
	mod, err := e.runtime.NewHostModuleBuilder(name).
		NewFunctionBuilder().
		WithGoModuleFunction(fn, sig.Params, sig.Results).
		Export(exportFunc).
		Instantiate(ctx)
	if err != nil {
		return nil, errors.New(errors.PhaseInterpreter, errors.KindInstantiation).
			Detail("allocate host function %d", index).
			Cause(err).
			Build()
	}
	Logger().Debug("host function allocated",
		zap.String("name", name),
		zap.Int("index", index),
		zap.Stringer("signature", sig))

	return &funcRef{source: source{mod: mod, export: exportFunc}, sig: sig}, nil
}
