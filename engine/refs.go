package engine

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/internal/wasm"
	"github.com/wippyai/wasm-bridge/interp"
)

var (
	i32Type  = []api.ValueType{api.ValueTypeI32}
	sizeSig  = interp.Signature{Results: i32Type}
	growSig  = interp.Signature{Params: i32Type, Results: i32Type}
	growFail = int32(-1)
)

// source locates an entity by owning module and export name. Bridges import
// from it.
type source struct {
	mod    api.Module
	export string
}

func (s source) owner() string {
	return s.mod.Name()
}

type funcRef struct {
	source
	sig interp.Signature
}

func (f *funcRef) Signature() interp.Signature { return f.sig }

type globalRef struct {
	source
	g api.Global
}

func (g *globalRef) Descriptor() interp.GlobalDescriptor {
	_, mutable := g.g.(api.MutableGlobal)
	return interp.GlobalDescriptor{Type: g.g.Type(), Mutable: mutable}
}

func (g *globalRef) Get() interp.Value {
	return interp.Value{Type: g.g.Type(), Bits: g.g.Get()}
}

type memoryRef struct {
	source
	mem  api.Memory
	desc interp.MemoryDescriptor
}

func (m *memoryRef) Descriptor() interp.MemoryDescriptor { return m.desc }

func (m *memoryRef) Pages() uint32 { return m.mem.Size() / interp.PageSize }

func (m *memoryRef) Grow(delta uint32) (uint32, bool) { return m.mem.Grow(delta) }

func (m *memoryRef) Read(offset, length uint32) ([]byte, bool) { return m.mem.Read(offset, length) }

func (m *memoryRef) Write(offset uint32, data []byte) bool { return m.mem.Write(offset, data) }

// tableRef reaches its table through a helper module that imports it and
// exports size and grow functions, created on first use.
type tableRef struct {
	source
	engine *Engine
	desc   interp.TableDescriptor
	helper api.Module
}

func (t *tableRef) Descriptor() interp.TableDescriptor { return t.desc }

func (t *tableRef) Size(ctx context.Context) (uint32, error) {
	h, err := t.helpers(ctx)
	if err != nil {
		return 0, err
	}
	res, err := h.ExportedFunction(exportSize).Call(ctx)
	if err != nil {
		return 0, errors.Interpreter(err)
	}
	return uint32(res[0]), nil
}

func (t *tableRef) Grow(ctx context.Context, delta uint32) (uint32, bool, error) {
	h, err := t.helpers(ctx)
	if err != nil {
		return 0, false, err
	}
	res, err := h.ExportedFunction(exportGrow).Call(ctx, uint64(delta))
	if err != nil {
		return 0, false, errors.Interpreter(err)
	}
	if api.DecodeI32(res[0]) == growFail {
		return 0, false, nil
	}
	return uint32(res[0]), true, nil
}

func (t *tableRef) helpers(ctx context.Context) (api.Module, error) {
	if t.helper != nil {
		return t.helper, nil
	}

	b := wasm.NewBuilder()
	tbl := b.ImportTable(t.owner(), t.export, t.desc)
	size := b.Func(sizeSig, nil, wasm.OpTableSize(tbl))
	grow := b.Func(growSig, nil, wasm.Body(
		wasm.OpRefNull(t.desc.ElemType),
		wasm.OpLocalGet(0),
		wasm.OpTableGrow(tbl),
	))
	b.Export(exportSize, wasm.ExternFunc, size)
	b.Export(exportGrow, wasm.ExternFunc, grow)

	mod, err := t.engine.runtime.InstantiateWithConfig(ctx, b.Build(),
		wazero.NewModuleConfig().WithName(t.engine.nextName(prefixTable)).WithStartFunctions())
	if err != nil {
		return nil, fmt.Errorf("table helper for %s.%s: %w", t.owner(), t.export, err)
	}
	t.helper = mod
	return mod, nil
}

// Module is an instantiated user module. It resolves imports of other
// modules against its own exports.
type Module struct {
	engine  *Engine
	mod     api.Module
	parsed  *wasm.Module
	bridges []api.Module
}

var _ interp.ModuleRef = (*Module)(nil)

// Name returns the internal instance name.
func (m *Module) Name() string {
	return m.mod.Name()
}

func (m *Module) notExported(kind wasm.ExternKind, field string) error {
	return errors.Instantiation("module %s does not export %s %s", m.Name(), kind, field)
}

func (m *Module) ResolveFunc(_ context.Context, field string, _ interp.Signature) (interp.FuncRef, error) {
	fn := m.mod.ExportedFunction(field)
	if fn == nil {
		return nil, m.notExported(wasm.ExternFunc, field)
	}
	def := fn.Definition()
	return &funcRef{
		source: source{mod: m.mod, export: field},
		sig:    interp.Signature{Params: def.ParamTypes(), Results: def.ResultTypes()},
	}, nil
}

func (m *Module) ResolveGlobal(_ context.Context, field string, _ interp.GlobalDescriptor) (interp.GlobalRef, error) {
	g := m.mod.ExportedGlobal(field)
	if g == nil {
		return nil, m.notExported(wasm.ExternGlobal, field)
	}
	return &globalRef{source: source{mod: m.mod, export: field}, g: g}, nil
}

func (m *Module) ResolveMemory(_ context.Context, field string, _ interp.MemoryDescriptor) (interp.MemoryRef, error) {
	mem := m.mod.ExportedMemory(field)
	if mem == nil {
		return nil, m.notExported(wasm.ExternMemory, field)
	}
	desc, ok := m.parsed.ExportedMemory(field)
	if !ok {
		desc = memoryDescriptor(mem.Definition())
	}
	return &memoryRef{
		source: source{mod: m.mod, export: field},
		mem:    mem,
		desc:   desc,
	}, nil
}

func (m *Module) ResolveTable(_ context.Context, field string, _ interp.TableDescriptor) (interp.TableRef, error) {
	desc, ok := m.parsed.ExportedTable(field)
	if !ok {
		return nil, m.notExported(wasm.ExternTable, field)
	}
	return &tableRef{
		source: source{mod: m.mod, export: field},
		engine: m.engine,
		desc:   desc,
	}, nil
}

func memoryDescriptor(def api.MemoryDefinition) interp.MemoryDescriptor {
	maxPages, hasMax := def.Max()
	return interp.MemoryDescriptor{Limits: interp.Limits{Min: def.Min(), Max: maxPages, HasMax: hasMax}}
}
