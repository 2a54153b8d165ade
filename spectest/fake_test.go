package spectest

import (
	"context"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/interp"
)

// fakeAlloc records allocations without an interpreter behind them.
type fakeAlloc struct {
	tables   []interp.TableDescriptor
	memories []interp.MemoryDescriptor
	globals  []*fakeGlobal
	funcs    []*fakeFunc
}

type fakeTable struct{ desc interp.TableDescriptor }

func (t *fakeTable) Descriptor() interp.TableDescriptor { return t.desc }

func (t *fakeTable) Size(context.Context) (uint32, error) { return t.desc.Limits.Min, nil }

func (t *fakeTable) Grow(_ context.Context, delta uint32) (uint32, bool, error) {
	prev := t.desc.Limits.Min
	if prev+delta > t.desc.Limits.Max {
		return prev, false, nil
	}
	t.desc.Limits.Min += delta
	return prev, true, nil
}

type fakeMemory struct {
	desc interp.MemoryDescriptor
	data []byte
}

func (m *fakeMemory) Descriptor() interp.MemoryDescriptor { return m.desc }

func (m *fakeMemory) Pages() uint32 { return uint32(len(m.data) / interp.PageSize) }

func (m *fakeMemory) Grow(delta uint32) (uint32, bool) {
	prev := m.Pages()
	if prev+delta > m.desc.Limits.Max {
		return prev, false
	}
	m.data = append(m.data, make([]byte, int(delta)*interp.PageSize)...)
	return prev, true
}

func (m *fakeMemory) Read(offset, length uint32) ([]byte, bool) {
	if int(offset)+int(length) > len(m.data) {
		return nil, false
	}
	return m.data[offset : offset+length], true
}

func (m *fakeMemory) Write(offset uint32, data []byte) bool {
	if int(offset)+len(data) > len(m.data) {
		return false
	}
	copy(m.data[offset:], data)
	return true
}

type fakeGlobal struct {
	v       interp.Value
	mutable bool
}

func (g *fakeGlobal) Descriptor() interp.GlobalDescriptor {
	return interp.GlobalDescriptor{Type: g.v.Type, Mutable: g.mutable}
}

func (g *fakeGlobal) Get() interp.Value { return g.v }

type fakeFunc struct {
	sig   interp.Signature
	index int
	ext   interp.Externals
}

func (f *fakeFunc) Signature() interp.Signature { return f.sig }

func (f *fakeFunc) call(ctx context.Context, args ...interp.Value) ([]interp.Value, error) {
	return f.ext.InvokeIndex(ctx, f.index, args)
}

func (a *fakeAlloc) AllocTable(_ context.Context, desc interp.TableDescriptor) (interp.TableRef, error) {
	a.tables = append(a.tables, desc)
	return &fakeTable{desc: desc}, nil
}

func (a *fakeAlloc) AllocMemory(_ context.Context, desc interp.MemoryDescriptor) (interp.MemoryRef, error) {
	a.memories = append(a.memories, desc)
	return &fakeMemory{desc: desc, data: make([]byte, int(desc.Limits.Min)*interp.PageSize)}, nil
}

func (a *fakeAlloc) AllocGlobal(_ context.Context, v interp.Value, mutable bool) (interp.GlobalRef, error) {
	g := &fakeGlobal{v: v, mutable: mutable}
	a.globals = append(a.globals, g)
	return g, nil
}

func (a *fakeAlloc) AllocHostFunc(_ context.Context, sig interp.Signature, index int, ext interp.Externals) (interp.FuncRef, error) {
	f := &fakeFunc{sig: sig, index: index, ext: ext}
	a.funcs = append(a.funcs, f)
	return f, nil
}

// fakeModule is a loaded instance exporting a fixed set of globals.
type fakeModule struct {
	name    string
	globals map[string]interp.GlobalRef
}

func (m *fakeModule) Name() string { return m.name }

func (m *fakeModule) ResolveFunc(_ context.Context, field string, _ interp.Signature) (interp.FuncRef, error) {
	return nil, errors.Instantiation("export %s not found", field)
}

func (m *fakeModule) ResolveGlobal(_ context.Context, field string, _ interp.GlobalDescriptor) (interp.GlobalRef, error) {
	g, ok := m.globals[field]
	if !ok {
		return nil, errors.Instantiation("export %s not found", field)
	}
	return g, nil
}

func (m *fakeModule) ResolveMemory(_ context.Context, field string, _ interp.MemoryDescriptor) (interp.MemoryRef, error) {
	return nil, errors.Instantiation("export %s not found", field)
}

func (m *fakeModule) ResolveTable(_ context.Context, field string, _ interp.TableDescriptor) (interp.TableRef, error) {
	return nil, errors.Instantiation("export %s not found", field)
}
