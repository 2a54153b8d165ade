package engine

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/internal/wasm"
	"github.com/wippyai/wasm-bridge/interp"
)

var (
	i32s    = []api.ValueType{api.ValueTypeI32}
	binaryI = interp.Signature{Params: []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, Results: i32s}
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	ctx := context.Background()
	e, err := New(ctx, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = e.Close(ctx) })
	return e
}

// namespace serves fixed refs for one import module name.
type namespace struct {
	funcs    map[string]interp.FuncRef
	globals  map[string]interp.GlobalRef
	memories map[string]interp.MemoryRef
	tables   map[string]interp.TableRef
}

func (n *namespace) ResolveFunc(_ context.Context, field string, _ interp.Signature) (interp.FuncRef, error) {
	if f, ok := n.funcs[field]; ok {
		return f, nil
	}
	return nil, errors.Instantiation("unknown func %s", field)
}

func (n *namespace) ResolveGlobal(_ context.Context, field string, _ interp.GlobalDescriptor) (interp.GlobalRef, error) {
	if g, ok := n.globals[field]; ok {
		return g, nil
	}
	return nil, errors.Instantiation("unknown global %s", field)
}

func (n *namespace) ResolveMemory(_ context.Context, field string, _ interp.MemoryDescriptor) (interp.MemoryRef, error) {
	if m, ok := n.memories[field]; ok {
		return m, nil
	}
	return nil, errors.Instantiation("unknown memory %s", field)
}

func (n *namespace) ResolveTable(_ context.Context, field string, _ interp.TableDescriptor) (interp.TableRef, error) {
	if t, ok := n.tables[field]; ok {
		return t, nil
	}
	return nil, errors.Instantiation("unknown table %s", field)
}

// resolver routes imports to namespaces by module name.
type resolver map[string]interp.ModuleImportResolver

func (r resolver) get(module string) (interp.ModuleImportResolver, error) {
	m, ok := r[module]
	if !ok {
		return nil, errors.Instantiation("module not registered: %s", module)
	}
	return m, nil
}

func (r resolver) ResolveFunc(ctx context.Context, module, field string, sig interp.Signature) (interp.FuncRef, error) {
	m, err := r.get(module)
	if err != nil {
		return nil, err
	}
	return m.ResolveFunc(ctx, field, sig)
}

func (r resolver) ResolveGlobal(ctx context.Context, module, field string, desc interp.GlobalDescriptor) (interp.GlobalRef, error) {
	m, err := r.get(module)
	if err != nil {
		return nil, err
	}
	return m.ResolveGlobal(ctx, field, desc)
}

func (r resolver) ResolveMemory(ctx context.Context, module, field string, desc interp.MemoryDescriptor) (interp.MemoryRef, error) {
	m, err := r.get(module)
	if err != nil {
		return nil, err
	}
	return m.ResolveMemory(ctx, field, desc)
}

func (r resolver) ResolveTable(ctx context.Context, module, field string, desc interp.TableDescriptor) (interp.TableRef, error) {
	m, err := r.get(module)
	if err != nil {
		return nil, err
	}
	return m.ResolveTable(ctx, field, desc)
}

// recorder is an Externals that records calls and answers from results.
type recorder struct {
	calls   [][]interp.Value
	indexes []int
	results []interp.Value
	err     error
}

func (r *recorder) InvokeIndex(_ context.Context, index int, args []interp.Value) ([]interp.Value, error) {
	r.indexes = append(r.indexes, index)
	r.calls = append(r.calls, args)
	return r.results, r.err
}

// sumModule exports f(a, b) = a + b.
func sumModule() []byte {
	b := wasm.NewBuilder()
	f := b.Func(binaryI, nil, wasm.Body(wasm.OpLocalGet(0), wasm.OpLocalGet(1), wasm.OpI32Add))
	b.Export("f", wasm.ExternFunc, f)
	return b.Build()
}

func instantiate(t *testing.T, e *Engine, wasmBytes []byte, r interp.ImportResolver) interp.ModuleRef {
	t.Helper()
	if r == nil {
		r = resolver{}
	}
	m, err := e.Instantiate(context.Background(), wasmBytes, r)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	return m
}
