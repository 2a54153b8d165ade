package runner

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/wasm-bridge/action"
	"github.com/wippyai/wasm-bridge/boundary"
	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/internal/wasm"
	"github.com/wippyai/wasm-bridge/interp"
	"github.com/wippyai/wasm-bridge/spectest"
)

var i32s = []api.ValueType{api.ValueTypeI32}

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	ctx := context.Background()
	r, err := New(ctx, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = r.Close(ctx) })
	return r
}

func sumModule() []byte {
	b := wasm.NewBuilder()
	f := b.Func(interp.Signature{Params: []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, Results: i32s}, nil,
		wasm.Body(wasm.OpLocalGet(0), wasm.OpLocalGet(1), wasm.OpI32Add))
	b.Export("f", wasm.ExternFunc, f)
	return b.Build()
}

// constModule exports c() returning v and an immutable global g = v.
func constModule(v int32) []byte {
	b := wasm.NewBuilder()
	b.Export("c", wasm.ExternFunc, b.Func(interp.Signature{Results: i32s}, nil, wasm.OpI32Const(v)))
	b.Export("g", wasm.ExternGlobal, b.Global(interp.I32(v), false))
	return b.Build()
}

func mustExecute(t *testing.T, r *Runner, a action.Action) []boundary.Value {
	t.Helper()
	values, err := r.Execute(context.Background(), a)
	if err != nil {
		t.Fatalf("%s: %v", action.Name(a), err)
	}
	return values
}

func TestExecute_SumScenario(t *testing.T) {
	r := newTestRunner(t)

	mustExecute(t, r, action.LoadModule{Module: sumModule()})
	if _, err := r.Driver().ModuleOrLast(""); err != nil {
		t.Fatalf("anonymous load not recorded as last: %v", err)
	}

	values := mustExecute(t, r, action.Invoke{Field: "f", Args: []boundary.Value{boundary.I32(2), boundary.I32(3)}})
	if len(values) != 1 || values[0] != boundary.I32(5) {
		t.Errorf("f(2, 3) = %v, want I32(5)", values)
	}
}

func TestExecute_NamedAndLast(t *testing.T) {
	r := newTestRunner(t)

	mustExecute(t, r, action.LoadModule{Name: "$A", Module: constModule(1)})
	mustExecute(t, r, action.LoadModule{Module: constModule(2)})

	if v := mustExecute(t, r, action.Invoke{Module: "$A", Field: "c"}); v[0] != boundary.I32(1) {
		t.Errorf("$A.c() = %v", v)
	}
	if v := mustExecute(t, r, action.Invoke{Field: "c"}); v[0] != boundary.I32(2) {
		t.Errorf("last.c() = %v", v)
	}
	if v := mustExecute(t, r, action.Get{Module: "$A", Field: "g"}); v[0] != boundary.I32(1) {
		t.Errorf("$A.g = %v", v)
	}
}

func TestExecute_RegisterAndLink(t *testing.T) {
	r := newTestRunner(t)

	mustExecute(t, r, action.LoadModule{Name: "$M", Module: constModule(7)})
	mustExecute(t, r, action.Register{Name: "$M", AsName: "M"})

	b := wasm.NewBuilder()
	c := b.ImportFunc("M", "c", interp.Signature{Results: i32s})
	b.Export("call", wasm.ExternFunc, b.Func(interp.Signature{Results: i32s}, nil, wasm.OpCall(c)))
	mustExecute(t, r, action.LoadModule{Module: b.Build()})

	if v := mustExecute(t, r, action.Invoke{Field: "call"}); v[0] != boundary.I32(7) {
		t.Errorf("call() = %v", v)
	}

	_, err := r.Execute(context.Background(), action.Register{Name: "$nope", AsName: "X"})
	if err == nil || !strings.Contains(err.Error(), "no such module registered") {
		t.Errorf("unexpected register error %v", err)
	}
}

func TestExecute_SpectestImports(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	spectest.SetLogger(zap.New(core))
	t.Cleanup(func() { spectest.SetLogger(zap.NewNop()) })

	r := newTestRunner(t)
	f64s := []api.ValueType{api.ValueTypeF64, api.ValueTypeF64}

	b := wasm.NewBuilder()
	p := b.ImportFunc("spectest", "print_f64_f64", interp.Signature{Params: f64s})
	g := b.ImportGlobal("spectest", "global_i32", interp.GlobalDescriptor{Type: api.ValueTypeI32})
	b.ImportMemory("spectest", "memory", interp.MemoryDescriptor{Limits: interp.Limits{Min: 1}})
	b.ImportTable("spectest", "table", interp.TableDescriptor{ElemType: interp.ValueTypeFuncref, Limits: interp.Limits{Min: 10}})
	b.Export("print", wasm.ExternFunc, b.Func(interp.Signature{Params: f64s}, nil,
		wasm.Body(wasm.OpLocalGet(0), wasm.OpLocalGet(1), wasm.OpCall(p))))
	b.Export("load", wasm.ExternFunc, b.Func(interp.Signature{Params: i32s, Results: i32s}, nil,
		wasm.Body(wasm.OpLocalGet(0), wasm.OpI32Load)))
	b.Export("g", wasm.ExternGlobal, g)
	mustExecute(t, r, action.LoadModule{Module: b.Build()})

	values := mustExecute(t, r, action.Invoke{Field: "print", Args: []boundary.Value{
		boundary.F64(0x3ff8000000000000), // 1.5
		boundary.F64(0x4004000000000000), // 2.5
	}})
	if values != nil {
		t.Errorf("print returned %v", values)
	}
	entries := logs.FilterMessage("print").All()
	if len(entries) != 1 {
		t.Fatalf("expected one print log entry, got %d", len(entries))
	}
	args, _ := entries[0].ContextMap()["args"].([]any)
	if len(args) != 2 || args[0] != "f64:1.5" || args[1] != "f64:2.5" {
		t.Errorf("logged args %v", args)
	}

	if v := mustExecute(t, r, action.Get{Field: "g"}); v[0] != boundary.I32(666) {
		t.Errorf("global_i32 = %v", v)
	}

	if !r.Driver().Host().Memory().Write(100, []byte{42}) {
		t.Fatal("host write failed")
	}
	if v := mustExecute(t, r, action.Invoke{Field: "load", Args: []boundary.Value{boundary.I32(100)}}); v[0] != boundary.I32(42) {
		t.Errorf("load(100) = %v", v)
	}
}

func TestExecute_RepeatedPrintImport(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	spectest.SetLogger(zap.New(core))
	t.Cleanup(func() { spectest.SetLogger(zap.NewNop()) })

	r := newTestRunner(t)
	f64s := []api.ValueType{api.ValueTypeF64}

	b := wasm.NewBuilder()
	pi := b.ImportFunc("spectest", "print", interp.Signature{Params: i32s})
	pf := b.ImportFunc("spectest", "print", interp.Signature{Params: f64s})
	b.Export("run", wasm.ExternFunc, b.Func(interp.Signature{Params: []api.ValueType{api.ValueTypeI32, api.ValueTypeF64}}, nil,
		wasm.Body(wasm.OpLocalGet(0), wasm.OpCall(pi), wasm.OpLocalGet(1), wasm.OpCall(pf))))
	mustExecute(t, r, action.LoadModule{Module: b.Build()})

	mustExecute(t, r, action.Invoke{Field: "run", Args: []boundary.Value{
		boundary.I32(7),
		boundary.F64(0x3ff8000000000000), // 1.5
	}})

	entries := logs.FilterMessage("print").All()
	if len(entries) != 2 {
		t.Fatalf("expected two print log entries, got %d", len(entries))
	}
	first, _ := entries[0].ContextMap()["args"].([]any)
	second, _ := entries[1].ContextMap()["args"].([]any)
	if len(first) != 1 || first[0] != "i32:7" || len(second) != 1 || second[0] != "f64:1.5" {
		t.Errorf("logged args %v then %v", first, second)
	}
}

func TestExecute_TryLoad(t *testing.T) {
	r := newTestRunner(t)

	mustExecute(t, r, action.TryLoad{Module: sumModule()})
	if _, err := r.Driver().ModuleOrLast(""); err == nil {
		t.Error("try load must not record the instance")
	}

	_, err := r.Execute(context.Background(), action.TryLoad{Module: []byte("junk")})
	if errors.Classify(err) != errors.PhaseLoad {
		t.Errorf("expected load error, got %v", err)
	}

	_, err = r.Execute(context.Background(), action.TryLoad{Module: []byte("junk"), CompileOnly: true})
	if errors.Classify(err) != errors.PhaseLoad {
		t.Errorf("expected load error when compiling only, got %v", err)
	}

	unlinkable := wasm.NewBuilder()
	unlinkable.ImportFunc("nowhere", "f", interp.Signature{})
	if _, err := r.Execute(context.Background(), action.TryLoad{Module: unlinkable.Build()}); err == nil {
		t.Error("expected link failure")
	}
	mustExecute(t, r, action.TryLoad{Module: unlinkable.Build(), CompileOnly: true})
}

func TestExecute_ErrorClasses(t *testing.T) {
	r := newTestRunner(t)
	ctx := context.Background()

	start := wasm.NewBuilder()
	start.Start(start.Func(interp.Signature{}, nil, wasm.OpUnreachable))

	unknownImport := wasm.NewBuilder()
	unknownImport.ImportFunc("spectest", "nope", interp.Signature{})

	tests := []struct {
		action action.Action
		want   errors.Phase
		name   string
	}{
		{action.Invoke{Field: "f"}, errors.PhaseInterpreter, "empty registry"},
		{action.LoadModule{Module: []byte{1, 2, 3}}, errors.PhaseLoad, "malformed"},
		{action.LoadModule{Module: start.Build()}, errors.PhaseStart, "start trap"},
		{action.LoadModule{Module: unknownImport.Build()}, errors.PhaseInterpreter, "unknown import"},
		{action.Get{Module: "$missing", Field: "g"}, errors.PhaseInterpreter, "unknown module"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Execute(ctx, tt.action)
			if err == nil {
				t.Fatal("expected error")
			}
			if _, ok := err.(*errors.Error); !ok {
				t.Errorf("expected *errors.Error, got %T", err)
			}
			if got := errors.Classify(err); got != tt.want {
				t.Errorf("class = %s, want %s (%v)", got, tt.want, err)
			}
		})
	}

	mustExecute(t, r, action.LoadModule{Module: sumModule()})
	_, err := r.Execute(ctx, action.Invoke{Field: "f", Args: []boundary.Value{boundary.V128{}, boundary.I32(1)}})
	if errors.Classify(err) != errors.PhaseInterpreter || !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("expected unsupported interpreter error, got %v", err)
	}
}

func TestHandle(t *testing.T) {
	r := newTestRunner(t)
	ctx := context.Background()

	load, err := action.Encode(action.LoadModule{Name: "$S", Module: sumModule()})
	if err != nil {
		t.Fatal(err)
	}
	if out := r.Handle(ctx, load); string(out) != `{}` {
		t.Errorf("load reply = %s", out)
	}

	out := r.Handle(ctx, []byte(`{"Invoke":{"module":"$S","field":"f","args":[{"I32":2},{"I32":3}]}}`))
	if string(out) != `{"values":[{"I32":5}]}` {
		t.Errorf("invoke reply = %s", out)
	}

	var res action.Result
	if err := json.Unmarshal(r.Handle(ctx, []byte(`{"Invoke":`)), &res); err != nil {
		t.Fatal(err)
	}
	if res.Error == nil || res.Error.Kind != action.ErrorScript {
		t.Errorf("malformed request reply = %+v", res)
	}

	if err := json.Unmarshal(r.Handle(ctx, []byte(`{"Get":{"module":"$T","field":"g"}}`)), &res); err != nil {
		t.Fatal(err)
	}
	if res.Error == nil || res.Error.Kind != action.ErrorInterpreter || !strings.Contains(res.Error.Message, "module not registered: $T") {
		t.Errorf("unknown module reply = %+v", res.Error)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		cfg     Config
		name    string
		wantErr bool
	}{
		{Config{}, "zero", false},
		{Config{LogLevel: "debug", Engine: engine.Config{MemoryLimitPages: 256}}, "valid", false},
		{Config{LogLevel: "loud"}, "bad level", true},
		{Config{Engine: engine.Config{MemoryLimitPages: 70000}}, "too many pages", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if _, err := New(context.Background(), &Config{LogLevel: "loud"}); err == nil {
		t.Error("New must reject an invalid config")
	}
}
