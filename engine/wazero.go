package engine

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/internal/wasm"
	"github.com/wippyai/wasm-bridge/interp"
)

// Engine implements interp.Interpreter using a wazero runtime.
type Engine struct {
	runtime wazero.Runtime
	seq     atomic.Uint64
}

var (
	_ interp.Interpreter = (*Engine)(nil)
	_ interp.Validator   = (*Engine)(nil)
)

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	MemoryLimitPages uint32 `yaml:"memory_limit_pages" validate:"lte=65536"`

	// EnableThreads enables the WebAssembly threads proposal (experimental).
	EnableThreads bool `yaml:"enable_threads"`

	// Interpreter selects wazero's interpreter instead of the compiler.
	Interpreter bool `yaml:"interpreter"`
}

// New creates an engine. A nil cfg uses defaults.
func New(ctx context.Context, cfg *Config) (*Engine, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	var runtimeCfg wazero.RuntimeConfig
	if cfg.Interpreter {
		runtimeCfg = wazero.NewRuntimeConfigInterpreter()
	} else {
		runtimeCfg = wazero.NewRuntimeConfig()
	}
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	if cfg.EnableThreads {
		runtimeCfg = runtimeCfg.WithCoreFeatures(api.CoreFeaturesV2 | experimental.CoreFeaturesThreads)
	}

	return &Engine{runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg)}, nil
}

// Close releases the runtime and every instance created by it.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Validate compiles wasmBytes without instantiating it.
func (e *Engine) Validate(ctx context.Context, wasmBytes []byte) error {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return errors.Load("compile module", err)
	}
	return compiled.Close(ctx)
}

// Instantiate compiles wasmBytes, resolves its imports through imports and
// instantiates it, running its start function.
func (e *Engine) Instantiate(ctx context.Context, wasmBytes []byte, imports interp.ImportResolver) (interp.ModuleRef, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Load("compile module", err)
	}
	defer func() { _ = compiled.Close(ctx) }()

	parsed, err := wasm.Parse(wasmBytes)
	if err != nil {
		return nil, errors.Load("parse module", err)
	}

	// Repeated imports of one field are renamed so each binds separately.
	names, renamed := wasm.LinkNames(parsed.Imports)
	if renamed {
		rewritten, err := wasm.RenameImports(wasmBytes, names)
		if err != nil {
			return nil, errors.Load("rename imports", err)
		}
		recompiled, err := e.runtime.CompileModule(ctx, rewritten)
		if err != nil {
			return nil, errors.Load("compile module", err)
		}
		_ = compiled.Close(ctx)
		compiled = recompiled
	}

	bridges, err := e.link(ctx, parsed, names, imports)
	if err != nil {
		closeModules(ctx, slices.Collect(maps.Values(bridges)))
		return nil, err
	}

	name := e.nextName(prefixModule)
	linkCtx := experimental.WithImportResolver(ctx, func(module string) api.Module {
		return bridges[module]
	})
	mod, err := e.runtime.InstantiateModule(linkCtx, compiled,
		wazero.NewModuleConfig().WithName(name).WithStartFunctions())
	if err != nil {
		closeModules(ctx, slices.Collect(maps.Values(bridges)))
		if parsed.HasStart && isStartFailure(err) {
			return nil, errors.Start(err)
		}
		return nil, errors.Load("instantiate module", err)
	}

	Logger().Debug("module instantiated",
		zap.String("name", name),
		zap.Int("imports", len(parsed.Imports)),
		zap.Int("bridges", len(bridges)))

	return &Module{
		engine:  e,
		mod:     mod,
		parsed:  parsed,
		bridges: slices.Collect(maps.Values(bridges)),
	}, nil
}

// isStartFailure reports whether an instantiation error came from the start
// function rather than from linking or segment initialization.
func isStartFailure(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "start ") || strings.Contains(msg, "start function failed")
}

// link resolves every import of parsed on its own and instantiates one bridge
// module per import namespace, exporting import i as names[i]. The returned
// map is keyed by namespace.
func (e *Engine) link(ctx context.Context, parsed *wasm.Module, names []string, imports interp.ImportResolver) (map[string]api.Module, error) {
	bridges := make(map[string]api.Module)
	for _, namespace := range parsed.ImportModules() {
		b := wasm.NewBuilder()
		for i, imp := range parsed.Imports {
			if imp.Module != namespace {
				continue
			}

			src, err := e.resolve(ctx, imports, imp)
			if err != nil {
				return bridges, err
			}

			var idx uint32
			switch imp.Kind {
			case wasm.ExternFunc:
				idx = b.ImportFunc(src.owner(), src.export, imp.Func)
			case wasm.ExternTable:
				idx = b.ImportTable(src.owner(), src.export, imp.Table)
			case wasm.ExternMemory:
				idx = b.ImportMemory(src.owner(), src.export, imp.Memory)
			case wasm.ExternGlobal:
				idx = b.ImportGlobal(src.owner(), src.export, imp.Global)
			}
			b.Export(names[i], imp.Kind, idx)
		}

		name := e.nextName(prefixBridge)
		mod, err := e.runtime.InstantiateWithConfig(ctx, b.Build(),
			wazero.NewModuleConfig().WithName(name).WithStartFunctions())
		if err != nil {
			return bridges, errors.New(errors.PhaseInterpreter, errors.KindInstantiation).
				Path(namespace).
				Detail("link imports").
				Cause(err).
				Build()
		}
		bridges[namespace] = mod
	}
	return bridges, nil
}

// resolve asks imports for the entity satisfying imp and checks that it is
// compatible with the declared type.
func (e *Engine) resolve(ctx context.Context, imports interp.ImportResolver, imp wasm.Import) (source, error) {
	switch imp.Kind {
	case wasm.ExternFunc:
		ref, err := imports.ResolveFunc(ctx, imp.Module, imp.Name, imp.Func)
		if err != nil {
			return source{}, err
		}
		f, ok := ref.(*funcRef)
		if !ok {
			return source{}, foreignRef(imp)
		}
		if !f.sig.Equal(imp.Func) {
			return source{}, incompatible(imp, imp.Func.String(), f.sig.String())
		}
		return f.source, nil

	case wasm.ExternGlobal:
		ref, err := imports.ResolveGlobal(ctx, imp.Module, imp.Name, imp.Global)
		if err != nil {
			return source{}, err
		}
		g, ok := ref.(*globalRef)
		if !ok {
			return source{}, foreignRef(imp)
		}
		if g.Descriptor() != imp.Global {
			return source{}, incompatible(imp, imp.Global.String(), g.Descriptor().String())
		}
		return g.source, nil

	case wasm.ExternMemory:
		ref, err := imports.ResolveMemory(ctx, imp.Module, imp.Name, imp.Memory)
		if err != nil {
			return source{}, err
		}
		m, ok := ref.(*memoryRef)
		if !ok {
			return source{}, foreignRef(imp)
		}
		actual := m.Descriptor().Limits
		actual.Min = m.Pages()
		if !limitsMatch(imp.Memory.Limits, actual) {
			return source{}, incompatible(imp, imp.Memory.Limits.String(), actual.String())
		}
		return m.source, nil

	case wasm.ExternTable:
		ref, err := imports.ResolveTable(ctx, imp.Module, imp.Name, imp.Table)
		if err != nil {
			return source{}, err
		}
		t, ok := ref.(*tableRef)
		if !ok {
			return source{}, foreignRef(imp)
		}
		actual := t.Descriptor()
		size, err := t.Size(ctx)
		if err != nil {
			return source{}, err
		}
		actual.Limits.Min = size
		if actual.ElemType != imp.Table.ElemType || !limitsMatch(imp.Table.Limits, actual.Limits) {
			return source{}, incompatible(imp,
				interp.TypeName(imp.Table.ElemType)+" "+imp.Table.Limits.String(),
				interp.TypeName(actual.ElemType)+" "+actual.Limits.String())
		}
		return t.source, nil
	}
	return source{}, errors.Instantiation("unsupported import kind %s for %s.%s", imp.Kind, imp.Module, imp.Name)
}

// limitsMatch reports whether actual satisfies the declared import limits.
func limitsMatch(declared, actual interp.Limits) bool {
	if actual.Shared != declared.Shared {
		return false
	}
	if actual.Min < declared.Min {
		return false
	}
	if declared.HasMax {
		return actual.HasMax && actual.Max <= declared.Max
	}
	return true
}

func incompatible(imp wasm.Import, want, got string) error {
	return errors.Instantiation("incompatible import type for %s.%s: expected %s %s, got %s",
		imp.Module, imp.Name, imp.Kind, want, got)
}

func foreignRef(imp wasm.Import) error {
	return errors.Instantiation("%s %s.%s was not created by this engine", imp.Kind, imp.Module, imp.Name)
}

// Invoke calls the exported function field of m.
func (e *Engine) Invoke(ctx context.Context, ref interp.ModuleRef, field string, args []interp.Value) ([]interp.Value, error) {
	m, err := instance(ref)
	if err != nil {
		return nil, err
	}

	fn := m.mod.ExportedFunction(field)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseInterpreter, "exported function", field)
	}
	def := fn.Definition()

	params := def.ParamTypes()
	if len(args) != len(params) {
		return nil, errors.TypeMismatch(errors.PhaseInterpreter, []string{field},
			fmt.Sprintf("%d arguments", len(params)), fmt.Sprintf("%d", len(args)))
	}
	stack := make([]uint64, len(args))
	for i, a := range args {
		if a.Type != params[i] {
			return nil, errors.TypeMismatch(errors.PhaseInterpreter, []string{field, fmt.Sprint(i)},
				interp.TypeName(params[i]), interp.TypeName(a.Type))
		}
		stack[i] = a.Bits
	}

	raw, err := fn.Call(ctx, stack...)
	if err != nil {
		return nil, errors.Trap(field, err)
	}

	resultTypes := def.ResultTypes()
	results := make([]interp.Value, len(raw))
	for i, bits := range raw {
		results[i] = interp.Value{Type: resultTypes[i], Bits: bits}
	}
	return results, nil
}

// Get reads the exported global field of m.
func (e *Engine) Get(_ context.Context, ref interp.ModuleRef, field string) (interp.Value, error) {
	m, err := instance(ref)
	if err != nil {
		return interp.Value{}, err
	}
	g := m.mod.ExportedGlobal(field)
	if g == nil {
		return interp.Value{}, errors.NotFound(errors.PhaseInterpreter, "exported global", field)
	}
	return interp.Value{Type: g.Type(), Bits: g.Get()}, nil
}

// Release closes m and its bridges. Shared host instances stay alive.
func (e *Engine) Release(ctx context.Context, ref interp.ModuleRef) error {
	m, err := instance(ref)
	if err != nil {
		return err
	}
	err = m.mod.Close(ctx)
	closeModules(ctx, m.bridges)
	return err
}

func instance(ref interp.ModuleRef) (*Module, error) {
	m, ok := ref.(*Module)
	if !ok || m == nil {
		return nil, errors.InvalidInput(errors.PhaseInterpreter, "module was not instantiated by this engine")
	}
	return m, nil
}

func closeModules(ctx context.Context, mods []api.Module) {
	for _, m := range mods {
		if err := m.Close(ctx); err != nil {
			Logger().Debug("close module", zap.String("name", m.Name()), zap.Error(err))
		}
	}
}
