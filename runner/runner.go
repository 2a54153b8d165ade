// Package runner is the driving loop: it executes one command at a time
// against an interpreter, using a spectest.Driver as the import resolver,
// and converts results for the boundary.
package runner

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/action"
	"github.com/wippyai/wasm-bridge/boundary"
	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/interp"
	"github.com/wippyai/wasm-bridge/spectest"
)

var validate = validator.New()

// Config holds runner configuration.
type Config struct {
	Engine engine.Config `yaml:"engine"`

	// LogLevel is applied by the CLI; the runner only logs through Logger().
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// Validate checks the struct tags of cfg.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.New(errors.PhaseScript, errors.KindInvalidInput).
			Detail("invalid config").
			Cause(err).
			Build()
	}
	return nil
}

// Runner executes commands. It is not safe for concurrent use.
type Runner struct {
	interp interp.Interpreter
	driver *spectest.Driver
	close  func(context.Context) error
}

// New creates a runner backed by a wazero engine. A nil cfg uses defaults.
func New(ctx context.Context, cfg *Config) (*Runner, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	eng, err := engine.New(ctx, &cfg.Engine)
	if err != nil {
		return nil, err
	}
	r, err := NewWith(ctx, eng)
	if err != nil {
		_ = eng.Close(ctx)
		return nil, err
	}
	r.close = eng.Close
	return r, nil
}

// NewWith creates a runner over an existing interpreter. The caller keeps
// ownership of it.
func NewWith(ctx context.Context, it interp.Interpreter) (*Runner, error) {
	host, err := spectest.NewModule(ctx, it)
	if err != nil {
		return nil, errors.Interpreter(err)
	}
	return &Runner{
		interp: it,
		driver: spectest.NewDriver(host),
	}, nil
}

// Close releases the engine when the runner owns it.
func (r *Runner) Close(ctx context.Context) error {
	if r.close == nil {
		return nil
	}
	return r.close(ctx)
}

// Driver returns the module registry.
func (r *Runner) Driver() *spectest.Driver {
	return r.driver
}

// Execute runs one command. A failure is always an *errors.Error whose
// phase classifies as load, start, script or interpreter.
func (r *Runner) Execute(ctx context.Context, a action.Action) ([]boundary.Value, error) {
	start := time.Now()
	values, err := r.execute(ctx, a)
	if err != nil {
		err = errors.Interpreter(err)
	}

	fields := []zap.Field{
		zap.String("action", action.Name(a)),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		Logger().Debug("command failed", append(fields, zap.Error(err))...)
		return nil, err
	}
	Logger().Debug("command done", append(fields, zap.Int("values", len(values)))...)
	return values, nil
}

func (r *Runner) execute(ctx context.Context, a action.Action) ([]boundary.Value, error) {
	switch a := a.(type) {
	case action.Invoke:
		return r.invoke(ctx, a)
	case *action.Invoke:
		return r.invoke(ctx, *a)
	case action.Get:
		return r.get(ctx, a)
	case *action.Get:
		return r.get(ctx, *a)
	case action.LoadModule:
		return nil, r.load(ctx, a)
	case *action.LoadModule:
		return nil, r.load(ctx, *a)
	case action.TryLoad:
		return nil, r.tryLoad(ctx, a)
	case *action.TryLoad:
		return nil, r.tryLoad(ctx, *a)
	case action.Register:
		return nil, r.driver.Register(a.Name, a.AsName)
	case *action.Register:
		return nil, r.driver.Register(a.Name, a.AsName)
	default:
		return nil, errors.InvalidInput(errors.PhaseScript, "unknown action type")
	}
}

func (r *Runner) invoke(ctx context.Context, a action.Invoke) ([]boundary.Value, error) {
	m, err := r.driver.ModuleOrLast(a.Module)
	if err != nil {
		return nil, err
	}
	args, err := boundary.ToNativeAll(a.Args)
	if err != nil {
		return nil, err
	}
	return boundary.FromResults(r.interp.Invoke(ctx, m, a.Field, args))
}

func (r *Runner) get(ctx context.Context, a action.Get) ([]boundary.Value, error) {
	m, err := r.driver.ModuleOrLast(a.Module)
	if err != nil {
		return nil, err
	}
	v, err := r.interp.Get(ctx, m, a.Field)
	if err != nil {
		return nil, err
	}
	bv, err := boundary.FromResult(&v, nil)
	if err != nil {
		return nil, err
	}
	return []boundary.Value{bv}, nil
}

func (r *Runner) load(ctx context.Context, a action.LoadModule) error {
	m, err := r.interp.Instantiate(ctx, a.Module, r.driver)
	if err != nil {
		return err
	}
	r.driver.Add(a.Name, m)
	return nil
}

// tryLoad instantiates and immediately releases; the instance is never
// reachable by name or as the last loaded module. CompileOnly stops after
// validation when the interpreter supports it.
func (r *Runner) tryLoad(ctx context.Context, a action.TryLoad) error {
	if v, ok := r.interp.(interp.Validator); a.CompileOnly && ok {
		return v.Validate(ctx, a.Module)
	}
	m, err := r.interp.Instantiate(ctx, a.Module, r.driver)
	if err != nil {
		return err
	}
	return r.interp.Release(ctx, m)
}

// Handle is the boundary entry point: it decodes a request, executes it and
// encodes the result record.
func (r *Runner) Handle(ctx context.Context, request []byte) []byte {
	var result action.Result
	a, err := action.Decode(request)
	if err != nil {
		result = action.NewResult(nil, err)
	} else {
		result = action.NewResult(r.Execute(ctx, a))
	}

	out, err := json.Marshal(result)
	if err != nil {
		out, _ = json.Marshal(action.NewResult(nil, errors.Interpreter(err)))
	}
	return out
}
