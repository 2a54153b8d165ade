package spectest

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/interp"
)

// Driver is the module registry. It maps names to loaded instances, remembers
// the most recently loaded one, and resolves imports across them.
type Driver struct {
	host      *Module
	instances map[string]interp.ModuleRef
	last      interp.ModuleRef
}

var _ interp.ImportResolver = (*Driver)(nil)

// NewDriver creates an empty registry serving host as the spectest namespace.
func NewDriver(host *Module) *Driver {
	return &Driver{
		host:      host,
		instances: make(map[string]interp.ModuleRef),
	}
}

// Host returns the spectest host module.
func (d *Driver) Host() *Module {
	return d.host
}

// Add records m as the last loaded module and, when name is not empty, maps
// name to it. A later Add with the same name wins.
func (d *Driver) Add(name string, m interp.ModuleRef) {
	d.last = m
	if name != "" {
		d.instances[name] = m
	}
	Logger().Debug("module added", zap.String("name", name), zap.String("instance", m.Name()))
}

// Module returns the module registered under name.
func (d *Driver) Module(name string) (interp.ModuleRef, error) {
	m, ok := d.instances[name]
	if !ok {
		return nil, errors.Instantiation("module not registered: %s", name)
	}
	return m, nil
}

// ModuleOrLast returns the module registered under name, or the last loaded
// module when name is empty.
func (d *Driver) ModuleOrLast(name string) (interp.ModuleRef, error) {
	if name != "" {
		return d.Module(name)
	}
	if d.last == nil {
		return nil, errors.Instantiation("no modules registered")
	}
	return d.last, nil
}

// Register makes the module found by ModuleOrLast(name) importable as as.
// It also becomes the last loaded module.
func (d *Driver) Register(name, as string) error {
	m, err := d.ModuleOrLast(name)
	if err != nil {
		return errors.Instantiation("no such module registered")
	}
	d.Add(as, m)
	Logger().Debug("module registered", zap.String("as", as), zap.Strings("registered", d.Names()))
	return nil
}

// Names returns the registered names in sorted order.
func (d *Driver) Names() []string {
	names := make([]string, 0, len(d.instances))
	for name := range d.instances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolver returns the namespace that serves imports from module.
func (d *Driver) resolver(module string) (interp.ModuleImportResolver, error) {
	if module == ModuleName {
		return d.host, nil
	}
	return d.Module(module)
}

func (d *Driver) ResolveFunc(ctx context.Context, module, field string, sig interp.Signature) (interp.FuncRef, error) {
	r, err := d.resolver(module)
	if err != nil {
		return nil, err
	}
	return r.ResolveFunc(ctx, field, sig)
}

func (d *Driver) ResolveGlobal(ctx context.Context, module, field string, desc interp.GlobalDescriptor) (interp.GlobalRef, error) {
	r, err := d.resolver(module)
	if err != nil {
		return nil, err
	}
	return r.ResolveGlobal(ctx, field, desc)
}

func (d *Driver) ResolveMemory(ctx context.Context, module, field string, desc interp.MemoryDescriptor) (interp.MemoryRef, error) {
	r, err := d.resolver(module)
	if err != nil {
		return nil, err
	}
	return r.ResolveMemory(ctx, field, desc)
}

func (d *Driver) ResolveTable(ctx context.Context, module, field string, desc interp.TableDescriptor) (interp.TableRef, error) {
	r, err := d.resolver(module)
	if err != nil {
		return nil, err
	}
	return r.ResolveTable(ctx, field, desc)
}
