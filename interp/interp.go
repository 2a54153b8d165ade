package interp

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/tetratelabs/wazero/api"
)

// PageSize is the size of a linear memory page in bytes.
const PageSize = 65536

// Signature is a function type.
type Signature struct {
	Params  []api.ValueType
	Results []api.ValueType
}

// Unit reports whether the signature returns nothing.
func (s Signature) Unit() bool {
	return len(s.Results) == 0
}

// Equal reports whether s and o describe the same function type.
func (s Signature) Equal(o Signature) bool {
	return slices.Equal(s.Params, o.Params) && slices.Equal(s.Results, o.Results)
}

func (s Signature) String() string {
	return "(" + typeList(s.Params) + ") -> (" + typeList(s.Results) + ")"
}

func typeList(ts []api.ValueType) string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = TypeName(t)
	}
	return strings.Join(names, ", ")
}

// Limits bounds a memory (in pages) or a table (in elements).
type Limits struct {
	Min    uint32
	Max    uint32
	HasMax bool
	// Shared marks a memory shared between threads.
	Shared bool
}

func (l Limits) String() string {
	s := fmt.Sprintf("%d..", l.Min)
	if l.HasMax {
		s = fmt.Sprintf("%d..%d", l.Min, l.Max)
	}
	if l.Shared {
		s += " shared"
	}
	return s
}

// GlobalDescriptor describes a global import or export.
type GlobalDescriptor struct {
	Type    api.ValueType
	Mutable bool
}

func (d GlobalDescriptor) String() string {
	if d.Mutable {
		return "mut " + TypeName(d.Type)
	}
	return TypeName(d.Type)
}

// MemoryDescriptor describes a memory import or export.
type MemoryDescriptor struct {
	Limits Limits
}

// TableDescriptor describes a table import or export.
type TableDescriptor struct {
	ElemType api.ValueType
	Limits   Limits
}

// FuncRef is a function that can satisfy a function import.
type FuncRef interface {
	Signature() Signature
}

// GlobalRef is a shared global cell.
type GlobalRef interface {
	Descriptor() GlobalDescriptor
	Get() Value
}

// MemoryRef is a shared linear memory.
type MemoryRef interface {
	Descriptor() MemoryDescriptor
	// Pages returns the current size in pages.
	Pages() uint32
	// Grow adds delta pages and returns the previous size.
	Grow(delta uint32) (uint32, bool)
	Read(offset, length uint32) ([]byte, bool)
	Write(offset uint32, data []byte) bool
}

// TableRef is a shared table of references.
type TableRef interface {
	Descriptor() TableDescriptor
	Size(ctx context.Context) (uint32, error)
	// Grow adds delta null elements and returns the previous size.
	Grow(ctx context.Context, delta uint32) (uint32, bool, error)
}

// ModuleImportResolver resolves imports against a single module namespace.
type ModuleImportResolver interface {
	ResolveFunc(ctx context.Context, field string, sig Signature) (FuncRef, error)
	ResolveGlobal(ctx context.Context, field string, desc GlobalDescriptor) (GlobalRef, error)
	ResolveMemory(ctx context.Context, field string, desc MemoryDescriptor) (MemoryRef, error)
	ResolveTable(ctx context.Context, field string, desc TableDescriptor) (TableRef, error)
}

// ImportResolver resolves imports by module name and field name during
// instantiation.
type ImportResolver interface {
	ResolveFunc(ctx context.Context, module, field string, sig Signature) (FuncRef, error)
	ResolveGlobal(ctx context.Context, module, field string, desc GlobalDescriptor) (GlobalRef, error)
	ResolveMemory(ctx context.Context, module, field string, desc MemoryDescriptor) (MemoryRef, error)
	ResolveTable(ctx context.Context, module, field string, desc TableDescriptor) (TableRef, error)
}

// Externals dispatches calls to host functions by index.
type Externals interface {
	InvokeIndex(ctx context.Context, index int, args []Value) ([]Value, error)
}

// ModuleRef is an instantiated module. Its exports resolve imports of
// other modules.
type ModuleRef interface {
	ModuleImportResolver
	Name() string
}

// Allocator creates host-owned instances.
type Allocator interface {
	AllocTable(ctx context.Context, desc TableDescriptor) (TableRef, error)
	AllocMemory(ctx context.Context, desc MemoryDescriptor) (MemoryRef, error)
	AllocGlobal(ctx context.Context, v Value, mutable bool) (GlobalRef, error)
	// AllocHostFunc creates a function with signature sig that calls
	// ext.InvokeIndex(index, args).
	AllocHostFunc(ctx context.Context, sig Signature, index int, ext Externals) (FuncRef, error)
}

// Interpreter is the narrow slice of an interpreter the bridge drives.
type Interpreter interface {
	Allocator
	// Instantiate validates and instantiates wasm, resolving its imports
	// through imports.
	Instantiate(ctx context.Context, wasm []byte, imports ImportResolver) (ModuleRef, error)
	// Invoke calls the exported function field of m.
	Invoke(ctx context.Context, m ModuleRef, field string, args []Value) ([]Value, error)
	// Get reads the current value of the exported global field of m.
	Get(ctx context.Context, m ModuleRef, field string) (Value, error)
	// Release frees an instance that is no longer reachable.
	Release(ctx context.Context, m ModuleRef) error
}

// Validator is implemented by interpreters that can check module bytes
// without instantiating them.
type Validator interface {
	Validate(ctx context.Context, wasm []byte) error
}
