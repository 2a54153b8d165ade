package wasm

import "github.com/wippyai/wasm-bridge/interp"

// ExternKind is the kind of an import or export.
type ExternKind byte

const (
	ExternFunc   ExternKind = 0x00
	ExternTable  ExternKind = 0x01
	ExternMemory ExternKind = 0x02
	ExternGlobal ExternKind = 0x03
)

func (k ExternKind) String() string {
	switch k {
	case ExternFunc:
		return "func"
	case ExternTable:
		return "table"
	case ExternMemory:
		return "memory"
	case ExternGlobal:
		return "global"
	default:
		return "unknown"
	}
}

// Import is one entry of a module's import section. Only the field matching
// Kind is set.
type Import struct {
	Module string
	Name   string
	Kind   ExternKind
	Func   interp.Signature
	Table  interp.TableDescriptor
	Memory interp.MemoryDescriptor
	Global interp.GlobalDescriptor
}

// Export is one entry of a module's export section.
type Export struct {
	Name  string
	Kind  ExternKind
	Index uint32
}

// Module is the parsed linking surface of a binary module.
type Module struct {
	Types    []interp.Signature
	Imports  []Import
	// Tables is the full table index space, imported tables first.
	Tables   []interp.TableDescriptor
	// Memories is the full memory index space, imported memories first.
	Memories []interp.MemoryDescriptor
	Exports  []Export
	// HasStart reports whether the module declares a start function.
	HasStart bool
}

// ImportModules returns the distinct import namespaces in first-use order.
func (m *Module) ImportModules() []string {
	var names []string
	seen := make(map[string]bool)
	for _, imp := range m.Imports {
		if !seen[imp.Module] {
			seen[imp.Module] = true
			names = append(names, imp.Module)
		}
	}
	return names
}

// ExportedTable returns the descriptor of the table exported as name.
func (m *Module) ExportedTable(name string) (interp.TableDescriptor, bool) {
	for _, exp := range m.Exports {
		if exp.Kind == ExternTable && exp.Name == name && int(exp.Index) < len(m.Tables) {
			return m.Tables[exp.Index], true
		}
	}
	return interp.TableDescriptor{}, false
}

// ExportedMemory returns the descriptor of the memory exported as name.
func (m *Module) ExportedMemory(name string) (interp.MemoryDescriptor, bool) {
	for _, exp := range m.Exports {
		if exp.Kind == ExternMemory && exp.Name == name && int(exp.Index) < len(m.Memories) {
			return m.Memories[exp.Index], true
		}
	}
	return interp.MemoryDescriptor{}, false
}
