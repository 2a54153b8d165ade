package wasm

import (
	"encoding/binary"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-bridge/interp"
)

// Builder encodes a binary module from imports, definitions and exports.
// Imports of a kind must be added before definitions of that kind so the
// returned indexes stay valid.
type Builder struct {
	types    []interp.Signature
	imports  []builtImport
	funcs    []builtFunc
	tables   []interp.TableDescriptor
	memories []interp.MemoryDescriptor
	globals  []builtGlobal
	exports  []Export
	start    *uint32

	importedFuncs   uint32
	importedTables  uint32
	importedMems    uint32
	importedGlobals uint32
}

type builtImport struct {
	Import
	typeIndex uint32
}

type builtFunc struct {
	typeIndex uint32
	locals    []api.ValueType
	body      []byte
}

type builtGlobal struct {
	desc interp.GlobalDescriptor
	init interp.Value
}

// NewBuilder creates an empty module builder.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) typeIndex(sig interp.Signature) uint32 {
	for i, t := range b.types {
		if t.Equal(sig) {
			return uint32(i)
		}
	}
	b.types = append(b.types, sig)
	return uint32(len(b.types) - 1)
}

// ImportFunc adds a function import and returns its function index.
func (b *Builder) ImportFunc(module, name string, sig interp.Signature) uint32 {
	b.imports = append(b.imports, builtImport{
		Import:    Import{Module: module, Name: name, Kind: ExternFunc, Func: sig},
		typeIndex: b.typeIndex(sig),
	})
	b.importedFuncs++
	return b.importedFuncs - 1
}

// ImportTable adds a table import and returns its table index.
func (b *Builder) ImportTable(module, name string, desc interp.TableDescriptor) uint32 {
	b.imports = append(b.imports, builtImport{Import: Import{Module: module, Name: name, Kind: ExternTable, Table: desc}})
	b.importedTables++
	return b.importedTables - 1
}

// ImportMemory adds a memory import and returns its memory index.
func (b *Builder) ImportMemory(module, name string, desc interp.MemoryDescriptor) uint32 {
	b.imports = append(b.imports, builtImport{Import: Import{Module: module, Name: name, Kind: ExternMemory, Memory: desc}})
	b.importedMems++
	return b.importedMems - 1
}

// ImportGlobal adds a global import and returns its global index.
func (b *Builder) ImportGlobal(module, name string, desc interp.GlobalDescriptor) uint32 {
	b.imports = append(b.imports, builtImport{Import: Import{Module: module, Name: name, Kind: ExternGlobal, Global: desc}})
	b.importedGlobals++
	return b.importedGlobals - 1
}

// Func defines a function. body holds the instructions without the final
// end opcode.
func (b *Builder) Func(sig interp.Signature, locals []api.ValueType, body []byte) uint32 {
	b.funcs = append(b.funcs, builtFunc{typeIndex: b.typeIndex(sig), locals: locals, body: body})
	return b.importedFuncs + uint32(len(b.funcs)-1)
}

// Table defines a table.
func (b *Builder) Table(desc interp.TableDescriptor) uint32 {
	b.tables = append(b.tables, desc)
	return b.importedTables + uint32(len(b.tables)-1)
}

// Memory defines a linear memory.
func (b *Builder) Memory(desc interp.MemoryDescriptor) uint32 {
	b.memories = append(b.memories, desc)
	return b.importedMems + uint32(len(b.memories)-1)
}

// Global defines a global initialized to a constant. init must be numeric.
func (b *Builder) Global(init interp.Value, mutable bool) uint32 {
	b.globals = append(b.globals, builtGlobal{
		desc: interp.GlobalDescriptor{Type: init.Type, Mutable: mutable},
		init: init,
	})
	return b.importedGlobals + uint32(len(b.globals)-1)
}

// Export exports the entity of kind at index under name.
func (b *Builder) Export(name string, kind ExternKind, index uint32) {
	b.exports = append(b.exports, Export{Name: name, Kind: kind, Index: index})
}

// Start sets the start function.
func (b *Builder) Start(funcIndex uint32) {
	b.start = &funcIndex
}

// Build encodes the module.
func (b *Builder) Build() []byte {
	out := append([]byte(nil), header...)

	if len(b.types) > 0 {
		var sec []byte
		sec = append(sec, EncodeULEB128(uint32(len(b.types)))...)
		for _, t := range b.types {
			sec = append(sec, 0x60)
			sec = appendValTypes(sec, t.Params)
			sec = appendValTypes(sec, t.Results)
		}
		out = appendSection(out, sectionType, sec)
	}

	if len(b.imports) > 0 {
		var sec []byte
		sec = append(sec, EncodeULEB128(uint32(len(b.imports)))...)
		for _, imp := range b.imports {
			sec = appendName(sec, imp.Module)
			sec = appendName(sec, imp.Name)
			sec = append(sec, byte(imp.Kind))
			switch imp.Kind {
			case ExternFunc:
				sec = append(sec, EncodeULEB128(imp.typeIndex)...)
			case ExternTable:
				sec = appendTable(sec, imp.Table)
			case ExternMemory:
				sec = appendLimits(sec, imp.Memory.Limits)
			case ExternGlobal:
				sec = appendGlobalType(sec, imp.Global)
			}
		}
		out = appendSection(out, sectionImport, sec)
	}

	if len(b.funcs) > 0 {
		var sec []byte
		sec = append(sec, EncodeULEB128(uint32(len(b.funcs)))...)
		for _, f := range b.funcs {
			sec = append(sec, EncodeULEB128(f.typeIndex)...)
		}
		out = appendSection(out, sectionFunction, sec)
	}

	if len(b.tables) > 0 {
		var sec []byte
		sec = append(sec, EncodeULEB128(uint32(len(b.tables)))...)
		for _, t := range b.tables {
			sec = appendTable(sec, t)
		}
		out = appendSection(out, sectionTable, sec)
	}

	if len(b.memories) > 0 {
		var sec []byte
		sec = append(sec, EncodeULEB128(uint32(len(b.memories)))...)
		for _, m := range b.memories {
			sec = appendLimits(sec, m.Limits)
		}
		out = appendSection(out, sectionMemory, sec)
	}

	if len(b.globals) > 0 {
		var sec []byte
		sec = append(sec, EncodeULEB128(uint32(len(b.globals)))...)
		for _, g := range b.globals {
			sec = appendGlobalType(sec, g.desc)
			sec = appendConst(sec, g.init)
			sec = append(sec, opEnd)
		}
		out = appendSection(out, sectionGlobal, sec)
	}

	if len(b.exports) > 0 {
		var sec []byte
		sec = append(sec, EncodeULEB128(uint32(len(b.exports)))...)
		for _, e := range b.exports {
			sec = appendName(sec, e.Name)
			sec = append(sec, byte(e.Kind))
			sec = append(sec, EncodeULEB128(e.Index)...)
		}
		out = appendSection(out, sectionExport, sec)
	}

	if b.start != nil {
		out = appendSection(out, sectionStart, EncodeULEB128(*b.start))
	}

	if len(b.funcs) > 0 {
		var sec []byte
		sec = append(sec, EncodeULEB128(uint32(len(b.funcs)))...)
		for _, f := range b.funcs {
			var body []byte
			body = append(body, EncodeULEB128(uint32(len(f.locals)))...)
			for _, l := range f.locals {
				body = append(body, EncodeULEB128(1)...)
				body = append(body, byte(l))
			}
			body = append(body, f.body...)
			body = append(body, opEnd)
			sec = append(sec, EncodeULEB128(uint32(len(body)))...)
			sec = append(sec, body...)
		}
		out = appendSection(out, sectionCode, sec)
	}

	return out
}

const (
	sectionFunction = 0x03
	sectionGlobal   = 0x06
	sectionCode     = 0x0a

	opEnd = 0x0b
)

func appendSection(out []byte, id byte, body []byte) []byte {
	out = append(out, id)
	out = append(out, EncodeULEB128(uint32(len(body)))...)
	return append(out, body...)
}

func appendName(out []byte, s string) []byte {
	out = append(out, EncodeULEB128(uint32(len(s)))...)
	return append(out, s...)
}

func appendValTypes(out []byte, ts []api.ValueType) []byte {
	out = append(out, EncodeULEB128(uint32(len(ts)))...)
	for _, t := range ts {
		out = append(out, byte(t))
	}
	return out
}

func appendLimits(out []byte, l interp.Limits) []byte {
	var flag byte
	if l.HasMax {
		flag |= limitsHasMax
	}
	if l.Shared {
		flag |= limitsShared
	}
	out = append(out, flag)
	out = append(out, EncodeULEB128(l.Min)...)
	if l.HasMax {
		out = append(out, EncodeULEB128(l.Max)...)
	}
	return out
}

func appendTable(out []byte, t interp.TableDescriptor) []byte {
	out = append(out, byte(t.ElemType))
	return appendLimits(out, t.Limits)
}

func appendGlobalType(out []byte, g interp.GlobalDescriptor) []byte {
	out = append(out, byte(g.Type))
	if g.Mutable {
		return append(out, 0x01)
	}
	return append(out, 0x00)
}

// appendConst encodes a constant instruction producing v. Floats keep their
// exact bit pattern.
func appendConst(out []byte, v interp.Value) []byte {
	switch v.Type {
	case api.ValueTypeI32:
		out = append(out, 0x41)
		return append(out, EncodeSLEB128(v.I32())...)
	case api.ValueTypeI64:
		out = append(out, 0x42)
		return append(out, EncodeSLEB128(v.I64())...)
	case api.ValueTypeF32:
		out = append(out, 0x43)
		return binary.LittleEndian.AppendUint32(out, uint32(v.Bits))
	case api.ValueTypeF64:
		out = append(out, 0x44)
		return binary.LittleEndian.AppendUint64(out, v.Bits)
	default:
		// ref.null of the value's reference type
		return append(out, 0xd0, byte(v.Type))
	}
}

// Body concatenates instruction encodings into a function body.
func Body(instrs ...[]byte) []byte {
	var out []byte
	for _, in := range instrs {
		out = append(out, in...)
	}
	return out
}

// Instruction encodings used by synthesized function bodies.
var (
	OpUnreachable = []byte{0x00}
	OpI32Add      = []byte{0x6a}
	OpI32Load     = []byte{0x28, 0x02, 0x00}
	OpI32Store    = []byte{0x36, 0x02, 0x00}
)

func OpCall(f uint32) []byte { return append([]byte{0x10}, EncodeULEB128(f)...) }

func OpLocalGet(i uint32) []byte { return append([]byte{0x20}, EncodeULEB128(i)...) }

func OpGlobalGet(g uint32) []byte { return append([]byte{0x23}, EncodeULEB128(g)...) }

func OpGlobalSet(g uint32) []byte { return append([]byte{0x24}, EncodeULEB128(g)...) }

func OpI32Const(v int32) []byte { return append([]byte{0x41}, EncodeSLEB128(v)...) }

func OpRefNull(t api.ValueType) []byte { return []byte{0xd0, byte(t)} }

func OpTableGrow(t uint32) []byte { return append([]byte{0xfc, 0x0f}, EncodeULEB128(t)...) }

func OpTableSize(t uint32) []byte { return append([]byte{0xfc, 0x10}, EncodeULEB128(t)...) }
