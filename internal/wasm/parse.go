package wasm

import (
	"bytes"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-bridge/interp"
)

// Section IDs read by Parse.
const (
	sectionType   = 0x01
	sectionImport = 0x02
	sectionTable  = 0x04
	sectionMemory = 0x05
	sectionExport = 0x07
	sectionStart  = 0x08
)

// Limits flag bits.
const (
	limitsHasMax = 0x01
	limitsShared = 0x02
)

var header = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// Parse reads the type, import, table, memory, export and start sections of a binary
// module. Other sections are skipped without validation.
func Parse(wasmBytes []byte) (*Module, error) {
	if len(wasmBytes) < len(header) || !bytes.Equal(wasmBytes[:len(header)], header) {
		return nil, fmt.Errorf("invalid module header")
	}

	m := &Module{}
	r := &reader{data: wasmBytes, pos: len(header)}
	for r.pos < len(r.data) && r.err == nil {
		id := r.byte()
		size := r.u32()
		if r.err != nil {
			break
		}
		end := r.pos + int(size)
		if end > len(r.data) {
			return nil, fmt.Errorf("section %d: length %d out of bounds", id, size)
		}
		body := &reader{data: r.data[:end], pos: r.pos}

		switch id {
		case sectionType:
			m.Types = body.types()
		case sectionImport:
			m.Imports = body.imports(m)
		case sectionTable:
			n := body.u32()
			for i := uint32(0); i < n && body.err == nil; i++ {
				m.Tables = append(m.Tables, body.table())
			}
		case sectionMemory:
			n := body.u32()
			for i := uint32(0); i < n && body.err == nil; i++ {
				m.Memories = append(m.Memories, interp.MemoryDescriptor{Limits: body.limits()})
			}
		case sectionExport:
			m.Exports = body.exports()
		case sectionStart:
			m.HasStart = true
		}
		if body.err != nil {
			return nil, fmt.Errorf("section %d: %w", id, body.err)
		}
		r.pos = end
	}
	if r.err != nil {
		return nil, r.err
	}
	return m, nil
}

// reader is a cursor over module bytes. The first error sticks and turns
// every later read into a zero value.
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) fail(format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf(format+" at offset %d", append(args, r.pos)...)
	}
}

func (r *reader) byte() byte {
	if r.err != nil {
		return 0
	}
	if r.pos >= len(r.data) {
		r.fail("unexpected end")
		return 0
	}
	b := r.data[r.pos]
	r.pos++
	return b
}

func (r *reader) u32() uint32 {
	if r.err != nil {
		return 0
	}
	v, n := DecodeULEB128(r.data[r.pos:])
	if n == 0 {
		r.fail("malformed LEB128")
		return 0
	}
	r.pos += n
	return v
}

func (r *reader) name() string {
	n := int(r.u32())
	if r.err != nil {
		return ""
	}
	if r.pos+n > len(r.data) {
		r.fail("name length %d out of bounds", n)
		return ""
	}
	s := string(r.data[r.pos : r.pos+n])
	r.pos += n
	return s
}

func (r *reader) valType() api.ValueType {
	b := r.byte()
	if r.err == nil && !isValType(b) {
		r.fail("invalid value type %#x", b)
	}
	return api.ValueType(b)
}

func (r *reader) limits() interp.Limits {
	var l interp.Limits
	flag := r.byte()
	if flag&^(limitsHasMax|limitsShared) != 0 {
		r.fail("invalid limits flag %#x", flag)
		return l
	}
	l.Min = r.u32()
	if flag&limitsHasMax != 0 {
		l.Max = r.u32()
		l.HasMax = true
	}
	l.Shared = flag&limitsShared != 0
	return l
}

func (r *reader) table() interp.TableDescriptor {
	elem := r.byte()
	if r.err == nil && !isRefType(elem) {
		r.fail("invalid table element type %#x", elem)
	}
	return interp.TableDescriptor{ElemType: api.ValueType(elem), Limits: r.limits()}
}

func (r *reader) types() []interp.Signature {
	n := r.u32()
	var types []interp.Signature
	for i := uint32(0); i < n && r.err == nil; i++ {
		if form := r.byte(); form != 0x60 {
			r.fail("invalid function type form %#x", form)
			return nil
		}
		var sig interp.Signature
		np := r.u32()
		for j := uint32(0); j < np && r.err == nil; j++ {
			sig.Params = append(sig.Params, r.valType())
		}
		nr := r.u32()
		for j := uint32(0); j < nr && r.err == nil; j++ {
			sig.Results = append(sig.Results, r.valType())
		}
		types = append(types, sig)
	}
	return types
}

func (r *reader) imports(m *Module) []Import {
	n := r.u32()
	var imports []Import
	for i := uint32(0); i < n && r.err == nil; i++ {
		imp := Import{Module: r.name(), Name: r.name(), Kind: ExternKind(r.byte())}
		switch imp.Kind {
		case ExternFunc:
			idx := r.u32()
			if r.err == nil && int(idx) >= len(m.Types) {
				r.fail("type index %d out of range", idx)
			} else if r.err == nil {
				imp.Func = m.Types[idx]
			}
		case ExternTable:
			imp.Table = r.table()
			m.Tables = append(m.Tables, imp.Table)
		case ExternMemory:
			imp.Memory = interp.MemoryDescriptor{Limits: r.limits()}
			m.Memories = append(m.Memories, imp.Memory)
		case ExternGlobal:
			imp.Global = interp.GlobalDescriptor{Type: r.valType(), Mutable: r.byte() == 0x01}
		default:
			r.fail("invalid import kind %#x", byte(imp.Kind))
		}
		imports = append(imports, imp)
	}
	return imports
}

func (r *reader) exports() []Export {
	n := r.u32()
	var exports []Export
	for i := uint32(0); i < n && r.err == nil; i++ {
		exports = append(exports, Export{Name: r.name(), Kind: ExternKind(r.byte()), Index: r.u32()})
	}
	return exports
}
