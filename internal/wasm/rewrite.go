package wasm

import (
	"fmt"
	"strconv"
)

// LinkNames returns the name each import is linked under. The first import
// of a (module, name) pair keeps its name; later ones get a unique suffix so
// each can be bound to its own entity. renamed reports whether any name
// changed.
func LinkNames(imports []Import) (names []string, renamed bool) {
	type key struct{ module, name string }
	taken := make(map[key]bool, len(imports))
	for _, imp := range imports {
		taken[key{imp.Module, imp.Name}] = true
	}

	seen := make(map[key]bool, len(imports))
	names = make([]string, len(imports))
	for i, imp := range imports {
		k := key{imp.Module, imp.Name}
		if !seen[k] {
			seen[k] = true
			names[i] = imp.Name
			continue
		}
		name := imp.Name + "#" + strconv.Itoa(i)
		for taken[key{imp.Module, name}] {
			name += "#"
		}
		taken[key{imp.Module, name}] = true
		names[i] = name
		renamed = true
	}
	return names, renamed
}

// RenameImports returns wasmBytes with the field name of import i replaced
// by names[i]. Every other byte is copied unchanged.
func RenameImports(wasmBytes []byte, names []string) ([]byte, error) {
	if len(wasmBytes) < len(header) {
		return nil, fmt.Errorf("invalid module header")
	}

	out := make([]byte, 0, len(wasmBytes)+16)
	out = append(out, wasmBytes[:len(header)]...)

	r := &reader{data: wasmBytes, pos: len(header)}
	for r.pos < len(r.data) {
		sectionStart := r.pos
		id := r.byte()
		size := r.u32()
		if r.err != nil {
			return nil, r.err
		}
		end := r.pos + int(size)
		if end > len(r.data) {
			return nil, fmt.Errorf("section %d: length %d out of bounds", id, size)
		}

		if id != sectionImport {
			out = append(out, wasmBytes[sectionStart:end]...)
			r.pos = end
			continue
		}

		body, err := renameImportSection(&reader{data: r.data[:end], pos: r.pos}, names)
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", id, err)
		}
		out = appendSection(out, sectionImport, body)
		r.pos = end
	}
	return out, nil
}

func renameImportSection(r *reader, names []string) ([]byte, error) {
	n := r.u32()
	if r.err == nil && int(n) != len(names) {
		return nil, fmt.Errorf("%d imports, %d names", n, len(names))
	}

	out := EncodeULEB128(n)
	for i := uint32(0); i < n && r.err == nil; i++ {
		out = appendName(out, r.name())
		r.name()

		descStart := r.pos
		switch kind := ExternKind(r.byte()); kind {
		case ExternFunc:
			r.u32()
		case ExternTable:
			r.table()
		case ExternMemory:
			r.limits()
		case ExternGlobal:
			r.valType()
			r.byte()
		default:
			r.fail("invalid import kind %#x", byte(kind))
		}
		if r.err != nil {
			break
		}
		out = appendName(out, names[i])
		out = append(out, r.data[descStart:r.pos]...)
	}
	if r.err != nil {
		return nil, r.err
	}
	return out, nil
}
