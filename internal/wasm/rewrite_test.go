package wasm

import (
	"bytes"
	"testing"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-bridge/interp"
)

func TestLinkNames(t *testing.T) {
	imports := []Import{
		{Module: "spectest", Name: "print"},
		{Module: "spectest", Name: "print"},
		{Module: "other", Name: "print"},
		{Module: "spectest", Name: "print#1"},
		{Module: "spectest", Name: "global_i32"},
	}

	names, renamed := LinkNames(imports)
	if !renamed {
		t.Fatal("expected a rename")
	}
	if names[0] != "print" || names[2] != "print" || names[4] != "global_i32" {
		t.Errorf("first uses must keep their names: %v", names)
	}
	if names[1] == "print" || names[1] == "print#1" {
		t.Errorf("repeated import got %q", names[1])
	}
	if names[3] != "print#1" {
		t.Errorf("distinct import renamed to %q", names[3])
	}

	if _, renamed := LinkNames(imports[2:]); renamed {
		t.Error("distinct imports must not be renamed")
	}
}

func TestRenameImports(t *testing.T) {
	f64 := []api.ValueType{api.ValueTypeF64}

	b := NewBuilder()
	b.ImportFunc("spectest", "print", interp.Signature{Params: i32})
	b.ImportFunc("spectest", "print", interp.Signature{Params: f64})
	b.ImportMemory("spectest", "memory", interp.MemoryDescriptor{Limits: interp.Limits{Min: 1, Max: 2, HasMax: true}})
	b.Export("id", ExternFunc, b.Func(unary, nil, OpLocalGet(0)))
	original := b.Build()

	parsed, err := Parse(original)
	if err != nil {
		t.Fatal(err)
	}
	names, _ := LinkNames(parsed.Imports)

	rewritten, err := RenameImports(original, names)
	if err != nil {
		t.Fatalf("RenameImports: %v", err)
	}
	m, err := Parse(rewritten)
	if err != nil {
		t.Fatalf("Parse rewritten: %v", err)
	}

	for i, imp := range m.Imports {
		if imp.Name != names[i] || imp.Module != parsed.Imports[i].Module {
			t.Errorf("import %d = %s.%s, want %s", i, imp.Module, imp.Name, names[i])
		}
	}
	if !m.Imports[1].Func.Equal(interp.Signature{Params: f64}) {
		t.Errorf("signature changed: %s", m.Imports[1].Func)
	}
	if m.Imports[2].Memory != parsed.Imports[2].Memory {
		t.Errorf("memory changed: %+v", m.Imports[2].Memory)
	}
	if len(m.Exports) != 1 || m.Exports[0].Name != "id" {
		t.Errorf("exports changed: %+v", m.Exports)
	}

	same, err := RenameImports(original, []string{"print", "print", "memory"})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(same, original) {
		t.Error("unchanged names must reproduce the module")
	}

	if _, err := RenameImports(original, []string{"print"}); err == nil {
		t.Error("expected error for a name count mismatch")
	}
}

func TestLimits_Shared(t *testing.T) {
	shared := interp.MemoryDescriptor{Limits: interp.Limits{Min: 1, Max: 4, HasMax: true, Shared: true}}

	b := NewBuilder()
	b.ImportMemory("env", "mem", shared)
	b.Export("mem", ExternMemory, 0)
	m, err := Parse(b.Build())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Imports[0].Memory != shared {
		t.Errorf("import = %+v", m.Imports[0].Memory)
	}
	if d, ok := m.ExportedMemory("mem"); !ok || d != shared {
		t.Errorf("ExportedMemory = %+v, %v", d, ok)
	}

	own := NewBuilder()
	own.Export("mem", ExternMemory, own.Memory(shared))
	m, err = Parse(own.Build())
	if err != nil {
		t.Fatal(err)
	}
	if d, ok := m.ExportedMemory("mem"); !ok || !d.Limits.Shared {
		t.Errorf("defined memory = %+v, %v", d, ok)
	}

	if got := shared.Limits.String(); got != "1..4 shared" {
		t.Errorf("String() = %q", got)
	}
}
