package interp

import (
	"math"
	"testing"

	"github.com/tetratelabs/wazero/api"
)

func TestValue_Accessors(t *testing.T) {
	if got := I32(-5).I32(); got != -5 {
		t.Errorf("I32 = %d, want -5", got)
	}
	if got := I64(math.MinInt64).I64(); got != math.MinInt64 {
		t.Errorf("I64 = %d, want MinInt64", got)
	}
	if got := F32(1.5).F32(); got != 1.5 {
		t.Errorf("F32 = %v, want 1.5", got)
	}
	if got := F64(-2.25).F64(); got != -2.25 {
		t.Errorf("F64 = %v, want -2.25", got)
	}
}

func TestValue_FloatBitsPreserved(t *testing.T) {
	const nanPayload32 = 0x7fa00001
	v := F32Bits(nanPayload32)
	if v.Type != api.ValueTypeF32 {
		t.Fatalf("unexpected type %s", TypeName(v.Type))
	}
	if uint32(v.Bits) != nanPayload32 {
		t.Errorf("bits = %#x, want %#x", v.Bits, nanPayload32)
	}

	negZero := F64(math.Copysign(0, -1))
	if negZero.Bits != 1<<63 {
		t.Errorf("negative zero bits = %#x", negZero.Bits)
	}

	const nanPayload64 = 0xfff0000000000abc
	if F64Bits(nanPayload64).Bits != nanPayload64 {
		t.Error("f64 NaN payload lost")
	}
}

func TestValue_String(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{I32(7), "i32:7"},
		{I64(-1), "i64:-1"},
		{F32(0.5), "f32:0.5"},
		{F64(666), "f64:666"},
		{Value{Type: ValueTypeFuncref}, "funcref:0x0"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestSignature(t *testing.T) {
	sig := Signature{Params: []api.ValueType{api.ValueTypeI32, api.ValueTypeF32}}
	if !sig.Unit() {
		t.Error("expected unit signature")
	}
	if got := sig.String(); got != "(i32, f32) -> ()" {
		t.Errorf("String() = %q", got)
	}

	other := Signature{Params: []api.ValueType{api.ValueTypeI32, api.ValueTypeF32}}
	if !sig.Equal(other) {
		t.Error("expected equal signatures")
	}
	other.Results = []api.ValueType{api.ValueTypeI32}
	if sig.Equal(other) {
		t.Error("expected signatures to differ")
	}
	if other.Unit() {
		t.Error("expected non-unit signature")
	}
}

func TestLimits_String(t *testing.T) {
	if got := (Limits{Min: 1, Max: 2, HasMax: true}).String(); got != "1..2" {
		t.Errorf("got %q", got)
	}
	if got := (Limits{Min: 10}).String(); got != "10.." {
		t.Errorf("got %q", got)
	}
}

func TestGlobalDescriptor_String(t *testing.T) {
	if got := (GlobalDescriptor{Type: api.ValueTypeI64, Mutable: true}).String(); got != "mut i64" {
		t.Errorf("got %q", got)
	}
}
