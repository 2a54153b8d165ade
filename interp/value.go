package interp

import (
	"fmt"
	"math"

	"github.com/tetratelabs/wazero/api"
)

// Value types not exported by wazero's api package.
const (
	ValueTypeV128    api.ValueType = 0x7b
	ValueTypeFuncref api.ValueType = 0x70
)

// Value is a native interpreter value in wazero's uint64 stack encoding.
// Floats are held as raw bit patterns, so NaN payloads and signed zero
// survive every conversion.
type Value struct {
	Type api.ValueType
	Bits uint64
}

func I32(v int32) Value { return Value{Type: api.ValueTypeI32, Bits: api.EncodeI32(v)} }

func I64(v int64) Value { return Value{Type: api.ValueTypeI64, Bits: api.EncodeI64(v)} }

func F32(v float32) Value { return Value{Type: api.ValueTypeF32, Bits: api.EncodeF32(v)} }

func F64(v float64) Value { return Value{Type: api.ValueTypeF64, Bits: api.EncodeF64(v)} }

// F32Bits creates an f32 value from its IEEE 754 bit pattern.
func F32Bits(bits uint32) Value { return Value{Type: api.ValueTypeF32, Bits: uint64(bits)} }

// F64Bits creates an f64 value from its IEEE 754 bit pattern.
func F64Bits(bits uint64) Value { return Value{Type: api.ValueTypeF64, Bits: bits} }

func (v Value) I32() int32 { return api.DecodeI32(v.Bits) }

func (v Value) I64() int64 { return int64(v.Bits) }

func (v Value) F32() float32 { return math.Float32frombits(uint32(v.Bits)) }

func (v Value) F64() float64 { return math.Float64frombits(v.Bits) }

// String renders the value as "type:value".
func (v Value) String() string {
	switch v.Type {
	case api.ValueTypeI32:
		return fmt.Sprintf("i32:%d", v.I32())
	case api.ValueTypeI64:
		return fmt.Sprintf("i64:%d", v.I64())
	case api.ValueTypeF32:
		return fmt.Sprintf("f32:%v", v.F32())
	case api.ValueTypeF64:
		return fmt.Sprintf("f64:%v", v.F64())
	default:
		return fmt.Sprintf("%s:%#x", TypeName(v.Type), v.Bits)
	}
}

// TypeName returns the text format name of t.
func TypeName(t api.ValueType) string {
	switch t {
	case ValueTypeV128:
		return "v128"
	case ValueTypeFuncref:
		return "funcref"
	default:
		return api.ValueTypeName(t)
	}
}
