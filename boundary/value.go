// Package boundary holds the serialization-safe values that cross the trust
// boundary between the harness and the interpreter host.
//
// Floats travel as raw IEEE 754 bit patterns, never as decimal text, so NaN
// payloads and signed zero are preserved.
package boundary

import (
	"encoding/hex"
	"fmt"
	"math"
)

// Kind identifies a Value variant.
type Kind uint8

const (
	KindI32 Kind = iota
	KindI64
	KindF32
	KindF64
	KindV128
)

var kindNames = [...]string{"I32", "I64", "F32", "F64", "V128"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Value is a tagged boundary value. The set of variants is closed:
// I32, I64, F32, F64 and V128.
type Value interface {
	Kind() Kind
	isBoundaryValue()
}

// I32 is a 32-bit signed integer.
type I32 int32

// I64 is a 64-bit signed integer.
type I64 int64

// F32 is the bit pattern of a 32-bit float.
type F32 uint32

// F64 is the bit pattern of a 64-bit float.
type F64 uint64

// V128 is a 128-bit vector payload in little-endian byte order. It can be
// stored and transmitted but has no native counterpart.
type V128 [16]byte

func (I32) Kind() Kind  { return KindI32 }
func (I64) Kind() Kind  { return KindI64 }
func (F32) Kind() Kind  { return KindF32 }
func (F64) Kind() Kind  { return KindF64 }
func (V128) Kind() Kind { return KindV128 }

func (I32) isBoundaryValue()  {}
func (I64) isBoundaryValue()  {}
func (F32) isBoundaryValue()  {}
func (F64) isBoundaryValue()  {}
func (V128) isBoundaryValue() {}

// Float returns the float32 the bits encode.
func (v F32) Float() float32 { return math.Float32frombits(uint32(v)) }

// Float returns the float64 the bits encode.
func (v F64) Float() float64 { return math.Float64frombits(uint64(v)) }

func (v I32) String() string  { return fmt.Sprintf("I32(%d)", int32(v)) }
func (v I64) String() string  { return fmt.Sprintf("I64(%d)", int64(v)) }
func (v F32) String() string  { return fmt.Sprintf("F32(%v)", v.Float()) }
func (v F64) String() string  { return fmt.Sprintf("F64(%v)", v.Float()) }
func (v V128) String() string { return "V128(" + hex.EncodeToString(v[:]) + ")" }

// Equal reports whether a and b are the same variant with identical bits.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a == b
}
