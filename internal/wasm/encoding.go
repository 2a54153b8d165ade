// Package wasm provides the small slice of the WebAssembly binary format the
// engine needs: reading a module's imports and exports, and encoding the
// synthetic modules used to link shared host instances.
package wasm

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-bridge/interp"
)

// EncodeULEB128 encodes an unsigned value in LEB128 format.
func EncodeULEB128(v uint32) []byte {
	var result []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		result = append(result, b)
		if v == 0 {
			break
		}
	}
	return result
}

// EncodeSLEB128 encodes a signed value in LEB128 format.
func EncodeSLEB128[T int32 | int64](v T) []byte {
	var result []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			result = append(result, b)
			break
		}
		result = append(result, b|0x80)
	}
	return result
}

// DecodeULEB128 decodes an unsigned LEB128 value and returns the number of
// bytes consumed. A zero count means the input was truncated or overlong.
func DecodeULEB128(data []byte) (uint32, int) {
	var result uint32
	var shift uint32
	for i, b := range data {
		if shift > 28 {
			return 0, 0
		}
		result |= uint32(b&0x7F) << shift
		if b&0x80 == 0 {
			return result, i + 1
		}
		shift += 7
	}
	return 0, 0
}

// wazero's value type constants are the binary encodings, so conversion is
// a checked cast.
func isValType(b byte) bool {
	switch api.ValueType(b) {
	case api.ValueTypeI32, api.ValueTypeI64, api.ValueTypeF32, api.ValueTypeF64,
		api.ValueTypeExternref, interp.ValueTypeFuncref, interp.ValueTypeV128:
		return true
	}
	return false
}

func isRefType(b byte) bool {
	return api.ValueType(b) == api.ValueTypeExternref || api.ValueType(b) == interp.ValueTypeFuncref
}
