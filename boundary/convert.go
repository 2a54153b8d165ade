package boundary

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/interp"
)

// FromNative converts an interpreter value into its boundary form.
func FromNative(v interp.Value) (Value, error) {
	switch v.Type {
	case api.ValueTypeI32:
		return I32(v.I32()), nil
	case api.ValueTypeI64:
		return I64(v.I64()), nil
	case api.ValueTypeF32:
		return F32(uint32(v.Bits)), nil
	case api.ValueTypeF64:
		return F64(v.Bits), nil
	default:
		return nil, errors.New(errors.PhaseBoundary, errors.KindUnsupported).
			Value(v.Type).
			Detail("%s values cannot cross the boundary", interp.TypeName(v.Type)).
			Build()
	}
}

// ToNative converts a boundary value into an interpreter value. V128 has no
// native counterpart and fails with an unsupported error.
func ToNative(v Value) (interp.Value, error) {
	switch v := v.(type) {
	case I32:
		return interp.I32(int32(v)), nil
	case I64:
		return interp.I64(int64(v)), nil
	case F32:
		return interp.F32Bits(uint32(v)), nil
	case F64:
		return interp.F64Bits(uint64(v)), nil
	case V128:
		return interp.Value{}, errors.Unsupported(errors.PhaseBoundary, "v128 values are not supported by the interpreter")
	default:
		return interp.Value{}, errors.InvalidInput(errors.PhaseBoundary, "nil boundary value")
	}
}

// ToNativeAll converts an argument list, stopping at the first failure.
func ToNativeAll(vs []Value) ([]interp.Value, error) {
	out := make([]interp.Value, len(vs))
	for i, v := range vs {
		nv, err := ToNative(v)
		if err != nil {
			return nil, err
		}
		out[i] = nv
	}
	return out, nil
}

// FromResult converts an optional single call result. A nil v yields a nil
// Value. err is returned unchanged.
func FromResult(v *interp.Value, err error) (Value, error) {
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return FromNative(*v)
}

// FromResults converts a multi-value call result. err is returned unchanged.
func FromResults(vs []interp.Value, err error) ([]Value, error) {
	if err != nil {
		return nil, err
	}
	if len(vs) == 0 {
		return nil, nil
	}
	out := make([]Value, len(vs))
	for i, v := range vs {
		bv, cerr := FromNative(v)
		if cerr != nil {
			return nil, cerr
		}
		out[i] = bv
	}
	return out, nil
}
