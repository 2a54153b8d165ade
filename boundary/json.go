package boundary

import (
	"encoding/hex"
	"encoding/json"

	"github.com/wippyai/wasm-bridge/errors"
)

// JSON uses the externally tagged shape {"I32":5}. Float payloads are bit
// patterns and V128 is 32 hex digits.

func (v I32) MarshalJSON() ([]byte, error)  { return marshalTagged(KindI32, int32(v)) }
func (v I64) MarshalJSON() ([]byte, error)  { return marshalTagged(KindI64, int64(v)) }
func (v F32) MarshalJSON() ([]byte, error)  { return marshalTagged(KindF32, uint32(v)) }
func (v F64) MarshalJSON() ([]byte, error)  { return marshalTagged(KindF64, uint64(v)) }
func (v V128) MarshalJSON() ([]byte, error) { return marshalTagged(KindV128, hex.EncodeToString(v[:])) }

func marshalTagged(k Kind, payload any) ([]byte, error) {
	return json.Marshal(map[string]any{k.String(): payload})
}

// Unmarshal decodes a single tagged value.
func Unmarshal(data []byte) (Value, error) {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return nil, invalid("decode tagged value", err)
	}
	if len(tagged) != 1 {
		return nil, errors.InvalidInput(errors.PhaseBoundary, "tagged value must have exactly one variant")
	}

	for tag, raw := range tagged {
		switch tag {
		case "I32":
			var v int32
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, invalid("decode I32", err)
			}
			return I32(v), nil
		case "I64":
			var v int64
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, invalid("decode I64", err)
			}
			return I64(v), nil
		case "F32":
			var v uint32
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, invalid("decode F32", err)
			}
			return F32(v), nil
		case "F64":
			var v uint64
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, invalid("decode F64", err)
			}
			return F64(v), nil
		case "V128":
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return nil, invalid("decode V128", err)
			}
			b, err := hex.DecodeString(s)
			if err != nil {
				return nil, invalid("decode V128", err)
			}
			if len(b) != 16 {
				return nil, errors.InvalidInput(errors.PhaseBoundary, "V128 payload must be 16 bytes")
			}
			var v V128
			copy(v[:], b)
			return v, nil
		default:
			return nil, errors.New(errors.PhaseBoundary, errors.KindInvalidInput).
				Value(tag).
				Detail("unknown value variant %q", tag).
				Build()
		}
	}
	return nil, nil
}

// UnmarshalList decodes a JSON array of tagged values.
func UnmarshalList(data []byte) ([]Value, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, invalid("decode value list", err)
	}
	out := make([]Value, len(raws))
	for i, raw := range raws {
		v, err := Unmarshal(raw)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func invalid(detail string, cause error) error {
	return errors.New(errors.PhaseBoundary, errors.KindInvalidData).
		Detail("%s", detail).
		Cause(cause).
		Build()
}
