package script

import (
	"fmt"

	"github.com/wippyai/wasm-bridge/boundary"
)

// Check reports whether the result of executing s satisfies its assertion.
// It returns ErrSkip for steps that were not run.
func (s Step) Check(values []boundary.Value, err error) error {
	if s.Skip != "" {
		return ErrSkip
	}

	switch s.Kind {
	case KindModule, KindRegister, KindAction:
		if err != nil {
			return fmt.Errorf("unexpected error: %w", err)
		}
		return nil

	case KindAssertReturn:
		if err != nil {
			return fmt.Errorf("unexpected error: %w", err)
		}
		return s.checkValues(values)

	case KindAssertTrap, KindAssertExhaustion, KindAssertMalformed, KindAssertInvalid,
		KindAssertUnlinkable, KindAssertUninstantiable:
		if err == nil {
			return fmt.Errorf("expected failure %q, got values %v", s.Text, values)
		}
		return nil
	}
	return ErrSkip
}

func (s Step) checkValues(values []boundary.Value) error {
	if len(values) != len(s.Expected) {
		return fmt.Errorf("expected %d values %v, got %d %v", len(s.Expected), s.Expected, len(values), values)
	}
	for i, exp := range s.Expected {
		if !exp.Matches(values[i]) {
			return fmt.Errorf("result %d: expected %s, got %v", i, exp, values[i])
		}
	}
	return nil
}

// Matches reports whether v satisfies e. Floats compare by bit pattern;
// NaN patterns accept any NaN of the required class.
func (e Expected) Matches(v boundary.Value) bool {
	switch e.NaN {
	case NaNCanonical:
		switch v := v.(type) {
		case boundary.F32:
			return uint32(v)&0x7fffffff == 0x7fc00000
		case boundary.F64:
			return uint64(v)&0x7fffffffffffffff == 0x7ff8000000000000
		}
		return false
	case NaNArithmetic:
		switch v := v.(type) {
		case boundary.F32:
			return uint32(v)&0x7fc00000 == 0x7fc00000
		case boundary.F64:
			return uint64(v)&0x7ff8000000000000 == 0x7ff8000000000000
		}
		return false
	}
	return boundary.Equal(e.Value, v)
}
