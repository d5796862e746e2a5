package effect

import "github.com/aivi-lang/aivi/internal/value"

// Pure lifts v into a no-op Effect that always succeeds with v.
func Pure(v *value.Value) *value.Value {
	return effectOf(func(rt *Runtime) (*value.Value, error) { return v, nil })
}

// Fail builds an Effect that always fails with payload as its error
// value, recoverable by Attempt.
func Fail(payload *value.Value) *value.Value {
	return effectOf(func(rt *Runtime) (*value.Value, error) {
		return nil, &ValueError{Payload: payload}
	})
}

// Bind sequences eff, then applies k to its result to obtain the next
// Effect to run, threading the same Runtime through.
func Bind(eff *value.Value, k func(*value.Value) (*value.Value, error)) *value.Value {
	return effectOf(func(rt *Runtime) (*value.Value, error) {
		v, err := rt.RunEffectValue(eff)
		if err != nil {
			return nil, err
		}
		next, err := k(v)
		if err != nil {
			return nil, err
		}
		return rt.RunEffectValue(next)
	})
}

// Attempt runs eff and converts an Error(_)-class failure (a
// *ValueError, raised by `fail` or a builtin like a closed-channel
// send) into Ok(value)/Err(payload) rather than propagating a Go
// error. Cancellation and any other Go error — an implementation-level
// Message-class failure such as a non-matching multi-clause dispatch —
// always propagate past attempt unchanged.
func Attempt(eff *value.Value) *value.Value {
	return effectOf(func(rt *Runtime) (*value.Value, error) {
		v, err := rt.RunEffectValue(eff)
		if err == nil {
			return value.Ok(v), nil
		}
		if err == ErrCancelled {
			return nil, err
		}
		if ve, ok := err.(*ValueError); ok {
			return value.Err(ve.Payload), nil
		}
		return nil, err
	})
}
