package effect

import (
	"io"
	"time"

	"github.com/aivi-lang/aivi/internal/value"
)

// ValueError carries a language-level failure value (what `fail` and
// builtins like channel.send on a closed channel raise) through Go's
// error channel, so `attempt` can recover the exact Value rather than
// a stringified message.
type ValueError struct {
	Payload *value.Value
}

func (e *ValueError) Error() string { return "aivi: " + e.Payload.String() }

// Host carries the ambient I/O surface a Runtime threads through to
// builtins: standard output, the wall clock, and a source of entropy.
// Concrete wiring lives in internal/runtime; keeping it here as an
// interface lets the effect package stay free of os/net imports.
type Host struct {
	Stdout io.Writer
	Now    func() time.Time
	Rand   func() float64
}

// Runtime is the handle an Effect/Resource thunk receives. It is passed
// around as interface{} at the value.EffectFn boundary to avoid a
// value<->effect import cycle; everything in this package asserts it
// back to *Runtime immediately.
type Runtime struct {
	Cancel *CancelToken
	Host   Host
}

// NewRuntime starts a fresh top-level runtime for running a program's
// entry effect.
func NewRuntime(host Host) *Runtime {
	return &Runtime{Cancel: NewRootCancelToken(), Host: host}
}

// Child produces a runtime for a nested scope, sharing the host but
// cancellable independently of the parent (until the parent itself
// cancels).
func (rt *Runtime) Child() *Runtime {
	return &Runtime{Cancel: rt.Cancel.Child(), Host: rt.Host}
}

func (rt *Runtime) withCancel(c *CancelToken) *Runtime {
	return &Runtime{Cancel: c, Host: rt.Host}
}

// Uncancelable returns a Runtime sharing rt's Host but backed by a
// fresh, never-cancelled token tree, for running cleanup effects that
// must complete even when the block that acquired their resource was
// itself cancelled (spec.md §5 "runtime.uncancelable(...)").
func (rt *Runtime) Uncancelable() *Runtime {
	return &Runtime{Cancel: NewRootCancelToken(), Host: rt.Host}
}

// CheckCancelled returns ErrCancelled once rt's token tree has been
// cancelled.
func (rt *Runtime) CheckCancelled() error {
	if rt.Cancel.Cancelled() {
		return ErrCancelled
	}
	return nil
}

// RunEffectValue drives an Effect or Resource value to completion.
// Non-effectful values pass through unchanged, matching spec.md's
// "pure value used where an effect is expected" fallback.
func (rt *Runtime) RunEffectValue(v *value.Value) (*value.Value, error) {
	if v == nil {
		return value.Unit(), nil
	}
	switch v.Kind {
	case value.KEffect:
		if err := rt.CheckCancelled(); err != nil {
			return nil, err
		}
		return v.Effect(rt)
	case value.KResource:
		result, cleanup, err := v.Resource(rt)
		if err != nil {
			return nil, err
		}
		if cleanup != nil {
			defer rt.RunEffectValue(cleanup)
		}
		return result, nil
	default:
		return v, nil
	}
}

// effectOf wraps a thunk as an Effect value, asserting the interface{}
// runtime handle back to *Runtime at the single point it crosses into
// this package.
func effectOf(fn func(rt *Runtime) (*value.Value, error)) *value.Value {
	return &value.Value{Kind: value.KEffect, Effect: func(rtAny interface{}) (*value.Value, error) {
		rt, ok := rtAny.(*Runtime)
		if !ok {
			panic("effect: runtime handle is not *effect.Runtime")
		}
		return fn(rt)
	}}
}
