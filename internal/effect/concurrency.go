package effect

import (
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aivi-lang/aivi/internal/value"
)

// Scope runs eff under a fresh child cancel token, unconditionally
// cancelling that token when eff finishes (builtins.rs
// "concurrent.scope": `cancel.cancel()` runs regardless of the
// result). This is how a completed scope's spawnDetached children get
// torn down.
func Scope(eff *value.Value) *value.Value {
	return effectOf(func(rt *Runtime) (*value.Value, error) {
		child := rt.Child()
		result, err := child.RunEffectValue(eff)
		child.Cancel.Cancel()
		return result, err
	})
}

// Par runs left and right concurrently, each under its own cancel
// token child of rt's. If either fails, the other's token is
// cancelled so it can unwind cooperatively. The parent's own
// cancellation is polled every 25ms, matching the upstream
// recv_timeout(Duration::from_millis(25)) cadence, and propagates to
// both children. Result is (leftValue, rightValue) only if both
// succeed.
func Par(left, right *value.Value) *value.Value {
	return effectOf(func(rt *Runtime) (*value.Value, error) {
		leftCancel := rt.Cancel.Child()
		rightCancel := rt.Cancel.Child()

		var leftVal, rightVal *value.Value
		var g errgroup.Group
		g.Go(func() error {
			v, err := rt.withCancel(leftCancel).RunEffectValue(left)
			if err != nil {
				rightCancel.Cancel()
				return err
			}
			leftVal = v
			return nil
		})
		g.Go(func() error {
			v, err := rt.withCancel(rightCancel).RunEffectValue(right)
			if err != nil {
				leftCancel.Cancel()
				return err
			}
			rightVal = v
			return nil
		})

		done := make(chan error, 1)
		go func() { done <- g.Wait() }()

		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case err := <-done:
				if err != nil {
					return nil, err
				}
				return value.Tuple([]*value.Value{leftVal, rightVal}), nil
			case <-ticker.C:
				if rt.CheckCancelled() != nil {
					leftCancel.Cancel()
					rightCancel.Cancel()
				}
			}
		}
	})
}

type raceResult struct {
	side int
	v    *value.Value
	err  error
}

// Race runs left and right concurrently and returns whichever finishes
// first, cancelling the loser. The loser is still drained before
// returning so its goroutine never leaks, mirroring the upstream
// post-win `while rx.recv_timeout(...).is_err() { ... }` wait.
func Race(left, right *value.Value) *value.Value {
	return effectOf(func(rt *Runtime) (*value.Value, error) {
		leftCancel := rt.Cancel.Child()
		rightCancel := rt.Cancel.Child()
		results := make(chan raceResult, 2)

		run := func(side int, eff *value.Value, cancel *CancelToken) {
			v, err := rt.withCancel(cancel).RunEffectValue(eff)
			results <- raceResult{side, v, err}
		}
		go run(0, left, leftCancel)
		go run(1, right, rightCancel)

		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		var winner *raceResult
		cancelled := false
		for winner == nil {
			select {
			case r := <-results:
				rr := r
				winner = &rr
			case <-ticker.C:
				if rt.CheckCancelled() != nil {
					cancelled = true
					leftCancel.Cancel()
					rightCancel.Cancel()
				}
			}
		}
		if winner.side == 0 {
			rightCancel.Cancel()
		} else {
			leftCancel.Cancel()
		}
		<-results // drain the loser
		if cancelled {
			return nil, ErrCancelled
		}
		return winner.v, winner.err
	})
}

// SpawnDetached starts eff running under a token reparented onto rt's
// grandparent scope, so it outlives the immediate scope that spawned
// it but is still torn down when an ancestor scope completes
// (builtins.rs "concurrent.spawnDetached": `runtime.cancel.parent()`).
// The caller receives Unit immediately without waiting on eff.
func SpawnDetached(eff *value.Value) *value.Value {
	return effectOf(func(rt *Runtime) (*value.Value, error) {
		cancel := rt.Cancel.Parent().Child()
		detached := rt.withCancel(cancel)
		go func() {
			_, _ = detached.RunEffectValue(eff)
		}()
		return value.Unit(), nil
	})
}
