// Package effect drives Effect and Resource values to completion: the
// cancel-token tree, structured concurrency (par/race/scope/
// spawnDetached), and the channel plumbing behind channel.make, all
// grounded on crates/aivi/src/runtime/builtins.rs's CancelToken/
// spawn_effect machinery (see original_source/_INDEX.md). The 25ms
// polling interval there (recv_timeout(Duration::from_millis(25))) is
// kept exactly, since spec.md documents it as observable behavior.
package effect

import (
	"errors"
	"sync/atomic"
	"time"
)

const pollInterval = 25 * time.Millisecond

// ErrCancelled is returned by any Effect interrupted by cancellation.
var ErrCancelled = errors.New("effect: cancelled")

// CancelToken is a node in a parent-linked cancellation tree. Cancelling
// a node is visible to every descendant (Cancelled walks up to the
// root) but never to ancestors or siblings.
type CancelToken struct {
	parent    *CancelToken
	cancelled atomic.Bool
}

// NewRootCancelToken starts a fresh tree for a top-level run.
func NewRootCancelToken() *CancelToken { return &CancelToken{} }

// Child creates a new token cancelled whenever c or any of its
// ancestors is cancelled, independent of c's siblings.
func (c *CancelToken) Child() *CancelToken { return &CancelToken{parent: c} }

// Parent returns c's parent, or c itself at the root — spawnDetached
// reparents onto the grandparent scope so a detached task survives the
// cancellation of the scope that spawned it.
func (c *CancelToken) Parent() *CancelToken {
	if c.parent == nil {
		return c
	}
	return c.parent
}

// Cancel marks c cancelled; descendants observe it immediately.
func (c *CancelToken) Cancel() { c.cancelled.Store(true) }

// Cancelled reports whether c or any ancestor has been cancelled.
func (c *CancelToken) Cancelled() bool {
	for cur := c; cur != nil; cur = cur.parent {
		if cur.cancelled.Load() {
			return true
		}
	}
	return false
}
