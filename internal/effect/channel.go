package effect

import (
	"sync"
	"time"

	"github.com/aivi-lang/aivi/internal/value"
)

// MakeChannel builds an unbounded FIFO channel pair, mirroring
// builtins.rs's `mpsc::channel()` (send is non-blocking, recv polls
// and can observe a close).
func MakeChannel() (*value.Value, *value.Value) {
	core := &value.ChannelCore{}
	send := &value.Value{Kind: value.KChannelSend, ChannelSend: &value.ChannelSend{Chan: core}}
	recv := &value.Value{Kind: value.KChannelRecv, ChannelRecv: &value.ChannelRecv{Chan: core}}
	return send, recv
}

var channelMu sync.Mutex

// Send appends v to the channel, failing with a Closed constructor
// value if the channel has already been closed.
func Send(send *value.ChannelSend, v *value.Value) *value.Value {
	return effectOf(func(rt *Runtime) (*value.Value, error) {
		channelMu.Lock()
		defer channelMu.Unlock()
		if send.Chan.Closed {
			return nil, closedError()
		}
		send.Chan.Items = append(send.Chan.Items, v)
		return value.Unit(), nil
	})
}

// Recv polls for the next queued item every 25ms until one arrives,
// the channel closes, or the runtime is cancelled, matching
// builtins.rs "channel.recv"'s recv_timeout loop.
func Recv(recv *value.ChannelRecv) *value.Value {
	return effectOf(func(rt *Runtime) (*value.Value, error) {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			if err := rt.CheckCancelled(); err != nil {
				return nil, err
			}
			channelMu.Lock()
			if len(recv.Chan.Items) > 0 {
				item := recv.Chan.Items[0]
				recv.Chan.Items = recv.Chan.Items[1:]
				channelMu.Unlock()
				return value.Ok(item), nil
			}
			closed := recv.Chan.Closed
			channelMu.Unlock()
			if closed {
				return value.Err(value.Con("Closed")), nil
			}
			<-ticker.C
		}
	})
}

// Close marks the channel closed; further Send calls fail.
func Close(send *value.ChannelSend) *value.Value {
	return effectOf(func(rt *Runtime) (*value.Value, error) {
		channelMu.Lock()
		send.Chan.Closed = true
		channelMu.Unlock()
		return value.Unit(), nil
	})
}

func closedError() error {
	return &ValueError{Payload: value.Con("Closed")}
}
