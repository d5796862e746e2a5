package effect

import (
	"testing"
	"time"

	"github.com/aivi-lang/aivi/internal/value"
)

func testRuntime() *Runtime {
	return NewRuntime(Host{Now: time.Now})
}

func TestParSucceedsBothSides(t *testing.T) {
	rt := testRuntime()
	left := Pure(value.Int(1))
	right := Pure(value.Int(2))
	result, err := rt.RunEffectValue(Par(left, right))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != value.KTuple || result.Tuple[0].Int != 1 || result.Tuple[1].Int != 2 {
		t.Fatalf("unexpected result: %s", result)
	}
}

func TestParPropagatesFirstFailure(t *testing.T) {
	rt := testRuntime()
	boom := Fail(value.Text("boom"))
	ok := Pure(value.Int(1))
	_, err := rt.RunEffectValue(Par(boom, ok))
	if err == nil {
		t.Fatalf("expected failure")
	}
}

func TestRaceReturnsFirstWinner(t *testing.T) {
	rt := testRuntime()
	slow := effectOf(func(rt *Runtime) (*value.Value, error) {
		time.Sleep(100 * time.Millisecond)
		return value.Int(1), nil
	})
	fast := Pure(value.Int(2))
	result, err := rt.RunEffectValue(Race(slow, fast))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Int != 2 {
		t.Fatalf("expected fast winner 2, got %s", result)
	}
}

func TestAttemptRecoversFailureAsErrValue(t *testing.T) {
	rt := testRuntime()
	result, err := rt.RunEffectValue(Attempt(Fail(value.Text("nope"))))
	if err != nil {
		t.Fatalf("attempt should not propagate: %v", err)
	}
	if result.Kind != value.KConstructor || result.Constructor.Name != "Err" {
		t.Fatalf("expected Err(...), got %s", result)
	}
}

func TestChannelSendRecvRoundTrip(t *testing.T) {
	rt := testRuntime()
	send, recv := MakeChannel()
	if _, err := rt.RunEffectValue(Send(send.ChannelSend, value.Int(7))); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	result, err := rt.RunEffectValue(Recv(recv.ChannelRecv))
	if err != nil {
		t.Fatalf("recv failed: %v", err)
	}
	if result.Kind != value.KConstructor || result.Constructor.Name != "Ok" || result.Constructor.Args[0].Int != 7 {
		t.Fatalf("unexpected recv result: %s", result)
	}
}

func TestChannelRecvAfterCloseReturnsClosedErr(t *testing.T) {
	rt := testRuntime()
	send, recv := MakeChannel()
	if _, err := rt.RunEffectValue(Close(send.ChannelSend)); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	result, err := rt.RunEffectValue(Recv(recv.ChannelRecv))
	if err != nil {
		t.Fatalf("recv on closed channel should not error: %v", err)
	}
	if result.Constructor.Name != "Err" || result.Constructor.Args[0].Constructor.Name != "Closed" {
		t.Fatalf("expected Err(Closed), got %s", result)
	}
}

// TestSpawnDetachedEscapesItsOwnScope checks that a detached task is
// reparented onto the grandparent token: the scope that spawned it can
// finish and cancel its own token without tearing the detached task
// down, since spawnDetached's purpose is to outlive that scope.
func TestSpawnDetachedEscapesItsOwnScope(t *testing.T) {
	root := NewRootCancelToken()
	scopeToken := root.Child()
	rt := &Runtime{Cancel: scopeToken, Host: Host{Now: time.Now}}

	var detachedToken *CancelToken
	ran := make(chan struct{})
	captured := effectOf(func(inner *Runtime) (*value.Value, error) {
		detachedToken = inner.Cancel
		close(ran)
		return value.Unit(), nil
	})
	if _, err := rt.RunEffectValue(SpawnDetached(captured)); err != nil {
		t.Fatalf("spawnDetached failed: %v", err)
	}
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatalf("detached effect never ran")
	}
	scopeToken.Cancel()
	if detachedToken.Cancelled() {
		t.Fatalf("detached token must not be cancelled by its own scope")
	}
	root.Cancel()
	if !detachedToken.Cancelled() {
		t.Fatalf("detached token must still be cancelled when its new parent (the scope's parent) is cancelled")
	}
}
