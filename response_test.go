package bmrng

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestResponseDeliverOnce(t *testing.T) {
	state := newResponse[int]()

	if err := state.deliver(42); err != nil {
		t.Errorf("want nil, got %v", err)
	}

	if err := state.deliver(43); !errors.Is(err, ErrAlreadyReplied) {
		t.Errorf("want ErrAlreadyReplied, got %v", err)
	}

	got, ok := state.take()
	if !ok {
		t.Errorf("want delivered value, got none")
	}
	if got != 42 {
		t.Errorf("want %d, got %d", 42, got)
	}

	// the value is consumed by the first take.
	if _, ok := state.take(); ok {
		t.Errorf("want no value on second take, got one")
	}
}

func TestResponseDeliverAfterReceiverClosed(t *testing.T) {
	state := newResponse[int]()
	state.closeReceiver()

	if err := state.deliver(42); !errors.Is(err, ErrClosed) {
		t.Errorf("want ErrClosed, got %v", err)
	}

	if _, ok := state.take(); ok {
		t.Errorf("want no value, got one")
	}
}

func TestResponseCloseSenderSignalsDone(t *testing.T) {
	state := newResponse[int]()

	state.closeSender()
	state.closeSender() // idempotent

	select {
	case <-state.doneC:
	default:
		t.Errorf("want doneC closed after closeSender")
	}

	if _, ok := state.take(); ok {
		t.Errorf("want no value after closeSender, got one")
	}
}

func TestResponseReceiverRecvDelivered(t *testing.T) {
	state := newResponse[string]()
	receiver := newResponseReceiver(state, 0)

	go func() {
		if err := state.deliver("hello"); err != nil {
			t.Errorf("want nil, got %v", err)
		}
	}()

	got, err := receiver.Recv(context.Background())
	if err != nil {
		t.Errorf("want nil, got %v", err)
	}

	want := "hello"
	if got != want {
		t.Errorf("want %s, got %s", want, got)
	}
}

func TestResponseReceiverRecvDropped(t *testing.T) {
	state := newResponse[string]()
	receiver := newResponseReceiver(state, 0)

	go state.closeSender()

	_, err := receiver.Recv(context.Background())
	if !errors.Is(err, ErrReplyDropped) {
		t.Errorf("want ErrReplyDropped, got %v", err)
	}
}

func TestResponseReceiverRecvTimeout(t *testing.T) {
	state := newResponse[string]()
	receiver := newResponseReceiver(state, 20*time.Millisecond)

	start := time.Now()
	_, err := receiver.Recv(context.Background())
	elapsed := time.Since(start)

	if !errors.Is(err, ErrReplyTimeout) {
		t.Errorf("want ErrReplyTimeout, got %v", err)
	}

	if elapsed > time.Second {
		t.Errorf("timeout took too long: %v", elapsed)
	}

	// losing the race must not tear the slot down: a late delivery still
	// succeeds and a retried Recv picks it up.
	if err := state.deliver("late"); err != nil {
		t.Errorf("want nil, got %v", err)
	}

	got, err := receiver.Recv(context.Background())
	if err != nil {
		t.Errorf("want nil, got %v", err)
	}
	if got != "late" {
		t.Errorf("want %s, got %s", "late", got)
	}
}

func TestResponseReceiverRecvAfterClose(t *testing.T) {
	state := newResponse[string]()
	receiver := newResponseReceiver(state, 0)

	receiver.Close()
	receiver.Close() // idempotent

	testC := make(chan error)

	go func() {
		_, err := receiver.Recv(context.Background())
		testC <- err
	}()

	timeout := time.NewTimer(3 * time.Second)
	defer timeout.Stop()

	select {
	case got := <-testC:
		if !errors.Is(got, ErrReplyDropped) {
			t.Errorf("want ErrReplyDropped, got %v", got)
		}
	case <-timeout.C:
		t.Errorf("recv on a closed receiver blocked instead of failing")
	}
}

func TestResponseReceiverConcurrentCloseWakesRecv(t *testing.T) {
	state := newResponse[string]()
	receiver := newResponseReceiver(state, 0)

	testC := make(chan error)

	go func() {
		_, err := receiver.Recv(context.Background())
		testC <- err
	}()

	time.Sleep(20 * time.Millisecond) // let the recv block on the empty slot
	receiver.Close()

	timeout := time.NewTimer(3 * time.Second)
	defer timeout.Stop()

	select {
	case got := <-testC:
		if !errors.Is(got, ErrReplyDropped) {
			t.Errorf("want ErrReplyDropped, got %v", got)
		}
	case <-timeout.C:
		t.Errorf("blocked recv was not woken by the receiver closing")
	}
}

func TestResponseReceiverRecvAfterCloseWithTimeout(t *testing.T) {
	state := newResponse[string]()
	receiver := newResponseReceiver(state, 5*time.Second)

	receiver.Close()

	testC := make(chan error)

	go func() {
		_, err := receiver.Recv(context.Background())
		testC <- err
	}()

	// the closed state must win immediately, not after the reply timeout.
	timeout := time.NewTimer(3 * time.Second)
	defer timeout.Stop()

	select {
	case got := <-testC:
		if !errors.Is(got, ErrReplyDropped) {
			t.Errorf("want ErrReplyDropped, got %v", got)
		}
	case <-timeout.C:
		t.Errorf("recv on a closed receiver waited for the reply timeout")
	}
}

func TestResponseReceiverRecvContextCancelled(t *testing.T) {
	state := newResponse[string]()
	receiver := newResponseReceiver(state, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := receiver.Recv(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", err)
	}
}

func TestResponderRespond(t *testing.T) {
	state := newResponse[int]()
	responder := newResponder(state)

	if responder.IsClosed() {
		t.Errorf("want open responder before responding")
	}

	if err := responder.Respond(64); err != nil {
		t.Errorf("want nil, got %v", err)
	}

	if !responder.IsClosed() {
		t.Errorf("want closed responder after responding")
	}

	err := responder.Respond(65)
	if !errors.Is(err, ErrAlreadyReplied) {
		t.Errorf("want ErrAlreadyReplied, got %v", err)
	}

	var respondErr RespondError[int]
	if !errors.As(err, &respondErr) {
		t.Errorf("want RespondError, got %T", err)
	}
	if respondErr.Value != 65 {
		t.Errorf("want undelivered value %d back, got %d", 65, respondErr.Value)
	}
}

func TestResponderRespondAfterReceiverClosed(t *testing.T) {
	state := newResponse[int]()
	responder := newResponder(state)
	receiver := newResponseReceiver(state, 0)

	receiver.Close()

	if !responder.IsClosed() {
		t.Errorf("want closed responder once the receiver is gone")
	}

	err := responder.Respond(64)
	if !errors.Is(err, ErrClosed) {
		t.Errorf("want ErrClosed, got %v", err)
	}

	var respondErr RespondError[int]
	if !errors.As(err, &respondErr) {
		t.Errorf("want RespondError, got %T", err)
	}
	if respondErr.Value != 64 {
		t.Errorf("want undelivered value %d back, got %d", 64, respondErr.Value)
	}

	// the failed delivery still consumed the responder's single use.
	if err := responder.Respond(65); !errors.Is(err, ErrAlreadyReplied) {
		t.Errorf("want ErrAlreadyReplied, got %v", err)
	}
}

func TestResponderClose(t *testing.T) {
	state := newResponse[int]()
	responder := newResponder(state)

	responder.Close()
	responder.Close() // idempotent

	if !responder.IsClosed() {
		t.Errorf("want closed responder after Close")
	}

	receiver := newResponseReceiver(state, 0)
	_, err := receiver.Recv(context.Background())
	if !errors.Is(err, ErrReplyDropped) {
		t.Errorf("want ErrReplyDropped, got %v", err)
	}
}
