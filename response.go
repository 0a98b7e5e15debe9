package bmrng

import (
	"context"
	"sync"
	"time"
)

// response is the shared state of a single reply slot. Both halves of a
// request (the waiting sender and the consumer's responder) point at the same
// instance. The slot moves through exactly one terminal transition: a value is
// delivered, the responder is closed without delivering, or the receiving half
// is closed. doneC closes once on the responder-side transition, closedC once
// on the receiver-side one; either wakes a blocked wait so no post-terminal
// operation can hang.
type response[Res any] struct {
	value          Res
	delivered      bool
	consumed       bool
	senderClosed   bool
	receiverClosed bool

	doneC   chan struct{}
	closedC chan struct{}
	mu      *sync.Mutex
}

func newResponse[Res any]() *response[Res] {
	return &response[Res]{
		doneC:   make(chan struct{}),
		closedC: make(chan struct{}),
		mu:      new(sync.Mutex),
	}
}

// deliver places a value into the slot and signals the waiting receiver.
// Either outcome consumes the responder's right to deliver, so a retry after
// a receiver-closed failure reports an already-sent reply.
func (r *response[Res]) deliver(value Res) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.senderClosed {
		return ErrAlreadyReplied
	}

	if r.receiverClosed {
		r.senderClosed = true
		close(r.doneC)
		return ErrClosed
	}

	r.value = value
	r.delivered = true
	r.senderClosed = true
	close(r.doneC)
	return nil
}

// closeSender marks the responder side terminal without delivering. The
// waiting receiver observes this as a dropped reply.
func (r *response[Res]) closeSender() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.senderClosed {
		r.senderClosed = true
		close(r.doneC)
	}
}

// closeReceiver tears down the receiving half. Delivery attempts after this
// point fail, which the consumer treats as "requester no longer listening",
// and a blocked or later Recv resolves instead of waiting on a reply that can
// no longer be read.
func (r *response[Res]) closeReceiver() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.receiverClosed {
		r.receiverClosed = true
		close(r.closedC)
	}
}

// take consumes the delivered value. It reports false if the slot was closed
// without a delivery or the value was already taken.
func (r *response[Res]) take() (Res, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var empty Res
	if !r.delivered || r.consumed {
		return empty, false
	}

	r.consumed = true
	return r.value, true
}

func (r *response[Res]) closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.senderClosed || r.receiverClosed
}

// ResponseReceiver is the sender-held receiving half of a reply slot, created
// by Send. It owns the slot independently of any single Recv call so that a
// timed-out wait never invalidates the slot.
type ResponseReceiver[Res any] struct {
	state   *response[Res]
	timeout time.Duration
}

func newResponseReceiver[Res any](state *response[Res], timeout time.Duration) *ResponseReceiver[Res] {
	return &ResponseReceiver[Res]{
		state:   state,
		timeout: timeout,
	}
}

// Recv waits for the reply. If the channel was built with a timeout, the wait
// races against it and loses with ErrReplyTimeout; losing the race leaves the
// slot intact, so a later Recv may be retried and a late Respond by the
// consumer still succeeds. The delivered value is consumed by the first
// successful Recv. Once Close has been called, Recv fails with
// ErrReplyDropped instead of waiting.
func (r *ResponseReceiver[Res]) Recv(ctx context.Context) (Res, error) {
	var empty Res

	if r.timeout > 0 {
		timer := time.NewTimer(r.timeout)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return empty, ctx.Err()
		case <-timer.C:
			return empty, ErrReplyTimeout
		case <-r.state.doneC:
		case <-r.state.closedC:
		}
	} else {
		select {
		case <-ctx.Done():
			return empty, ctx.Err()
		case <-r.state.doneC:
		case <-r.state.closedC:
		}
	}

	value, ok := r.state.take()
	if !ok {
		return empty, ErrReplyDropped
	}
	return value, nil
}

// Close tears down the receiving half. After Close, the consumer's Respond
// fails and hands the undelivered reply back. Safe to call more than once.
func (r *ResponseReceiver[Res]) Close() {
	r.state.closeReceiver()
}

// Responder is the consumer-held delivery handle for one request. It delivers
// at most one reply; a second Respond fails with ErrAlreadyReplied.
type Responder[Res any] struct {
	state *response[Res]
}

func newResponder[Res any](state *response[Res]) *Responder[Res] {
	return &Responder[Res]{state: state}
}

// Respond delivers the reply, finishing the request. It fails with a
// RespondError carrying the value if the requester is no longer listening or
// if a reply was already sent. Responding after the requester timed out is
// not an error: whether the requester still listens is decided by whether its
// receiving half exists, never by elapsed time.
func (r *Responder[Res]) Respond(value Res) error {
	if err := r.state.deliver(value); err != nil {
		return newRespondError(value, err)
	}
	return nil
}

// Close abandons the request without a reply. The waiting requester observes
// ErrReplyDropped. Safe to call more than once.
func (r *Responder[Res]) Close() {
	r.state.closeSender()
}

// IsClosed reports whether a reply was already sent, the responder was
// closed, or the requester stopped listening.
func (r *Responder[Res]) IsClosed() bool {
	return r.state.closed()
}
