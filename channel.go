package bmrng

import (
	"context"
	"errors"
	"sync"
	"time"
)

// link is the channel state shared by every sender clone and the receiver:
// the transport itself, the sender refcount, and the receiver close signal.
type link[Req, Res any] struct {
	requestC chan request[Req, Res]
	timeout  time.Duration

	senders     int
	sendersDone bool
	recvClosed  bool
	recvDoneC   chan struct{}
	mu          *sync.Mutex
}

func newLink[Req, Res any](capacity int, timeout time.Duration) *link[Req, Res] {
	return &link[Req, Res]{
		requestC:  make(chan request[Req, Res], capacity),
		timeout:   timeout,
		senders:   1,
		recvDoneC: make(chan struct{}),
		mu:        new(sync.Mutex),
	}
}

// sweep abandons everything currently queued. Called once the receiver is
// closed, by the receiver itself and by any sender whose enqueue raced the
// close, so no request is left waiting on a reply that cannot come.
func (l *link[Req, Res]) sweep() {
	for {
		select {
		case req, ok := <-l.requestC:
			if !ok {
				return
			}
			req.responder.Close()
		default:
			return
		}
	}
}

func (l *link[Req, Res]) receiverClosed() bool {
	select {
	case <-l.recvDoneC:
		return true
	default:
		return false
	}
}

// RequestSender submits requests into the channel and awaits their replies.
// Handles are cloneable across producers; every method except Close is safe
// for concurrent use, and a handle must not be used after its own Close.
type RequestSender[Req, Res any] struct {
	link   *link[Req, Res]
	closed bool
	mu     *sync.Mutex
}

func newRequestSender[Req, Res any](l *link[Req, Res]) *RequestSender[Req, Res] {
	return &RequestSender[Req, Res]{
		link: l,
		mu:   new(sync.Mutex),
	}
}

// Send enqueues a request and returns the receiving half of its reply slot,
// blocking while the channel buffer is full. Callers not interested in the
// reply can discard the returned receiver; callers that want a later Respond
// to fail instead should Close it.
//
// A SendError carrying the request value is returned when the receiver side
// is closed or ctx ends first, so the caller keeps ownership of what was
// never consumed.
func (s *RequestSender[Req, Res]) Send(ctx context.Context, value Req) (*ResponseReceiver[Res], error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, newSendError(value, ErrClosed)
	}

	l := s.link
	if l.receiverClosed() {
		return nil, newSendError(value, ErrClosed)
	}

	req, receiver := newRequest[Req, Res](value, l.timeout)

	select {
	case l.requestC <- req:
	case <-l.recvDoneC:
		return nil, newSendError(value, ErrClosed)
	case <-ctx.Done():
		return nil, newSendError(value, ctx.Err())
	}

	// the receiver may have closed around the enqueue. The envelope cannot be
	// retracted, so abandon the queue's contents; the waiting side observes a
	// dropped reply rather than a hang.
	if l.receiverClosed() {
		l.sweep()
	}

	return receiver, nil
}

// SendReceive enqueues a request and waits for its reply.
//
// Cancelling ctx abandons only this call: the reply receiver is closed on
// the way out so a concurrent Respond fails cleanly instead of delivering
// into a slot nobody reads. A reply timeout configured on the channel does
// not close the receiver; after ErrReplyTimeout a late Respond still
// succeeds.
func (s *RequestSender[Req, Res]) SendReceive(ctx context.Context, value Req) (Res, error) {
	receiver, err := s.Send(ctx, value)
	if err != nil {
		var empty Res
		return empty, err
	}
	return awaitReply(ctx, receiver)
}

// Clone returns a new sender handle on the same channel. The channel reaches
// end-of-stream only once every clone has been closed.
func (s *RequestSender[Req, Res]) Clone() *RequestSender[Req, Res] {
	l := s.link
	l.mu.Lock()
	defer l.mu.Unlock()

	clone := newRequestSender(l)
	if l.sendersDone {
		// every handle was already closed; the clone is born closed.
		clone.closed = true
		return clone
	}

	l.senders++
	return clone
}

// Close releases this handle. Closing the last clone closes the transport,
// waking a blocked Recv with end-of-stream. Safe to call more than once.
func (s *RequestSender[Req, Res]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	l := s.link
	l.mu.Lock()
	defer l.mu.Unlock()
	l.senders--
	if l.senders == 0 && !l.sendersDone {
		l.sendersDone = true
		close(l.requestC)
	}
}

// IsClosed reports whether the receiver side of the channel has been closed.
func (s *RequestSender[Req, Res]) IsClosed() bool {
	return s.link.receiverClosed()
}

// RequestReceiver is the single consumer side of a channel. It is not
// cloneable: reply routing assumes exactly one place decides each reply.
type RequestReceiver[Req, Res any] struct {
	link *link[Req, Res]
}

func newRequestReceiver[Req, Res any](l *link[Req, Res]) *RequestReceiver[Req, Res] {
	return &RequestReceiver[Req, Res]{link: l}
}

// Recv blocks until the next request arrives and yields it together with its
// single-use responder. The consumer must eventually Respond on the responder
// or Close it; closing it resolves the requester's wait with ErrReplyDropped.
//
// Recv returns ErrStreamClosed once every sender handle has been closed.
func (r *RequestReceiver[Req, Res]) Recv(ctx context.Context) (Req, *Responder[Res], error) {
	var empty Req
	l := r.link

	if l.receiverClosed() {
		return empty, nil, ErrStreamClosed
	}

	select {
	case req, ok := <-l.requestC:
		if !ok {
			return empty, nil, ErrStreamClosed
		}
		return req.value, req.responder, nil
	case <-l.recvDoneC:
		return empty, nil, ErrStreamClosed
	case <-ctx.Done():
		return empty, nil, ctx.Err()
	}
}

// Close tears down the consumer side. Current and future sends fail with
// ErrClosed, and requests already queued are abandoned so their senders
// observe ErrReplyDropped rather than waiting forever. Safe to call more
// than once.
func (r *RequestReceiver[Req, Res]) Close() {
	l := r.link
	l.mu.Lock()
	if l.recvClosed {
		l.mu.Unlock()
		return
	}
	l.recvClosed = true
	close(l.recvDoneC)
	l.mu.Unlock()

	l.sweep()
}

// awaitReply drives the reply wait for a SendReceive call. Context
// cancellation closes the reply receiver on the way out; a reply timeout
// leaves it open.
func awaitReply[Res any](ctx context.Context, receiver *ResponseReceiver[Res]) (Res, error) {
	value, err := receiver.Recv(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			receiver.Close()
		}
		var empty Res
		return empty, err
	}
	return value, nil
}

// New creates a bounded request-response channel for communicating between
// goroutines with backpressure. It panics if capacity is less than 1.
func New[Req, Res any](capacity int) (*RequestSender[Req, Res], *RequestReceiver[Req, Res]) {
	return NewWithTimeout[Req, Res](capacity, 0)
}

// NewWithTimeout creates a bounded request-response channel whose SendReceive
// and ResponseReceiver.Recv calls give up with ErrReplyTimeout after the
// given duration. A timeout of 0 means wait forever. It panics if capacity is
// less than 1.
func NewWithTimeout[Req, Res any](capacity int, timeout time.Duration) (*RequestSender[Req, Res], *RequestReceiver[Req, Res]) {
	if capacity < 1 {
		panic("bmrng: channel capacity must be at least 1")
	}

	l := newLink[Req, Res](capacity, timeout)
	return newRequestSender(l), newRequestReceiver(l)
}
