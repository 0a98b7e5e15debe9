package bmrng

import (
	"context"
	"sync"
	"time"
)

// unboundedLink is the shared state of an unbounded channel. The transport is
// a mutex-guarded slice so submission never blocks; readyC is a capacity-1
// wakeup signal for the single consumer.
type unboundedLink[Req, Res any] struct {
	items   []request[Req, Res]
	timeout time.Duration

	senders      int
	sendersDone  bool
	sendersDoneC chan struct{}
	recvClosed   bool
	recvDoneC    chan struct{}
	readyC       chan struct{}
	mu           *sync.Mutex
}

func newUnboundedLink[Req, Res any](timeout time.Duration) *unboundedLink[Req, Res] {
	return &unboundedLink[Req, Res]{
		timeout:      timeout,
		senders:      1,
		sendersDoneC: make(chan struct{}),
		recvDoneC:    make(chan struct{}),
		readyC:       make(chan struct{}, 1),
		mu:           new(sync.Mutex),
	}
}

// push appends an envelope and wakes the consumer. Reports false if the
// receiver side is already closed.
func (l *unboundedLink[Req, Res]) push(req request[Req, Res]) bool {
	l.mu.Lock()
	if l.recvClosed {
		l.mu.Unlock()
		return false
	}
	l.items = append(l.items, req)
	l.mu.Unlock()

	select {
	case l.readyC <- struct{}{}:
	default:
		// a wakeup is already pending, one is enough for the single consumer.
	}
	return true
}

// pop removes the oldest envelope. The second return distinguishes an empty
// queue; the third reports that no sender can ever fill it again.
func (l *unboundedLink[Req, Res]) pop() (request[Req, Res], bool, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.items) == 0 {
		var empty request[Req, Res]
		return empty, false, l.sendersDone
	}

	req := l.items[0]
	l.items = l.items[1:]
	return req, true, false
}

func (l *unboundedLink[Req, Res]) receiverClosed() bool {
	select {
	case <-l.recvDoneC:
		return true
	default:
		return false
	}
}

// UnboundedRequestSender submits requests without backpressure: Send always
// succeeds immediately unless the channel is closed. Handles are cloneable
// across producers; every method except Close is safe for concurrent use,
// and a handle must not be used after its own Close.
type UnboundedRequestSender[Req, Res any] struct {
	link   *unboundedLink[Req, Res]
	closed bool
	mu     *sync.Mutex
}

func newUnboundedRequestSender[Req, Res any](l *unboundedLink[Req, Res]) *UnboundedRequestSender[Req, Res] {
	return &UnboundedRequestSender[Req, Res]{
		link: l,
		mu:   new(sync.Mutex),
	}
}

// Send enqueues a request and returns the receiving half of its reply slot.
// It never blocks. A SendError carrying the request value is returned when
// the receiver side is closed.
func (s *UnboundedRequestSender[Req, Res]) Send(value Req) (*ResponseReceiver[Res], error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, newSendError(value, ErrClosed)
	}

	req, receiver := newRequest[Req, Res](value, s.link.timeout)
	if !s.link.push(req) {
		return nil, newSendError(value, ErrClosed)
	}
	return receiver, nil
}

// SendReceive enqueues a request and waits for its reply. Submission itself
// never blocks; ctx governs only the reply wait, and cancelling it closes
// this call's reply receiver so a concurrent Respond fails cleanly. A reply
// timeout configured on the channel does not close the receiver; after
// ErrReplyTimeout a late Respond still succeeds.
func (s *UnboundedRequestSender[Req, Res]) SendReceive(ctx context.Context, value Req) (Res, error) {
	receiver, err := s.Send(value)
	if err != nil {
		var empty Res
		return empty, err
	}
	return awaitReply(ctx, receiver)
}

// Clone returns a new sender handle on the same channel. The channel reaches
// end-of-stream only once every clone has been closed.
func (s *UnboundedRequestSender[Req, Res]) Clone() *UnboundedRequestSender[Req, Res] {
	l := s.link
	l.mu.Lock()
	defer l.mu.Unlock()

	clone := newUnboundedRequestSender(l)
	if l.sendersDone {
		clone.closed = true
		return clone
	}

	l.senders++
	return clone
}

// Close releases this handle. Closing the last clone signals end-of-stream
// to the receiver once the queue drains. Safe to call more than once.
func (s *UnboundedRequestSender[Req, Res]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	l := s.link
	l.mu.Lock()
	l.senders--
	last := l.senders == 0 && !l.sendersDone
	if last {
		l.sendersDone = true
	}
	l.mu.Unlock()

	if last {
		close(l.sendersDoneC)
	}
}

// IsClosed reports whether the receiver side of the channel has been closed.
func (s *UnboundedRequestSender[Req, Res]) IsClosed() bool {
	return s.link.receiverClosed()
}

// UnboundedRequestReceiver is the single consumer side of an unbounded
// channel. It is not cloneable.
type UnboundedRequestReceiver[Req, Res any] struct {
	link *unboundedLink[Req, Res]
}

func newUnboundedRequestReceiver[Req, Res any](l *unboundedLink[Req, Res]) *UnboundedRequestReceiver[Req, Res] {
	return &UnboundedRequestReceiver[Req, Res]{link: l}
}

// Recv blocks until the next request arrives and yields it together with its
// single-use responder. It returns ErrStreamClosed once every sender handle
// has been closed and the queue is drained.
func (r *UnboundedRequestReceiver[Req, Res]) Recv(ctx context.Context) (Req, *Responder[Res], error) {
	var empty Req
	l := r.link

	for {
		if l.receiverClosed() {
			return empty, nil, ErrStreamClosed
		}

		req, ok, done := l.pop()
		if ok {
			return req.value, req.responder, nil
		}
		if done {
			return empty, nil, ErrStreamClosed
		}

		select {
		case <-l.readyC:
		case <-l.sendersDoneC:
		case <-l.recvDoneC:
			return empty, nil, ErrStreamClosed
		case <-ctx.Done():
			return empty, nil, ctx.Err()
		}
	}
}

// Len reports how many requests are queued and not yet dequeued.
func (r *UnboundedRequestReceiver[Req, Res]) Len() int {
	l := r.link
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Close tears down the consumer side. Current and future sends fail with
// ErrClosed, and requests already queued are abandoned so their senders
// observe ErrReplyDropped rather than waiting forever. Safe to call more
// than once.
func (r *UnboundedRequestReceiver[Req, Res]) Close() {
	l := r.link
	l.mu.Lock()
	if l.recvClosed {
		l.mu.Unlock()
		return
	}
	l.recvClosed = true
	close(l.recvDoneC)
	drained := l.items
	l.items = nil
	l.mu.Unlock()

	for _, req := range drained {
		req.responder.Close()
	}
}

// NewUnbounded creates an unbounded request-response channel. Send never
// blocks, regardless of how many requests are outstanding.
func NewUnbounded[Req, Res any]() (*UnboundedRequestSender[Req, Res], *UnboundedRequestReceiver[Req, Res]) {
	return NewUnboundedWithTimeout[Req, Res](0)
}

// NewUnboundedWithTimeout creates an unbounded request-response channel whose
// SendReceive and ResponseReceiver.Recv calls give up with ErrReplyTimeout
// after the given duration. A timeout of 0 means wait forever.
func NewUnboundedWithTimeout[Req, Res any](timeout time.Duration) (*UnboundedRequestSender[Req, Res], *UnboundedRequestReceiver[Req, Res]) {
	l := newUnboundedLink[Req, Res](timeout)
	return newUnboundedRequestSender(l), newUnboundedRequestReceiver(l)
}
