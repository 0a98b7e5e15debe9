package bmrng

import "errors"

var (
	// ErrClosed is reported to a sender when the receiver side of the channel
	// has been closed and no consumer will ever dequeue its request.
	ErrClosed = errors.New("bmrng: request channel closed")

	// ErrStreamClosed is reported to the receiver once every sender handle has
	// been closed and no further requests can arrive.
	ErrStreamClosed = errors.New("bmrng: all request senders closed")

	// ErrReplyDropped is reported to a waiting sender when the responder for
	// its request was closed without ever delivering a reply.
	ErrReplyDropped = errors.New("bmrng: responder closed without replying")

	// ErrReplyTimeout is reported when a channel has a reply timeout configured
	// and the timer fires before the consumer delivers a reply. The reply slot
	// stays intact, so a late Respond still succeeds.
	ErrReplyTimeout = errors.New("bmrng: timed out waiting for reply")

	// ErrAlreadyReplied is reported on a second Respond call against the same
	// responder.
	ErrAlreadyReplied = errors.New("bmrng: reply already sent")
)

// SendError is returned when a request could not be enqueued. It carries the
// undelivered request value back to the caller so nothing is silently lost.
type SendError[T any] struct {
	Value T
	err   error
}

func newSendError[T any](value T, err error) SendError[T] {
	return SendError[T]{Value: value, err: err}
}

func (e SendError[T]) Error() string {
	return "bmrng: send failed: " + e.err.Error()
}

func (e SendError[T]) Unwrap() error {
	return e.err
}

// RespondError is returned when a reply could not be delivered. It carries the
// undelivered reply value back to the consumer, which decides whether to
// retry elsewhere, log, or drop it.
type RespondError[T any] struct {
	Value T
	err   error
}

func newRespondError[T any](value T, err error) RespondError[T] {
	return RespondError[T]{Value: value, err: err}
}

func (e RespondError[T]) Error() string {
	return "bmrng: respond failed: " + e.err.Error()
}

func (e RespondError[T]) Unwrap() error {
	return e.err
}
