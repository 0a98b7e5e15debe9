package bmrng

import "time"

// request is the unit transported by a channel: the submitted value paired
// with the responder that delivers its reply. Built once at submission,
// consumed exactly once by the receiver, never re-queued.
type request[Req, Res any] struct {
	value     Req
	responder *Responder[Res]
}

// newRequest pairs a value with a fresh reply slot and returns the envelope
// together with the receiving half of the slot.
func newRequest[Req, Res any](value Req, timeout time.Duration) (request[Req, Res], *ResponseReceiver[Res]) {
	state := newResponse[Res]()

	req := request[Req, Res]{
		value:     value,
		responder: newResponder(state),
	}

	return req, newResponseReceiver(state, timeout)
}
