// Package bmrng is an MPSC request-response channel for communicating
// between goroutines.
//
// Many producers hold cloned [RequestSender] handles and submit requests; a
// single consumer drains them through a [RequestReceiver] and answers each
// one through a single-use [Responder]. Every request is paired with its own
// reply slot, so replies are correlated to the exact call that asked for
// them and may resolve in any order.
//
//	tx, rx := bmrng.New[int, int](100)
//
//	go func() {
//		for {
//			input, responder, err := rx.Recv(context.Background())
//			if err != nil {
//				return // all senders closed
//			}
//			if err := responder.Respond(input * input); err != nil {
//				// requester stopped listening, not fatal
//			}
//		}
//	}()
//
//	response, err := tx.SendReceive(context.Background(), 8) // 64
//
// Channels come bounded ([New], [NewWithTimeout]) with backpressure on Send,
// or unbounded ([NewUnbounded], [NewUnboundedWithTimeout]) where Send never
// blocks. The WithTimeout variants bound every reply wait; a timed-out wait
// reports [ErrReplyTimeout] but leaves the reply slot intact, so a consumer
// that answers late still delivers without error.
//
// All failures are ordinary error values. [SendError] and [RespondError]
// hand the undelivered payload back to the caller; [errors.Is] matches them
// against the package sentinels.
package bmrng
