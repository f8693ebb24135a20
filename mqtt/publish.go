package mqtt

import (
	"time"

	"github.com/alcp-iot/hapcanbridge/cmn/cos"
	"github.com/alcp-iot/hapcanbridge/rc"
)

// ackToken is the subset of paho.Token this package needs; paho's
// Token interface satisfies it structurally, but isolating it lets
// pollForAck be tested without a real broker connection.
type ackToken interface {
	WaitTimeout(time.Duration) bool
	Error() error
}

// pollForAck implements the publish-acknowledgement loop: poll
// wasReceivedByBroker() up to `retries` times, `timeout` apart,
// returning rc.Timeout after the last poll with no ack - adapted from
// a busy-poll acknowledgement loop onto Paho's Token.WaitTimeout so the
// observable contract (N polls of `timeout` each, TIMEOUT on
// exhaustion, no re-enqueue) is preserved, even though Paho's own token
// already blocks internally rather than truly busy-polling.
func pollForAck(token ackToken, retries int, timeout time.Duration) error {
	if retries <= 0 {
		retries = 1
	}
	for i := 0; i < retries; i++ {
		if token.WaitTimeout(timeout) {
			if err := token.Error(); err != nil {
				return rc.Wrap(cos.ClassifySocketErr(err), err)
			}
			return nil
		}
	}
	return rc.New(rc.Timeout)
}
