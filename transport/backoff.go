package transport

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryAfterBackOff is an exponential backoff which waits at least as long as the
// server asked for in the last throttled response. If the server asks for longer
// than the max retry interval, retrying stops.
type retryAfterBackOff struct {
	delegate *backoff.ExponentialBackOff
	maxWait  time.Duration
	next     time.Duration
}

func newRetryAfterBackOff(opt Option) *retryAfterBackOff {
	delegate := backoff.NewExponentialBackOff()
	delegate.InitialInterval = opt.RetryInterval
	delegate.MaxInterval = opt.MaxRetryInterval
	delegate.MaxElapsedTime = 0
	delegate.Reset()

	return &retryAfterBackOff{
		delegate: delegate,
		maxWait:  opt.MaxRetryInterval,
	}
}

func (b *retryAfterBackOff) hint(d time.Duration) {
	b.next = d
}

func (b *retryAfterBackOff) Reset() {
	b.delegate.Reset()
	b.next = 0
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	d := b.delegate.NextBackOff()
	if d == backoff.Stop {
		return d
	}

	hinted := b.next
	b.next = 0

	if hinted > b.maxWait {
		return backoff.Stop
	}

	return max(d, hinted)
}
