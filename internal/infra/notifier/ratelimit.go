package notifier

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// perMinute converts a provider's published per-minute quota to a rate.
func perMinute(n float64) rate.Limit { return rate.Limit(n / 60) }

// sendLimiter paces sends to one provider. The account bucket, when set, is
// shared by every destination. With a non-zero per-destination rate each chat
// or webhook also gets its own bucket, allocated on first use.
type sendLimiter struct {
	account *rate.Limiter
	perDest rate.Limit
	burst   int

	mu    sync.Mutex
	dests map[string]*rate.Limiter
}

func newSendLimiter(account *rate.Limiter, perDestination rate.Limit, burst int) *sendLimiter {
	return &sendLimiter{
		account: account,
		perDest: perDestination,
		burst:   burst,
		dests:   make(map[string]*rate.Limiter),
	}
}

// Wait blocks until destination may be sent to, or ctx ends.
func (l *sendLimiter) Wait(ctx context.Context, destination string) error {
	if l.account != nil {
		if err := l.account.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}
	if l.perDest == 0 {
		return nil
	}
	if err := l.bucket(destination).Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

func (l *sendLimiter) bucket(destination string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.dests[destination]
	if !ok {
		b = rate.NewLimiter(l.perDest, l.burst)
		l.dests[destination] = b
	}
	return b
}

func (l *sendLimiter) destinations() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.dests)
}
