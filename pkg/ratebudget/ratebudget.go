// Package ratebudget tracks a rolling one-minute consumption budget for a
// metered collaborator. The true cost of a call is only known after the
// response arrives, so the contract is two-phase: an advisory CheckAvailable
// before the call and an unconditional RecordConsumption after it.
package ratebudget

import (
	"context"
	"sync"
	"time"
)

const window = time.Minute

// Budget is safe for concurrent callers. It cannot fail, only delay.
type Budget struct {
	mu           sync.Mutex
	limit        int
	windowTokens int
	totalTokens  int
	lastRequest  time.Time

	now func() time.Time
}

// New creates a budget capped at limit tokens per rolling minute.
func New(limit int) *Budget {
	return &Budget{
		limit: limit,
		now:   time.Now,
	}
}

// rollWindow resets consumption when more than a minute has passed since the
// last recorded request. The window tracks elapsed time, not clock boundaries,
// so a burst after idle time gets a fresh budget. Callers hold b.mu.
func (b *Budget) rollWindow(now time.Time) {
	if now.Sub(b.lastRequest) > window {
		b.windowTokens = 0
	}
}

// CheckAvailable reports whether the current window has budget left. It is
// advisory and non-blocking.
func (b *Budget) CheckAvailable() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollWindow(b.now())
	return b.windowTokens < b.limit
}

// RecordConsumption records tokens consumed by a completed call. It is called
// unconditionally, even when the call overshot the window's remaining budget.
func (b *Budget) RecordConsumption(tokens int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	b.rollWindow(now)
	b.windowTokens += tokens
	b.totalTokens += tokens
	b.lastRequest = now
}

// TotalConsumed reports lifetime consumption across all windows.
func (b *Budget) TotalConsumed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalTokens
}

// Wait blocks until the window has budget available or ctx is done. This is
// the crawl loop's only suspension point and must stay cancellable.
func (b *Budget) Wait(ctx context.Context) error {
	for {
		if b.CheckAvailable() {
			return nil
		}

		b.mu.Lock()
		sleep := window - b.now().Sub(b.lastRequest)
		b.mu.Unlock()
		if sleep <= 0 {
			sleep = time.Second
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
