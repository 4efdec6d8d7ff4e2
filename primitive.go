package lockbroker

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// ordinaryPrimitive is the reader/writer-exclusion lock: any number of
// readers concurrently, or one writer, never both. It is a thin wrapper
// over [sync.RWMutex] - stdlib already gives us TryLock/TryRLock and the
// platform's default (non-fair) ordering, so there is nothing to build.
type ordinaryPrimitive struct {
	mu sync.RWMutex
}

func (p *ordinaryPrimitive) lock(mode Mode) {
	if mode == Write {
		p.mu.Lock()
	} else {
		p.mu.RLock()
	}
}

// lockCtx blocks until mode is acquirable or ctx is done. sync.RWMutex has
// no way to wake on context cancellation, so unlike lock this has to poll
// tryLock on a backoff instead of handing off to the mutex's own wait queue.
func (p *ordinaryPrimitive) lockCtx(ctx context.Context, mode Mode) error {
	return pollLock(ctx, func() bool { return p.tryLock(mode) })
}

func (p *ordinaryPrimitive) tryLock(mode Mode) bool {
	if mode == Write {
		return p.mu.TryLock()
	}
	return p.mu.TryRLock()
}

func (p *ordinaryPrimitive) unlock(mode Mode) {
	if mode == Write {
		p.mu.Unlock()
	} else {
		p.mu.RUnlock()
	}
}

// sharedPrimitive admits many holders of one mode concurrently while
// excluding the other mode: many readers xor many writers. State is a
// signed counter:
//
//	 0: unheld, next acquirer of either mode wins.
//	>0: N write holders.
//	<0: N read holders (|value|).
//
// Acquire CAS-adds the mode's delta only while the sign permits; release
// CAS-subtracts the same delta. A release whose mode doesn't match the
// sign of the current count is rejected as a usage error rather than
// silently flipping the sign.
type sharedPrimitive struct {
	state atomic.Int64
}

func modeDelta(mode Mode) int64 {
	if mode == Write {
		return 1
	}
	return -1
}

func (p *sharedPrimitive) tryLock(mode Mode) bool {
	delta := modeDelta(mode)

	for {
		cur := p.state.Load()
		if cur != 0 && (cur > 0) != (delta > 0) {
			return false // held by the other mode
		}
		if p.state.CompareAndSwap(cur, cur+delta) {
			return true
		}
	}
}

func (p *sharedPrimitive) lock(mode Mode) {
	for !p.tryLock(mode) {
		runtime.Gosched()
	}
}

// lockCtx blocks until mode is acquirable or ctx is done, polling tryLock
// on a backoff instead of the tight Gosched spin lock uses - ctx.Done()
// needs to be observed between attempts, not just a scheduling yield.
func (p *sharedPrimitive) lockCtx(ctx context.Context, mode Mode) error {
	return pollLock(ctx, func() bool { return p.tryLock(mode) })
}

// unlock releases one hold of mode. It reports false (ErrEmptyModeRelease)
// if the counter's current sign does not correspond to mode; we reject
// this as a usage error rather than silently flipping the sign.
func (p *sharedPrimitive) unlock(mode Mode) bool {
	delta := modeDelta(mode)

	for {
		cur := p.state.Load()
		if cur == 0 || (cur > 0) != (delta > 0) {
			return false
		}
		if p.state.CompareAndSwap(cur, cur-delta) {
			return true
		}
	}
}

// pollLock retries tryLock with exponential backoff, capped, until it
// succeeds or ctx is done. Used by both primitives' lockCtx: neither
// sync.RWMutex nor the CAS counter has a way to wake a waiter on context
// cancellation, so honoring ctx.Done() means polling instead of blocking
// directly on the primitive.
func pollLock(ctx context.Context, tryLock func() bool) error {
	const maxBackoff = time.Millisecond

	backoff := time.Microsecond

	for {
		if tryLock() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		time.Sleep(backoff)

		if backoff < maxBackoff {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}
