package lockbroker

import (
	"context"
	"fmt"
	"runtime"
)

// ensureEntry implements the resurrection-safe find-or-create/bump/
// validate protocol: it never returns a dead entry and never returns an
// entry for a token other than t; on a contested reclamation it rolls back
// its speculative bump and retries.
func (b *Broker[K, V]) ensureEntry(ctx context.Context, t Token[K, V]) (*entry, error) {
	for {
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("acquiring lock: %w", err)
			}
		}

		e := b.lookupOrCreate(t)

		if e.refcount.Add(1) <= 0 {
			e.refcount.Add(-1)
			runtime.Gosched()
			continue
		}

		cur, ok := b.directory.Load(t)
		if !ok || cur.(*entry) != e {
			e.refcount.Add(-1)
			runtime.Gosched()
			continue
		}

		return e, nil
	}
}

func (b *Broker[K, V]) lookupOrCreate(t Token[K, V]) *entry {
	if v, ok := b.directory.Load(t); ok {
		return v.(*entry)
	}

	fresh := newEntry(primKindFor(t.Kind()))
	actual, _ := b.directory.LoadOrStore(t, fresh)
	return actual.(*entry)
}

func primKindFor(k Kind) primKind {
	if k == KindShared {
		return primShared
	}
	return primOrdinary
}

// reclaimPass is a best-effort snapshot walk of the directory, CAS-ing each
// zero-count entry to dead and conditionally removing it. It never blocks
// acquirers and is never blocked by them.
func (b *Broker[K, V]) reclaimPass() {
	b.directory.Range(func(key, value any) bool {
		e := value.(*entry)
		if e.refcount.CompareAndSwap(0, deadRefcount) {
			b.directory.CompareAndDelete(key, e)
		}
		return true
	})
}

// awaitRangeClearance spin-yields while t is range-blocked. It returns
// immediately (without blocking) when blocking is false, reporting
// ErrUnavailable if the token is currently blocked.
func (b *Broker[K, V]) awaitRangeClearance(ctx context.Context, mode Mode, t Token[K, V], blocking bool) error {
	if t.Kind() != KindRange {
		return nil
	}

	for b.ranges.isBlocked(mode, t) {
		if !blocking {
			return ErrUnavailable
		}
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("acquiring lock: %w", err)
			}
		}
		runtime.Gosched()
	}
	return nil
}
