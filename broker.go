package lockbroker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/exp/constraints"
)

// Broker is the granular lock broker: an on-demand, reference-counted
// directory of lock entries keyed by [Token], backed by two lock
// primitives (ordinary and shared) and a range-block engine that arbitrates
// between point writes and range reads on the same secondary-index key.
//
// K is the token's identity/key type; V is the ordered value type range
// tokens compare against. A Broker is safe for concurrent use by multiple
// goroutines; it owns no goroutines of its own beyond the shared
// [Reclaimer]'s periodic sweep.
type Broker[K comparable, V constraints.Ordered] struct {
	directory sync.Map // map[Token[K,V]]*entry
	ranges    *rangeBlockEngine[K, V]

	reclaimer  *Reclaimer
	unregister func()

	nextRangeID atomic.Uint64
	outstanding atomic.Int64
	closed      atomic.Bool
}

// Option configures a Broker constructed by [New].
type Option[K comparable, V constraints.Ordered] func(*brokerConfig[K, V])

type brokerConfig[K comparable, V constraints.Ordered] struct {
	reclaimer *Reclaimer
}

// WithReclaimer attaches an existing [Reclaimer] instead of the broker's
// private default, so multiple brokers can share one background sweep
// instead of each running its own goroutine.
func WithReclaimer[K comparable, V constraints.Ordered](r *Reclaimer) Option[K, V] {
	return func(c *brokerConfig[K, V]) { c.reclaimer = r }
}

// New constructs a Broker. Unless [WithReclaimer] is supplied, it gets a
// private Reclaimer running at [DefaultReclaimInterval].
func New[K comparable, V constraints.Ordered](opts ...Option[K, V]) *Broker[K, V] {
	cfg := brokerConfig[K, V]{}
	for _, opt := range opts {
		opt(&cfg)
	}

	b := &Broker[K, V]{
		ranges: newRangeBlockEngine[K, V](),
	}

	if cfg.reclaimer != nil {
		b.reclaimer = cfg.reclaimer
	} else {
		b.reclaimer = NewReclaimer(DefaultReclaimInterval)
	}
	b.ranges.liveWritePoint = b.liveWritePoint
	b.unregister = b.reclaimer.register(b)

	return b
}

// liveWritePoint reports whether a live directory entry exists for the
// write-range token (key, v), used by the range-block engine's
// LT/LTE/GT/GTE/BETWEEN read test.
func (b *Broker[K, V]) liveWritePoint(key K, v V) bool {
	t := NewRangeWriteToken[K, V](key, v)
	val, ok := b.directory.Load(t)
	if !ok {
		return false
	}
	return !val.(*entry).isDead()
}

// ReadLock acquires a read-mode hold on token, blocking until it is
// acquirable or ctx is done. ctx may be nil to block unconditionally (as if
// context.Background() were passed).
func (b *Broker[K, V]) ReadLock(ctx context.Context, token Token[K, V]) (*Permit[K, V], error) {
	return b.acquire(ctx, token, Read, true)
}

// WriteLock acquires a write-mode hold on token, blocking until it is
// acquirable or ctx is done.
func (b *Broker[K, V]) WriteLock(ctx context.Context, token Token[K, V]) (*Permit[K, V], error) {
	return b.acquire(ctx, token, Write, true)
}

// TryReadLock acquires a read-mode hold on token if doing so would not
// block, or returns [ErrUnavailable].
func (b *Broker[K, V]) TryReadLock(token Token[K, V]) (*Permit[K, V], error) {
	return b.acquire(nil, token, Read, false)
}

// TryWriteLock acquires a write-mode hold on token if doing so would not
// block, or returns [ErrUnavailable].
func (b *Broker[K, V]) TryWriteLock(token Token[K, V]) (*Permit[K, V], error) {
	return b.acquire(nil, token, Write, false)
}

func (b *Broker[K, V]) acquire(ctx context.Context, t Token[K, V], mode Mode, blocking bool) (*Permit[K, V], error) {
	if b.closed.Load() {
		return nil, ErrShutdown
	}

	if err := validateForMode(t, mode); err != nil {
		return nil, err
	}

	if err := b.awaitRangeClearance(ctx, mode, t, blocking); err != nil {
		return nil, err
	}

	e, err := b.ensureEntry(ctx, t)
	if err != nil {
		return nil, err
	}

	if blocking {
		if err := e.lockCtx(ctx, mode); err != nil {
			e.refcount.Add(-1)
			return nil, fmt.Errorf("acquiring lock: %w", err)
		}
	} else if !e.tryLock(mode) {
		e.refcount.Add(-1)
		return nil, ErrUnavailable
	}

	var rangeID uint64
	switch {
	case t.IsRangeWrite():
		b.ranges.addWriteLocked(t)
	case t.IsRangeRead():
		rangeID = b.nextRangeID.Add(1)
		b.ranges.addReadLocked(rangeID, t)
	}

	b.outstanding.Add(1)

	return &Permit[K, V]{
		token:   t,
		mode:    mode,
		issuer:  b,
		entry:   e,
		rangeID: rangeID,
	}, nil
}

// validateForMode rejects mode/token combinations the directory protocol
// cannot service: a range read token without an operator, or a range
// token with an operator used for a write.
func validateForMode[K comparable, V constraints.Ordered](t Token[K, V], mode Mode) error {
	if t.Kind() != KindRange {
		return nil
	}
	if mode == Read && !t.IsRangeRead() {
		return ErrOperatorMissing
	}
	if mode == Write && !t.IsRangeWrite() {
		return ErrInvalidRange
	}
	return nil
}

// Release consumes p, returned by a prior acquire on this broker. It is a
// usage error to release a permit issued by a different broker, to release
// the same permit twice, or to release a permit whose entry was already
// reclaimed.
func (b *Broker[K, V]) Release(p *Permit[K, V]) error {
	if p == nil {
		return ErrDoubleRelease
	}
	if p.issuer != any(b) {
		return ErrForeignPermit
	}
	if !p.released.CompareAndSwap(false, true) {
		return ErrDoubleRelease
	}
	if p.entry.isDead() {
		return ErrStalePermit
	}

	// Update range bookkeeping before decrementing refcount, so a
	// concurrent is-range-blocked test never observes a window where the
	// refcount is already gone but the blocking interval/point is still
	// listed.
	switch {
	case p.token.IsRangeWrite():
		b.ranges.removeWriteLocked(p.token)
	case p.token.IsRangeRead():
		b.ranges.removeReadLocked(p.token, p.rangeID)
	}

	ok := p.entry.unlock(p.mode)
	p.entry.refcount.Add(-1)
	b.outstanding.Add(-1)

	if !ok {
		return ErrEmptyModeRelease
	}
	return nil
}

// Shutdown unregisters the broker from its reclaimer and rejects future
// acquires. Permits already outstanding may still be released.
func (b *Broker[K, V]) Shutdown() {
	if !b.closed.CompareAndSwap(false, true) {
		return
	}
	if b.unregister != nil {
		b.unregister()
	}
}

// Stats reports a point-in-time snapshot of broker occupancy, useful for
// diagnostics and tests; it is not part of the core locking contract.
type Stats struct {
	OutstandingPermits int64
}

// Stats returns a snapshot of the broker's current occupancy.
func (b *Broker[K, V]) Stats() Stats {
	return Stats{OutstandingPermits: b.outstanding.Load()}
}
