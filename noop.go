package lockbroker

import (
	"context"

	"golang.org/x/exp/constraints"
)

// NoopBroker trivially satisfies the same call shape as [Broker]: every
// acquire succeeds immediately with a sentinel permit, release is a no-op,
// and range-block never reports a conflict. It exists for isolation
// contexts that already own an exclusive snapshot and need no cross-goroutine
// locking, so caller code can stay broker-shaped without branching.
type NoopBroker[K comparable, V constraints.Ordered] struct{}

// NewNoop constructs a [NoopBroker].
func NewNoop[K comparable, V constraints.Ordered]() *NoopBroker[K, V] {
	return &NoopBroker[K, V]{}
}

func (b *NoopBroker[K, V]) ReadLock(_ context.Context, token Token[K, V]) (*Permit[K, V], error) {
	return b.sentinel(token, Read), nil
}

func (b *NoopBroker[K, V]) WriteLock(_ context.Context, token Token[K, V]) (*Permit[K, V], error) {
	return b.sentinel(token, Write), nil
}

func (b *NoopBroker[K, V]) TryReadLock(token Token[K, V]) (*Permit[K, V], error) {
	return b.sentinel(token, Read), nil
}

func (b *NoopBroker[K, V]) TryWriteLock(token Token[K, V]) (*Permit[K, V], error) {
	return b.sentinel(token, Write), nil
}

func (b *NoopBroker[K, V]) sentinel(token Token[K, V], mode Mode) *Permit[K, V] {
	return &Permit[K, V]{token: token, mode: mode, issuer: b}
}

// Release always succeeds for a permit issued by this NoopBroker; it is
// still a usage error to release a permit from a different issuer or to
// release the same permit twice, so caller bugs are still caught even when
// locking itself is disabled.
func (b *NoopBroker[K, V]) Release(p *Permit[K, V]) error {
	if p == nil {
		return ErrDoubleRelease
	}
	if p.issuer != any(b) {
		return ErrForeignPermit
	}
	if !p.released.CompareAndSwap(false, true) {
		return ErrDoubleRelease
	}
	return nil
}

func (b *NoopBroker[K, V]) Shutdown() {}

func (b *NoopBroker[K, V]) Stats() Stats { return Stats{} }
