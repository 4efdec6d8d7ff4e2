package lockbroker

import (
	"sync/atomic"

	"golang.org/x/exp/constraints"
)

// Permit is the handle returned from a successful acquire. It is opaque
// apart from its [Permit.Token] and [Permit.Mode] accessors: beyond
// reading those, the only thing a caller does with it is pass it to
// [Broker.Release]. A Permit is consumed by exactly one Release call;
// releasing it again, or passing it to a broker other than the one that
// issued it, is a usage error.
//
// issuer holds the broker pointer (or the no-op broker's sentinel) boxed
// as an interface value so Release can compare identity without Permit
// itself needing a non-generic dependency on Broker.
type Permit[K comparable, V constraints.Ordered] struct {
	token   Token[K, V]
	mode    Mode
	issuer  any
	entry   *entry
	rangeID uint64

	released atomic.Bool
}

// Token reports the logical resource this permit holds.
func (p *Permit[K, V]) Token() Token[K, V] { return p.token }

// Mode reports the lock mode this permit was acquired under.
func (p *Permit[K, V]) Mode() Mode { return p.mode }
