package lockbroker

import (
	"sync"

	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slices"
)

// keyIntervals tracks the active range-read intervals for one secondary-
// index key. Adds are tagged with a caller-supplied id so a later remove
// can drop exactly the interval a given acquisition contributed, even when
// it overlaps intervals contributed by other concurrent readers.
//
// add/remove/contains for one key are serialized by a monitor (mu) - the
// outer per-key map is what's concurrent.
type keyIntervals[V constraints.Ordered] struct {
	mu    sync.Mutex
	spans []taggedInterval[V]
}

type taggedInterval[V constraints.Ordered] struct {
	id uint64
	iv interval[V]
}

// addAll registers every interval a single token contributes (more than
// one only for NEQ's two disjoint half-lines) under one id, so remove(id)
// drops all of them together.
func (k *keyIntervals[V]) addAll(id uint64, ivs []interval[V]) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, iv := range ivs {
		k.spans = append(k.spans, taggedInterval[V]{id: id, iv: iv})
	}
}

// remove drops every span previously added under id (addAll may have
// registered more than one, e.g. NEQ's two half-lines).
func (k *keyIntervals[V]) remove(id uint64) (empty bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.spans = slices.DeleteFunc(k.spans, func(t taggedInterval[V]) bool { return t.id == id })

	return len(k.spans) == 0
}

func (k *keyIntervals[V]) contains(v V) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, t := range k.spans {
		if t.iv.contains(v) {
			return true
		}
	}
	return false
}

// pointSet is a refcounted multiset of write-locked point values for one
// secondary-index key.
type pointSet[V constraints.Ordered] struct {
	mu     sync.Mutex
	counts map[V]int
}

func newPointSet[V constraints.Ordered]() *pointSet[V] {
	return &pointSet[V]{counts: make(map[V]int)}
}

func (p *pointSet[V]) add(v V) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.counts[v]++
}

// remove decrements v's count and reports whether the set is now empty.
func (p *pointSet[V]) remove(v V) (empty bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.counts[v] <= 1 {
		delete(p.counts, v)
	} else {
		p.counts[v]--
	}
	return len(p.counts) == 0
}

// snapshot returns a copy of the currently write-locked values, for
// NEQ/LT/GT-family blocking tests that must reason about the whole set.
func (p *pointSet[V]) snapshot() []V {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]V, 0, len(p.counts))
	for v := range p.counts {
		out = append(out, v)
	}
	return out
}

func (p *pointSet[V]) contains(v V) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.counts[v]
	return ok
}

func (p *pointSet[V]) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.counts)
}

// rangeBlockEngine holds two side tables keyed by secondary-index key -
// active read ranges, and active write points - queried before a
// range-token acquisition and updated immediately after acquisition/release.
type rangeBlockEngine[K comparable, V constraints.Ordered] struct {
	readRanges  sync.Map // map[K]*keyIntervals[V]
	writePoints sync.Map // map[K]*pointSet[V]

	// liveWritePoint reports whether a live directory entry still exists
	// for the write-range token (key, v). Wired by the owning Broker so
	// the LT/LTE/GT/GTE/BETWEEN read-block test can require that a
	// conflicting point write is still actively locked, not merely
	// recently seen.
	liveWritePoint func(key K, v V) bool
}

func newRangeBlockEngine[K comparable, V constraints.Ordered]() *rangeBlockEngine[K, V] {
	return &rangeBlockEngine[K, V]{}
}

func (e *rangeBlockEngine[K, V]) getOrCreateIntervals(key K) *keyIntervals[V] {
	if v, ok := e.readRanges.Load(key); ok {
		return v.(*keyIntervals[V])
	}
	v, _ := e.readRanges.LoadOrStore(key, &keyIntervals[V]{})
	return v.(*keyIntervals[V])
}

func (e *rangeBlockEngine[K, V]) getOrCreatePoints(key K) *pointSet[V] {
	if v, ok := e.writePoints.Load(key); ok {
		return v.(*pointSet[V])
	}
	v, _ := e.writePoints.LoadOrStore(key, newPointSet[V]())
	return v.(*pointSet[V])
}

// isBlocked implements the is-range-blocked(mode, token) test. Only
// meaningful for Range tokens; all other kinds are never blocked.
func (e *rangeBlockEngine[K, V]) isBlocked(mode Mode, t Token[K, V]) bool {
	if t.kind != KindRange {
		return false
	}

	if mode == Write {
		return e.writeBlocked(t.ident, t.lo)
	}
	return e.readBlocked(t)
}

func (e *rangeBlockEngine[K, V]) writeBlocked(key K, v V) bool {
	pv, ok := e.readRanges.Load(key)
	if !ok {
		return false
	}
	return pv.(*keyIntervals[V]).contains(v)
}

func (e *rangeBlockEngine[K, V]) readBlocked(t Token[K, V]) bool {
	key := t.ident

	pv, ok := e.writePoints.Load(key)
	if !ok {
		return false
	}
	points := pv.(*pointSet[V])

	switch t.op {
	case OpEQ:
		return points.contains(t.lo)

	case OpNEQ:
		snap := points.snapshot()
		if len(snap) == 0 {
			return false
		}
		if len(snap) > 1 {
			return true
		}
		return snap[0] != t.lo

	case OpRegex, OpNotRegex:
		return points.len() > 0

	default: // LT, LTE, GT, GTE, BETWEEN
		// Table membership alone is not taken as a conflict here: a
		// listed point only blocks if a live directory entry still exists
		// for its write-range token.
		candidates := t.intervals()
		for _, w := range points.snapshot() {
			for _, r := range candidates {
				if r.contains(w) && e.liveWritePoint != nil && e.liveWritePoint(key, w) {
					return true
				}
			}
		}
		return false
	}
}

// addReadLocked registers a range-read token's intervals in the read-range
// table under the caller-supplied id, which removeReadLocked takes on
// release.
func (e *rangeBlockEngine[K, V]) addReadLocked(id uint64, t Token[K, V]) {
	e.getOrCreateIntervals(t.ident).addAll(id, t.intervals())
}

func (e *rangeBlockEngine[K, V]) removeReadLocked(t Token[K, V], id uint64) {
	ki, ok := e.readRanges.Load(t.ident)
	if !ok {
		return
	}
	if ki.(*keyIntervals[V]).remove(id) {
		e.readRanges.CompareAndDelete(t.ident, ki)
	}
}

func (e *rangeBlockEngine[K, V]) addWriteLocked(t Token[K, V]) {
	e.getOrCreatePoints(t.ident).add(t.lo)
}

func (e *rangeBlockEngine[K, V]) removeWriteLocked(t Token[K, V]) {
	pv, ok := e.writePoints.Load(t.ident)
	if !ok {
		return
	}
	if pv.(*pointSet[V]).remove(t.lo) {
		e.writePoints.CompareAndDelete(t.ident, pv)
	}
}
