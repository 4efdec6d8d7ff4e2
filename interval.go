package lockbroker

import "golang.org/x/exp/constraints"

// boundKind classifies an interval endpoint as finite or unbounded, so the
// range-block engine can reason about (-inf,+inf) style intervals for
// arbitrary ordered value domains without a sentinel value of V.
type boundKind int8

const (
	boundNegInf boundKind = -1
	boundFinite boundKind = 0
	boundPosInf boundKind = 1
)

type bound[V constraints.Ordered] struct {
	kind boundKind
	val  V
}

func negInf[V constraints.Ordered]() bound[V] { return bound[V]{kind: boundNegInf} }
func posInf[V constraints.Ordered]() bound[V] { return bound[V]{kind: boundPosInf} }
func finite[V constraints.Ordered](v V) bound[V] {
	return bound[V]{kind: boundFinite, val: v}
}

// cmp returns -1, 0, 1 as a.val compares to b.val, treating infinities as
// smaller/larger than every finite value.
func (a bound[V]) cmp(b bound[V]) int {
	if a.kind != b.kind {
		switch {
		case a.kind < b.kind:
			return -1
		case a.kind > b.kind:
			return 1
		}
	}
	if a.kind == boundFinite {
		switch {
		case a.val < b.val:
			return -1
		case a.val > b.val:
			return 1
		default:
			return 0
		}
	}
	return 0 // both the same infinity
}

// interval is a half-open/open/closed span [lo,hi] over an ordered value
// domain, the uniform representation every comparison operator lowers to.
type interval[V constraints.Ordered] struct {
	lo, hi             bound[V]
	loClosed, hiClosed bool
}

// contains reports whether v falls within the interval.
func (iv interval[V]) contains(v V) bool {
	fv := finite(v)

	switch iv.lo.cmp(fv) {
	case 1:
		return false
	case 0:
		if !iv.loClosed {
			return false
		}
	}

	switch fv.cmp(iv.hi) {
	case 1:
		return false
	case 0:
		if !iv.hiClosed {
			return false
		}
	}

	return true
}

// overlaps reports whether two intervals share at least one value.
func (iv interval[V]) overlaps(other interval[V]) bool {
	// iv.lo must be <= other.hi, and other.lo must be <= iv.hi, treating a
	// shared boundary as overlapping only if both sides are closed there.
	switch c := iv.lo.cmp(other.hi); {
	case c > 0:
		return false
	case c == 0 && !(iv.loClosed && other.hiClosed):
		return false
	}

	switch c := other.lo.cmp(iv.hi); {
	case c > 0:
		return false
	case c == 0 && !(other.loClosed && iv.hiClosed):
		return false
	}

	return true
}

// universe is the all-values interval (-inf,+inf).
func universe[V constraints.Ordered]() interval[V] {
	return interval[V]{lo: negInf[V](), hi: posInf[V](), loClosed: false, hiClosed: false}
}

// point is the degenerate closed interval [v,v].
func point[V constraints.Ordered](v V) interval[V] {
	fv := finite(v)
	return interval[V]{lo: fv, hi: fv, loClosed: true, hiClosed: true}
}

// operatorIntervals maps a comparison operator to the interval(s) it
// covers. It is only meaningful for tokens carrying a read operator (write
// tokens are always a single point, handled separately by the range-block
// engine).
func operatorIntervals[V constraints.Ordered](op Operator, lo, hi V, all bool, incl Inclusivity) []interval[V] {
	switch op {
	case OpEQ:
		return []interval[V]{point(lo)}
	case OpNEQ:
		return []interval[V]{
			{lo: negInf[V](), hi: finite(lo), loClosed: false, hiClosed: false},
			{lo: finite(lo), hi: posInf[V](), loClosed: false, hiClosed: false},
		}
	case OpLT:
		return []interval[V]{{lo: negInf[V](), hi: finite(lo), loClosed: false, hiClosed: false}}
	case OpLTE:
		return []interval[V]{{lo: negInf[V](), hi: finite(lo), loClosed: false, hiClosed: true}}
	case OpGT:
		return []interval[V]{{lo: finite(lo), hi: posInf[V](), loClosed: false, hiClosed: false}}
	case OpGTE:
		return []interval[V]{{lo: finite(lo), hi: posInf[V](), loClosed: true, hiClosed: false}}
	case OpBetween:
		if all {
			return []interval[V]{universe[V]()}
		}
		switch incl {
		case Open:
			return []interval[V]{{lo: finite(lo), hi: finite(hi), loClosed: false, hiClosed: false}}
		case HalfOpenLeft:
			return []interval[V]{{lo: finite(lo), hi: finite(hi), loClosed: true, hiClosed: false}}
		case HalfOpenRight:
			return []interval[V]{{lo: finite(lo), hi: finite(hi), loClosed: false, hiClosed: true}}
		default: // Closed
			return []interval[V]{{lo: finite(lo), hi: finite(hi), loClosed: true, hiClosed: true}}
		}
	case OpRegex, OpNotRegex:
		return []interval[V]{universe[V]()}
	default:
		return nil
	}
}
