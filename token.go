package lockbroker

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// Kind discriminates which lock primitive a token maps to.
type Kind uint8

const (
	// KindOrdinary tokens map to the reader/writer-exclusion primitive:
	// many readers xor one writer.
	KindOrdinary Kind = iota

	// KindShared tokens map to the shared primitive: many readers xor many
	// writers, each mode excluding the other but not itself.
	KindShared

	// KindRange tokens carry a secondary-index key, an operator (reads
	// only), and one or two bound values, and are resolved through the
	// range-block engine before the normal directory protocol runs.
	KindRange
)

func (k Kind) String() string {
	switch k {
	case KindOrdinary:
		return "ordinary"
	case KindShared:
		return "shared"
	case KindRange:
		return "range"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Operator is a range-read predicate operator. It is the zero value
// (opNone) for write tokens, which carry a single point value and no
// operator.
type Operator uint8

const (
	opNone Operator = iota
	OpEQ
	OpNEQ
	OpLT
	OpLTE
	OpGT
	OpGTE
	OpBetween
	OpRegex
	OpNotRegex
)

func (o Operator) String() string {
	switch o {
	case opNone:
		return "none"
	case OpEQ:
		return "EQ"
	case OpNEQ:
		return "NEQ"
	case OpLT:
		return "LT"
	case OpLTE:
		return "LTE"
	case OpGT:
		return "GT"
	case OpGTE:
		return "GTE"
	case OpBetween:
		return "BETWEEN"
	case OpRegex:
		return "REGEX"
	case OpNotRegex:
		return "NOT_REGEX"
	default:
		return fmt.Sprintf("Operator(%d)", uint8(o))
	}
}

// Inclusivity selects which end(s) of a BETWEEN interval are closed.
type Inclusivity uint8

const (
	// Closed denotes [a,b].
	Closed Inclusivity = iota
	// Open denotes (a,b).
	Open
	// HalfOpenLeft denotes [a,b).
	HalfOpenLeft
	// HalfOpenRight denotes (a,b].
	HalfOpenRight
)

// Mode is the lock mode a permit was acquired under.
type Mode uint8

const (
	Read Mode = iota
	Write
)

func (m Mode) String() string {
	if m == Write {
		return "write"
	}
	return "read"
}

// Token names a logical resource: an individual record or field (Ordinary),
// a group resource that admits many concurrent same-mode holders (Shared),
// or a range predicate against a secondary-index key (Range).
//
// Token is a plain comparable struct - two tokens built from equal fields
// compare equal and hash to the same bucket, which is what makes it usable
// directly as a map key in the lock directory. This is the idiomatic-Go
// rendering of "tokens are compared by byte-for-byte equality of their
// canonical encoding": struct equality over comparable fields already is
// canonical value equality.
//
// K is the identity type for Ordinary/Shared tokens and the secondary-index
// key type for Range tokens. V is the type of values a Range token's
// operator compares against; it must be ordered because LT/GT/BETWEEN
// compare values against interval bounds.
type Token[K comparable, V constraints.Ordered] struct {
	kind Kind

	// ident is the opaque identity for Ordinary/Shared tokens, and the
	// secondary-index key for Range tokens.
	ident K

	op    Operator
	lo    V
	hi    V
	all   bool // BETWEEN over (-inf,+inf), the degenerate "all values" case
	incl  Inclusivity
}

// NewToken builds an Ordinary token identifying a single logical resource
// by an opaque, comparable identity.
func NewToken[K comparable, V constraints.Ordered](id K) Token[K, V] {
	return Token[K, V]{kind: KindOrdinary, ident: id}
}

// NewSharedToken builds a Shared token: structurally identical to an
// Ordinary token, but the directory instantiates the shared (reader-xor-writer,
// many-holders-per-mode) primitive for it instead.
func NewSharedToken[K comparable, V constraints.Ordered](id K) Token[K, V] {
	return Token[K, V]{kind: KindShared, ident: id}
}

// NewRangeWriteToken builds a Range token for a point write against key's
// secondary index: it carries no operator, only the single value being
// written.
func NewRangeWriteToken[K comparable, V constraints.Ordered](key K, value V) Token[K, V] {
	return Token[K, V]{kind: KindRange, ident: key, lo: value}
}

// NewRangeReadToken builds a Range token for a read predicate. op must be
// one of OpEQ, OpNEQ, OpLT, OpLTE, OpGT, OpGTE, OpRegex, or OpNotRegex;
// use [NewRangeBetweenToken] for OpBetween. OpEQ/OpNEQ/OpLT/OpLTE/OpGT/OpGTE
// require exactly one value; OpRegex/OpNotRegex require none (the value, if
// any, is ignored - they denote the all-values interval regardless).
func NewRangeReadToken[K comparable, V constraints.Ordered](key K, op Operator, value V) (Token[K, V], error) {
	switch op {
	case opNone, OpBetween:
		return Token[K, V]{}, fmt.Errorf("%w: operator %s requires NewRangeBetweenToken or carries no operator", ErrInvalidRange, op)
	case OpEQ, OpNEQ, OpLT, OpLTE, OpGT, OpGTE, OpRegex, OpNotRegex:
		return Token[K, V]{kind: KindRange, ident: key, op: op, lo: value}, nil
	default:
		return Token[K, V]{}, fmt.Errorf("%w: unknown operator %s", ErrInvalidRange, op)
	}
}

// NewRangeBetweenToken builds a Range token for a BETWEEN read predicate
// over [lo,hi] (or an open/half-open variant per incl).
func NewRangeBetweenToken[K comparable, V constraints.Ordered](key K, lo, hi V, incl Inclusivity) (Token[K, V], error) {
	if hi < lo {
		return Token[K, V]{}, fmt.Errorf("%w: BETWEEN hi < lo", ErrInvalidRange)
	}
	return Token[K, V]{kind: KindRange, ident: key, op: OpBetween, lo: lo, hi: hi, incl: incl}, nil
}

// NewRangeBetweenAllToken builds the degenerate BETWEEN that spans every
// value, i.e. BETWEEN applied with both bounds at infinity. It conflicts
// with every point write on the same key.
func NewRangeBetweenAllToken[K comparable, V constraints.Ordered](key K) Token[K, V] {
	return Token[K, V]{kind: KindRange, ident: key, op: OpBetween, all: true}
}

// Kind reports the token's kind.
func (t Token[K, V]) Kind() Kind { return t.kind }

// IsRangeRead reports whether t is a range token carrying a read operator.
func (t Token[K, V]) IsRangeRead() bool {
	return t.kind == KindRange && t.op != opNone
}

// IsRangeWrite reports whether t is a range token with no operator (a
// point write against the secondary index).
func (t Token[K, V]) IsRangeWrite() bool {
	return t.kind == KindRange && t.op == opNone
}

// intervals expands a range-read token into the concrete value intervals
// its operator denotes, per the canonical operator->interval mapping.
func (t Token[K, V]) intervals() []interval[V] {
	return operatorIntervals(t.op, t.lo, t.hi, t.all, t.incl)
}
