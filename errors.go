package lockbroker

import "errors"

// Sentinel errors returned by broker operations.
//
// Callers should classify errors with [errors.Is]; usage errors are never
// retried internally and are always reported synchronously to the caller.
var (
	// ErrUnavailable is returned by TryReadLock/TryWriteLock when the lock
	// cannot be granted immediately. It is a normal result, not a fault -
	// the blocking variants would have waited instead.
	ErrUnavailable = errors.New("lockbroker: unavailable")

	// ErrForeignPermit is returned by Release when the permit was issued by
	// a different Broker instance.
	ErrForeignPermit = errors.New("lockbroker: permit issued by a different broker")

	// ErrStalePermit is returned by Release when the permit's entry has
	// already been reclaimed - this indicates a prior double-release or a
	// caller bug, since a live permit always keeps its entry's refcount
	// above zero.
	ErrStalePermit = errors.New("lockbroker: stale permit")

	// ErrDoubleRelease is returned when the same permit is released more
	// than once.
	ErrDoubleRelease = errors.New("lockbroker: permit already released")

	// ErrEmptyModeRelease is returned when releasing a shared-primitive
	// hold whose mode does not match any currently outstanding hold -
	// e.g. releasing a reader against a counter that is at zero or already
	// all-writers.
	ErrEmptyModeRelease = errors.New("lockbroker: release does not match an outstanding hold")

	// ErrOperatorMissing is returned at acquisition time for a range-read
	// token that carries no operator.
	ErrOperatorMissing = errors.New("lockbroker: range read token requires an operator")

	// ErrInvalidRange is returned when constructing a malformed range token,
	// e.g. a BETWEEN with hi < lo or an operator/value-count mismatch.
	ErrInvalidRange = errors.New("lockbroker: invalid range token")

	// ErrShutdown is returned by ReadLock, WriteLock, TryReadLock and
	// TryWriteLock after Shutdown has been called on the broker.
	ErrShutdown = errors.New("lockbroker: broker is shut down")
)
