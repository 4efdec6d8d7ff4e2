// Package lockbroker provides an on-demand, reference-counted lock
// directory for locking logical resources that have no tangible in-memory
// object - individual records, record x field pairs, and range predicates
// over a secondary index.
//
// # Basic usage
//
//	b := lockbroker.New[string, int]()
//	defer b.Shutdown()
//
//	p, err := b.WriteLock(context.Background(), lockbroker.NewToken[string, int]("doc-42"))
//	if err != nil {
//	    // handle
//	}
//	defer b.Release(p)
//
// # Token kinds
//
// Ordinary tokens map to a reader/writer-exclusion primitive. Shared
// tokens map to a primitive that admits many concurrent holders of one
// mode while excluding the other mode entirely. Range tokens carry a
// secondary-index key, an operator, and one or two values, and are
// arbitrated against point writes on the same key before the normal
// directory protocol runs.
//
// # Concurrency
//
// All Broker methods are safe for concurrent use. The only background
// activity is the [Reclaimer]'s periodic sweep, which removes directory
// entries once their reference count returns to zero; it never blocks
// acquirers and is never blocked by them.
package lockbroker
