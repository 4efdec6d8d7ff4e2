package lockbroker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_EnsureEntry_Rolls_Back_And_Retries_Against_A_Dead_Entry(t *testing.T) {
	t.Parallel()

	b := New[string, int]()
	defer b.Shutdown()

	tok := NewToken[string, int]("x")

	dead := b.lookupOrCreate(tok)
	dead.refcount.Store(deadRefcount)

	// Complete the reclaimer's conditional remove shortly afterwards, as a
	// real reclamation would, so ensureEntry first has to roll back against
	// the dead entry and retry before it can construct a fresh one.
	go func() {
		time.Sleep(10 * time.Millisecond)
		b.directory.CompareAndDelete(tok, dead)
	}()

	e, err := b.ensureEntry(context.Background(), tok)
	require.NoError(t, err)
	assert.NotSame(t, dead, e, "ensure-entry must never return a dead entry")
	assert.Equal(t, int64(1), e.refcount.Load())
}

func Test_EnsureEntry_Never_Resurrects_A_Reclaimed_Entry(t *testing.T) {
	// Regression for invariant 2: no reclaimed entry is ever handed out
	// again. Drive many goroutines racing ensureEntry against a reclaimer
	// sweeping aggressively; every entry ensureEntry returns must be live
	// at the moment of return, and distinct reclamation cycles for the
	// same token must produce distinct entry identities.
	r := NewReclaimer(time.Millisecond)
	defer r.Close()

	b := New[string, int](WithReclaimer[string, int](r))
	defer b.Shutdown()

	tok := NewToken[string, int]("contended")

	var mu sync.Mutex
	identities := map[*entry]struct{}{}

	var wg sync.WaitGroup
	const goroutines = 16
	const rounds = 100

	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for round := 0; round < rounds; round++ {
				e, err := b.ensureEntry(context.Background(), tok)
				if err != nil {
					t.Errorf("ensureEntry: %v", err)
					return
				}
				if e.isDead() {
					t.Errorf("ensureEntry returned a dead entry")
					return
				}

				mu.Lock()
				identities[e] = struct{}{}
				mu.Unlock()

				e.refcount.Add(-1)
			}
		}()
	}
	wg.Wait()

	b.reclaimPass()

	// With aggressive reclamation racing 1600 acquisitions on one
	// contended token, more than one entry identity should have been
	// constructed for it - otherwise the stress scenario never actually
	// exercised a reclaim-then-recreate cycle.
	assert.Greater(t, len(identities), 1)
}
