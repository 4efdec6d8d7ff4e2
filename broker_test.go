package lockbroker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lockbroker "github.com/lockbroker/broker"
)

// waitFor polls cond until it's true or the timeout elapses, failing the
// test otherwise. Used to observe another goroutine's blocked acquire
// without a race on its completion.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func Test_WriteLock_Excludes_Concurrent_ReadLock(t *testing.T) {
	t.Parallel()

	b := lockbroker.New[string, int]()
	defer b.Shutdown()

	tok := lockbroker.NewToken[string, int]("T1")

	pw, err := b.WriteLock(context.Background(), tok)
	require.NoError(t, err)

	_, err = b.TryReadLock(tok)
	assert.ErrorIs(t, err, lockbroker.ErrUnavailable)

	require.NoError(t, b.Release(pw))

	pr, err := b.TryReadLock(tok)
	require.NoError(t, err)
	require.NoError(t, b.Release(pr))
}

func Test_ReadLock_Allows_Concurrent_Readers_But_Excludes_Writer(t *testing.T) {
	t.Parallel()

	b := lockbroker.New[string, int]()
	defer b.Shutdown()

	tok := lockbroker.NewToken[string, int]("T2")

	pa, err := b.ReadLock(context.Background(), tok)
	require.NoError(t, err)
	pbRead, err := b.ReadLock(context.Background(), tok)
	require.NoError(t, err)

	_, err = b.TryWriteLock(tok)
	assert.ErrorIs(t, err, lockbroker.ErrUnavailable)

	require.NoError(t, b.Release(pa))
	require.NoError(t, b.Release(pbRead))

	pc, err := b.TryWriteLock(tok)
	require.NoError(t, err)
	require.NoError(t, b.Release(pc))
}

func Test_RangeReadLock_Blocks_Until_Overlapping_WriteLock_Releases(t *testing.T) {
	t.Parallel()

	b := lockbroker.New[string, int]()
	defer b.Shutdown()

	writeTok := lockbroker.NewRangeWriteToken[string, int]("k", 5)
	readTok, err := lockbroker.NewRangeBetweenToken[string, int]("k", 1, 10, lockbroker.Closed)
	require.NoError(t, err)

	pw, err := b.WriteLock(context.Background(), writeTok)
	require.NoError(t, err)

	readAcquired := make(chan *lockbroker.Permit[string, int], 1)
	go func() {
		p, err := b.ReadLock(context.Background(), readTok)
		if err == nil {
			readAcquired <- p
		}
	}()

	select {
	case <-readAcquired:
		t.Fatal("range read must not acquire while an overlapping write is held")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, b.Release(pw))

	select {
	case pr := <-readAcquired:
		require.NoError(t, b.Release(pr))
	case <-time.After(2 * time.Second):
		t.Fatal("range read never acquired after the conflicting write released")
	}
}

func Test_RangeWriteLock_Blocked_Only_By_Overlapping_RangeReadLock(t *testing.T) {
	t.Parallel()

	b := lockbroker.New[string, int]()
	defer b.Shutdown()

	readTok, err := lockbroker.NewRangeReadToken[string, int]("k", lockbroker.OpLT, 10)
	require.NoError(t, err)

	pr, err := b.ReadLock(context.Background(), readTok)
	require.NoError(t, err)

	_, err = b.TryWriteLock(lockbroker.NewRangeWriteToken[string, int]("k", 3))
	assert.ErrorIs(t, err, lockbroker.ErrUnavailable)

	p15, err := b.TryWriteLock(lockbroker.NewRangeWriteToken[string, int]("k", 15))
	require.NoError(t, err)

	require.NoError(t, b.Release(pr))
	require.NoError(t, b.Release(p15))

	p3, err := b.TryWriteLock(lockbroker.NewRangeWriteToken[string, int]("k", 3))
	require.NoError(t, err)
	require.NoError(t, b.Release(p3))
}

func Test_Reclaimer_Removes_Zero_Count_Entry_Without_Affecting_Later_Acquire(t *testing.T) {
	t.Parallel()

	reclaimer := lockbroker.NewReclaimer(20 * time.Millisecond)
	defer reclaimer.Close()

	b := lockbroker.New[string, int](lockbroker.WithReclaimer[string, int](reclaimer))
	defer b.Shutdown()

	tok := lockbroker.NewToken[string, int]("T3")

	p, err := b.WriteLock(context.Background(), tok)
	require.NoError(t, err)
	require.NoError(t, b.Release(p))

	waitFor(t, func() bool { return b.Stats().OutstandingPermits == 0 })
	time.Sleep(100 * time.Millisecond) // well past one reclaim cycle

	p2, err := b.WriteLock(context.Background(), tok)
	require.NoError(t, err)
	require.NoError(t, b.Release(p2))
}

func Test_SharedToken_Admits_Many_Writers_Concurrently_But_Excludes_Readers(t *testing.T) {
	t.Parallel()

	b := lockbroker.New[string, int]()
	defer b.Shutdown()

	tok := lockbroker.NewSharedToken[string, int]("T4")

	var permits []*lockbroker.Permit[string, int]
	for i := 0; i < 3; i++ {
		p, err := b.WriteLock(context.Background(), tok)
		require.NoError(t, err)
		permits = append(permits, p)
	}

	_, err := b.TryReadLock(tok)
	assert.ErrorIs(t, err, lockbroker.ErrUnavailable)

	for _, p := range permits {
		require.NoError(t, b.Release(p))
	}

	d1, err := b.TryReadLock(tok)
	require.NoError(t, err)
	d2, err := b.TryReadLock(tok)
	require.NoError(t, err)
	d3, err := b.TryReadLock(tok)
	require.NoError(t, err)

	_, err = b.TryWriteLock(tok)
	assert.ErrorIs(t, err, lockbroker.ErrUnavailable)

	require.NoError(t, b.Release(d1))
	require.NoError(t, b.Release(d2))
	require.NoError(t, b.Release(d3))
}

func Test_WriteLock_Returns_When_Context_Canceled_While_Blocked_On_Contended_Entry(t *testing.T) {
	t.Parallel()

	b := lockbroker.New[string, int]()
	defer b.Shutdown()

	tok := lockbroker.NewToken[string, int]("contended")

	holder, err := b.WriteLock(context.Background(), tok)
	require.NoError(t, err)
	defer b.Release(holder)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := b.WriteLock(ctx, tok)
		done <- err
	}()

	// Give the second WriteLock time to actually block on the held entry
	// before cancelling, so this exercises the blocked-inside-the-primitive
	// path rather than a check that only runs before contention.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("WriteLock never returned after its context was canceled")
	}
}

func Test_ReadLock_Returns_When_Context_Deadline_Exceeded_While_Blocked_On_Contended_Entry(t *testing.T) {
	t.Parallel()

	b := lockbroker.New[string, int]()
	defer b.Shutdown()

	tok := lockbroker.NewToken[string, int]("contended")

	holder, err := b.WriteLock(context.Background(), tok)
	require.NoError(t, err)
	defer b.Release(holder)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = b.ReadLock(ctx, tok)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, elapsed, 2*time.Second, "ReadLock should have given up at the deadline, not hung")
}

func Test_WriteLock_Succeeds_If_Contended_Entry_Frees_Before_Context_Deadline(t *testing.T) {
	t.Parallel()

	b := lockbroker.New[string, int]()
	defer b.Shutdown()

	tok := lockbroker.NewToken[string, int]("contended")

	holder, err := b.WriteLock(context.Background(), tok)
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		b.Release(holder)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	p, err := b.WriteLock(ctx, tok)
	require.NoError(t, err)
	require.NoError(t, b.Release(p))
}

func Test_Release_ForeignPermit_Is_A_Usage_Error(t *testing.T) {
	t.Parallel()

	a := lockbroker.New[string, int]()
	defer a.Shutdown()
	other := lockbroker.New[string, int]()
	defer other.Shutdown()

	tok := lockbroker.NewToken[string, int]("x")
	p, err := a.WriteLock(context.Background(), tok)
	require.NoError(t, err)

	err = other.Release(p)
	assert.ErrorIs(t, err, lockbroker.ErrForeignPermit)

	require.NoError(t, a.Release(p))
}

func Test_Release_Twice_Is_A_Usage_Error(t *testing.T) {
	t.Parallel()

	b := lockbroker.New[string, int]()
	defer b.Shutdown()

	tok := lockbroker.NewToken[string, int]("x")
	p, err := b.WriteLock(context.Background(), tok)
	require.NoError(t, err)

	require.NoError(t, b.Release(p))
	assert.ErrorIs(t, b.Release(p), lockbroker.ErrDoubleRelease)
}

func Test_WriteLock_Rejects_Range_Read_Token(t *testing.T) {
	t.Parallel()

	b := lockbroker.New[string, int]()
	defer b.Shutdown()

	readTok, err := lockbroker.NewRangeReadToken[string, int]("k", lockbroker.OpEQ, 1)
	require.NoError(t, err)

	_, err = b.WriteLock(context.Background(), readTok)
	assert.ErrorIs(t, err, lockbroker.ErrInvalidRange)
}

func Test_ReadLock_Rejects_Range_Write_Token(t *testing.T) {
	t.Parallel()

	b := lockbroker.New[string, int]()
	defer b.Shutdown()

	writeTok := lockbroker.NewRangeWriteToken[string, int]("k", 1)

	_, err := b.ReadLock(context.Background(), writeTok)
	assert.ErrorIs(t, err, lockbroker.ErrOperatorMissing)
}

func Test_Shutdown_Rejects_Future_Acquires_But_Allows_Release(t *testing.T) {
	t.Parallel()

	b := lockbroker.New[string, int]()
	tok := lockbroker.NewToken[string, int]("x")

	p, err := b.WriteLock(context.Background(), tok)
	require.NoError(t, err)

	b.Shutdown()

	_, err = b.TryWriteLock(lockbroker.NewToken[string, int]("y"))
	assert.ErrorIs(t, err, lockbroker.ErrShutdown)

	assert.NoError(t, b.Release(p))
}

func Test_Acquire_Concurrent_Stress_Refcount_Matches_Outstanding_Permits(t *testing.T) {
	b := lockbroker.New[string, int]()
	defer b.Shutdown()

	tok := lockbroker.NewToken[string, int]("contended")

	const goroutines = 32
	const iterations = 200

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				var p *lockbroker.Permit[string, int]
				var err error
				if (i+j)%2 == 0 {
					p, err = b.ReadLock(context.Background(), tok)
				} else {
					p, err = b.WriteLock(context.Background(), tok)
				}
				if err != nil {
					t.Errorf("acquire failed: %v", err)
					return
				}
				if err := b.Release(p); err != nil {
					t.Errorf("release failed: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(0), b.Stats().OutstandingPermits)
}
