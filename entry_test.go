package lockbroker

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Entry_Ordinary_Lock_Unlock_Roundtrip(t *testing.T) {
	t.Parallel()

	e := newEntry(primOrdinary)
	require.True(t, e.tryLock(Write))
	assert.False(t, e.tryLock(Read))
	assert.True(t, e.unlock(Write))
}

func Test_Entry_Shared_Rejects_Mode_Mismatched_Unlock(t *testing.T) {
	t.Parallel()

	e := newEntry(primShared)
	require.True(t, e.tryLock(Write))
	assert.False(t, e.unlock(Read))
}

func Test_Entry_LockCtx_With_Nil_Ctx_Blocks_Unconditionally(t *testing.T) {
	t.Parallel()

	e := newEntry(primOrdinary)
	require.True(t, e.tryLock(Write))

	go func() {
		time.Sleep(10 * time.Millisecond)
		e.unlock(Write)
	}()

	require.NoError(t, e.lockCtx(nil, Write))
	e.unlock(Write)
}

func Test_Entry_LockCtx_Returns_CtxErr_For_Both_Primitive_Kinds(t *testing.T) {
	t.Parallel()

	for _, kind := range []primKind{primOrdinary, primShared} {
		e := newEntry(kind)
		require.True(t, e.tryLock(Write))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		err := e.lockCtx(ctx, Read)
		cancel()

		assert.ErrorIs(t, err, context.DeadlineExceeded)
		e.unlock(Write)
	}
}

func Test_Entry_IsDead_Only_After_Dead_Sentinel(t *testing.T) {
	t.Parallel()

	e := newEntry(primOrdinary)
	assert.False(t, e.isDead())

	e.refcount.Store(3)
	assert.False(t, e.isDead())

	e.refcount.Store(0)
	assert.False(t, e.isDead())

	e.refcount.Store(deadRefcount)
	assert.True(t, e.isDead())
	assert.Equal(t, int64(math.MinInt64), e.refcount.Load())
}
