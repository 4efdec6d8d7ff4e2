package lockbroker_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lockbroker "github.com/lockbroker/broker"
)

func Test_NoopBroker_Never_Blocks(t *testing.T) {
	t.Parallel()

	b := lockbroker.NewNoop[string, int]()
	defer b.Shutdown()

	tok := lockbroker.NewToken[string, int]("x")

	pw, err := b.WriteLock(context.Background(), tok)
	require.NoError(t, err)

	// A second write acquisition must also succeed immediately - the
	// no-op broker never tracks conflicts.
	pw2, err := b.WriteLock(context.Background(), tok)
	require.NoError(t, err)

	require.NoError(t, b.Release(pw))
	require.NoError(t, b.Release(pw2))
}

func Test_NoopBroker_Still_Catches_Double_Release(t *testing.T) {
	t.Parallel()

	b := lockbroker.NewNoop[string, int]()
	tok := lockbroker.NewToken[string, int]("x")

	p, err := b.TryReadLock(tok)
	require.NoError(t, err)

	require.NoError(t, b.Release(p))
	assert.ErrorIs(t, b.Release(p), lockbroker.ErrDoubleRelease)
}

func Test_NoopBroker_Rejects_Foreign_Permit(t *testing.T) {
	t.Parallel()

	a := lockbroker.NewNoop[string, int]()
	other := lockbroker.NewNoop[string, int]()

	p, err := a.TryWriteLock(lockbroker.NewToken[string, int]("x"))
	require.NoError(t, err)

	assert.ErrorIs(t, other.Release(p), lockbroker.ErrForeignPermit)
}
