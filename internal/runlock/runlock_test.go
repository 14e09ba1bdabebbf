package runlock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()

	release, err := l.TryAcquire(ctx, "plan")
	require.NoError(t, err)

	_, err = l.TryAcquire(ctx, "plan")
	assert.ErrorIs(t, err, ErrBusy)

	other, err := l.TryAcquire(ctx, "other")
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))
	require.NoError(t, release(ctx), "release is idempotent")

	again, err := l.TryAcquire(ctx, "plan")
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestLocal_ReleaseTwiceDoesNotFreeNewHolder(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()

	first, err := l.TryAcquire(ctx, "plan")
	require.NoError(t, err)
	require.NoError(t, first(ctx))

	second, err := l.TryAcquire(ctx, "plan")
	require.NoError(t, err)
	defer second(ctx)

	require.NoError(t, first(ctx))
	_, err = l.TryAcquire(ctx, "plan")
	assert.ErrorIs(t, err, ErrBusy)
}
