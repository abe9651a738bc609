package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker()

	unlock, err := l.Acquire(ctx, "distribute:m1", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "distribute:m1", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	// Other keys are independent.
	unlockOther, err := l.Acquire(ctx, "distribute:m2", time.Minute)
	require.NoError(t, err)
	unlockOther()

	unlock()
	unlock()

	again, err := l.Acquire(ctx, "distribute:m1", time.Minute)
	require.NoError(t, err)
	again()
}

func TestLocalLockerStaleUnlock(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker()

	first, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	first()

	second, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	defer second()

	// A second call to an already-used unlock must not release someone else's hold.
	first()
	_, err = l.Acquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)
}
