package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/docseal/docseal/internal/lock"
	"github.com/docseal/docseal/internal/repo"
	"github.com/docseal/docseal/pkg/errclass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupManager(t *testing.T) *lock.Manager {
	t.Helper()
	p, err := repo.Init(t.TempDir())
	require.NoError(t, err)
	return lock.NewManager(p).WithTimeout(100 * time.Millisecond)
}

func TestManager_AcquireRelease(t *testing.T) {
	m := setupManager(t)

	h, err := m.Acquire(context.Background(), "lock update")
	require.NoError(t, err)
	assert.Equal(t, "lock update", h.Info().Purpose)
	assert.NotEmpty(t, h.Info().Nonce)

	holder, err := m.Holder()
	require.NoError(t, err)
	require.NotNil(t, holder)
	assert.Equal(t, h.Info().Nonce, holder.Nonce)

	require.NoError(t, h.Release())
	require.NoError(t, h.Release(), "second release is a no-op")

	holder, err = m.Holder()
	require.NoError(t, err)
	assert.Nil(t, holder)
}

func TestManager_Conflict(t *testing.T) {
	m := setupManager(t)

	h, err := m.Acquire(context.Background(), "snapshot")
	require.NoError(t, err)
	defer h.Release()

	start := time.Now()
	_, err = m.Acquire(context.Background(), "heal")
	require.ErrorIs(t, err, errclass.ErrLockConflict)
	assert.Contains(t, err.Error(), "snapshot")
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestManager_AcquireAfterRelease(t *testing.T) {
	m := setupManager(t).WithTimeout(2 * time.Second)

	h, err := m.Acquire(context.Background(), "first")
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		h.Release()
	}()

	h2, err := m.Acquire(context.Background(), "second")
	require.NoError(t, err)
	require.NoError(t, h2.Release())
}

func TestManager_ContextCancelled(t *testing.T) {
	m := setupManager(t).WithTimeout(time.Minute)

	h, err := m.Acquire(context.Background(), "first")
	require.NoError(t, err)
	defer h.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Acquire(ctx, "second")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
