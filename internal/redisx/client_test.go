package redisx

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuard(t *testing.T, ttl time.Duration) (*IdempotencyGuard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb, err := New(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return NewIdempotencyGuard(rdb, ttl), mr
}

func TestClaimOnce(t *testing.T) {
	g, _ := newGuard(t, time.Minute)
	ctx := context.Background()

	ok, err := g.Claim(ctx, "user-1", "form-abc")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Claim(ctx, "user-1", "form-abc")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = g.Claim(ctx, "user-2", "form-abc")
	require.NoError(t, err)
	assert.True(t, ok, "keys are scoped per user")
}

func TestReleaseAllowsRetry(t *testing.T) {
	g, _ := newGuard(t, time.Minute)
	ctx := context.Background()

	_, err := g.Claim(ctx, "u", "k")
	require.NoError(t, err)
	require.NoError(t, g.Release(ctx, "u", "k"))

	ok, err := g.Claim(ctx, "u", "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClaimExpires(t *testing.T) {
	g, mr := newGuard(t, time.Minute)
	ctx := context.Background()

	_, err := g.Claim(ctx, "u", "k")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	ok, err := g.Claim(ctx, "u", "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(context.Background(), addr, "", 0)
	assert.Error(t, err)
}
