package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/trustedlogin/internal/cache"
	"github.com/dropDatabas3/trustedlogin/internal/clock"
)

func TestFixedWindow(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fake(time.Unix(1_700_000_080, 0))
	l := NewFixedWindow(cache.NewMemory(""), "", 2, time.Minute)
	l.Clock = clk

	for i := 0; i < 2; i++ {
		res, err := l.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}
	res, err := l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Equal(t, int64(0), res.Remaining)
	require.Equal(t, 20*time.Second, res.RetryAfter)

	other, err := l.Allow(ctx, "5.6.7.8")
	require.NoError(t, err)
	require.True(t, other.Allowed)

	// ventana nueva
	clk.Advance(30 * time.Second)
	res, err = l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.True(t, res.Allowed)
	require.Equal(t, int64(1), res.CurrentHits)
}
