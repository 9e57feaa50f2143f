package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/trustedlogin/internal/clock"
)

func TestScheduleOnce_FiresOnceAtDeadline(t *testing.T) {
	clk := clock.Fake(time.Unix(1_700_000_000, 0))
	s := New(clk)

	var calls atomic.Int32
	var gotArgs []string
	s.Register("trustedlogin/acme/access/revoke", func(_ context.Context, args []string) error {
		calls.Add(1)
		gotArgs = args
		return nil
	})

	require.True(t, s.ScheduleOnce(clk.Now().Add(time.Hour), "trustedlogin/acme/access/revoke", "id-1"))
	// misma clave y args: duplicado
	require.False(t, s.ScheduleOnce(clk.Now().Add(2*time.Hour), "trustedlogin/acme/access/revoke", "id-1"))

	at, ok := s.Next("trustedlogin/acme/access/revoke", "id-1")
	require.True(t, ok)
	require.Equal(t, clk.Now().Add(time.Hour), at)

	clk.Advance(59 * time.Minute)
	require.Equal(t, int32(0), calls.Load())

	clk.Advance(time.Minute)
	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, []string{"id-1"}, gotArgs)
	require.Equal(t, 0, s.Len())

	clk.Advance(24 * time.Hour)
	require.Equal(t, int32(1), calls.Load())
}

func TestCancel_PreventsFire(t *testing.T) {
	clk := clock.Fake(time.Unix(0, 0))
	s := New(clk)
	var calls atomic.Int32
	s.Register("k", func(context.Context, []string) error { calls.Add(1); return nil })

	require.True(t, s.ScheduleOnce(clk.Now().Add(time.Minute), "k", "a"))
	require.True(t, s.Cancel("k", "a"))
	require.False(t, s.Cancel("k", "a"))

	clk.Advance(time.Hour)
	require.Equal(t, int32(0), calls.Load())

	// se puede volver a programar tras cancelar
	require.True(t, s.ScheduleOnce(clk.Now().Add(time.Minute), "k", "a"))
}

func TestScheduleOnce_PastDeadlineRunsSoon(t *testing.T) {
	clk := clock.Fake(time.Unix(1000, 0))
	s := New(clk)
	done := make(chan struct{})
	s.Register("k", func(context.Context, []string) error { close(done); return nil })

	require.True(t, s.ScheduleOnce(clk.Now().Add(-time.Second), "k"))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestClose_RejectsNewJobs(t *testing.T) {
	clk := clock.Fake(time.Unix(0, 0))
	s := New(clk)
	require.True(t, s.ScheduleOnce(clk.Now().Add(time.Minute), "k"))
	s.Close()
	require.Equal(t, 0, s.Len())
	require.False(t, s.ScheduleOnce(clk.Now().Add(time.Minute), "k"))
}
