package lockdown

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/trustedlogin/internal/cache"
	"github.com/dropDatabas3/trustedlogin/internal/clock"
	"github.com/dropDatabas3/trustedlogin/internal/config/configtest"
	apperrors "github.com/dropDatabas3/trustedlogin/internal/errors"
	"github.com/dropDatabas3/trustedlogin/internal/events"
)

type call struct {
	path string
	body map[string]any
}

type fakeRemote struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (f *fakeRemote) Do(_ context.Context, _, path string, body any, _ ...string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, _ := body.(map[string]any)
	f.calls = append(f.calls, call{path: path, body: b})
	if f.err != nil {
		return nil, f.err
	}
	return map[string]any{"success": true}, nil
}

func (f *fakeRemote) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.path == path {
			n++
		}
	}
	return n
}

type fixture struct {
	checks *Checks
	remote *fakeRemote
	cache  cache.Client
	clk    *clock.FakeClock
	rec    *events.Recorder
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		remote: &fakeRemote{},
		cache:  cache.NewMemory(""),
		clk:    clock.Fake(time.Unix(1_700_000_000, 0)),
		rec:    &events.Recorder{},
	}
	f.checks = New(Deps{
		Config: configtest.New(t),
		Cache:  f.cache,
		Remote: f.remote,
		Events: f.rec,
		Clock:  f.clk,
	})
	f.checks.runAsync = func(fn func()) { fn() }
	return f
}

var info = RequestInfo{UserAgent: "curl/8", RemoteAddr: "8.8.8.8:5555"}

func TestVerify_PassesToRemote(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.checks.Verify(context.Background(), "0123456789abcdef0123456789abcdef", info))
	require.Equal(t, 1, f.remote.count("verify-identifier"))

	body := f.remote.calls[0].body
	require.Equal(t, "0123456789abcdef0123456789abcdef", body["identifier"])
	require.Equal(t, "8.8.8.8", body["user_ip"])
	require.Equal(t, "curl/8", body["user_agent"])
}

func TestVerify_ThresholdEntersLockdown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.checks.Verify(ctx, "id-1", info))
	require.NoError(t, f.checks.Verify(ctx, "id-2", info))

	err := f.checks.Verify(ctx, "id-3", info)
	require.ErrorIs(t, err, apperrors.ErrBruteForceDetected)
	require.Equal(t, 1, f.remote.count("report-brute-force"))
	require.Equal(t, []string{"trustedlogin/acme/lockdown/after"}, f.rec.Names())

	locked, err := f.checks.InLockdown(ctx)
	require.NoError(t, err)
	require.True(t, locked)

	verifyCalls := f.remote.count("verify-identifier")
	err = f.checks.Verify(ctx, "id-4", info)
	require.ErrorIs(t, err, apperrors.ErrInLockdown)
	require.Equal(t, verifyCalls, f.remote.count("verify-identifier"))

	_, err = f.cache.Get(ctx, "acme_used_accesskeys")
	require.True(t, cache.IsNotFound(err), "locked attempts are not counted")
}

func TestVerify_ReplicasShareUsedSet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	other := New(Deps{Config: configtest.New(t), Cache: f.cache, Remote: f.remote, Clock: f.clk})
	other.runAsync = func(fn func()) { fn() }

	require.NoError(t, f.checks.Verify(ctx, "id-1", info))
	require.NoError(t, other.Verify(ctx, "id-2", info))
	require.ErrorIs(t, f.checks.Verify(ctx, "id-3", info), apperrors.ErrBruteForceDetected)

	locked, err := other.InLockdown(ctx)
	require.NoError(t, err)
	require.True(t, locked)
}

func TestVerify_SameIdentifierCountsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, f.checks.Verify(ctx, "same", info))
	}
	locked, _ := f.checks.InLockdown(ctx)
	require.False(t, locked)
}

func TestVerify_WindowExpiresOldAttempts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.checks.Verify(ctx, "id-1", info))
	require.NoError(t, f.checks.Verify(ctx, "id-2", info))
	f.clk.Advance(11 * time.Minute)
	require.NoError(t, f.checks.Verify(ctx, "id-3", info))
}

func TestLockdown_ExpiresByTime(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.checks.Verify(ctx, "a", info))
	require.NoError(t, f.checks.Verify(ctx, "b", info))
	require.ErrorIs(t, f.checks.Verify(ctx, "c", info), apperrors.ErrBruteForceDetected)

	f.clk.Advance(19 * time.Minute)
	require.ErrorIs(t, f.checks.Verify(ctx, "d", info), apperrors.ErrInLockdown)

	f.clk.Advance(2 * time.Minute)
	require.NoError(t, f.checks.Verify(ctx, "d", info))
}

func TestVerify_RemoteErrorNeverLocks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.remote.err = errors.New("timeout")

	err := f.checks.Verify(ctx, "id-1", info)
	require.ErrorIs(t, err, apperrors.ErrRemoteRejected)
	locked, _ := f.checks.InLockdown(ctx)
	require.False(t, locked)
}

func TestVerify_BruteForceReportFailureNotPropagated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.checks.Verify(ctx, "a", info))
	require.NoError(t, f.checks.Verify(ctx, "b", info))
	f.remote.err = errors.New("down")
	require.ErrorIs(t, f.checks.Verify(ctx, "c", info), apperrors.ErrBruteForceDetected)
}

func TestClientIP(t *testing.T) {
	cases := map[string]string{
		"8.8.8.8:1234":         "8.8.8.8",
		"8.8.4.4":              "8.8.4.4",
		"[2606:4700::1111]:80": "2606:4700::1111",
		"10.0.0.1:80":          "",
		"127.0.0.1:80":         "",
		"192.168.1.1":          "",
		"100.64.0.1":           "",
		"203.0.113.7":          "",
		"::1":                  "",
		"garbage":              "",
		"":                     "",
	}
	for in, want := range cases {
		require.Equal(t, want, ClientIP(in), in)
	}
}

func TestTruncate(t *testing.T) {
	long := make([]rune, 300)
	for i := range long {
		long[i] = 'ñ'
	}
	require.Len(t, []rune(truncate(string(long), maxUserAgent)), maxUserAgent)
	require.Equal(t, "short", truncate("short", maxUserAgent))
}
