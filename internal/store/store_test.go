package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNamespaced_PrefixesKeys(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	s := WithNamespace("acme", mem)

	require.NoError(t, s.Set(ctx, OptEndpoint, "abc123"))
	raw, err := mem.Get(ctx, "acme_endpoint")
	require.NoError(t, err)
	require.Equal(t, "abc123", raw)

	v, err := s.Get(ctx, OptEndpoint)
	require.NoError(t, err)
	require.Equal(t, "abc123", v)

	// otro namespace no ve la opción
	_, err = WithNamespace("other", mem).Get(ctx, OptEndpoint)
	require.True(t, IsNotFound(err))
}

func TestMemory_LastWriterWinsAndDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	s := WithNamespace("acme", NewMemory())

	require.NoError(t, s.Set(ctx, OptEndpoint, "first"))
	require.NoError(t, s.Set(ctx, OptEndpoint, "second"))
	v, _ := s.Get(ctx, OptEndpoint)
	require.Equal(t, "second", v)

	require.NoError(t, s.Delete(ctx, OptEndpoint))
	require.NoError(t, s.Delete(ctx, OptEndpoint))
	_, err := s.Get(ctx, OptEndpoint)
	require.ErrorIs(t, err, ErrNotFound)
}
