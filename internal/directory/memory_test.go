package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemory_PrincipalLifecycle(t *testing.T) {
	ctx := context.Background()
	d := NewMemory()

	id, err := d.CreatePrincipal(ctx, NewPrincipal{Username: "Acme Support", Email: "support@acme.test", Role: "editor"})
	require.NoError(t, err)

	_, err = d.CreatePrincipal(ctx, NewPrincipal{Username: "acme support", Role: "editor"})
	require.ErrorIs(t, err, ErrUsernameTaken)
	_, err = d.CreatePrincipal(ctx, NewPrincipal{Username: "other", Email: "SUPPORT@acme.test", Role: "editor"})
	require.ErrorIs(t, err, ErrEmailTaken)

	require.NoError(t, d.SetAttribute(ctx, id, "acme_id", "h1"))
	p, err := d.FindByAttribute(ctx, "acme_id", "h1")
	require.NoError(t, err)
	require.NotNil(t, p)
	require.Equal(t, id, p.ID)

	none, err := d.FindByAttribute(ctx, "acme_id", "nope")
	require.NoError(t, err)
	require.Nil(t, none)

	v, err := d.GetAttribute(ctx, id, "missing")
	require.NoError(t, err)
	require.Empty(t, v)

	ok, err := d.DeletePrincipal(ctx, id, "")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = d.DeletePrincipal(ctx, id, "")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemory_DeleteReassignsContent(t *testing.T) {
	ctx := context.Background()
	d := NewMemory()
	admin, _ := d.CreatePrincipal(ctx, NewPrincipal{Username: "admin", Role: "administrator"})
	sup, _ := d.CreatePrincipal(ctx, NewPrincipal{Username: "support", Role: "editor"})
	d.AssignContent(sup, "post-1")

	_, err := d.DeletePrincipal(ctx, sup, admin)
	require.NoError(t, err)
	require.Equal(t, []string{"post-1"}, d.Content(admin))
}

func TestMemory_CloneRoleStripsRemovedLast(t *testing.T) {
	ctx := context.Background()
	d := NewMemory()

	r, err := d.CloneRole(ctx, "acme-support", "Acme Support", "editor",
		[]string{"manage_options", "delete_users"}, []string{"delete_users"})
	require.NoError(t, err)
	require.True(t, r.Has("edit_posts"))
	require.True(t, r.Has("manage_options"))
	require.False(t, r.Has("delete_users"))

	_, err = d.CloneRole(ctx, "acme-support", "", "editor", nil, nil)
	require.ErrorIs(t, err, ErrRoleExists)
	_, err = d.CloneRole(ctx, "x", "", "ghost", nil, nil)
	require.ErrorIs(t, err, ErrRoleNotFound)

	// el rol base no se modifica
	base, _ := d.GetRole(ctx, "editor")
	require.False(t, base.Has("manage_options"))

	require.NoError(t, d.DeleteRole(ctx, "acme-support"))
	gone, err := d.GetRole(ctx, "acme-support")
	require.NoError(t, err)
	require.Nil(t, gone)
}

func TestMemory_HasCapability(t *testing.T) {
	ctx := context.Background()
	d := NewMemory()
	admin, _ := d.CreatePrincipal(ctx, NewPrincipal{Username: "admin", Role: "administrator"})
	ed, _ := d.CreatePrincipal(ctx, NewPrincipal{Username: "ed", Role: "editor"})

	ok, err := d.HasCapability(ctx, admin, "create_users")
	require.NoError(t, err)
	require.True(t, ok)
	ok, _ = d.HasCapability(ctx, ed, "create_users")
	require.False(t, ok)
	_, err = d.HasCapability(ctx, "ghost", "read")
	require.ErrorIs(t, err, ErrPrincipalNotFound)
}
