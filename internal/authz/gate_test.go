package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/billing"
)

type staticMemberships map[string]Role

func (m staticMemberships) RoleOf(_ context.Context, actorID, scopeID string) (Role, error) {
	role, ok := m[actorID+"/"+scopeID]
	if !ok {
		return "", ErrNoMembership
	}
	return role, nil
}

type failingMemberships struct{ err error }

func (f failingMemberships) RoleOf(context.Context, string, string) (Role, error) {
	return "", f.err
}

func TestRoleHierarchy(t *testing.T) {
	require.True(t, RoleOwner.AtLeast(RoleViewer))
	require.True(t, RoleOwner.AtLeast(RoleOwner))
	require.True(t, RoleAdmin.AtLeast(RoleEditor))
	require.True(t, RoleEditor.AtLeast(RoleViewer))
	require.False(t, RoleViewer.AtLeast(RoleEditor))
	require.False(t, RoleEditor.AtLeast(RoleAdmin))
	require.False(t, Role("INTERN").AtLeast(RoleViewer))
	require.False(t, RoleViewer.AtLeast(Role("INTERN")))
}

func TestGateAllowsSufficientRole(t *testing.T) {
	gate := NewGate(staticMemberships{
		"alice/ws-1": RoleEditor,
	})

	require.NoError(t, gate.Check(context.Background(), "alice", "ws-1", RoleViewer))
	require.NoError(t, gate.Check(context.Background(), "alice", "ws-1", RoleEditor))
}

func TestGateRejectsInsufficientRole(t *testing.T) {
	gate := NewGate(staticMemberships{
		"alice/ws-1": RoleViewer,
	})

	err := gate.Check(context.Background(), "alice", "ws-1", RoleEditor)
	kind, ok := billing.KindOf(err)
	require.True(t, ok)
	require.Equal(t, billing.KindUnauthorized, kind)
}

func TestGateRejectsNonMember(t *testing.T) {
	gate := NewGate(staticMemberships{})

	err := gate.Check(context.Background(), "mallory", "ws-1", RoleViewer)
	kind, ok := billing.KindOf(err)
	require.True(t, ok)
	require.Equal(t, billing.KindUnauthorized, kind)
}

func TestGateMembershipIsPerWorkspace(t *testing.T) {
	gate := NewGate(staticMemberships{
		"alice/ws-1": RoleOwner,
	})

	err := gate.Check(context.Background(), "alice", "ws-2", RoleViewer)
	kind, ok := billing.KindOf(err)
	require.True(t, ok)
	require.Equal(t, billing.KindUnauthorized, kind)
}

func TestGateWrapsStoreFailures(t *testing.T) {
	boom := errors.New("connection reset")
	gate := NewGate(failingMemberships{err: boom})

	err := gate.Check(context.Background(), "alice", "ws-1", RoleViewer)
	kind, ok := billing.KindOf(err)
	require.True(t, ok)
	require.Equal(t, billing.KindStorageFailure, kind)
	require.ErrorIs(t, err, boom)
}
