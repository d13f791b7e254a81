package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/billing"
)

// MembershipStore resolves the role an actor holds in a workspace.
type MembershipStore interface {
	RoleOf(ctx context.Context, actorID, scopeID string) (Role, error)
}

// ErrNoMembership indicates the actor holds no role in the workspace.
var ErrNoMembership = errors.New("authz: no membership")

// Gate enforces the membership hierarchy in front of document operations.
type Gate struct {
	store MembershipStore
}

// NewGate constructs a Gate over the given membership store.
func NewGate(store MembershipStore) *Gate {
	return &Gate{store: store}
}

// Check verifies the actor holds at least min in the workspace. Missing
// membership and insufficient role both map to the unauthorized kind so a
// caller cannot distinguish "not a member" from "not enough role".
func (g *Gate) Check(ctx context.Context, actorID, scopeID string, min Role) error {
	role, err := g.store.RoleOf(ctx, actorID, scopeID)
	if err != nil {
		if errors.Is(err, ErrNoMembership) {
			return billing.NewError(billing.KindUnauthorized, "not authorized for this workspace")
		}
		return billing.WrapError(billing.KindStorageFailure, "membership lookup failed", err)
	}
	if !role.AtLeast(min) {
		return billing.NewError(billing.KindUnauthorized, "not authorized for this workspace")
	}
	return nil
}

// PGMembershipStore resolves memberships from Postgres.
type PGMembershipStore struct {
	pool *pgxpool.Pool
}

// NewPGMembershipStore constructs a membership store over the pool.
func NewPGMembershipStore(pool *pgxpool.Pool) *PGMembershipStore {
	return &PGMembershipStore{pool: pool}
}

// RoleOf returns the actor's role in the workspace, or ErrNoMembership.
func (s *PGMembershipStore) RoleOf(ctx context.Context, actorID, scopeID string) (Role, error) {
	if s == nil || s.pool == nil {
		return "", fmt.Errorf("authz: membership store not initialised")
	}
	const query = `SELECT role FROM memberships WHERE user_id = $1 AND workspace_id = $2`
	var role Role
	if err := s.pool.QueryRow(ctx, query, actorID, scopeID).Scan(&role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNoMembership
		}
		return "", err
	}
	if !role.Valid() {
		return "", fmt.Errorf("authz: unknown role %q for user %s", role, actorID)
	}
	return role, nil
}
