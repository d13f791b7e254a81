package auth

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ledgerline/ledgerline/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Workspaces lists the workspaces the user may act in.
func (s *Service) Workspaces(ctx context.Context, userID string) ([]Workspace, error) {
	return s.repo.ListWorkspaces(ctx, userID)
}

// SwitchWorkspace verifies the user is a member of the target workspace.
func (s *Service) SwitchWorkspace(ctx context.Context, userID, workspaceID string) (*Workspace, error) {
	workspaces, err := s.repo.ListWorkspaces(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, ws := range workspaces {
		if ws.ID == workspaceID {
			return &ws, nil
		}
	}
	return nil, shared.ErrNotFound
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID string, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}
