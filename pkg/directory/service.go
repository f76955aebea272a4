package directory

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"

	"github.com/tendant/simple-session/pkg/errors"
)

// Service provides directory read operations for the gateway
type Service struct {
	repo Repository
}

// NewService creates a new directory service
func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
	}
}

// FindUser finds a user by id; (nil, nil) on miss
func (s *Service) FindUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.FindUser(ctx, id)
}

// GetProfile builds the non-sensitive projection of a user, resolving the
// organization name when the user belongs to one.
func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*UserView, error) {
	user, err := s.repo.FindUser(ctx, userID)
	if err != nil {
		return nil, errors.InternalWrap(err, "failed to look up user")
	}
	if user == nil {
		return nil, errors.NotFound("user", userID.String())
	}

	view := &UserView{}
	if err := copier.Copy(view, user); err != nil {
		return nil, errors.InternalWrap(err, "failed to project user")
	}

	if user.OrganizationID != nil {
		org, err := s.repo.FindOrganization(ctx, *user.OrganizationID)
		if err != nil {
			return nil, errors.InternalWrap(err, "failed to look up organization")
		}
		if org != nil {
			view.OrganizationName = &org.Name
		} else {
			slog.Warn("User references missing organization", "user_id", userID, "organization_id", *user.OrganizationID)
		}
	}

	return view, nil
}
