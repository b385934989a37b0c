package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/uma-arai/sbcntr-calendar/internal/model"
	"github.com/uma-arai/sbcntr-calendar/internal/repository"
)

// DeveloperService は開発者の参照を担当します
type DeveloperService struct {
	users repository.UserRepository
}

func NewDeveloperService(users repository.UserRepository) *DeveloperService {
	return &DeveloperService{users: users}
}

// GetDeveloper returns the user if it exists and has the DEV role.
func (s *DeveloperService) GetDeveloper(ctx context.Context, id uuid.UUID) (model.Developer, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return model.Developer{}, err
	}
	return ensureDeveloper(user)
}

// GetDeveloperByToken resolves a public calendar token.
func (s *DeveloperService) GetDeveloperByToken(ctx context.Context, token string) (model.Developer, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return model.Developer{}, model.NotFound("developer not found")
	}
	user, err := s.users.FindByPublicToken(ctx, token)
	if err != nil {
		return model.Developer{}, err
	}
	return ensureDeveloper(user)
}

func ensureDeveloper(user *model.Developer) (model.Developer, error) {
	if user.Role != model.RoleDev {
		return model.Developer{}, model.InvalidArgument("user is not a developer")
	}
	return *user, nil
}
