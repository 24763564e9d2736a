package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/armada-chat/armada/internal/model"
	"github.com/armada-chat/armada/internal/repository"
)

// UserService handles profiles, admin toggles and push subscriptions.
type UserService struct {
	userRepo repository.IUserRepository
	pushRepo repository.IPushRepository
}

func NewUserService(userRepo repository.IUserRepository, pushRepo repository.IPushRepository) *UserService {
	return &UserService{
		userRepo: userRepo,
		pushRepo: pushRepo,
	}
}

// Get returns one user's profile
func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err == gorm.ErrRecordNotFound {
		return nil, ErrNotFound
	}
	return user, err
}

// SetAdmin grants or revokes the admin flag; only admins may call it
func (s *UserService) SetAdmin(ctx context.Context, actorID, targetID uuid.UUID, isAdmin bool) error {
	actor, err := s.userRepo.FindByID(ctx, actorID)
	if err != nil {
		return ErrForbidden
	}
	if !actor.IsAdmin {
		return ErrForbidden
	}
	if _, err := s.userRepo.FindByID(ctx, targetID); err == gorm.ErrRecordNotFound {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	return s.userRepo.SetAdmin(ctx, targetID, isAdmin)
}

// Deactivate disables a target account; admin only
func (s *UserService) Deactivate(ctx context.Context, actorID, targetID uuid.UUID) error {
	actor, err := s.userRepo.FindByID(ctx, actorID)
	if err != nil || !actor.IsAdmin {
		return ErrForbidden
	}
	return s.userRepo.Deactivate(ctx, targetID)
}

// Subscribe registers a push endpoint for the user
func (s *UserService) Subscribe(ctx context.Context, userID uuid.UUID, endpoint string) (*model.PushSubscription, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, ErrInvalidInput
	}
	sub := &model.PushSubscription{
		ID:       uuid.New(),
		UserID:   userID,
		Endpoint: endpoint,
	}
	if err := s.pushRepo.Save(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Unsubscribe removes a push endpoint
func (s *UserService) Unsubscribe(ctx context.Context, userID uuid.UUID, endpoint string) error {
	return s.pushRepo.DeleteByEndpoint(ctx, userID, endpoint)
}

// Subscriptions lists the user's push endpoints
func (s *UserService) Subscriptions(ctx context.Context, userID uuid.UUID) ([]*model.PushSubscription, error) {
	return s.pushRepo.ListByUser(ctx, userID)
}
