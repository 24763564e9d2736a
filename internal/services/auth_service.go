package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/armada-chat/armada/internal/model"
	"github.com/armada-chat/armada/internal/repository"
	"github.com/armada-chat/armada/middleware/jwt"
)

// AuthService handles registration and login.
type AuthService struct {
	userRepo repository.IUserRepository
	tokens   *jwt.TokenManager
}

func NewAuthService(userRepo repository.IUserRepository, tokens *jwt.TokenManager) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		tokens:   tokens,
	}
}

// RegisterRequest carries a signup
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	FullName string `json:"full_name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest carries a login attempt
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse is returned on successful register or login
type AuthResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// Register creates an account and returns a fresh token
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: malformed email", ErrInvalidInput)
	}
	if len(req.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	if strings.TrimSpace(req.FullName) == "" {
		return nil, fmt.Errorf("%w: full name is required", ErrInvalidInput)
	}

	if _, err := s.userRepo.FindByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:             uuid.New(),
		Email:          email,
		FullName:       strings.TrimSpace(req.FullName),
		HashedPassword: string(hash),
		IsActive:       true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.tokens.GenerateToken(user.ID.String(), user.Email, user.IsAdmin)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{Token: token, User: user}, nil
}

// Login verifies credentials and returns a token
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, ErrUnauthorized
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}
	if user.IsBot {
		return nil, ErrReservedAccount
	}
	if bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)) != nil {
		return nil, ErrUnauthorized
	}

	token, err := s.tokens.GenerateToken(user.ID.String(), user.Email, user.IsAdmin)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{Token: token, User: user}, nil
}

// SeedBots ensures the reserved agent accounts exist. Safe to run on
// every startup.
func SeedBots(ctx context.Context, userRepo repository.IUserRepository, botIDs []uuid.UUID, name func(uuid.UUID) string) error {
	for _, id := range botIDs {
		if _, err := userRepo.FindByID(ctx, id); err == nil {
			continue
		} else if err != gorm.ErrRecordNotFound {
			return err
		}
		bot := &model.User{
			ID:       id,
			Email:    fmt.Sprintf("%s@armada.bot", strings.ReplaceAll(strings.ToLower(name(id)), " ", "-")),
			FullName: name(id),
			IsActive: true,
			IsBot:    true,
		}
		if err := userRepo.Create(ctx, bot); err != nil {
			return err
		}
	}
	return nil
}
