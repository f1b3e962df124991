package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lexchat-backend/internal/auth"
	"lexchat-backend/internal/config"
	"lexchat-backend/internal/models"
	"lexchat-backend/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type AuthService struct {
	store store.Store
	cfg   *config.Config
	log   zerolog.Logger
}

func NewAuthService(s store.Store, cfg *config.Config, log zerolog.Logger) *AuthService {
	return &AuthService{
		store: s,
		cfg:   cfg,
		log:   log.With().Str("component", "auth_service").Logger(),
	}
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// Register creates a free-tier user and returns an access token for it.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (string, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return "", fmt.Errorf("%w: email and password cannot be empty", ErrInvalidInput)
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		s.log.Error().Err(err).Str("email", email).Msg("hashing password failed")
		return "", ErrHashingPassword
	}

	var name *string
	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		trimmed := strings.TrimSpace(*req.Name)
		name = &trimmed
	}

	user, err := s.store.CreateUser(ctx, store.CreateUserParams{
		ID:             uuid.New(),
		Email:          email,
		Name:           name,
		HashedPassword: hashedPassword,
		Plan:           models.TierFree,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return "", ErrUserAlreadyExists
		}
		return "", fmt.Errorf("failed to create user: %w", err)
	}

	s.log.Info().Str("user_id", user.ID.String()).Msg("user registered")
	return s.issueToken(user)
}

// Login verifies user credentials and returns an access token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (string, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return "", ErrInvalidCredentials
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidCredentials // Don't reveal if user exists or password is wrong
		}
		return "", fmt.Errorf("failed to retrieve user: %w", err)
	}

	if !auth.CheckPasswordHash(req.Password, user.HashedPassword) {
		return "", ErrInvalidCredentials
	}

	s.log.Debug().Str("user_id", user.ID.String()).Msg("user logged in")
	return s.issueToken(user)
}

// Me describes the authenticated user with a normalized plan.
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*models.MeResponse, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}

	tier := user.Tier()
	return &models.MeResponse{
		ID:        user.ID,
		Email:     user.Email,
		Plan:      tier,
		PlanLabel: tier.Label(),
	}, nil
}

func (s *AuthService) issueToken(user *models.User) (string, error) {
	token, err := auth.NewAccessToken(user.ID, user.Email, s.cfg.JWTSecret, s.cfg.TokenExpiration)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID.String()).Msg("signing token failed")
		return "", ErrCreatingToken
	}
	return token, nil
}
