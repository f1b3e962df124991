package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lexchat-backend/internal/models"
	"lexchat-backend/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AdminService backs the API-key protected user administration endpoints.
type AdminService struct {
	store store.Store
	log   zerolog.Logger
}

func NewAdminService(s store.Store, log zerolog.Logger) *AdminService {
	return &AdminService{
		store: s,
		log:   log.With().Str("component", "admin_service").Logger(),
	}
}

func toAdminUser(u models.User) models.AdminUserResponse {
	return models.AdminUserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Plan:      u.Tier(),
		CreatedAt: u.CreatedAt,
	}
}

// ListUsers filters by email substring (case-insensitive) or exact id.
func (s *AdminService) ListUsers(ctx context.Context, search string) (*models.ListUsersResponse, error) {
	users, err := s.store.ListUsers(ctx, strings.TrimSpace(search))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	resp := &models.ListUsersResponse{
		Total: len(users),
		Users: make([]models.AdminUserResponse, 0, len(users)),
	}
	for _, u := range users {
		resp.Users = append(resp.Users, toAdminUser(u))
	}
	return resp, nil
}

// UpdateUserPlan stores the normalized plan.
func (s *AdminService) UpdateUserPlan(ctx context.Context, userID uuid.UUID, plan string) (*models.AdminUserResponse, error) {
	if strings.TrimSpace(plan) == "" {
		return nil, fmt.Errorf("%w: plan is empty", ErrInvalidInput)
	}
	tier := models.NormalizeTier(plan)

	user, err := s.store.UpdateUserPlan(ctx, userID, tier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update plan: %w", err)
	}

	s.log.Info().Str("user_id", userID.String()).Str("plan", string(tier)).Msg("plan updated")
	resp := toAdminUser(*user)
	return &resp, nil
}
