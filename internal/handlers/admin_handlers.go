package handlers

import (
	"context"
	"net/http"

	"lexchat-backend/internal/models"
	"lexchat-backend/pkg/httputil"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type AdminService interface {
	ListUsers(ctx context.Context, search string) (*models.ListUsersResponse, error)
	UpdateUserPlan(ctx context.Context, userID uuid.UUID, plan string) (*models.AdminUserResponse, error)
}

type AdminHandler struct {
	adminService AdminService
	validate     *validator.Validate
	log          zerolog.Logger
}

func NewAdminHandler(adminSvc AdminService, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		adminService: adminSvc,
		validate:     newValidator(),
		log:          log.With().Str("handler", "admin").Logger(),
	}
}

// HandleListUsers handles GET /v1/admin/users?search=.
func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	resp, err := h.adminService.ListUsers(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		respondServiceError(w, h.log, err, "List users")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// HandleUpdateUserPlan handles PATCH /v1/admin/users/{userID}/plan.
func (h *AdminHandler) HandleUpdateUserPlan(w http.ResponseWriter, r *http.Request) {
	userID, ok := uuidParam(w, r, "userID")
	if !ok {
		return
	}

	var req models.UpdateUserPlanRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	resp, err := h.adminService.UpdateUserPlan(r.Context(), userID, req.Plan)
	if err != nil {
		respondServiceError(w, h.log, err, "Update plan")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}
