package handlers

import (
	"net/http"

	"lexchat-backend/internal/models"
	"lexchat-backend/pkg/httputil"
)

// HandleHealth answers liveness probes.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, models.HealthResponse{OK: true, Status: "running"})
}
