package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gov-dx-sandbox/attribute-forms/v1/models"
	"github.com/gov-dx-sandbox/attribute-forms/v1/utils"
	"gorm.io/gorm"
)

// HealthHandler reports service liveness
type HealthHandler struct {
	db *gorm.DB
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// HealthCheck handles GET /health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		utils.RespondWithError(w, http.StatusServiceUnavailable, models.ErrorCodeInternalError, "database unavailable")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
