package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gov-dx-sandbox/attribute-forms/shared/monitoring"
	"github.com/gov-dx-sandbox/attribute-forms/v1/models"
	"github.com/gov-dx-sandbox/attribute-forms/v1/utils"
)

// maxBodyBytes bounds every request body the API reads
const maxBodyBytes = 1 << 20

// decodeJSON reads the request body into target, answering 400 on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	defer r.Body.Close()
	if err := decodeJSONBody(w, r, target); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, models.ErrorCodeBadRequest, err.Error())
		return false
	}
	return true
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, target any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(target); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// uintParam parses a numeric chi URL parameter
func uintParam(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		utils.RespondWithError(w, http.StatusBadRequest, models.ErrorCodeBadRequest, fmt.Sprintf("invalid %s: %q", name, raw))
		return 0, false
	}
	return uint(id), true
}

// stringParam returns a required chi URL parameter
func stringParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	value := chi.URLParam(r, name)
	if value == "" {
		utils.RespondWithError(w, http.StatusBadRequest, models.ErrorCodeBadRequest, name+" is required")
		return "", false
	}
	return value, true
}

// respondWithServiceError maps a service error to its HTTP status
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	var problems models.ValidationErrors
	switch {
	case errors.As(err, &problems):
		utils.RespondWithError(w, http.StatusBadRequest, models.ErrorCodeValidation, problems.Error())
	case errors.Is(err, models.ErrInvalidToken):
		utils.RespondWithError(w, http.StatusForbidden, models.ErrorCodeInvalidToken, "Invalid form token")
	case errors.Is(err, models.ErrFieldKeyNotFound),
		errors.Is(err, models.ErrFormTypeNotFound),
		errors.Is(err, models.ErrFormInstanceNotFound),
		errors.Is(err, models.ErrSubmissionNotFound):
		utils.RespondWithError(w, http.StatusNotFound, models.ErrorCodeNotFound, err.Error())
	case errors.Is(err, models.ErrFormTypeInUse),
		errors.Is(err, models.ErrFieldKeyHandleTaken),
		errors.Is(err, models.ErrFieldKeyImmutable):
		utils.RespondWithError(w, http.StatusConflict, models.ErrorCodeConflict, err.Error())
	case errors.Is(err, models.ErrUnknownAttributeType),
		errors.Is(err, models.ErrUnknownActionType),
		errors.Is(err, models.ErrInvalidActionConfig),
		errors.Is(err, models.ErrInvalidDefinition):
		utils.RespondWithError(w, http.StatusBadRequest, models.ErrorCodeBadRequest, err.Error())
	case r.Context().Err() != nil:
		slog.Warn("Request context cancelled during service call", "operation", operation, "error", r.Context().Err())
		utils.RespondWithError(w, http.StatusRequestTimeout, models.ErrorCodeInternalError, "Request timeout or cancelled")
	default:
		monitoring.Logger(r.Context(), "operation", operation).Error("Request failed",
			"path", r.URL.Path,
			"error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "An unexpected error occurred")
	}
}
