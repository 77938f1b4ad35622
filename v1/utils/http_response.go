package utils

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gov-dx-sandbox/attribute-forms/v1/models"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ValidationResponse is returned when a submission is aborted. Input echoes
// the posted values so the form can be redisplayed.
type ValidationResponse struct {
	Errors []models.FieldError `json:"errors"`
	Input  map[string]string   `json:"input"`
}

// RespondWithJSON sends a JSON response with the given status code
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// headers are already written
		slog.Error("Failed to encode JSON response", "error", err, "statusCode", statusCode)
	}
}

// RespondWithError sends a JSON error response with the given status code
func RespondWithError(w http.ResponseWriter, statusCode int, errorCode models.ErrorCode, message string) {
	response := ErrorResponse{}
	response.Error.Code = string(errorCode)
	response.Error.Message = message

	RespondWithJSON(w, statusCode, response)
}

// RespondWithValidation sends 422 with the field errors and the echoed input
func RespondWithValidation(w http.ResponseWriter, errs []models.FieldError, input map[string]string) {
	if input == nil {
		input = map[string]string{}
	}
	RespondWithJSON(w, http.StatusUnprocessableEntity, ValidationResponse{Errors: errs, Input: input})
}
