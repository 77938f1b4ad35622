package handlers

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gov-dx-sandbox/attribute-forms/v1/models"
	"github.com/gov-dx-sandbox/attribute-forms/v1/services"
	"github.com/gov-dx-sandbox/attribute-forms/v1/utils"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// ResultsHandler serves stored submissions to the dashboard
type ResultsHandler struct {
	results *services.ResultsService
}

// NewResultsHandler creates a new results handler
func NewResultsHandler(results *services.ResultsService) *ResultsHandler {
	return &ResultsHandler{results: results}
}

// ListSubmissions handles GET /api/v1/form-types/{formTypeID}/submissions?limit=&offset=
func (h *ResultsHandler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "formTypeID")
	if !ok {
		return
	}
	query, err := pageQuery(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, models.ErrorCodeBadRequest, err.Error())
		return
	}

	table, err := h.results.SubmissionTable(r.Context(), id, query)
	if err != nil {
		respondWithServiceError(w, r, err, "list submissions")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, table)
}

// ExportCSV handles GET /api/v1/form-types/{formTypeID}/export.csv. Columns
// match ListSubmissions and every submission is included.
func (h *ResultsHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "formTypeID")
	if !ok {
		return
	}
	table, err := h.results.SubmissionTable(r.Context(), id, services.ResultsQuery{})
	if err != nil {
		respondWithServiceError(w, r, err, "export submissions")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="attribute-form-%d-submissions.csv"`, id))
	w.WriteHeader(http.StatusOK)

	out := csv.NewWriter(w)
	if err := out.Write(table.Header); err != nil {
		slog.Error("Failed to write CSV header", "formTypeID", id, "error", err)
		return
	}
	if err := out.WriteAll(table.Rows); err != nil {
		slog.Error("Failed to write CSV rows", "formTypeID", id, "error", err)
	}
}

// GetSubmission handles GET /api/v1/submissions/{submissionID}?raw=true
func (h *ResultsHandler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	id, ok := stringParam(w, r, "submissionID")
	if !ok {
		return
	}
	mode := models.RenderDisplay
	if raw, _ := strconv.ParseBool(r.URL.Query().Get("raw")); raw {
		mode = models.RenderRaw
	}
	sub, err := h.results.GetSubmission(r.Context(), id, mode)
	if err != nil {
		respondWithServiceError(w, r, err, "get submission")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, sub)
}

// UpdateSpam handles PATCH /api/v1/submissions/{submissionID}/spam
func (h *ResultsHandler) UpdateSpam(w http.ResponseWriter, r *http.Request) {
	id, ok := stringParam(w, r, "submissionID")
	if !ok {
		return
	}
	var req models.UpdateSpamRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.results.SetSpam(r.Context(), id, req.IsSpam); err != nil {
		respondWithServiceError(w, r, err, "update submission spam flag")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteSubmission handles DELETE /api/v1/submissions/{submissionID}
func (h *ResultsHandler) DeleteSubmission(w http.ResponseWriter, r *http.Request) {
	id, ok := stringParam(w, r, "submissionID")
	if !ok {
		return
	}
	if err := h.results.DeleteSubmission(r.Context(), id); err != nil {
		respondWithServiceError(w, r, err, "delete submission")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pageQuery(r *http.Request) (services.ResultsQuery, error) {
	q := services.ResultsQuery{Limit: defaultPageSize}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return q, fmt.Errorf("invalid limit: %q", v)
		}
		q.Limit = min(n, maxPageSize)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return q, fmt.Errorf("invalid offset: %q", v)
		}
		q.Offset = n
	}
	return q, nil
}
