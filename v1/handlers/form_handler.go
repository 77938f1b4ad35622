package handlers

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/gov-dx-sandbox/attribute-forms/v1/middleware"
	"github.com/gov-dx-sandbox/attribute-forms/v1/models"
	"github.com/gov-dx-sandbox/attribute-forms/v1/services"
	"github.com/gov-dx-sandbox/attribute-forms/v1/utils"
)

// Submitter runs the submission pipeline
type Submitter interface {
	Submit(ctx context.Context, instanceID string, req *models.SubmissionRequest) (*models.SubmissionResult, error)
}

// FormHandler serves the public side of a placed form: rendering and submitting
type FormHandler struct {
	renderer  *services.FormRenderer
	submitter Submitter
}

// NewFormHandler creates a new form handler
func NewFormHandler(renderer *services.FormRenderer, submitter Submitter) *FormHandler {
	return &FormHandler{renderer: renderer, submitter: submitter}
}

// RenderForm handles GET /api/v1/instances/{instanceID}/form
func (h *FormHandler) RenderForm(w http.ResponseWriter, r *http.Request) {
	id, ok := stringParam(w, r, "instanceID")
	if !ok {
		return
	}
	resp, err := h.renderer.Render(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, err, "render form")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

// Submit handles POST /api/v1/instances/{instanceID}/submit. The body is either
// JSON or the urlencoded/multipart post of the rendered form.
//
// A submission aimed at another form on the same page gets 204 and is
// otherwise ignored.
func (h *FormHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, ok := stringParam(w, r, "instanceID")
	if !ok {
		return
	}
	req, err := parseSubmission(w, r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, models.ErrorCodeBadRequest, err.Error())
		return
	}
	req.RemoteIP = middleware.ClientIP(r)

	result, err := h.submitter.Submit(r.Context(), id, req)
	switch {
	case errors.Is(err, models.ErrInstanceMismatch):
		w.WriteHeader(http.StatusNoContent)
		return
	case err != nil:
		respondWithServiceError(w, r, err, "submit form")
		return
	}

	if result.Outcome == models.OutcomeAborted {
		utils.RespondWithValidation(w, result.Errors, result.Input)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, result)
}

// parseSubmission reads a SubmissionRequest from a JSON or form body. Form
// fields named akID[<id>][value] are keyed by the field key ID; any other
// non-reserved field is taken as a field key handle.
func parseSubmission(w http.ResponseWriter, r *http.Request) (*models.SubmissionRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req models.SubmissionRequest
		defer r.Body.Close()
		if err := decodeJSONBody(w, r, &req); err != nil {
			return nil, err
		}
		if req.Values == nil {
			req.Values = map[string]string{}
		}
		return &req, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var err error
	if mediaType == "multipart/form-data" {
		err = r.ParseMultipartForm(maxBodyBytes)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return nil, fmt.Errorf("invalid form body: %w", err)
	}

	req := &models.SubmissionRequest{
		InstanceID:      r.PostForm.Get(models.InputInstanceID),
		FormTypeID:      r.PostForm.Get(models.InputFormTypeID),
		Token:           r.PostForm.Get(models.InputToken),
		CaptchaResponse: r.PostForm.Get(models.InputCaptcha),
		Values:          make(map[string]string),
	}
	for name, values := range r.PostForm {
		if len(values) == 0 {
			continue
		}
		switch name {
		case models.InputInstanceID, models.InputFormTypeID, models.InputToken, models.InputCaptcha:
			continue
		}
		if id, ok := fieldKeyIDFromInput(name); ok {
			req.Values[id] = values[0]
			continue
		}
		if !strings.Contains(name, "[") {
			req.Values[name] = values[0]
		}
	}
	return req, nil
}

// fieldKeyIDFromInput extracts <id> from akID[<id>][value]
func fieldKeyIDFromInput(name string) (string, bool) {
	rest, ok := strings.CutPrefix(name, "akID[")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "][value]")
	if !ok || id == "" {
		return "", false
	}
	for _, c := range id {
		if c < '0' || c > '9' {
			return "", false
		}
	}
	return id, true
}
