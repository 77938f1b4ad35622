package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gov-dx-sandbox/attribute-forms/v1/models"
	"github.com/gov-dx-sandbox/attribute-forms/v1/services"
	"github.com/gov-dx-sandbox/attribute-forms/v1/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// withURLParams attaches chi URL parameters to req
func withURLParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

type mockSubmitter struct {
	mock.Mock
}

func (m *mockSubmitter) Submit(ctx context.Context, instanceID string, req *models.SubmissionRequest) (*models.SubmissionResult, error) {
	args := m.Called(ctx, instanceID, req)
	result, _ := args.Get(0).(*models.SubmissionResult)
	return result, args.Error(1)
}

func TestHealthHandler_HealthCheck(t *testing.T) {
	db := services.SetupSQLiteTestDB(t)
	handler := NewHealthHandler(db)

	w := httptest.NewRecorder()
	handler.HealthCheck(w, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response["status"])

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	w = httptest.NewRecorder()
	handler.HealthCheck(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRespondWithServiceError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   models.ErrorCode
	}{
		{"Validation", models.ValidationErrors{"name is required"}, http.StatusBadRequest, models.ErrorCodeValidation},
		{"InvalidToken", fmt.Errorf("%w: expired", models.ErrInvalidToken), http.StatusForbidden, models.ErrorCodeInvalidToken},
		{"FieldKeyNotFound", fmt.Errorf("%w: 7", models.ErrFieldKeyNotFound), http.StatusNotFound, models.ErrorCodeNotFound},
		{"FormTypeNotFound", models.ErrFormTypeNotFound, http.StatusNotFound, models.ErrorCodeNotFound},
		{"InstanceNotFound", models.ErrFormInstanceNotFound, http.StatusNotFound, models.ErrorCodeNotFound},
		{"SubmissionNotFound", models.ErrSubmissionNotFound, http.StatusNotFound, models.ErrorCodeNotFound},
		{"FormTypeInUse", models.ErrFormTypeInUse, http.StatusConflict, models.ErrorCodeConflict},
		{"HandleTaken", fmt.Errorf("%w: email", models.ErrFieldKeyHandleTaken), http.StatusConflict, models.ErrorCodeConflict},
		{"Immutable", models.ErrFieldKeyImmutable, http.StatusConflict, models.ErrorCodeConflict},
		{"UnknownAttributeType", fmt.Errorf("%w: colour", models.ErrUnknownAttributeType), http.StatusBadRequest, models.ErrorCodeBadRequest},
		{"Other", errors.New("disk full"), http.StatusInternalServerError, models.ErrorCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			respondWithServiceError(w, httptest.NewRequest("GET", "/", nil), tt.err, "test")

			assert.Equal(t, tt.status, w.Code)
			var response utils.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, string(tt.code), response.Error.Code)
		})
	}

	t.Run("CancelledRequest", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		w := httptest.NewRecorder()
		respondWithServiceError(w, httptest.NewRequest("GET", "/", nil).WithContext(ctx), context.Canceled, "test")
		assert.Equal(t, http.StatusRequestTimeout, w.Code)
	})
}

func TestUintParam(t *testing.T) {
	for _, raw := range []string{"", "abc", "0", "-1"} {
		w := httptest.NewRecorder()
		_, ok := uintParam(w, withURLParams(httptest.NewRequest("GET", "/", nil), map[string]string{"formTypeID": raw}), "formTypeID")
		assert.False(t, ok, raw)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}

	w := httptest.NewRecorder()
	id, ok := uintParam(w, withURLParams(httptest.NewRequest("GET", "/", nil), map[string]string{"formTypeID": "42"}), "formTypeID")
	assert.True(t, ok)
	assert.Equal(t, uint(42), id)
}

func TestFieldKeyIDFromInput(t *testing.T) {
	tests := map[string]string{
		"akID[12][value]": "12",
		"akID[7][value]":  "7",
	}
	for input, expected := range tests {
		id, ok := fieldKeyIDFromInput(input)
		assert.True(t, ok, input)
		assert.Equal(t, expected, id)
	}

	for _, input := range []string{"akID[][value]", "akID[x1][value]", "akID[3]", "akID[3][atSelectOptionID]", "email"} {
		_, ok := fieldKeyIDFromInput(input)
		assert.False(t, ok, input)
	}
}

func TestParseSubmission(t *testing.T) {
	t.Run("URLEncoded", func(t *testing.T) {
		form := url.Values{
			"bID":               {"afi_1"},
			"aftID":             {"3"},
			"_token":            {"tok"},
			"ccmCaptchaCode":    {"abc"},
			"akID[12][value]":   {"Ann"},
			"message":           {"Hello"},
			"akID[12][other][]": {"ignored"},
		}
		req := httptest.NewRequest("POST", "/", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		parsed, err := parseSubmission(httptest.NewRecorder(), req)
		require.NoError(t, err)
		assert.Equal(t, "afi_1", parsed.InstanceID)
		assert.Equal(t, "3", parsed.FormTypeID)
		assert.Equal(t, "tok", parsed.Token)
		assert.Equal(t, "abc", parsed.CaptchaResponse)
		assert.Equal(t, map[string]string{"12": "Ann", "message": "Hello"}, parsed.Values)
	})

	t.Run("Multipart", func(t *testing.T) {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		require.NoError(t, mw.WriteField("bID", "afi_2"))
		require.NoError(t, mw.WriteField("akID[5][value]", "x@example.com"))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest("POST", "/", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())

		parsed, err := parseSubmission(httptest.NewRecorder(), req)
		require.NoError(t, err)
		assert.Equal(t, "afi_2", parsed.InstanceID)
		assert.Equal(t, "x@example.com", parsed.Values["5"])
	})

	t.Run("JSON", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"bID":"afi_3","_token":"tok"}`))
		req.Header.Set("Content-Type", "application/json; charset=utf-8")

		parsed, err := parseSubmission(httptest.NewRecorder(), req)
		require.NoError(t, err)
		assert.Equal(t, "afi_3", parsed.InstanceID)
		assert.NotNil(t, parsed.Values)
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"bID":`))
		req.Header.Set("Content-Type", "application/json")
		_, err := parseSubmission(httptest.NewRecorder(), req)
		assert.Error(t, err)
	})
}

func TestFormHandler_Submit(t *testing.T) {
	post := func(handler *FormHandler) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/api/v1/instances/afi_1/submit", strings.NewReader(`{"bID":"afi_1","values":{"name":"Ann"}}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", "198.51.100.4")
		req = withURLParams(req, map[string]string{"instanceID": "afi_1"})
		w := httptest.NewRecorder()
		handler.Submit(w, req)
		return w
	}
	fromClient := mock.MatchedBy(func(req *models.SubmissionRequest) bool {
		return req.RemoteIP == "198.51.100.4" && req.Values["name"] == "Ann"
	})

	t.Run("Completed", func(t *testing.T) {
		submitter := new(mockSubmitter)
		submitter.On("Submit", mock.Anything, "afi_1", fromClient).
			Return(&models.SubmissionResult{Outcome: models.OutcomeCompleted, SubmissionID: "afs_1", Message: "Thanks"}, nil)

		w := post(NewFormHandler(nil, submitter))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"outcome":"completed","submissionId":"afs_1","message":"Thanks"}`, w.Body.String())
		submitter.AssertExpectations(t)
	})

	t.Run("Aborted", func(t *testing.T) {
		submitter := new(mockSubmitter)
		submitter.On("Submit", mock.Anything, "afi_1", fromClient).Return(&models.SubmissionResult{
			Outcome: models.OutcomeAborted,
			Errors:  []models.FieldError{{Code: models.FieldErrorMissing, Message: "missing"}},
			Input:   map[string]string{"name": "Ann"},
		}, nil)

		w := post(NewFormHandler(nil, submitter))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		var response utils.ValidationResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.Len(t, response.Errors, 1)
		assert.Equal(t, "Ann", response.Input["name"])
	})

	t.Run("InstanceMismatch", func(t *testing.T) {
		submitter := new(mockSubmitter)
		submitter.On("Submit", mock.Anything, "afi_1", mock.Anything).Return(nil, models.ErrInstanceMismatch)

		w := post(NewFormHandler(nil, submitter))

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})

	t.Run("InvalidToken", func(t *testing.T) {
		submitter := new(mockSubmitter)
		submitter.On("Submit", mock.Anything, "afi_1", mock.Anything).Return(nil, fmt.Errorf("%w: bad signature", models.ErrInvalidToken))

		w := post(NewFormHandler(nil, submitter))

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestPageQuery(t *testing.T) {
	q, err := pageQuery(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, services.ResultsQuery{Limit: defaultPageSize}, q)

	q, err = pageQuery(httptest.NewRequest("GET", "/?limit=100000&offset=20", nil))
	require.NoError(t, err)
	assert.Equal(t, services.ResultsQuery{Limit: maxPageSize, Offset: 20}, q)

	for _, raw := range []string{"?limit=0", "?limit=x", "?offset=-1"} {
		_, err := pageQuery(httptest.NewRequest("GET", "/"+raw, nil))
		assert.Error(t, err, raw)
	}
}
