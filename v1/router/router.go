package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gov-dx-sandbox/attribute-forms/shared/monitoring"
	"github.com/gov-dx-sandbox/attribute-forms/v1/handlers"
	"github.com/gov-dx-sandbox/attribute-forms/v1/middleware"
)

// Options tune the cross-cutting middleware
type Options struct {
	AllowedOrigins []string
	// SubmitRateLimit is the number of submissions per minute allowed from one IP, 0 disables
	SubmitRateLimit int
}

// V1Router handles all V1 API route registration
type V1Router struct {
	admin   *handlers.AdminHandler
	forms   *handlers.FormHandler
	results *handlers.ResultsHandler
	health  *handlers.HealthHandler
	opts    Options
}

// NewV1Router creates a new V1 router with all dependencies
func NewV1Router(
	admin *handlers.AdminHandler,
	forms *handlers.FormHandler,
	results *handlers.ResultsHandler,
	health *handlers.HealthHandler,
	opts Options,
) *V1Router {
	return &V1Router{admin: admin, forms: forms, results: results, health: health, opts: opts}
}

// Handler builds the complete HTTP handler
func (v *V1Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.PanicRecovery)
	r.Use(monitoring.TraceIDMiddleware)
	r.Use(middleware.RequestLogging)
	r.Use(monitoring.HTTPMetricsMiddleware)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.NewCORSMiddleware(v.opts.AllowedOrigins...))

	r.Get("/health", v.health.HealthCheck)
	r.Method(http.MethodGet, "/metrics", monitoring.Handler())

	r.Route("/api/v1", v.RegisterRoutes)
	return r
}

// RegisterRoutes registers all V1 API routes on r
func (v *V1Router) RegisterRoutes(r chi.Router) {
	r.Get("/attribute-types", v.admin.ListAttributeTypes)
	r.Get("/action-types", v.admin.ListActionTypes)

	r.Route("/field-keys", func(r chi.Router) {
		r.Get("/", v.admin.ListFieldKeys)
		r.Post("/", v.admin.CreateFieldKey)
		r.Get("/{key}", v.admin.GetFieldKey)
		r.Patch("/{key}", v.admin.UpdateFieldKey)
		r.Delete("/{key}", v.admin.DeleteFieldKey)
	})

	r.Route("/form-types", func(r chi.Router) {
		r.Get("/", v.admin.ListFormTypes)
		r.Post("/", v.admin.CreateFormType)
		r.Get("/{formTypeID}", v.admin.GetFormType)
		r.Put("/{formTypeID}", v.admin.UpdateFormType)
		r.Delete("/{formTypeID}", v.admin.DeleteFormType)
		r.Get("/{formTypeID}/instances", v.admin.ListFormInstances)
		r.Get("/{formTypeID}/submissions", v.results.ListSubmissions)
		r.Get("/{formTypeID}/export.csv", v.results.ExportCSV)
	})

	r.Route("/instances", func(r chi.Router) {
		r.Post("/", v.admin.CreateFormInstance)
		r.Get("/{instanceID}", v.admin.GetFormInstance)
		r.Put("/{instanceID}", v.admin.SaveFormInstance)
		r.Delete("/{instanceID}", v.admin.DeleteFormInstance)
		r.Post("/{instanceID}/duplicate", v.admin.DuplicateFormInstance)

		r.Get("/{instanceID}/form", v.forms.RenderForm)
		r.With(middleware.RateLimitMiddleware(v.opts.SubmitRateLimit, time.Minute)).
			Post("/{instanceID}/submit", v.forms.Submit)
	})

	r.Route("/submissions/{submissionID}", func(r chi.Router) {
		r.Get("/", v.results.GetSubmission)
		r.Delete("/", v.results.DeleteSubmission)
		r.Patch("/spam", v.results.UpdateSpam)
	})
}
