// Package api wires the HTTP routes of the converter.
package api

import (
	"net/http"
	"time"

	"github.com/dvloznov/statement-converter/internal/api/handlers"
	"github.com/dvloznov/statement-converter/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Options configures NewRouter.
type Options struct {
	MaxUploadBytes int64
	Metrics        http.Handler // served on /metrics when set
	Requests       middleware.RequestRecorder
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(sess handlers.Session, opts Options, log zerolog.Logger) http.Handler {
	documents := handlers.NewDocumentsHandler(sess, opts.MaxUploadBytes)
	transactions := handlers.NewTransactionsHandler(sess)
	views := handlers.NewViewHandler(sess)

	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	if opts.Requests != nil {
		r.Use(middleware.Instrument(opts.Requests))
	}
	r.Use(middleware.CORS)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/documents", documents.UploadDocuments)
		r.Get("/documents", documents.ListDocuments)
		r.Get("/documents/{id}", documents.GetDocument)
		r.Delete("/documents/{id}", documents.DeleteDocument)

		r.Patch("/transactions/{id}", transactions.UpdateTransaction)
		r.Delete("/transactions/{id}", transactions.DeleteTransaction)

		r.Get("/view", views.GetView)
		r.Put("/view", views.Select)
		r.Get("/export", views.Export)
		r.Delete("/notice", views.ClearNotice)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})

	return r
}
