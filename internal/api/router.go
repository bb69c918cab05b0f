package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	apiMiddleware "github.com/phrazzld/runq/internal/api/middleware"
)

// RouterConfig holds the dependencies of the HTTP router.
type RouterConfig struct {
	Service TransferService
	Logger  *slog.Logger

	// Tokens authenticates /api requests. Nil leaves the API open.
	Tokens apiMiddleware.TokenValidator
}

// NewRouter builds the HTTP handler serving the transfer API.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(log))

	transfers := NewTransferHandler(cfg.Service, log)

	r.Get("/healthz", transfers.Health)

	r.Route("/api", func(r chi.Router) {
		if cfg.Tokens != nil {
			r.Use(apiMiddleware.NewAuthMiddleware(cfg.Tokens).Authenticate)
		}

		r.Get("/stats", transfers.GetStats)

		r.Route("/transfers", func(r chi.Router) {
			r.Post("/", transfers.CreateTransfer)
			r.Get("/", transfers.ListTransfers)
			r.Get("/{id}", transfers.GetTransfer)
			r.Delete("/{id}", transfers.CancelTransfer)
			r.Post("/{id}/retry", transfers.RetryTransfer)
		})
	})

	return r
}
