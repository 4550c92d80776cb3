package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"pii-vault-engine/internal/middleware"
)

// NewRouter はルーターを生成する。
func NewRouter(h *TransitHandler, token string) http.Handler {
	r := chi.NewRouter()

	// ミドルウェア
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Vault transit互換のルート定義
	r.Route("/v1/{mount}", func(r chi.Router) {
		r.Use(middleware.RequireToken(token))
		r.Post("/keys/{name}", h.CreateKey)
		r.Post("/keys/{name}/config", h.UpdateKeyConfig)
		r.Delete("/keys/{name}", h.DeleteKey)
		r.Get("/export/encryption-key/{name}", h.ExportKey)
	})

	return otelhttp.NewHandler(r, "devvault")
}
