// internal/app/features/auditlog/routes.go
package auditlog

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes mounts the audit trail routes under the path where this router is
// mounted (typically "/audit" from bootstrap). Middlewares wrap every route.
func Routes(h *Handler, mw ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(mw...)
	r.Get("/", h.ServeList)
	r.Get("/requests/{id}", h.ServeRequest)
	return r
}
