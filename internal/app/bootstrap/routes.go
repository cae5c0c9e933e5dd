// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	auditfeature "github.com/dalemusser/coordhub/internal/app/features/auditlog"
	healthfeature "github.com/dalemusser/coordhub/internal/app/features/health"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler for this WAFFLE app.
//
// Workflow operations are called in-process; the router only carries the
// operational surface: health, the Prometheus scrape endpoint and, when an
// audit token is configured, the audit trail. The audit trail names actors
// and requests, so deployments also keep it on an internal listener.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	r := chi.NewRouter()

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, deps.Redis, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Workflow audit trail (read-only, bearer token)
	if appCfg.AuditToken != "" {
		auditHandler := auditfeature.NewHandler(deps.MongoDatabase, logger)
		r.Mount("/audit", auditfeature.Routes(auditHandler, auditfeature.RequireToken(appCfg.AuditToken)))
	} else {
		logger.Info("audit_token not set; /audit is not served")
	}

	if rt := deps.Runtime; rt != nil && rt.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(rt.Registry, promhttp.HandlerOpts{}))
	}

	return r, nil
}
