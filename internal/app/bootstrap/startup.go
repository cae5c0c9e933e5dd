// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"time"

	"github.com/dalemusser/coordhub/internal/app/store/audit"
	metricsstore "github.com/dalemusser/coordhub/internal/app/store/metrics"
	"github.com/dalemusser/coordhub/internal/app/system/auditlog"
	"github.com/dalemusser/coordhub/internal/app/system/metrics"
	"github.com/dalemusser/coordhub/internal/app/system/notify"
	"github.com/dalemusser/coordhub/internal/app/system/tasks"
	"github.com/dalemusser/coordhub/internal/app/system/timeouts"
	"github.com/dalemusser/coordhub/internal/app/system/txn"
	"github.com/dalemusser/coordhub/internal/app/system/workers"
	"github.com/dalemusser/coordhub/internal/app/workflow/documents"
	"github.com/dalemusser/coordhub/internal/app/workflow/offerings"
	"github.com/dalemusser/coordhub/internal/app/workflow/requests"
	"github.com/dalemusser/waffle/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// configureTimeouts applies the configured deadlines. Zero values leave the
// current deadline in place.
func configureTimeouts(appCfg AppConfig) {
	timeouts.Configure(timeouts.Config{
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
		Long:   appCfg.TimeoutLong,
	})
}

// Startup assembles the workflow services after DB connections and schema
// setup are complete, and starts the background notifier and status worker.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	configureTimeouts(appCfg)

	rt := deps.Runtime
	db := deps.MongoDatabase

	rt.Registry = prometheus.NewRegistry()
	rt.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics.RegisterCollectors(rt.Registry)
	rt.Registry.MustRegister(metrics.NewCountsCollector(
		func(ctx context.Context, now time.Time) metricsstore.Counts {
			return metricsstore.FetchWorkflowCounts(ctx, db, now)
		},
		timeouts.Medium(),
	))

	pub := publisher(appCfg, deps, logger)
	if d, ok := pub.(*notify.Dispatcher); ok {
		rt.Dispatcher = d
		d.Start()
	}

	var auditStore *audit.Store
	if appCfg.AuditLog == auditlog.ModeAll || appCfg.AuditLog == auditlog.ModeDB {
		auditStore = audit.New(db)
	}
	trail := auditlog.New(auditStore, logger, appCfg.AuditLog)

	tx := txn.Runner{DB: db, Log: logger, Strict: appCfg.RequireTransactions}
	if !appCfg.RequireTransactions {
		logger.Warn("require_transactions is off; partial failures on a standalone server are not rolled back")
	}

	rt.Offerings = offerings.New(db, tx, logger,
		offerings.WithPublisher(pub),
		offerings.WithAudit(trail))
	rt.Requests = requests.New(db, tx, rt.Offerings, logger,
		requests.WithPublisher(pub),
		requests.WithAudit(trail))
	rt.Documents = documents.New(db, tx, logger,
		documents.WithPolicy(documents.Policy{
			MaxBytes:     appCfg.ArtifactMaxBytes,
			ContentTypes: appCfg.ArtifactContentTypes,
		}),
		documents.WithPublisher(pub),
		documents.WithAudit(trail))

	rt.Worker = workers.NewPeriodic(logger, timeouts.Long(),
		tasks.OfferingStatusJob(rt.Offerings, logger, appCfg.StatusRefreshInterval))
	rt.Worker.Start()

	logger.Info("coordhub services ready",
		zap.String("notify_backend", appCfg.NotifyBackend),
		zap.String("audit_log", appCfg.AuditLog),
		zap.Bool("require_transactions", appCfg.RequireTransactions))
	return nil
}

// publisher picks the notification path for the configured backend.
func publisher(appCfg AppConfig, deps DBDeps, logger *zap.Logger) notify.Publisher {
	var n notify.Notifier
	switch appCfg.NotifyBackend {
	case notifyOff:
		return notify.Nop{}
	case notifyRedis:
		n = notify.NewRedisNotifier(deps.Redis, appCfg.RedisChannel)
	default:
		n = notify.LogNotifier{Log: logger.Named("notify")}
	}
	return notify.NewDispatcher(n, logger, appCfg.NotifyQueueSize, timeouts.Short())
}
