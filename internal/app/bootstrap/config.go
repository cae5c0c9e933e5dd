// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/coordhub/internal/app/system/auditlog"
	"github.com/dalemusser/coordhub/internal/app/system/timeouts"
	"github.com/dalemusser/coordhub/internal/app/workflow/documents"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// Notification backends.
const (
	notifyLog   = "log"
	notifyRedis = "redis"
	notifyOff   = "off"
)

// appConfigKeys defines the configuration keys for coordhub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, notify_backend, etc.
//   - Environment variables: COORDHUB_MONGO_URI, COORDHUB_NOTIFY_BACKEND, etc.
//   - Command-line flags: --mongo_uri, --notify_backend, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "coordhub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "require_transactions", Default: true, Desc: "Fail workflow operations when the deployment cannot run transactions"},

	{Name: "status_refresh_interval", Default: "1m", Desc: "How often stored offering statuses are refreshed"},

	// Notifications
	{Name: "notify_backend", Default: notifyLog, Desc: "Notification backend: 'log', 'redis', or 'off'"},
	{Name: "redis_addr", Default: "localhost:6379", Desc: "Redis address for the redis notification backend"},
	{Name: "redis_channel", Default: "coordhub:events", Desc: "Redis pub/sub channel for workflow events"},
	{Name: "notify_queue_size", Default: 256, Desc: "Notification events buffered before new ones are dropped"},

	// Artifact metadata
	{Name: "artifact_max_bytes", Default: int(documents.DefaultPolicy.MaxBytes), Desc: "Largest accepted artifact size in bytes"},
	{Name: "artifact_content_types", Default: strings.Join(documents.DefaultPolicy.ContentTypes, ","), Desc: "Comma-separated accepted artifact content types"},

	// Deadlines
	{Name: "timeout_short", Default: "5s", Desc: "Deadline for single-document calls"},
	{Name: "timeout_medium", Default: "10s", Desc: "Deadline for lists and single-entity transitions"},
	{Name: "timeout_long", Default: "30s", Desc: "Deadline for multi-entity transactions"},

	// Audit logging
	{Name: "audit_log", Default: auditlog.ModeAll, Desc: "Workflow audit trail: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_token", Default: "", Desc: "Bearer token required by /audit; empty disables the endpoint"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// environment variables (WAFFLE_* for core, COORDHUB_* for app) and flags,
// merged with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "COORDHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:            appValues.String("mongo_uri"),
		MongoDatabase:       appValues.String("mongo_database"),
		MongoMaxPoolSize:    uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize:    uint64(appValues.Int("mongo_min_pool_size")),
		RequireTransactions: appValues.Bool("require_transactions"),

		StatusRefreshInterval: appValues.Duration("status_refresh_interval", time.Minute),

		NotifyBackend:   strings.ToLower(strings.TrimSpace(appValues.String("notify_backend"))),
		RedisAddr:       appValues.String("redis_addr"),
		RedisChannel:    appValues.String("redis_channel"),
		NotifyQueueSize: appValues.Int("notify_queue_size"),

		ArtifactMaxBytes:     int64(appValues.Int("artifact_max_bytes")),
		ArtifactContentTypes: splitList(appValues.String("artifact_content_types")),

		TimeoutShort:  appValues.Duration("timeout_short", timeouts.DefaultShort),
		TimeoutMedium: appValues.Duration("timeout_medium", timeouts.DefaultMedium),
		TimeoutLong:   appValues.Duration("timeout_long", timeouts.DefaultLong),

		AuditLog:   strings.ToLower(strings.TrimSpace(appValues.String("audit_log"))),
		AuditToken: strings.TrimSpace(appValues.String("audit_token")),
	}

	return coreCfg, appCfg, nil
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	switch appCfg.NotifyBackend {
	case notifyLog, notifyOff:
	case notifyRedis:
		if strings.TrimSpace(appCfg.RedisAddr) == "" {
			return fmt.Errorf("notify_backend %q requires redis_addr", notifyRedis)
		}
		if strings.TrimSpace(appCfg.RedisChannel) == "" {
			return fmt.Errorf("notify_backend %q requires redis_channel", notifyRedis)
		}
	default:
		return fmt.Errorf("unknown notify_backend %q (want log, redis or off)", appCfg.NotifyBackend)
	}

	if !auditlog.ValidMode(appCfg.AuditLog) {
		return fmt.Errorf("unknown audit_log mode %q (want all, db, log or off)", appCfg.AuditLog)
	}
	if appCfg.ArtifactMaxBytes <= 0 {
		return fmt.Errorf("artifact_max_bytes must be positive")
	}
	if len(appCfg.ArtifactContentTypes) == 0 {
		return fmt.Errorf("artifact_content_types must list at least one type")
	}
	if appCfg.MongoMinPoolSize > appCfg.MongoMaxPoolSize {
		return fmt.Errorf("mongo_min_pool_size (%d) exceeds mongo_max_pool_size (%d)",
			appCfg.MongoMinPoolSize, appCfg.MongoMaxPoolSize)
	}

	return nil
}
