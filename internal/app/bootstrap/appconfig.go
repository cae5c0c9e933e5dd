// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers the
// framework-level settings (ports, TLS, log level); everything about the
// coordination workflow lives here.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI            string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase       string // Database name within MongoDB
	MongoMaxPoolSize    uint64
	MongoMinPoolSize    uint64
	RequireTransactions bool // refuse to run workflow operations without multi-document transactions

	// Background work
	StatusRefreshInterval time.Duration // how often stored offering statuses are rewritten

	// Notifications
	NotifyBackend   string // "log", "redis" or "off"
	RedisAddr       string // host:port, used when NotifyBackend is "redis"
	RedisChannel    string // pub/sub channel for workflow events
	NotifyQueueSize int    // events buffered before drops

	// Artifact metadata policy
	ArtifactMaxBytes     int64
	ArtifactContentTypes []string

	// Deadlines for store and workflow calls
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration

	// Workflow audit trail: "all" (db+log), "db", "log", or "off"
	AuditLog string
	// Bearer token for the /audit endpoints. Empty leaves them unmounted.
	AuditToken string
}
