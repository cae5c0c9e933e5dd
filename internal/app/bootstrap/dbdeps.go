// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/coordhub/internal/app/system/notify"
	"github.com/dalemusser/coordhub/internal/app/system/workers"
	"github.com/dalemusser/coordhub/internal/app/workflow/documents"
	"github.com/dalemusser/coordhub/internal/app/workflow/offerings"
	"github.com/dalemusser/coordhub/internal/app/workflow/requests"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
//
// WAFFLE passes DBDeps by value to every hook, so everything built after
// ConnectDB hangs off the Runtime pointer.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database
	Redis         *redis.Client // nil unless notify_backend is redis

	Runtime *Runtime
}

// Runtime is the set of services assembled in Startup.
type Runtime struct {
	Offerings *offerings.Manager
	Requests  *requests.Engine
	Documents *documents.Review

	Registry   *prometheus.Registry
	Dispatcher *notify.Dispatcher // nil when notifications are off
	Worker     *workers.Periodic
}
