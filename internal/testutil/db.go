// Package testutil provides MongoDB-backed helpers for package tests.
//
// Tests connect to COORDHUB_TEST_MONGO_URI (default mongodb://localhost:27017)
// and skip when nothing answers. Each test gets its own database, dropped on
// cleanup, with the production indexes already in place.
package testutil

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/coordhub/internal/app/system/indexes"
	"github.com/dalemusser/coordhub/internal/app/system/txn"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// DefaultTimeout bounds a single test's database work.
const DefaultTimeout = 30 * time.Second

var (
	clientOnce sync.Once
	client     *mongo.Client
	clientErr  error
)

func testURI() string {
	if uri := strings.TrimSpace(os.Getenv("COORDHUB_TEST_MONGO_URI")); uri != "" {
		return uri
	}
	return "mongodb://localhost:27017"
}

func sharedClient() (*mongo.Client, error) {
	clientOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		c, err := mongo.Connect(ctx, options.Client().
			ApplyURI(testURI()).
			SetServerSelectionTimeout(2*time.Second))
		if err != nil {
			clientErr = err
			return
		}
		if err := c.Ping(ctx, readpref.Primary()); err != nil {
			_ = c.Disconnect(context.Background())
			clientErr = err
			return
		}
		client = c
	})
	return client, clientErr
}

// TestContext returns a context bounded by DefaultTimeout.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), DefaultTimeout)
}

// SetupTestDB returns a fresh database for t, skipping the test when MongoDB
// is unreachable. The database is dropped when the test finishes.
func SetupTestDB(t *testing.T) *mongo.Database {
	t.Helper()

	c, err := sharedClient()
	if err != nil {
		t.Skipf("mongodb not available at %s: %v", testURI(), err)
	}

	db := c.Database("coordhub_test_" + primitive.NewObjectID().Hex())

	ctx, cancel := TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.Drop(ctx); err != nil {
			t.Logf("drop test database %s: %v", db.Name(), err)
		}
	})
	return db
}

// RequireTransactions skips t unless the deployment runs multi-document
// transactions (a replica set or sharded cluster).
func RequireTransactions(t *testing.T, db *mongo.Database) {
	t.Helper()

	ctx, cancel := TestContext()
	defer cancel()

	sess, err := db.Client().StartSession()
	if err != nil {
		t.Skipf("sessions not available: %v", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return db.Collection("txn_probe").InsertOne(sc, bson.M{"at": time.Now()})
	})
	if err != nil {
		if txn.IsNotSupported(err) {
			t.Skipf("transactions not supported: %v", err)
		}
		t.Fatalf("probe transaction: %v", err)
	}
}
