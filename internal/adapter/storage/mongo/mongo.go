// Package mongo implements the repositories on MongoDB. Each settlement and
// pool wallet is keyed by _id so single-document writes give the required
// atomicity without transactions.
package mongo

import (
	"context"
	"fmt"
	"time"

	"fiat-token-bridge/config"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	collPoolWallets = "pool_wallets"
	collBindings    = "bindings"
	collSettlements = "settlements"
	collAuditLogs   = "audit_logs"
)

// Connect opens a client and verifies the primary is reachable.
func Connect(ctx context.Context, cfg config.MongoConfig, log zerolog.Logger) (*mongo.Client, *mongo.Database, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI).SetTimeout(timeout))
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("pinging mongo: %w", err)
	}

	log.Info().Str("database", cfg.Database).Msg("MongoDB connection established")
	return client, client.Database(cfg.Database), nil
}

// EnsureIndexes creates the secondary indexes the repositories rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		collBindings: {
			{Keys: bson.D{{Key: "connected_account_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "wallet_address", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		collPoolWallets: {
			{Keys: bson.D{{Key: "allocated", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		collSettlements: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "updated_at", Value: 1}}},
			{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}
	for coll, models := range specs {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("creating %s indexes: %w", coll, err)
		}
	}
	return nil
}

// HealthCheck implements ports.HealthChecker for MongoDB.
type HealthCheck struct {
	client *mongo.Client
}

func NewHealthCheck(client *mongo.Client) *HealthCheck {
	return &HealthCheck{client: client}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	return h.client.Ping(ctx, readpref.Primary())
}

func (h *HealthCheck) Name() string {
	return "mongodb"
}
