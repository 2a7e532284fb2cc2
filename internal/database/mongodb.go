package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/skillmatch/auth-service/internal/config"
	"github.com/skillmatch/auth-service/pkg/logger"
)

// ConnectMongo opens a client and verifies the connection with a ping. The
// caller owns the client and should Disconnect it on shutdown.
func ConnectMongo(ctx context.Context, cfg config.MongoDBConfig) (*mongo.Client, error) {
	cctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	client, err := mongo.Connect(cctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(cctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// ConnectMongoWithRetry retries ConnectMongo with a fixed backoff so the
// service survives a database that comes up after it does.
func ConnectMongoWithRetry(ctx context.Context, cfg config.MongoDBConfig, attempts int, backoff time.Duration) (*mongo.Client, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		client, err := ConnectMongo(ctx, cfg)
		if err == nil {
			return client, nil
		}
		lastErr = err
		logger.Warnf("mongo connection attempt %d/%d failed: %v", i+1, attempts, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, lastErr
}
