// Command cleanup runs one session retention purge and exits. Meant for cron
// or operational use when the in-process background loop is disabled.
package main

import (
	"context"
	"os"
	"time"

	"github.com/skillmatch/auth-service/internal/config"
	"github.com/skillmatch/auth-service/internal/database"
	"github.com/skillmatch/auth-service/internal/sessions"
	"github.com/skillmatch/auth-service/pkg/logger"
)

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client, err := database.ConnectMongo(ctx, cfg.MongoDB)
	if err != nil {
		logger.Fatalf("could not connect to MongoDB: %v", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	repo := sessions.NewMongoRepository(client.Database(cfg.MongoDB.Database).Collection("sessions"))
	svc := sessions.NewService(repo, cfg.Sessions)

	n, err := svc.Cleanup(ctx)
	if err != nil {
		logger.Fatalf("cleanup failed: %v", err)
	}
	logger.Infof("cleanup removed %d sessions", n)
}
