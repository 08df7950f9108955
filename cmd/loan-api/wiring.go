// cmd/loan-api/wiring.go
package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	awsclient "loan-api/internal/common/aws"
	"loan-api/internal/common/config"
	"loan-api/internal/common/database"
	"loan-api/internal/common/logger"
	"loan-api/internal/notification"
	"loan-api/internal/search"
	"loan-api/internal/store"
)

// buildRepository connects the configured storage backend. The returned
// func releases its connections.
func buildRepository(ctx context.Context, cfg *config.Config, zapLog *zap.Logger) (store.Repository, func(), error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		var pg *database.PostgresClient
		err := retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			if err := pg.Ping(ctx); err != nil {
				pg.Close()
				return err
			}
			return nil
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			return nil, nil, err
		}
		zapLog.Info("PostgreSQL connected successfully")

		repo := store.NewPostgresRepository(pg.DB)
		if err := repo.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return repo, func() { pg.Close() }, nil

	case config.BackendRedis:
		var rc *database.RedisClient
		err := retryWithBackoff(func() error {
			var err error
			rc, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			if err := rc.Ping(ctx); err != nil {
				rc.Close()
				return err
			}
			return nil
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			return nil, nil, err
		}
		zapLog.Info("Redis connected successfully")
		return store.NewRedisRepository(rc.Client), func() { rc.Close() }, nil

	default:
		return store.NewMemoryRepository(), func() {}, nil
	}
}

// buildListeners creates the search projection and the notifier when enabled.
func buildListeners(ctx context.Context, cfg *config.Config, log logger.Logger, zapLog *zap.Logger) ([]store.Listener, error) {
	var listeners []store.Listener

	if cfg.Search.Enabled {
		var esClient *database.ElasticsearchClient
		err := retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			return nil, err
		}
		zapLog.Info("Elasticsearch connected successfully", zap.String("index", cfg.Search.Index))
		listeners = append(listeners, search.NewIndexer(esClient.Client, cfg.Search.Index, log))
	}

	if cfg.Notifications.Enabled() {
		// Disabled channels must stay untyped nil interfaces.
		var sesSvc awsclient.SESService
		var snsSvc awsclient.SNSService

		if cfg.Notifications.Email.Enabled {
			c, err := awsclient.NewSESClient(ctx, cfg.Notifications.AWS.Region)
			if err != nil {
				return nil, fmt.Errorf("ses client: %w", err)
			}
			sesSvc = c
		}
		if cfg.Notifications.SNS.Enabled {
			c, err := awsclient.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
			if err != nil {
				return nil, fmt.Errorf("sns client: %w", err)
			}
			snsSvc = c
		}
		zapLog.Info("Notifications enabled",
			zap.Bool("email", cfg.Notifications.Email.Enabled),
			zap.Bool("sns", cfg.Notifications.SNS.Enabled),
		)
		listeners = append(listeners, notification.NewNotifier(cfg.Notifications, sesSvc, snsSvc, log))
	}

	return listeners, nil
}

// seedStore loads the demonstration records, from seed.file when set.
func seedStore(ctx context.Context, cfg config.SeedConfig, s *store.Store) error {
	if !cfg.Enabled {
		return nil
	}

	apps := store.DefaultSeed(time.Now())
	if cfg.File != "" {
		var err error
		apps, err = store.LoadSeedFile(cfg.File)
		if err != nil {
			return err
		}
	}
	return s.Seed(ctx, apps)
}
