package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/couchcryptid/coral-risk-etl/internal/adapter/copernicus"
	"github.com/couchcryptid/coral-risk-etl/internal/adapter/erddap"
	kafkaadapter "github.com/couchcryptid/coral-risk-etl/internal/adapter/kafka"
	"github.com/couchcryptid/coral-risk-etl/internal/adapter/telegram"
	"github.com/couchcryptid/coral-risk-etl/internal/config"
	"github.com/couchcryptid/coral-risk-etl/internal/domain"
	"github.com/couchcryptid/coral-risk-etl/internal/model"
	"github.com/couchcryptid/coral-risk-etl/internal/observability"
	"github.com/couchcryptid/coral-risk-etl/internal/pipeline"
	"github.com/couchcryptid/coral-risk-etl/internal/source"
	"github.com/couchcryptid/coral-risk-etl/internal/store"
)

// app holds the wired components shared by every subcommand.
type app struct {
	store     *store.Store
	pipeline  *pipeline.Pipeline
	status    *pipeline.StatusJob
	publisher *kafkaadapter.Publisher
	redis     *redis.Client
	logger    *slog.Logger
}

func newApp(ctx context.Context, cfg *config.Config, profile domain.Profile, logger *slog.Logger, metrics *observability.Metrics) (*app, error) {
	st, err := store.Open(ctx, store.Driver(cfg.DatabaseDriver), cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a := &app{store: st, logger: logger}

	opts := pipeline.Options{AlertMin: cfg.AlertMinLevel}
	if cfg.KafkaEnabled() {
		a.publisher = kafkaadapter.NewPublisher(cfg, logger)
		opts.Publisher = a.publisher
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}
	if cfg.TelegramEnabled() {
		n, err := telegram.NewNotifier(cfg.TelegramBotToken, cfg.TelegramChatID, "", profile.Site, logger)
		if err != nil {
			// alerts are optional; the run still persists
			logger.Warn("telegram alerts disabled", "error", err)
		} else {
			opts.Notifier = n
		}
	}

	loader, err := artifactLoader(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	scorer := pipeline.LoadScorer(ctx, loader, cfg.ModelPath, profile.Features, logger, metrics)
	reader := source.NewReader(cfg.DataDir, profile, logger, metrics)
	a.pipeline = pipeline.New(reader, scorer, st, profile, opts, logger, metrics)

	var cache erddap.Cache
	switch cfg.CacheDriver {
	case "memory":
		cache = erddap.NewLRUCache(cfg.CacheSize)
	case "redis":
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, cache lookups will miss", "addr", cfg.RedisAddr, "error", err)
		}
		cache = erddap.NewRedisCache(a.redis, cfg.CacheTTL, logger)
	}
	client := erddap.NewClient(erddap.Options{
		BaseURL:     cfg.ERDDAPURL,
		UserAgent:   cfg.ERDDAPUserAgent,
		Timeout:     cfg.ERDDAPTimeout,
		MaxAttempts: cfg.ERDDAPMaxAttempts,
		RetryDelay:  cfg.ERDDAPRetryDelay,
	}, profile.BBox, cache, logger, metrics)
	a.status = pipeline.NewStatusJob(client, copernicus.NewProvider(logger), st, profile, opts, logger, metrics)

	return a, nil
}

// artifactLoader only builds an S3 client when the model lives in a bucket.
func artifactLoader(ctx context.Context, cfg *config.Config) (*model.Loader, error) {
	if !strings.HasPrefix(cfg.ModelPath, "s3://") {
		return model.NewLoader(nil), nil
	}
	client, err := model.NewS3Client(ctx, model.S3Options{
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		PathStyle: cfg.S3PathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("model artifact client: %w", err)
	}
	return model.NewLoader(client), nil
}

// Close releases connections; errors are logged.
func (a *app) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Error("kafka publisher close error", "error", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", "error", err)
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("store close error", "error", err)
	}
}
