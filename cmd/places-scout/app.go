package main

import (
	"context"
	"fmt"

	"github.com/Sternrassler/places-scout/internal/config"
	"github.com/Sternrassler/places-scout/pkg/cache"
	"github.com/Sternrassler/places-scout/pkg/client"
	"github.com/Sternrassler/places-scout/pkg/pipeline"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// app holds the wired dependencies of one process.
type app struct {
	client   *client.Client
	redis    *redis.Client
	pipeline *pipeline.Pipeline
}

// newApp builds the Places client, the optional Redis detail cache and the
// pipeline from cfg.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	clientCfg := cfg.Client()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}

		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}

		clientCfg.Cache = cache.NewManager(redisClient, cfg.CacheTTL)
		log.Info().
			Str("addr", opts.Addr).
			Int("db", opts.DB).
			Dur("ttl", cfg.CacheTTL).
			Msg("Detail cache enabled")
	}

	placesClient, err := client.New(clientCfg)
	if err != nil {
		if redisClient != nil {
			redisClient.Close()
		}
		return nil, fmt.Errorf("create places client: %w", err)
	}

	return &app{
		client:   placesClient,
		redis:    redisClient,
		pipeline: pipeline.New(placesClient, placesClient, cfg.Pipeline()),
	}, nil
}

// Close releases the client and Redis connections.
func (a *app) Close() {
	a.client.Close()
	if a.redis != nil {
		a.redis.Close()
	}
}
