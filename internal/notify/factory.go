package notify

import (
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"cms-go/internal/cms"
	"cms-go/internal/config"
)

// NewNotifierFromConfig returns a Redis notifier when realtime updates are
// enabled and a no-op notifier otherwise.
func NewNotifierFromConfig(cfg *config.Config, logger cms.Logger) (cms.Notifier, error) {
	if !cfg.Remote.Realtime {
		return cms.NopNotifier{}, nil
	}
	n, err := NewRedisNotifierFromConfig(cfg.Realtime, logger)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// NewRedisNotifierFromConfig connects to the Redis server named in cfg.
func NewRedisNotifierFromConfig(cfg config.RealtimeConfig, logger cms.Logger) (*RedisNotifier, error) {
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("realtime updates require realtime.redis_addr: %w", cms.ErrConfig)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return NewRedisNotifier(client, logger), nil
}
