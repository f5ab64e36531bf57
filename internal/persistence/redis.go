package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketdesk/internal/config"
	"github.com/spec-kit/ticketdesk/internal/repository"
)

const redisDialCheckTimeout = 2 * time.Second

// Redis holds the client behind persisted preferences: saved filters, role
// pins and the last session.
type Redis struct {
	Client redis.UniversalClient
	prefix string
}

// NewRedis builds a client for cfg.Addr, a comma-separated address list (one
// address for a single node, several for a cluster). An unreachable server is
// logged, not returned: preference writes fail soft.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *Redis {
	var addrs []string
	for _, addr := range strings.Split(cfg.Addr, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			addrs = append(addrs, addr)
		}
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    addrs,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisDialCheckTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Strings("addrs", addrs), zap.Error(err))
	} else {
		logger.Debug("connected to redis", zap.Strings("addrs", addrs))
	}

	return &Redis{Client: client, prefix: cfg.KeyPrefix}
}

// Preferences returns the preference repository under the configured key prefix.
func (r *Redis) Preferences() repository.PreferenceRepository {
	return repository.NewRedisPreferenceRepository(r.Client, r.prefix)
}

// Ping reports Redis reachability to the dev backend readiness probe.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}

func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}
