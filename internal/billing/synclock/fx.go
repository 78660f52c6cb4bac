package synclock

import (
	"github.com/medicore/medicore/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Module("billing.synclock",
	fx.Provide(NewFromConfig),
)

// NewFromConfig builds the locker when redis is configured; otherwise the
// nil locker degrades to unconditional grants.
func NewFromConfig(cfg config.Config) *Locker {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	return NewLocker(client)
}
