package storage

import (
	"time"

	"github.com/medicore/medicore/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.storage",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config) (Resolver, error) {
	if cfg.Storage.Endpoint == "" {
		return NoOpResolver{}, nil
	}
	return NewMinio(Config{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		UseSSL:    cfg.Storage.UseSSL,
		Expiry:    time.Duration(cfg.Storage.PresignMinutes) * time.Minute,
	})
}
