// Package billing wires the hospital billing subsystem.
package billing

import (
	"github.com/medicore/medicore/internal/billing/merge"
	"github.com/medicore/medicore/internal/billing/service"
	"github.com/medicore/medicore/internal/billing/synclock"
	"github.com/medicore/medicore/internal/providers/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("billing",
	synclock.Module,
	fx.Provide(
		newMerger,
		service.NewService,
	),
)

func newMerger(resolver storage.Resolver, log *zap.Logger) *merge.Merger {
	return merge.New(resolver, log)
}
