package providers

import (
	"github.com/medicore/medicore/internal/providers/email"
	"github.com/medicore/medicore/internal/providers/receipt"
	"github.com/medicore/medicore/internal/providers/storage"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	storage.Module,
	fx.Provide(receipt.New),
)
