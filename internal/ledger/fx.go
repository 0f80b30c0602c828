package ledger

import (
	"github.com/smallbiznis/coursepay/internal/ledger/repository"
	"github.com/smallbiznis/coursepay/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(repository.NewLegacyStore),
	fx.Provide(repository.NewV2Store),
	fx.Provide(service.NewService),
)
