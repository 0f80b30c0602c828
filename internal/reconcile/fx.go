package reconcile

import (
	"github.com/smallbiznis/coursepay/internal/reconcile/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reconcile.service",
	fx.Provide(service.NewService),
)
