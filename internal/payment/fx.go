package payment

import (
	"fmt"

	"github.com/smallbiznis/coursepay/internal/config"
	"github.com/smallbiznis/coursepay/internal/payment/adapters"
	"github.com/smallbiznis/coursepay/internal/payment/adapters/gateway"
	"github.com/smallbiznis/coursepay/internal/payment/adapters/manual"
	"github.com/smallbiznis/coursepay/internal/payment/domain"
	"github.com/smallbiznis/coursepay/internal/payment/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(NewRegistry),
)

// NewRegistry refuses to start a production process that cannot verify
// gateway webhooks.
func NewRegistry(cfg config.Config, log *zap.Logger) (*adapters.Registry, error) {
	if cfg.Gateway.WebhookSecret == "" {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("%w: GATEWAY_WEBHOOK_SECRET is required in production", domain.ErrInvalidConfig)
		}
		log.Named("payment.registry").Warn("gateway webhook secret not set, webhooks will be rejected")
	}
	return adapters.NewRegistry(
		gateway.New(cfg.Gateway.WebhookSecret),
		manual.New(),
	), nil
}
