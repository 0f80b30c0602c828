package settlement

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/coursepay/internal/settlement/lock"
	"github.com/smallbiznis/coursepay/internal/settlement/service"
	"go.uber.org/fx"
)

var Module = fx.Module("settlement.guard",
	fx.Provide(func(client *redis.Client) *lock.Locker {
		return lock.NewLocker(client)
	}),
	fx.Provide(service.NewGuard),
)
