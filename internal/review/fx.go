package review

import (
	"github.com/smallbiznis/coursepay/internal/review/domain"
	"github.com/smallbiznis/coursepay/internal/review/service"
	settlementdomain "github.com/smallbiznis/coursepay/internal/settlement/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("review.service",
	fx.Provide(service.NewService),
	fx.Provide(func(svc domain.Service) settlementdomain.ReviewQueue { return svc }),
)
