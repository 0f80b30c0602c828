package authorization

import (
	"context"

	"github.com/smallbiznis/coursepay/internal/actor"
)

type Service interface {
	Authorize(ctx context.Context, a actor.Actor, object string, action string) error
}
