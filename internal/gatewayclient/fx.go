package gatewayclient

import "go.uber.org/fx"

var Module = fx.Module("gatewayclient",
	fx.Provide(New),
)
