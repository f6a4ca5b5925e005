package broadcast

import (
	"go.uber.org/fx"

	"fvg_bot/internal/modules/broadcast/service"
)

const clientBuffer = 256

func NewHub() *service.Hub { return service.NewHub(clientBuffer) }

// NewFanout is the engine's single publisher; the hub is always attached.
func NewFanout(hub *service.Hub) *service.Fanout { return service.NewFanout(hub) }

func Module() fx.Option {
	return fx.Module("broadcast",
		fx.Provide(
			NewHub,
			NewFanout,
		),
	)
}
