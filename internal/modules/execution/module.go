package execution

import (
	"github.com/pkg/errors"
	"go.uber.org/fx"

	alpaca "fvg_bot/internal/modules/alpaca_client/service"
	"fvg_bot/internal/modules/config"
	"fvg_bot/internal/modules/execution/service"
	"fvg_bot/internal/modules/metrics"
	portfolio "fvg_bot/internal/modules/portfolio/service"
)

type VenueParams struct {
	fx.In

	Config *config.Config
	Broker *alpaca.Client `optional:"true"`
}

// NewVenue fills in memory for backtests and through the broker when live.
func NewVenue(p VenueParams) (service.Venue, error) {
	if p.Config.Mode == config.ModeBacktest {
		return service.NewBacktestVenue(), nil
	}
	if p.Broker == nil {
		return nil, errors.New("execution: live mode needs the alpaca client module")
	}
	return service.NewLiveVenue(p.Broker), nil
}

func NewEngine(v service.Venue, pf *portfolio.Portfolio, m *metrics.Metrics) *service.Engine {
	return service.NewEngine(v, pf, m)
}

func Module() fx.Option {
	return fx.Module("execution",
		fx.Provide(
			NewVenue,
			NewEngine,
		),
	)
}
