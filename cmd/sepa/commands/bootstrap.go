package commands

import (
	"github.com/wonny/sepa/internal/external/yahoo"
	"github.com/wonny/sepa/internal/notify"
	"github.com/wonny/sepa/internal/screen"
	"github.com/wonny/sepa/internal/universe"
	"github.com/wonny/sepa/pkg/config"
	"github.com/wonny/sepa/pkg/httputil"
	"github.com/wonny/sepa/pkg/logger"
)

// buildEngine wires the screening pipeline from config. Shared by the serve
// and scan commands so both trigger paths run the exact same engine.
func buildEngine(cfg *config.Config, log *logger.Logger) (*screen.Engine, *notify.WhatsApp) {
	httpClient := httputil.New(log).
		WithRateLimit(cfg.Scan.FetchRate, cfg.Scan.Concurrency)

	dataProvider := yahoo.NewClient(httpClient, log)
	universeProvider := universe.NewProvider(httpClient, log)

	chain := screen.NewFilterChain(cfg.Screen)
	sizer := screen.NewPositionSizer(cfg.Portfolio, cfg.Screen)

	engine := screen.NewEngine(dataProvider, universeProvider, chain, sizer, cfg.Scan, log)

	notifier := notify.NewWhatsApp(cfg.WhatsApp, httpClient, log)

	return engine, notifier
}
