package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/sepa/internal/report"
	"github.com/wonny/sepa/pkg/config"
	"github.com/wonny/sepa/pkg/logger"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan and print the report",
	Long: `Run one full screening pass immediately and print the report to
stdout. Ctrl+C stops issuing new fetches and reports whatever was
collected so far.

Example:
  go run ./cmd/sepa scan
  go run ./cmd/sepa scan --notify`,
	RunE: runScan,
}

var scanNotify bool

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().BoolVar(&scanNotify, "notify", false, "also deliver the report over WhatsApp")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)
	engine, notifier := buildEngine(cfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := engine.Run(ctx)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	body := report.Render(result, report.Meta{
		PortfolioValue: engine.Sizer().PortfolioValue(),
		RiskPerTrade:   engine.Sizer().RiskPerTrade(),
		RiskFraction:   cfg.Screen.RiskFraction,
		Location:       cfg.Location(),
	})

	fmt.Println(body)

	if scanNotify {
		if err := notifier.Send(ctx, body); err != nil {
			log.WithError(err).Error("Report delivery failed")
		}
	}

	return nil
}
