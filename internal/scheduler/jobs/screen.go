// Package jobs holds the scheduled job implementations.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/sepa/internal/contracts"
	"github.com/wonny/sepa/internal/report"
	"github.com/wonny/sepa/internal/screen"
	"github.com/wonny/sepa/pkg/logger"
)

// ScreenJob runs the daily screening pipeline and delivers the report.
// Nothing inside a run is fatal: engine failures degrade to an empty report
// and delivery failures are logged, so the job survives indefinitely.
type ScreenJob struct {
	engine   *screen.Engine
	notifier contracts.Notifier
	schedule string
	location *time.Location
	logger   *logger.Logger
}

// NewScreenJob creates the daily screen job.
func NewScreenJob(
	engine *screen.Engine,
	notifier contracts.Notifier,
	schedule string,
	loc *time.Location,
	log *logger.Logger,
) *ScreenJob {
	return &ScreenJob{
		engine:   engine,
		notifier: notifier,
		schedule: schedule,
		location: loc,
		logger:   log,
	}
}

// Name returns the job name
func (j *ScreenJob) Name() string {
	return "daily_screen"
}

// Schedule returns the cron schedule expression.
func (j *ScreenJob) Schedule() string {
	return j.schedule
}

// Run executes one scan, renders the result and sends it. A trigger landing
// while a run is in flight is dropped with a notice, never interleaved.
func (j *ScreenJob) Run(ctx context.Context) error {
	result, err := j.engine.Run(ctx)
	if err != nil {
		if errors.Is(err, screen.ErrRunInProgress) {
			j.logger.Warn("Scan trigger ignored, a run is already in progress")
			return nil
		}
		// Degrade to an explicit "nothing found" message rather than silence.
		j.logger.WithError(err).Error("Scan failed, reporting empty result")
		result = &contracts.ScanResult{Date: time.Now()}
	}

	body := report.Render(result, report.Meta{
		PortfolioValue: j.engine.Sizer().PortfolioValue(),
		RiskPerTrade:   j.engine.Sizer().RiskPerTrade(),
		RiskFraction:   j.engine.Sizer().RiskPerTrade() / j.engine.Sizer().PortfolioValue(),
		Location:       j.location,
	})

	if err := j.notifier.Send(ctx, body); err != nil {
		// Delivery failure is never fatal to the scan.
		j.logger.WithError(err).Error("Report delivery failed")
	}

	j.logger.WithFields(map[string]interface{}{
		"setups":  len(result.Candidates),
		"scanned": result.Scanned,
	}).Info("Daily screen finished")
	return nil
}

// Progress returns a callback that pushes interim notices on long runs.
func (j *ScreenJob) Progress(ctx context.Context) func(scanned, total int) {
	return func(scanned, total int) {
		msg := fmt.Sprintf("Scan in progress: %d/%d symbols", scanned, total)
		if err := j.notifier.Send(ctx, msg); err != nil {
			j.logger.WithError(err).Debug("Progress notice delivery failed")
		}
	}
}
