package screen

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wonny/sepa/internal/contracts"
	"github.com/wonny/sepa/pkg/config"
	"github.com/wonny/sepa/pkg/logger"
)

// ErrRunInProgress is returned when a trigger fires while a scan is active.
// Runs never interleave; the caller decides whether to notify or drop.
var ErrRunInProgress = errors.New("screen: run already in progress")

// State is the engine's phase within one run.
type State string

const (
	StateIdle             State = "idle"
	StateFetchingUniverse State = "fetching_universe"
	StateScanning         State = "scanning"
	StateRanking          State = "ranking"
	StateDone             State = "done"
	StateFailed           State = "failed"
)

// progressEvery controls the cadence of progress logs and callbacks on long
// universes.
const progressEvery = 1000

// Status is a point-in-time snapshot for the status endpoint.
type Status struct {
	State     State       `json:"state"`
	Total     int         `json:"total"`
	Scanned   int         `json:"scanned"`
	StartedAt *time.Time  `json:"started_at,omitempty"`
	LastRun   *RunSummary `json:"last_run,omitempty"`
}

// RunSummary describes the most recently completed run.
type RunSummary struct {
	Date     time.Time     `json:"date"`
	Setups   int           `json:"setups"`
	Scanned  int           `json:"scanned"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Engine orchestrates one screening run: universe fetch, bounded-concurrency
// per-symbol evaluation, sizing, ranking. Exactly one run may be active at a
// time.
type Engine struct {
	data     contracts.MarketDataProvider
	universe contracts.UniverseProvider
	chain    *FilterChain
	sizer    *PositionSizer
	scan     config.ScanConfig
	logger   *logger.Logger

	onProgress func(scanned, total int)

	running atomic.Bool
	mu      sync.Mutex
	status  Status
}

// NewEngine wires the engine from its collaborators.
func NewEngine(
	data contracts.MarketDataProvider,
	universe contracts.UniverseProvider,
	chain *FilterChain,
	sizer *PositionSizer,
	scan config.ScanConfig,
	log *logger.Logger,
) *Engine {
	return &Engine{
		data:     data,
		universe: universe,
		chain:    chain,
		sizer:    sizer,
		scan:     scan,
		logger:   log,
		status:   Status{State: StateIdle},
	}
}

// SetProgressFunc registers an optional callback fired every progressEvery
// symbols. Must be called before Run.
func (e *Engine) SetProgressFunc(fn func(scanned, total int)) {
	e.onProgress = fn
}

// Running reports whether a run is currently active.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Status returns a snapshot of the current run state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Sizer exposes the position sizer for report rendering.
func (e *Engine) Sizer() *PositionSizer {
	return e.sizer
}

// Run executes one full screening run. A second call while a run is active
// returns ErrRunInProgress immediately. Cancelling ctx stops issuing new
// fetches; whatever has been collected still flows through ranking.
func (e *Engine) Run(ctx context.Context) (*contracts.ScanResult, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer e.running.Store(false)

	start := time.Now()
	e.setState(StateFetchingUniverse, 0, 0, &start)

	markets := e.markets()
	symbols, err := e.universe.FetchUniverse(ctx, markets)
	if err != nil {
		e.finish(start, 0, 0, err)
		return nil, fmt.Errorf("fetch universe: %w", err)
	}
	if e.scan.MaxSymbols > 0 && len(symbols) > e.scan.MaxSymbols {
		symbols = symbols[:e.scan.MaxSymbols]
	}

	lookback := e.lookbackDays()

	// Reference index history once per market, not per symbol.
	indexes := make(map[contracts.MarketTag]contracts.PriceSeries, len(markets))
	for _, m := range markets {
		idx, err := e.data.FetchIndexHistory(ctx, m, lookback)
		if err != nil {
			e.logger.WithFields(map[string]interface{}{
				"market": m,
				"error":  err.Error(),
			}).Warn("Index history unavailable, market will be skipped")
			continue
		}
		indexes[m] = idx
	}

	e.setState(StateScanning, len(symbols), 0, &start)
	e.logger.WithFields(map[string]interface{}{
		"symbols":     len(symbols),
		"markets":     markets,
		"concurrency": e.scan.Concurrency,
	}).Info("Scan started")

	type outcome struct {
		cand   *contracts.Candidate
		reason contracts.SkipReason
	}

	jobs := make(chan contracts.Symbol)
	results := make(chan outcome)

	var wg sync.WaitGroup
	for i := 0; i < e.scan.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sym := range jobs {
				cand, reason := e.evaluate(ctx, sym, indexes)
				select {
				case results <- outcome{cand: cand, reason: reason}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// Feeder stops issuing symbols once ctx is cancelled.
	go func() {
		defer close(jobs)
		for _, sym := range symbols {
			select {
			case jobs <- sym:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	// Single collector: the only writer to the candidate list and counters.
	var candidates []contracts.Candidate
	skips := make(map[contracts.SkipReason]int)
	scanned := 0
	for out := range results {
		scanned++
		if out.cand != nil {
			candidates = append(candidates, *out.cand)
		} else if out.reason != contracts.SkipNone {
			skips[out.reason]++
		}
		if scanned%progressEvery == 0 {
			e.setState(StateScanning, len(symbols), scanned, &start)
			e.logger.WithFields(map[string]interface{}{
				"scanned": scanned,
				"total":   len(symbols),
				"passed":  len(candidates),
			}).Info("Scan progress")
			if e.onProgress != nil {
				e.onProgress(scanned, len(symbols))
			}
		}
	}

	e.setState(StateRanking, len(symbols), scanned, &start)

	// Tightest risk first; stable so equal-risk setups keep scan order.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].RiskPct < candidates[j].RiskPct
	})
	if e.chainResultLimit() > 0 && len(candidates) > e.chainResultLimit() {
		candidates = candidates[:e.chainResultLimit()]
	}

	result := &contracts.ScanResult{
		Date:       start,
		Candidates: candidates,
		Scanned:    scanned,
		Skips:      skips,
		Duration:   time.Since(start),
	}

	e.finish(start, len(candidates), scanned, nil)
	e.logger.WithFields(map[string]interface{}{
		"scanned":  scanned,
		"setups":   len(candidates),
		"skips":    skips,
		"duration": result.Duration,
	}).Info("Scan completed")

	return result, nil
}

// evaluate runs one symbol through fetch, filter chain and sizer. Anything
// unexpected, including a panic, is converted to a skip at this boundary.
func (e *Engine) evaluate(ctx context.Context, sym contracts.Symbol, indexes map[contracts.MarketTag]contracts.PriceSeries) (cand *contracts.Candidate, reason contracts.SkipReason) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithFields(map[string]interface{}{
				"symbol": sym.Ticker,
				"panic":  fmt.Sprint(r),
			}).Error("Symbol evaluation panicked, skipping")
			cand, reason = nil, contracts.SkipBadSeries
		}
	}()

	index, ok := indexes[sym.Market]
	if !ok {
		return nil, contracts.SkipFetchError
	}

	series, err := e.data.FetchHistory(ctx, sym, e.lookbackDays())
	if err != nil {
		e.logger.WithFields(map[string]interface{}{
			"symbol": sym.Ticker,
			"error":  err.Error(),
		}).Debug("History fetch failed, skipping")
		return nil, contracts.SkipFetchError
	}

	setup, reason := e.chain.Evaluate(series, index)
	if !reason.Passed() {
		return nil, reason
	}

	shares, capital, weightPct, reason := e.sizer.Size(setup.BuyPoint, setup.StopPrice)
	if !reason.Passed() {
		return nil, reason
	}

	return &contracts.Candidate{
		Symbol:      sym,
		Price:       setup.Price,
		SMAFast:     setup.SMAFast,
		SMASlow:     setup.SMASlow,
		StockReturn: setup.StockReturn,
		IndexReturn: setup.IndexReturn,
		BuyPoint:    setup.BuyPoint,
		StopPrice:   setup.StopPrice,
		RiskPct:     setup.RiskPct,
		Shares:      shares,
		Capital:     capital,
		WeightPct:   weightPct,
	}, contracts.SkipNone
}

// lookbackDays converts the chain's bar requirement into calendar days with
// headroom for weekends and holidays.
func (e *Engine) lookbackDays() int {
	return e.chain.LookbackBars()*3/2 + 15
}

func (e *Engine) chainResultLimit() int {
	return e.chain.cfg.ResultLimit
}

func (e *Engine) markets() []contracts.MarketTag {
	out := make([]contracts.MarketTag, 0, len(e.scan.Markets))
	for _, m := range e.scan.Markets {
		out = append(out, contracts.MarketTag(m))
	}
	return out
}

func (e *Engine) setState(state State, total, scanned int, startedAt *time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.State = state
	e.status.Total = total
	e.status.Scanned = scanned
	e.status.StartedAt = startedAt
}

func (e *Engine) finish(start time.Time, setups, scanned int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	summary := &RunSummary{
		Date:     start,
		Setups:   setups,
		Scanned:  scanned,
		Duration: time.Since(start),
	}
	if err != nil {
		summary.Error = err.Error()
		e.status.State = StateFailed
	} else {
		e.status.State = StateDone
	}
	e.status.LastRun = summary
	e.status.StartedAt = nil
}
