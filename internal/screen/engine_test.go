package screen

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sepa/internal/contracts"
	"github.com/wonny/sepa/pkg/config"
	"github.com/wonny/sepa/pkg/logger"
)

type fakeData struct {
	histories map[string]contracts.PriceSeries
	errs      map[string]error
	index     contracts.PriceSeries
	indexErr  error

	gate chan struct{} // when non-nil, FetchHistory blocks until closed
}

func (f *fakeData) FetchHistory(ctx context.Context, sym contracts.Symbol, lookbackDays int) (contracts.PriceSeries, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := f.errs[sym.Ticker]; ok {
		return nil, err
	}
	return f.histories[sym.Ticker], nil
}

func (f *fakeData) FetchIndexHistory(ctx context.Context, market contracts.MarketTag, lookbackDays int) (contracts.PriceSeries, error) {
	if f.indexErr != nil {
		return nil, f.indexErr
	}
	return f.index, nil
}

type fakeUniverse struct {
	symbols []contracts.Symbol
	err     error
}

func (f *fakeUniverse) FetchUniverse(ctx context.Context, markets []contracts.MarketTag) ([]contracts.Symbol, error) {
	return f.symbols, f.err
}

func usSym(ticker string) contracts.Symbol {
	return contracts.Symbol{Ticker: ticker, Market: contracts.MarketUS}
}

func newTestEngine(data *fakeData, uni *fakeUniverse, cfg config.ScreenConfig) *Engine {
	chain := NewFilterChain(cfg)
	sizer := NewPositionSizer(config.PortfolioConfig{Value: 1_000_000, Currency: "USD"}, cfg)
	scan := config.ScanConfig{Markets: []string{"US"}, Concurrency: 4}
	return NewEngine(data, uni, chain, sizer, scan, logger.Nop())
}

func TestEngine_Run(t *testing.T) {
	data := &fakeData{
		histories: map[string]contracts.PriceSeries{
			"GOOD":  uptrend(303, 1_000_000),
			"FLAT":  flatSeries(303, 100, 1_000_000),
			"SHORT": uptrend(100, 1_000_000),
		},
		errs:  map[string]error{"BAD": errors.New("boom")},
		index: flatSeries(303, 100, 1_000_000),
	}
	uni := &fakeUniverse{symbols: []contracts.Symbol{
		usSym("GOOD"), usSym("FLAT"), usSym("SHORT"), usSym("BAD"),
	}}

	engine := newTestEngine(data, uni, defaultTestConfig())

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, result.Scanned)
	require.Len(t, result.Candidates, 1)

	cand := result.Candidates[0]
	assert.Equal(t, "GOOD", cand.Ticker)
	assert.Equal(t, contracts.MarketUS, cand.Market)
	assert.Greater(t, cand.Shares, 0)
	assert.Greater(t, cand.Capital, 0.0)
	assert.Greater(t, cand.BuyPoint, cand.StopPrice)
	assert.InDelta(t, cand.WeightPct, result.TotalWeightPct(), 1e-9)

	assert.Equal(t, 1, result.Skips[contracts.SkipTrend])
	assert.Equal(t, 1, result.Skips[contracts.SkipShortHistory])
	assert.Equal(t, 1, result.Skips[contracts.SkipFetchError])

	status := engine.Status()
	assert.Equal(t, StateDone, status.State)
	require.NotNil(t, status.LastRun)
	assert.Equal(t, 1, status.LastRun.Setups)
	assert.Equal(t, 4, status.LastRun.Scanned)
}

func TestEngine_RanksByRiskAscending(t *testing.T) {
	data := &fakeData{
		histories: map[string]contracts.PriceSeries{
			// WIDE's deeper lows push its stop to the SMA floor, widening risk.
			"WIDE":  uptrendWide(303, 1_000_000, 5),
			"TIGHT": uptrend(303, 1_000_000),
		},
		index: flatSeries(303, 100, 1_000_000),
	}
	uni := &fakeUniverse{symbols: []contracts.Symbol{usSym("WIDE"), usSym("TIGHT")}}

	t.Run("tightest risk first", func(t *testing.T) {
		engine := newTestEngine(data, uni, defaultTestConfig())
		result, err := engine.Run(context.Background())
		require.NoError(t, err)
		require.Len(t, result.Candidates, 2)
		assert.Equal(t, "TIGHT", result.Candidates[0].Ticker)
		assert.Equal(t, "WIDE", result.Candidates[1].Ticker)
		assert.Less(t, result.Candidates[0].RiskPct, result.Candidates[1].RiskPct)
	})

	t.Run("result limit truncates after ranking", func(t *testing.T) {
		cfg := defaultTestConfig()
		cfg.ResultLimit = 1
		engine := newTestEngine(data, uni, cfg)
		result, err := engine.Run(context.Background())
		require.NoError(t, err)
		require.Len(t, result.Candidates, 1)
		assert.Equal(t, "TIGHT", result.Candidates[0].Ticker)
		assert.Equal(t, 2, result.Scanned)
	})
}

func TestEngine_RejectsOverlappingRuns(t *testing.T) {
	gate := make(chan struct{})
	data := &fakeData{
		histories: map[string]contracts.PriceSeries{"GOOD": uptrend(303, 1_000_000)},
		index:     flatSeries(303, 100, 1_000_000),
		gate:      gate,
	}
	uni := &fakeUniverse{symbols: []contracts.Symbol{usSym("GOOD")}}
	engine := newTestEngine(data, uni, defaultTestConfig())

	done := make(chan error, 1)
	go func() {
		_, err := engine.Run(context.Background())
		done <- err
	}()

	require.Eventually(t, engine.Running, 2*time.Second, 5*time.Millisecond)

	_, err := engine.Run(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(gate)
	require.NoError(t, <-done)
	assert.False(t, engine.Running())

	// The guard releases: a fresh run is accepted again.
	_, err = engine.Run(context.Background())
	assert.NoError(t, err)
}

func TestEngine_UniverseErrorFailsRun(t *testing.T) {
	engine := newTestEngine(
		&fakeData{index: flatSeries(303, 100, 1_000_000)},
		&fakeUniverse{err: errors.New("every source down")},
		defaultTestConfig(),
	)

	_, err := engine.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateFailed, engine.Status().State)
}

func TestEngine_MissingIndexSkipsMarket(t *testing.T) {
	data := &fakeData{
		histories: map[string]contracts.PriceSeries{"GOOD": uptrend(303, 1_000_000)},
		indexErr:  errors.New("index feed down"),
	}
	uni := &fakeUniverse{symbols: []contracts.Symbol{usSym("GOOD")}}
	engine := newTestEngine(data, uni, defaultTestConfig())

	// The run itself survives; every symbol in the market is a fetch skip.
	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Candidates)
	assert.Equal(t, 1, result.Skips[contracts.SkipFetchError])
}

func TestEngine_CancelStopsNewFetches(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)

	data := &fakeData{
		histories: map[string]contracts.PriceSeries{},
		index:     flatSeries(303, 100, 1_000_000),
		gate:      gate,
	}
	uni := &fakeUniverse{symbols: []contracts.Symbol{
		usSym("A"), usSym("B"), usSym("C"), usSym("D"), usSym("E"),
	}}
	engine := newTestEngine(data, uni, defaultTestConfig())

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	var result *contracts.ScanResult
	var runErr error
	go func() {
		defer close(done)
		result, runErr = engine.Run(ctx)
	}()

	require.Eventually(t, engine.Running, 2*time.Second, 5*time.Millisecond)
	cancel()

	// Whatever was collected still flows through ranking; no error surfaces.
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not unwind after cancellation")
	}
	require.NoError(t, runErr)
	require.NotNil(t, result)
	assert.LessOrEqual(t, result.Scanned, 5)
	assert.Empty(t, result.Candidates)
}

func TestEngine_MaxSymbolsCapsUniverse(t *testing.T) {
	symbols := make([]contracts.Symbol, 50)
	histories := make(map[string]contracts.PriceSeries, 50)
	for i := range symbols {
		ticker := string(rune('A'+i%26)) + string(rune('A'+i/26))
		symbols[i] = usSym(ticker)
		histories[ticker] = flatSeries(303, 100, 1_000_000)
	}
	data := &fakeData{histories: histories, index: flatSeries(303, 100, 1_000_000)}
	uni := &fakeUniverse{symbols: symbols}

	engine := newTestEngine(data, uni, defaultTestConfig())
	engine.scan.MaxSymbols = 10

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, result.Scanned)
}
