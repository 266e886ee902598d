package screen

import (
	"math"

	"github.com/wonny/sepa/internal/contracts"
	"github.com/wonny/sepa/pkg/config"
)

// Pivot acceptance policies. Proximity takes setups trading near the buy
// point; breakout demands a confirmed breakout day on volume.
const (
	PivotPolicyProximity = "proximity"
	PivotPolicyBreakout  = "breakout"
)

// Setup carries the levels a symbol earned by surviving the filter chain.
// Sizing happens afterwards in the PositionSizer.
type Setup struct {
	Price       float64
	SMAFast     float64
	SMASlow     float64
	StockReturn float64
	IndexReturn float64
	BuyPoint    float64
	StopPrice   float64
	RiskPct     float64
}

// FilterChain evaluates one symbol's price series against the configured
// multi-stage screen. It is a pure function of its inputs: no network, no
// state. Stages run in fixed order and short-circuit on the first failure,
// so cheap checks come first.
type FilterChain struct {
	cfg config.ScreenConfig
}

// NewFilterChain creates a filter chain for one scan style.
func NewFilterChain(cfg config.ScreenConfig) *FilterChain {
	return &FilterChain{cfg: cfg}
}

// MinBars is the series length below which no indicator is computed and the
// symbol is skipped outright.
func (f *FilterChain) MinBars() int {
	return f.cfg.SMASlow
}

// LookbackBars is how much history a fetch should request so every stage has
// the window it wants.
func (f *FilterChain) LookbackBars() int {
	n := f.cfg.SMASlow
	if w := f.cfg.RSWindow + 1; w > n {
		n = w
	}
	if w := f.cfg.BaseWindow + f.cfg.PivotExclude; w > n {
		n = w
	}
	return n
}

// Evaluate runs the full chain. The returned reason is SkipNone on a full
// pass; otherwise it names the failing stage and the setup is meaningless.
func (f *FilterChain) Evaluate(series, index contracts.PriceSeries) (Setup, contracts.SkipReason) {
	var s Setup

	// Insufficient history is a skip before any indicator math.
	if len(series) < f.MinBars() {
		return s, contracts.SkipShortHistory
	}

	if reason := f.checkLiquidity(series, &s); !reason.Passed() {
		return s, reason
	}
	if reason := f.checkTrend(series, &s); !reason.Passed() {
		return s, reason
	}
	if reason := f.checkRelativeStrength(series, index, &s); !reason.Passed() {
		return s, reason
	}
	if f.cfg.VolumeBiasEnabled {
		if reason := f.checkVolumeBias(series); !reason.Passed() {
			return s, reason
		}
	}
	if reason := f.checkPivot(series, &s); !reason.Passed() {
		return s, reason
	}
	if reason := f.checkRisk(series, &s); !reason.Passed() {
		return s, reason
	}

	return s, contracts.SkipNone
}

// checkLiquidity rejects thin and cheap names before anything expensive.
func (f *FilterChain) checkLiquidity(series contracts.PriceSeries, s *Setup) contracts.SkipReason {
	s.Price = series.LastClose()
	if s.Price < f.cfg.MinPrice {
		return contracts.SkipPriceFloor
	}
	if avgVolume(series, f.cfg.AvgVolumeWindow) < float64(f.cfg.MinAvgVolume) {
		return contracts.SkipVolumeFloor
	}
	return contracts.SkipNone
}

// checkTrend requires the Stage 2 uptrend proxy: close > SMA(fast) > SMA(slow).
func (f *FilterChain) checkTrend(series contracts.PriceSeries, s *Setup) contracts.SkipReason {
	s.SMAFast = sma(series, f.cfg.SMAFast)
	s.SMASlow = sma(series, f.cfg.SMASlow)
	if !(s.Price > s.SMAFast && s.SMAFast > s.SMASlow) {
		return contracts.SkipTrend
	}
	return contracts.SkipNone
}

// checkRelativeStrength compares the symbol's window return against the
// reference index. When the primary window exceeds available history the
// fallback window is tried once before rejecting.
func (f *FilterChain) checkRelativeStrength(series, index contracts.PriceSeries, s *Setup) contracts.SkipReason {
	window := f.cfg.RSWindow

	stockRet, ok := returnOver(series, window)
	if !ok && f.cfg.RSFallbackWindow > 0 {
		window = f.cfg.RSFallbackWindow
		stockRet, ok = returnOver(series, window)
	}
	if !ok {
		return contracts.SkipRelativeStrength
	}

	indexRet, ok := returnOver(index, window)
	if !ok {
		return contracts.SkipRelativeStrength
	}

	s.StockReturn = stockRet
	s.IndexReturn = indexRet
	if !(stockRet > indexRet*f.cfg.RSMultiple) {
		return contracts.SkipRelativeStrength
	}
	return contracts.SkipNone
}

// checkVolumeBias is the optional volatility-contraction stage: accumulation
// volume must dominate distribution volume, and swing lows must be tightening.
func (f *FilterChain) checkVolumeBias(series contracts.PriceSeries) contracts.SkipReason {
	upMean, downMean := upDownVolume(series, f.cfg.VolumeBiasWindow)
	// No down sessions in the window counts as maximal bias.
	if downMean > 0 && upMean < downMean*f.cfg.VolumeBiasMultiple {
		return contracts.SkipVolumeBias
	}
	if !risingPivotLows(series, f.cfg.VolumeBiasWindow, f.cfg.ContractionStep) {
		return contracts.SkipContraction
	}
	return contracts.SkipNone
}

// checkPivot derives the buy point from the base high and applies the
// configured acceptance policy.
func (f *FilterChain) checkPivot(series contracts.PriceSeries, s *Setup) contracts.SkipReason {
	baseHigh := maxHigh(series, f.cfg.BaseWindow, f.cfg.PivotExclude)
	if baseHigh <= 0 {
		return contracts.SkipBadSeries
	}
	s.BuyPoint = round2(baseHigh * (1 + f.cfg.PivotBuffer))

	switch f.cfg.PivotPolicy {
	case PivotPolicyBreakout:
		last := series.Last()
		if last.High < baseHigh {
			return contracts.SkipPivot
		}
		if float64(last.Volume) < avgVolume(series, f.cfg.AvgVolumeWindow)*f.cfg.VolumeMultiple {
			return contracts.SkipPivot
		}
	default: // proximity
		if math.Abs(s.Price/s.BuyPoint-1) > f.cfg.ProximityBand {
			return contracts.SkipPivot
		}
	}
	return contracts.SkipNone
}

// checkRisk places the stop under the recent swing low, floored by the fast
// SMA, and rejects entries whose implied risk is too wide.
func (f *FilterChain) checkRisk(series contracts.PriceSeries, s *Setup) contracts.SkipReason {
	swingLow := minLow(series, f.cfg.SwingLowWindow)
	stop := swingLow
	if floor := s.SMAFast * f.cfg.SMASlack; floor > stop {
		stop = floor
	}
	s.StopPrice = round2(stop)

	if s.BuyPoint <= 0 {
		return contracts.SkipBadSeries
	}
	s.RiskPct = round1((s.BuyPoint - s.StopPrice) / s.BuyPoint * 100)
	if s.RiskPct > f.cfg.MaxRiskPct {
		return contracts.SkipRiskTooWide
	}
	return contracts.SkipNone
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
