package contracts

import "time"

// MarketTag identifies a trading venue.
type MarketTag string

const (
	MarketUS MarketTag = "US"
	MarketHK MarketTag = "HK"
)

// Symbol is one tradable instrument. Immutable once fetched.
type Symbol struct {
	Ticker string    `json:"ticker"`
	Market MarketTag `json:"market"`
}

// String returns the ticker form used in reports and logs.
func (s Symbol) String() string {
	return s.Ticker
}

// PriceBar is one trading session of OHLCV data.
type PriceBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// PriceSeries is an ordered-by-date sequence of bars for one symbol.
type PriceSeries []PriceBar

// LastClose returns the most recent close, 0 for an empty series.
func (p PriceSeries) LastClose() float64 {
	if len(p) == 0 {
		return 0
	}
	return p[len(p)-1].Close
}

// Last returns the most recent bar. Caller must check the series is non-empty.
func (p PriceSeries) Last() PriceBar {
	return p[len(p)-1]
}

// Candidate is the per-symbol working record accumulated through the filter
// chain. It only survives a run if every stage passed.
type Candidate struct {
	Symbol

	Price   float64 `json:"price"`
	SMAFast float64 `json:"sma_fast"`
	SMASlow float64 `json:"sma_slow"`

	// Window returns behind the relative-strength decision.
	StockReturn float64 `json:"stock_return"`
	IndexReturn float64 `json:"index_return"`

	BuyPoint  float64 `json:"buy_point"`
	StopPrice float64 `json:"stop_price"`
	RiskPct   float64 `json:"risk_pct"` // percent of entry at risk, e.g. 8.5

	Shares    int     `json:"shares"`
	Capital   float64 `json:"capital"` // USD
	WeightPct float64 `json:"weight_pct"`
}

// ScanResult is the outcome of one full screening run. Never persisted.
type ScanResult struct {
	Date       time.Time          `json:"date"`
	Candidates []Candidate        `json:"candidates"`
	Scanned    int                `json:"scanned"`
	Skips      map[SkipReason]int `json:"skips,omitempty"`
	Duration   time.Duration      `json:"duration"`
}

// TotalWeightPct is the portfolio exposure if every setup were taken.
func (r *ScanResult) TotalWeightPct() float64 {
	var total float64
	for _, c := range r.Candidates {
		total += c.WeightPct
	}
	return total
}
