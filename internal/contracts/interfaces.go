package contracts

import "context"

// MarketDataProvider supplies daily OHLCV history. Implementations own their
// politeness throttling; callers treat any error as a per-symbol skip.
type MarketDataProvider interface {
	// FetchHistory returns up to lookbackDays of daily bars for the symbol,
	// oldest first.
	FetchHistory(ctx context.Context, sym Symbol, lookbackDays int) (PriceSeries, error)

	// FetchIndexHistory returns history for the market's reference index
	// (S&P 500 for US, Hang Seng for HK).
	FetchIndexHistory(ctx context.Context, market MarketTag, lookbackDays int) (PriceSeries, error)
}

// UniverseProvider supplies the list of symbols to evaluate. Deduplication and
// blank-entry filtering happen before returning. A provider should fall back
// to its built-in list rather than fail the whole run.
type UniverseProvider interface {
	FetchUniverse(ctx context.Context, markets []MarketTag) ([]Symbol, error)
}

// Notifier delivers a rendered report. Delivery failure is never fatal to the
// scan; implementations log and return the error for counters only.
type Notifier interface {
	Send(ctx context.Context, body string) error
}
