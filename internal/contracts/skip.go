package contracts

// SkipReason names the stage that dropped a symbol. The engine only inspects
// it for diagnostics counters; it never drives control flow beyond the skip.
// An empty reason means the symbol passed.
type SkipReason string

const (
	SkipNone SkipReason = ""

	SkipFetchError   SkipReason = "fetch_error"
	SkipBadSeries    SkipReason = "bad_series"
	SkipShortHistory SkipReason = "short_history"

	SkipPriceFloor       SkipReason = "price_floor"
	SkipVolumeFloor      SkipReason = "volume_floor"
	SkipTrend            SkipReason = "trend"
	SkipRelativeStrength SkipReason = "relative_strength"
	SkipVolumeBias       SkipReason = "volume_bias"
	SkipContraction      SkipReason = "contraction"
	SkipPivot            SkipReason = "pivot"
	SkipRiskTooWide      SkipReason = "risk_too_wide"
	SkipMinShares        SkipReason = "min_shares"
)

// Passed reports whether the reason represents a full pass.
func (r SkipReason) Passed() bool {
	return r == SkipNone
}
