package screen

import (
	"math"

	"github.com/wonny/sepa/internal/contracts"
	"github.com/wonny/sepa/pkg/config"
)

// PositionSizer turns a setup's levels into a share count and capital
// commitment. The risk budget and portfolio value are fixed once per run, in
// one currency; nothing here converts money.
type PositionSizer struct {
	riskPerTrade   float64 // USD risked per position
	portfolioValue float64 // USD
	minShares      int
}

// NewPositionSizer derives the per-trade risk budget from the configured
// portfolio. Currency normalization happens here, exactly once.
func NewPositionSizer(portfolio config.PortfolioConfig, screen config.ScreenConfig) *PositionSizer {
	value := portfolio.ValueUSD()
	return &PositionSizer{
		riskPerTrade:   value * screen.RiskFraction,
		portfolioValue: value,
		minShares:      screen.MinShares,
	}
}

// RiskPerTrade exposes the fixed budget for reporting.
func (p *PositionSizer) RiskPerTrade() float64 {
	return p.riskPerTrade
}

// PortfolioValue exposes the normalized account size for reporting.
func (p *PositionSizer) PortfolioValue() float64 {
	return p.portfolioValue
}

// Size computes shares = floor(risk / (buy - stop)). Degenerate levels
// (stop at or above the buy point) and positions under the share floor are
// rejected with the matching skip reason.
func (p *PositionSizer) Size(buyPoint, stopPrice float64) (shares int, capital, weightPct float64, reason contracts.SkipReason) {
	perShareRisk := buyPoint - stopPrice
	if perShareRisk <= 0 {
		return 0, 0, 0, contracts.SkipRiskTooWide
	}

	shares = int(math.Floor(p.riskPerTrade / perShareRisk))
	if shares < p.minShares {
		return 0, 0, 0, contracts.SkipMinShares
	}

	capital = float64(shares) * buyPoint
	weightPct = capital / p.portfolioValue * 100
	return shares, capital, weightPct, contracts.SkipNone
}
