package validate

import (
	"github.com/YoByron/optionslab/internal/marketdata"
	"github.com/YoByron/optionslab/internal/models"
)

// CostModel estimates real-world transaction costs beyond the broker
// commission already baked into backtest P&L. Implementations adjust
// per-trade results so the validator can measure cost drag.
type CostModel interface {
	// EstimateRoundTripCost returns the total extra cost in dollars for
	// opening and closing the given number of contracts at the given
	// per-share premium.
	EstimateRoundTripCost(contracts int, premium float64) float64

	// AdjustPnL returns a cost-adjusted P&L per position, same order as the
	// input. The positions themselves are not mutated.
	AdjustPnL(positions []*models.OptionsPosition) []float64
}

// FlatCostModel charges a fixed slippage per contract per side, the simplest
// realistic friction model for liquid index options.
type FlatCostModel struct {
	SlippagePerContract float64 // dollars per contract per side
}

// EstimateRoundTripCost charges the flat slippage on both sides.
func (m FlatCostModel) EstimateRoundTripCost(contracts int, _ float64) float64 {
	return 2 * m.SlippagePerContract * float64(contracts)
}

// AdjustPnL subtracts the round-trip slippage from each position's realized
// P&L.
func (m FlatCostModel) AdjustPnL(positions []*models.OptionsPosition) []float64 {
	out := make([]float64, len(positions))
	for i, pos := range positions {
		out[i] = pos.PnL - m.EstimateRoundTripCost(pos.ContractCount(), 0)
	}
	return out
}

// Regime describes the detected market state and how aggressively a strategy
// should size into it.
type Regime struct {
	Name          string  `json:"name"`
	PositionScale float64 `json:"position_scale"` // fraction of normal size, in (0, 1]
}

// RegimeDetector classifies recent market conditions from price history.
type RegimeDetector interface {
	DetectRegime(history *marketdata.PriceHistory) Regime
}

// VolRegimeDetector buckets the market by the latest 30-day realized
// volatility: calm markets run full size, turbulent markets cut it.
type VolRegimeDetector struct {
	CalmBelow      float64 // annualized vol, e.g. 0.15
	TurbulentAbove float64 // annualized vol, e.g. 0.25
}

// DefaultVolRegimeDetector uses the 15%/25% annualized-vol bands.
func DefaultVolRegimeDetector() VolRegimeDetector {
	return VolRegimeDetector{CalmBelow: 0.15, TurbulentAbove: 0.25}
}

// DetectRegime classifies on the most recent 30-day historical volatility.
func (d VolRegimeDetector) DetectRegime(history *marketdata.PriceHistory) Regime {
	if history == nil || history.Len() == 0 {
		return Regime{Name: "unknown", PositionScale: 0.5}
	}
	hv := history.HV30[len(history.HV30)-1]
	switch {
	case hv < d.CalmBelow:
		return Regime{Name: "calm", PositionScale: 1.0}
	case hv > d.TurbulentAbove:
		return Regime{Name: "turbulent", PositionScale: 0.5}
	default:
		return Regime{Name: "normal", PositionScale: 0.75}
	}
}
