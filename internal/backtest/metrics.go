package backtest

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/YoByron/optionslab/internal/models"
)

const tradingDaysPerYear = 252

// StrategyStats is the per-category slice of the trade statistics.
type StrategyStats struct {
	Trades   int     `json:"trades"`
	Wins     int     `json:"wins"`
	WinRate  float64 `json:"win_rate"` // percent
	TotalPnL float64 `json:"total_pnl"` // dollars
}

// Metrics is the immutable summary of one completed backtest run. Percent
// fields are expressed 0-100, dollar fields in dollars, ratios dimensionless.
type Metrics struct {
	// Return and risk
	TotalReturnPct float64 `json:"total_return_pct"`
	CAGRPct        float64 `json:"cagr_pct"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	SortinoRatio   float64 `json:"sortino_ratio"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	AvgDrawdownPct float64 `json:"avg_drawdown_pct"`
	CalmarRatio    float64 `json:"calmar_ratio"`

	// Trade statistics
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRatePct    float64 `json:"win_rate_pct"`
	ProfitFactor  float64 `json:"profit_factor"`
	AverageWin    float64 `json:"average_win"`  // dollars
	AverageLoss   float64 `json:"average_loss"` // dollars, negative
	LargestWin    float64 `json:"largest_win"`  // dollars
	LargestLoss   float64 `json:"largest_loss"` // dollars, negative

	// Options-specific
	AvgHoldingDays     float64 `json:"avg_holding_days"`
	TotalCommissions   float64 `json:"total_commissions"`    // dollars
	CommissionPctGross float64 `json:"commission_pct_gross"` // percent of gross profit
	AvgNetDelta        float64 `json:"avg_net_delta"`
	AvgNetTheta        float64 `json:"avg_net_theta"`
	AvgNetVega         float64 `json:"avg_net_vega"`

	// Capital
	InitialCapital float64 `json:"initial_capital"` // dollars
	FinalEquity    float64 `json:"final_equity"`    // dollars

	ByStrategy map[models.StrategyCategory]StrategyStats `json:"by_strategy"`
}

// computeMetrics reduces closed positions and the equity curve. Zero closed
// positions yields a zero-valued record, never an error.
func computeMetrics(positions []*models.OptionsPosition, equity []EquityPoint, cfg Config) *Metrics {
	m := &Metrics{ByStrategy: make(map[models.StrategyCategory]StrategyStats)}
	if len(positions) == 0 {
		return m
	}

	m.InitialCapital = cfg.InitialCapital
	m.TotalTrades = len(positions)

	var grossProfit, grossLoss, totalHolding float64
	for _, pos := range positions {
		stats := m.ByStrategy[pos.Strategy]
		stats.Trades++
		stats.TotalPnL += pos.PnL

		if pos.PnL > 0 {
			m.WinningTrades++
			stats.Wins++
			grossProfit += pos.PnL
			if pos.PnL > m.LargestWin {
				m.LargestWin = pos.PnL
			}
		} else {
			m.LosingTrades++
			grossLoss += -pos.PnL
			if pos.PnL < m.LargestLoss {
				m.LargestLoss = pos.PnL
			}
		}

		totalHolding += pos.DaysInTrade()
		m.TotalCommissions += pos.Commission
		m.AvgNetDelta += pos.NetGreeks.Delta
		m.AvgNetTheta += pos.NetGreeks.Theta
		m.AvgNetVega += pos.NetGreeks.Vega

		m.ByStrategy[pos.Strategy] = stats
	}

	n := float64(m.TotalTrades)
	m.WinRatePct = float64(m.WinningTrades) / n * 100
	if m.WinningTrades > 0 {
		m.AverageWin = grossProfit / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AverageLoss = -grossLoss / float64(m.LosingTrades)
	}
	if grossLoss > 0 {
		m.ProfitFactor = grossProfit / grossLoss
	} else if grossProfit > 0 {
		m.ProfitFactor = math.Inf(1)
	}
	m.AvgHoldingDays = totalHolding / n
	m.AvgNetDelta /= n
	m.AvgNetTheta /= n
	m.AvgNetVega /= n
	if grossProfit > 0 {
		m.CommissionPctGross = m.TotalCommissions / grossProfit * 100
	}

	for category, stats := range m.ByStrategy {
		if stats.Trades > 0 {
			stats.WinRate = float64(stats.Wins) / float64(stats.Trades) * 100
		}
		m.ByStrategy[category] = stats
	}

	if len(equity) > 1 && cfg.InitialCapital > 0 {
		final := equity[len(equity)-1].Value
		m.FinalEquity = final
		m.TotalReturnPct = (final - cfg.InitialCapital) / cfg.InitialCapital * 100

		years := equity[len(equity)-1].Date.Sub(equity[0].Date).Hours() / 24 / 365
		if years > 0 && final > 0 {
			m.CAGRPct = (math.Pow(final/cfg.InitialCapital, 1/years) - 1) * 100
		}

		returns := equityReturns(equity)
		m.SharpeRatio = sharpe(returns, cfg.RiskFreeRate)
		m.SortinoRatio = sortino(returns, cfg.RiskFreeRate)

		maxDD, avgDD := drawdownStats(equity)
		m.MaxDrawdownPct = maxDD * 100
		m.AvgDrawdownPct = avgDD * 100
		if maxDD > 0 {
			m.CalmarRatio = m.CAGRPct / 100 / maxDD
		}
	}

	return m
}

func equityReturns(equity []EquityPoint) []float64 {
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Value
		if prev == 0 {
			continue
		}
		returns = append(returns, (equity[i].Value-prev)/prev)
	}
	return returns
}

// sharpe annualizes the mean daily excess return over its standard deviation.
func sharpe(returns []float64, riskFreeRate float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 {
		return 0
	}
	dailyRF := riskFreeRate / tradingDaysPerYear
	return (mean - dailyRF) / std * math.Sqrt(tradingDaysPerYear)
}

// sortino penalizes only downside deviation.
func sortino(returns []float64, riskFreeRate float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean := stat.Mean(returns, nil)
	dailyRF := riskFreeRate / tradingDaysPerYear

	var downSq float64
	var downN int
	for _, r := range returns {
		if r < dailyRF {
			d := r - dailyRF
			downSq += d * d
			downN++
		}
	}
	if downN == 0 || downSq == 0 {
		return 0
	}
	downside := math.Sqrt(downSq / float64(downN))
	return (mean - dailyRF) / downside * math.Sqrt(tradingDaysPerYear)
}

// drawdownStats returns the max and mean peak-to-trough drawdown fractions.
func drawdownStats(equity []EquityPoint) (maxDD, avgDD float64) {
	peak := equity[0].Value
	var sum float64
	for _, pt := range equity {
		if pt.Value > peak {
			peak = pt.Value
		}
		var dd float64
		if peak > 0 {
			dd = (peak - pt.Value) / peak
		}
		if dd > maxDD {
			maxDD = dd
		}
		sum += dd
	}
	avgDD = sum / float64(len(equity))
	return maxDD, avgDD
}
