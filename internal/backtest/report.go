package backtest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/YoByron/optionslab/internal/models"
)

// FormatReport renders the metrics as a sectioned plain-text report.
func FormatReport(m *Metrics) string {
	var b strings.Builder

	b.WriteString("==================== BACKTEST REPORT ====================\n\n")

	b.WriteString("Returns\n")
	b.WriteString("-------\n")
	fmt.Fprintf(&b, "  Total Return:      %10.2f%%\n", m.TotalReturnPct)
	fmt.Fprintf(&b, "  CAGR:              %10.2f%%\n", m.CAGRPct)
	fmt.Fprintf(&b, "  Sharpe Ratio:      %10.2f\n", m.SharpeRatio)
	fmt.Fprintf(&b, "  Sortino Ratio:     %10.2f\n", m.SortinoRatio)
	fmt.Fprintf(&b, "  Max Drawdown:      %10.2f%%\n", m.MaxDrawdownPct)
	fmt.Fprintf(&b, "  Avg Drawdown:      %10.2f%%\n", m.AvgDrawdownPct)
	fmt.Fprintf(&b, "  Calmar Ratio:      %10.2f\n", m.CalmarRatio)

	b.WriteString("\nTrades\n")
	b.WriteString("------\n")
	fmt.Fprintf(&b, "  Total Trades:      %10d\n", m.TotalTrades)
	fmt.Fprintf(&b, "  Win Rate:          %10.1f%%  (%d W / %d L)\n", m.WinRatePct, m.WinningTrades, m.LosingTrades)
	fmt.Fprintf(&b, "  Profit Factor:     %10.2f\n", m.ProfitFactor)
	fmt.Fprintf(&b, "  Average Win:       %10.2f\n", m.AverageWin)
	fmt.Fprintf(&b, "  Average Loss:      %10.2f\n", m.AverageLoss)
	fmt.Fprintf(&b, "  Largest Win:       %10.2f\n", m.LargestWin)
	fmt.Fprintf(&b, "  Largest Loss:      %10.2f\n", m.LargestLoss)

	b.WriteString("\nOptions\n")
	b.WriteString("-------\n")
	fmt.Fprintf(&b, "  Avg Holding Days:  %10.1f\n", m.AvgHoldingDays)
	fmt.Fprintf(&b, "  Total Commissions: %10.2f\n", m.TotalCommissions)
	fmt.Fprintf(&b, "  Commission %% Gross:%10.2f%%\n", m.CommissionPctGross)
	fmt.Fprintf(&b, "  Avg Net Delta:     %10.3f\n", m.AvgNetDelta)
	fmt.Fprintf(&b, "  Avg Net Theta:     %10.3f\n", m.AvgNetTheta)
	fmt.Fprintf(&b, "  Avg Net Vega:      %10.3f\n", m.AvgNetVega)

	if len(m.ByStrategy) > 0 {
		b.WriteString("\nBy Strategy\n")
		b.WriteString("-----------\n")
		categories := make([]string, 0, len(m.ByStrategy))
		for category := range m.ByStrategy {
			categories = append(categories, string(category))
		}
		sort.Strings(categories)
		for _, category := range categories {
			stats := m.ByStrategy[models.StrategyCategory(category)]
			fmt.Fprintf(&b, "  %-16s trades=%-4d win=%5.1f%%  pnl=%10.2f\n",
				category, stats.Trades, stats.WinRate, stats.TotalPnL)
		}
	}

	b.WriteString("\n==========================================================\n")
	return b.String()
}
