package validate

import (
	"fmt"
	"strings"
)

// FormatReport renders the combined verdict as sectioned plain text.
func FormatReport(r *Result) string {
	var b strings.Builder

	b.WriteString("=================== VALIDATION REPORT ===================\n\n")

	verdict := "FAIL"
	if r.Passed {
		verdict = "PASS"
	}
	fmt.Fprintf(&b, "Verdict: %s    Score: %.1f / 100\n", verdict, r.Score)
	fmt.Fprintf(&b, "  Backtest Quality:  %6.1f / 40\n", r.Subscores.Backtest)
	fmt.Fprintf(&b, "  Robustness:        %6.1f / 30\n", r.Subscores.Robustness)
	fmt.Fprintf(&b, "  Tail Risk:         %6.1f / 20\n", r.Subscores.TailRisk)
	fmt.Fprintf(&b, "  Cost Drag:         %6.1f / 10\n", r.Subscores.CostDrag)

	b.WriteString("\nBacktest\n")
	b.WriteString("--------\n")
	m := r.Backtest
	fmt.Fprintf(&b, "  Total Return:      %10.2f%%\n", m.TotalReturnPct)
	fmt.Fprintf(&b, "  Sharpe Ratio:      %10.2f\n", m.SharpeRatio)
	fmt.Fprintf(&b, "  Max Drawdown:      %10.2f%%\n", m.MaxDrawdownPct)
	fmt.Fprintf(&b, "  Trades:            %10d  (win %.1f%%)\n", m.TotalTrades, m.WinRatePct)

	if mc := r.MonteCarlo; mc != nil {
		b.WriteString("\nRobustness\n")
		b.WriteString("----------\n")
		fmt.Fprintf(&b, "  Sharpe (sim):      %10.2f  [%.2f, %.2f]\n",
			mc.Sharpe.Mean, mc.Sharpe.Lower, mc.Sharpe.Upper)
		fmt.Fprintf(&b, "  Prob of Loss:      %10.1f%%\n", mc.ProbLoss*100)
		fmt.Fprintf(&b, "  Prob of Ruin:      %10.1f%%\n", mc.ProbRuin*100)
		fmt.Fprintf(&b, "  Path Dependency:   %10.2f\n", mc.PathDependency)
	}

	if vr := r.VaR; vr != nil {
		b.WriteString("\nTail Risk\n")
		b.WriteString("---------\n")
		fmt.Fprintf(&b, "  VaR 95 (1d):       %10.2f%%  ($%.0f)\n", vr.VaR95*100, vr.DollarVaR95)
		fmt.Fprintf(&b, "  CVaR 95 (1d):      %10.2f%%  ($%.0f)\n", vr.CVaR95*100, vr.DollarCVaR95)
		fmt.Fprintf(&b, "  VaR 99 (1d):       %10.2f%%  ($%.0f)\n", vr.VaR99*100, vr.DollarVaR99)
	}

	b.WriteString("\nCosts & Regime\n")
	b.WriteString("--------------\n")
	fmt.Fprintf(&b, "  Gross Sharpe:      %10.2f\n", r.GrossSharpe)
	fmt.Fprintf(&b, "  Cost-Adj Sharpe:   %10.2f\n", r.CostAdjustedSharpe)
	fmt.Fprintf(&b, "  Cost Drag:         %10.2f%%\n", r.CostDragPct)
	fmt.Fprintf(&b, "  Market Regime:     %10s  (size %.0f%%)\n",
		r.Regime.Name, r.Regime.PositionScale*100)

	if len(r.FailReasons) > 0 {
		b.WriteString("\nFail Reasons\n")
		b.WriteString("------------\n")
		for _, reason := range r.FailReasons {
			fmt.Fprintf(&b, "  - %s\n", reason)
		}
	}
	if len(r.Notes) > 0 {
		b.WriteString("\nNotes\n")
		b.WriteString("-----\n")
		for _, note := range r.Notes {
			fmt.Fprintf(&b, "  - %s\n", note)
		}
	}

	b.WriteString("\n==========================================================\n")
	return b.String()
}
