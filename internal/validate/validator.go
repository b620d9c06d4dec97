// Package validate scores a strategy end to end: backtest, resampling
// robustness, tail risk, and transaction-cost drag, reduced to a 0-100 score
// and a pass/fail verdict against configurable thresholds.
package validate

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/YoByron/optionslab/internal/backtest"
	"github.com/YoByron/optionslab/internal/montecarlo"
	"github.com/YoByron/optionslab/internal/risk"
)

// Score weights per category. They sum to 100.
const (
	weightBacktest   = 40.0
	weightRobustness = 30.0
	weightTailRisk   = 20.0
	weightCostDrag   = 10.0
)

// Thresholds are the hard gates a strategy must clear regardless of score.
type Thresholds struct {
	MinScore              float64 `yaml:"min_score"`
	MaxRuinProbability    float64 `yaml:"max_ruin_probability"`
	MaxPathDependency     float64 `yaml:"max_path_dependency"`
	MinCostAdjustedSharpe float64 `yaml:"min_cost_adjusted_sharpe"`
	MaxVaR95Pct           float64 `yaml:"max_var_95_pct"` // daily, fraction
}

// DefaultThresholds are conservative gates for a retail-sized account.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinScore:              60,
		MaxRuinProbability:    0.10,
		MaxPathDependency:     0.50,
		MinCostAdjustedSharpe: 0.50,
		MaxVaR95Pct:           0.03,
	}
}

// Result is the combined verdict for one validation run.
type Result struct {
	Backtest   *backtest.Metrics  `json:"backtest"`
	MonteCarlo *montecarlo.Result `json:"monte_carlo,omitempty"`
	VaR        *risk.Result       `json:"var,omitempty"`
	Regime     Regime             `json:"regime"`

	GrossSharpe        float64 `json:"gross_sharpe"`         // trade-level, before extra costs
	CostAdjustedSharpe float64 `json:"cost_adjusted_sharpe"` // trade-level, after cost model
	CostDragPct        float64 `json:"cost_drag_pct"`        // extra costs as % of gross profit

	Score     float64   `json:"score"` // 0-100
	Subscores Subscores `json:"subscores"`
	Passed    bool      `json:"passed"`

	FailReasons []string `json:"fail_reasons,omitempty"`
	Notes       []string `json:"notes,omitempty"`
}

// Subscores break the total score down by category.
type Subscores struct {
	Backtest   float64 `json:"backtest"`   // out of 40
	Robustness float64 `json:"robustness"` // out of 30
	TailRisk   float64 `json:"tail_risk"`  // out of 20
	CostDrag   float64 `json:"cost_drag"`  // out of 10
}

// Validator orchestrates the full pipeline for one strategy.
type Validator struct {
	backtestCfg backtest.Config
	mcCfg       montecarlo.Config
	mcMethod    montecarlo.Method
	varCfg      risk.Config
	thresholds  Thresholds

	costs   CostModel
	regimes RegimeDetector
	logger  *logrus.Logger
}

// New builds a Validator. Nil collaborators fall back to the in-repo
// baselines so the validator runs standalone.
func New(backtestCfg backtest.Config, mcCfg montecarlo.Config, mcMethod montecarlo.Method,
	varCfg risk.Config, thresholds Thresholds, costs CostModel, regimes RegimeDetector,
	logger *logrus.Logger) *Validator {
	if costs == nil {
		costs = FlatCostModel{SlippagePerContract: 1.0}
	}
	if regimes == nil {
		regimes = DefaultVolRegimeDetector()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Validator{
		backtestCfg: backtestCfg,
		mcCfg:       mcCfg,
		mcMethod:    mcMethod,
		varCfg:      varCfg,
		thresholds:  thresholds,
		costs:       costs,
		regimes:     regimes,
		logger:      logger,
	}
}

// Run executes backtest, simulation, and risk analysis for the strategy over
// the given symbols and produces the combined verdict.
func (v *Validator) Run(ctx context.Context, engine *backtest.Engine,
	strategy backtest.StrategyFunc, symbols []string, tradeFrequencyDays int) (*Result, error) {
	if len(symbols) == 0 {
		return nil, errors.New("no symbols to validate")
	}
	if err := engine.LoadPriceHistory(ctx, symbols...); err != nil {
		return nil, fmt.Errorf("load price history: %w", err)
	}
	if err := engine.RunBacktest(ctx, strategy, symbols, tradeFrequencyDays); err != nil {
		return nil, fmt.Errorf("run backtest: %w", err)
	}
	metrics := engine.CalculateMetrics()
	result := &Result{Backtest: metrics}

	equity := engine.EquityValues()

	sim := montecarlo.New(v.mcCfg, v.logger)
	mc, err := sim.SimulateFromEquityCurve(equity, v.mcMethod)
	switch {
	case errors.Is(err, montecarlo.ErrInsufficientData):
		v.logger.Debug("monte carlo skipped: not enough equity history")
		result.Notes = append(result.Notes, "monte carlo skipped (insufficient history)")
	case err != nil:
		return nil, fmt.Errorf("monte carlo simulation: %w", err)
	default:
		result.MonteCarlo = mc
	}

	calc := risk.NewCalculator(v.varCfg, v.logger)
	varRes, err := calc.CalculateVaR(dailyReturns(equity), currentEquity(equity, v.backtestCfg.InitialCapital))
	switch {
	case errors.Is(err, risk.ErrInsufficientData):
		v.logger.Debug("var skipped: not enough equity history")
		result.Notes = append(result.Notes, "var skipped (insufficient history)")
	case err != nil:
		return nil, fmt.Errorf("var calculation: %w", err)
	default:
		result.VaR = varRes
	}

	if history, ok := engine.History(symbols[0]); ok {
		result.Regime = v.regimes.DetectRegime(history)
	} else {
		result.Regime = Regime{Name: "unknown", PositionScale: 0.5}
	}

	positions := engine.Positions()
	raw := make([]float64, len(positions))
	for i, pos := range positions {
		raw[i] = pos.PnL
	}
	adjusted := v.costs.AdjustPnL(positions)

	result.GrossSharpe = tradeSharpe(raw, v.backtestCfg.InitialCapital, metrics.AvgHoldingDays)
	result.CostAdjustedSharpe = tradeSharpe(adjusted, v.backtestCfg.InitialCapital, metrics.AvgHoldingDays)
	result.CostDragPct = costDragPct(raw, adjusted)

	v.score(result)
	v.verdict(result)
	return result, nil
}

// score fills in the category subscores and the weighted total.
func (v *Validator) score(r *Result) {
	m := r.Backtest
	r.Subscores.Backtest = 15*clamp01(m.SharpeRatio/2) +
		10*clamp01(m.WinRatePct/60) +
		10*profitFactorScore(m.ProfitFactor) +
		5*clamp01(1-m.MaxDrawdownPct/30)

	if mc := r.MonteCarlo; mc != nil {
		ruinLimit := math.Max(v.thresholds.MaxRuinProbability, 1e-9)
		r.Subscores.Robustness = 15*clamp01(1-mc.PathDependency) +
			10*clamp01(1-mc.ProbRuin/ruinLimit) +
			5*clamp01(1-mc.ProbLoss)
	} else {
		// No distribution evidence either way: half credit.
		r.Subscores.Robustness = weightRobustness / 2
	}

	if vr := r.VaR; vr != nil {
		limit := math.Max(v.thresholds.MaxVaR95Pct, 1e-9)
		r.Subscores.TailRisk = weightTailRisk * clamp01(1-math.Abs(vr.VaR95)/limit)
	} else {
		r.Subscores.TailRisk = weightTailRisk / 2
	}

	r.Subscores.CostDrag = weightCostDrag * clamp01(1-r.CostDragPct/50)

	r.Score = r.Subscores.Backtest + r.Subscores.Robustness +
		r.Subscores.TailRisk + r.Subscores.CostDrag
}

// verdict applies the hard gates on top of the score.
func (v *Validator) verdict(r *Result) {
	if r.Backtest.TotalTrades == 0 {
		r.FailReasons = append(r.FailReasons, "no closed trades")
	}
	if mc := r.MonteCarlo; mc != nil {
		if mc.ProbRuin > v.thresholds.MaxRuinProbability {
			r.FailReasons = append(r.FailReasons,
				fmt.Sprintf("ruin probability %.1f%% exceeds %.1f%%",
					mc.ProbRuin*100, v.thresholds.MaxRuinProbability*100))
		}
		if mc.PathDependency > v.thresholds.MaxPathDependency {
			r.FailReasons = append(r.FailReasons,
				fmt.Sprintf("path dependency %.2f exceeds %.2f",
					mc.PathDependency, v.thresholds.MaxPathDependency))
		}
	}
	if r.CostAdjustedSharpe < v.thresholds.MinCostAdjustedSharpe {
		r.FailReasons = append(r.FailReasons,
			fmt.Sprintf("cost-adjusted sharpe %.2f below %.2f",
				r.CostAdjustedSharpe, v.thresholds.MinCostAdjustedSharpe))
	}
	if r.Score < v.thresholds.MinScore {
		r.FailReasons = append(r.FailReasons,
			fmt.Sprintf("score %.1f below %.1f", r.Score, v.thresholds.MinScore))
	}
	r.Passed = len(r.FailReasons) == 0
}

// tradeSharpe annualizes the per-trade return series by trade frequency.
// Trades whose holding period averages h days recur about 252/h times a year.
func tradeSharpe(pnls []float64, capital, avgHoldingDays float64) float64 {
	if len(pnls) < 2 || capital <= 0 {
		return 0
	}
	returns := make([]float64, len(pnls))
	for i, p := range pnls {
		returns[i] = p / capital
	}
	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 {
		return 0
	}
	if avgHoldingDays < 1 {
		avgHoldingDays = 1
	}
	return mean / std * math.Sqrt(252/avgHoldingDays)
}

// costDragPct reports the extra costs as a percentage of gross profit.
func costDragPct(raw, adjusted []float64) float64 {
	var grossProfit, extra float64
	for i := range raw {
		if raw[i] > 0 {
			grossProfit += raw[i]
		}
		extra += raw[i] - adjusted[i]
	}
	if grossProfit <= 0 {
		return 0
	}
	return extra / grossProfit * 100
}

// profitFactorScore maps profit factor to [0,1]: 1.0 is break-even, 2.0+ is
// full marks. An all-winner backtest has infinite profit factor.
func profitFactorScore(pf float64) float64 {
	if math.IsInf(pf, 1) {
		return 1
	}
	return clamp01(pf - 1)
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// dailyReturns converts an equity curve to simple daily returns.
func dailyReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			continue
		}
		out = append(out, equity[i]/equity[i-1]-1)
	}
	return out
}

// currentEquity is the portfolio value VaR figures are scaled by.
func currentEquity(equity []float64, initialCapital float64) float64 {
	if len(equity) == 0 {
		return initialCapital
	}
	return equity[len(equity)-1]
}
