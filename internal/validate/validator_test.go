package validate

import (
	"context"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YoByron/optionslab/internal/backtest"
	"github.com/YoByron/optionslab/internal/marketdata"
	"github.com/YoByron/optionslab/internal/models"
	"github.com/YoByron/optionslab/internal/montecarlo"
	"github.com/YoByron/optionslab/internal/pricing"
	"github.com/YoByron/optionslab/internal/risk"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testValidator() *Validator {
	backtestCfg := backtest.Config{
		Start:                 time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC),
		End:                   time.Date(2023, 12, 29, 0, 0, 0, 0, time.UTC),
		InitialCapital:        100_000,
		CommissionPerContract: 0.65,
		RiskFreeRate:          0.04,
	}
	mcCfg := montecarlo.Config{Trials: 500, Seed: 42, Workers: 2}
	varCfg := risk.Config{Method: risk.MethodHistorical, Seed: 42}
	return New(backtestCfg, mcCfg, montecarlo.MethodShuffle, varCfg,
		DefaultThresholds(), nil, nil, quietLogger())
}

func weekdayOnOrBefore(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, -2)
	}
	return d
}

// shortPutStrategy sells one 5% OTM put expiring ~21 days out.
func shortPutStrategy(symbol string, date time.Time, history *marketdata.PriceHistory) (*models.OptionsPosition, error) {
	bar, ok := history.LastBar()
	if !ok {
		return nil, nil
	}
	iv := history.IVEstimate[history.Len()-1]
	if iv <= 0 {
		return nil, nil
	}

	expiration := weekdayOnOrBefore(date.AddDate(0, 0, 21))
	strike := bar.Close * 0.95
	tte := expiration.Sub(date).Hours() / 24 / 365

	quote := pricing.Price(pricing.Input{
		Spot: bar.Close, Strike: strike, TimeToExpiry: tte,
		RiskFreeRate: 0.04, Volatility: iv, Kind: pricing.Put,
	})
	leg, err := models.NewOptionLeg(pricing.Put, strike, expiration, -1, quote.Price,
		models.Greeks{Delta: quote.Delta, Gamma: quote.Gamma, Theta: quote.Theta, Vega: quote.Vega})
	if err != nil {
		return nil, err
	}
	return models.NewPosition(symbol, models.StrategyCreditSpread, []models.OptionLeg{leg}, date, bar.Close)
}

func TestValidator_EndToEnd(t *testing.T) {
	v := testValidator()
	engine := backtest.NewEngine(v.backtestCfg, marketdata.NewSyntheticProvider(3), quietLogger())

	result, err := v.Run(context.Background(), engine, shortPutStrategy, []string{"SPY"}, 7)
	require.NoError(t, err)

	require.NotNil(t, result.Backtest)
	assert.Positive(t, result.Backtest.TotalTrades)
	require.NotNil(t, result.MonteCarlo, "a year of weekday equity should be enough history")
	require.NotNil(t, result.VaR)

	assert.GreaterOrEqual(t, result.Score, 0.0)
	assert.LessOrEqual(t, result.Score, 100.0)
	total := result.Subscores.Backtest + result.Subscores.Robustness +
		result.Subscores.TailRisk + result.Subscores.CostDrag
	assert.InDelta(t, result.Score, total, 1e-9)

	assert.Contains(t, []string{"calm", "normal", "turbulent"}, result.Regime.Name)
	assert.Positive(t, result.Regime.PositionScale)

	// extra slippage can only hurt
	assert.LessOrEqual(t, result.CostAdjustedSharpe, result.GrossSharpe)
	assert.GreaterOrEqual(t, result.CostDragPct, 0.0)
}

func TestValidator_NoTradesFails(t *testing.T) {
	v := testValidator()
	engine := backtest.NewEngine(v.backtestCfg, marketdata.NewSyntheticProvider(3), quietLogger())

	sitOut := func(string, time.Time, *marketdata.PriceHistory) (*models.OptionsPosition, error) {
		return nil, nil
	}
	result, err := v.Run(context.Background(), engine, sitOut, []string{"SPY"}, 7)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Backtest.TotalTrades)
	assert.False(t, result.Passed)
	assert.NotEmpty(t, result.FailReasons)
}

func TestValidator_NoSymbols(t *testing.T) {
	v := testValidator()
	engine := backtest.NewEngine(v.backtestCfg, marketdata.NewSyntheticProvider(3), quietLogger())

	sitOut := func(string, time.Time, *marketdata.PriceHistory) (*models.OptionsPosition, error) {
		return nil, nil
	}
	result, err := v.Run(context.Background(), engine, sitOut, nil, 7)
	require.Error(t, err)
	assert.Nil(t, result)
}

func TestScore_PerfectAndWorstCases(t *testing.T) {
	v := testValidator()

	strong := &Result{
		Backtest: &backtest.Metrics{
			SharpeRatio:    2.5,
			WinRatePct:     70,
			ProfitFactor:   3.0,
			MaxDrawdownPct: 5,
			TotalTrades:    40,
		},
		MonteCarlo: &montecarlo.Result{
			PathDependency: 0.05,
			ProbRuin:       0.0,
			ProbLoss:       0.05,
		},
		VaR:                &risk.Result{VaR95: -0.005},
		CostAdjustedSharpe: 1.5,
		CostDragPct:        5,
	}
	v.score(strong)
	v.verdict(strong)
	assert.Greater(t, strong.Score, 80.0)
	assert.True(t, strong.Passed)

	weak := &Result{
		Backtest: &backtest.Metrics{
			SharpeRatio:    -0.5,
			WinRatePct:     20,
			ProfitFactor:   0.6,
			MaxDrawdownPct: 45,
			TotalTrades:    40,
		},
		MonteCarlo: &montecarlo.Result{
			PathDependency: 0.9,
			ProbRuin:       0.4,
			ProbLoss:       0.8,
		},
		VaR:                &risk.Result{VaR95: -0.08},
		CostAdjustedSharpe: -0.3,
		CostDragPct:        60,
	}
	v.score(weak)
	v.verdict(weak)
	assert.Less(t, weak.Score, 20.0)
	assert.False(t, weak.Passed)
	assert.NotEmpty(t, weak.FailReasons)
}

func TestScore_MissingEvidenceGetsHalfCredit(t *testing.T) {
	v := testValidator()
	r := &Result{Backtest: &backtest.Metrics{}}
	v.score(r)
	assert.InDelta(t, weightRobustness/2, r.Subscores.Robustness, 1e-9)
	assert.InDelta(t, weightTailRisk/2, r.Subscores.TailRisk, 1e-9)
}

func TestFlatCostModel(t *testing.T) {
	m := FlatCostModel{SlippagePerContract: 1.5}
	assert.InDelta(t, 6.0, m.EstimateRoundTripCost(2, 0), 1e-9)

	pos := &models.OptionsPosition{PnL: 100}
	leg, err := models.NewOptionLeg(pricing.Put, 95, time.Now().AddDate(0, 0, 21), -2, 1.0, models.Greeks{})
	require.NoError(t, err)
	pos.Legs = []models.OptionLeg{leg}

	adjusted := m.AdjustPnL([]*models.OptionsPosition{pos})
	require.Len(t, adjusted, 1)
	assert.InDelta(t, 94.0, adjusted[0], 1e-9)
	assert.InDelta(t, 100.0, pos.PnL, 1e-9, "positions must not be mutated")
}

func TestVolRegimeDetector_Buckets(t *testing.T) {
	detector := DefaultVolRegimeDetector()

	flat := syntheticBars(t, func(i int) float64 { return 450 })
	calm := detector.DetectRegime(flat)
	assert.Equal(t, "calm", calm.Name)
	assert.InDelta(t, 1.0, calm.PositionScale, 1e-9)

	wild := syntheticBars(t, func(i int) float64 {
		if i%2 == 0 {
			return 450
		}
		return 472
	})
	turbulent := detector.DetectRegime(wild)
	assert.Equal(t, "turbulent", turbulent.Name)
	assert.InDelta(t, 0.5, turbulent.PositionScale, 1e-9)

	unknown := detector.DetectRegime(nil)
	assert.Equal(t, "unknown", unknown.Name)
}

func syntheticBars(t *testing.T, price func(int) float64) *marketdata.PriceHistory {
	t.Helper()
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]marketdata.PriceBar, 0, 90)
	day := start
	for i := 0; len(bars) < 90; i++ {
		if day.Weekday() != time.Saturday && day.Weekday() != time.Sunday {
			p := price(len(bars))
			bars = append(bars, marketdata.PriceBar{
				Date: day, Open: p, High: p, Low: p, Close: p, Volume: 1_000_000,
			})
		}
		day = day.AddDate(0, 0, 1)
	}
	return marketdata.NewPriceHistory("SPY", bars)
}

func TestTradeSharpe(t *testing.T) {
	assert.Zero(t, tradeSharpe([]float64{100}, 100_000, 10), "one trade is not a distribution")
	assert.Zero(t, tradeSharpe([]float64{100, 100, 100}, 100_000, 10), "zero variance")

	s := tradeSharpe([]float64{500, 300, -100, 400, 200}, 100_000, 21)
	assert.Positive(t, s)
	assert.False(t, math.IsNaN(s))
}

func TestCostDragPct(t *testing.T) {
	raw := []float64{100, -50, 200}
	adjusted := []float64{94, -56, 194}
	// extra cost 18 over gross profit 300
	assert.InDelta(t, 6.0, costDragPct(raw, adjusted), 1e-9)

	assert.Zero(t, costDragPct([]float64{-10, -20}, []float64{-16, -26}), "no gross profit")
}

func TestFormatReport_Sections(t *testing.T) {
	v := testValidator()
	engine := backtest.NewEngine(v.backtestCfg, marketdata.NewSyntheticProvider(3), quietLogger())
	result, err := v.Run(context.Background(), engine, shortPutStrategy, []string{"SPY"}, 7)
	require.NoError(t, err)

	report := FormatReport(result)
	for _, section := range []string{
		"VALIDATION REPORT", "Verdict:", "Backtest", "Robustness",
		"Tail Risk", "Costs & Regime",
	} {
		assert.True(t, strings.Contains(report, section), "missing section %q", section)
	}
}
