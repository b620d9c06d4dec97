package montecarlo

import (
	"io"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// syntheticReturns draws n daily returns around the given mean/std.
func syntheticReturns(n int, mean, std float64, seed uint64) []float64 {
	normal := distuv.Normal{Mu: mean, Sigma: std, Src: rand.New(rand.NewSource(seed))}
	out := make([]float64, n)
	for i := range out {
		out[i] = normal.Rand()
	}
	return out
}

func TestSimulateFromReturns_InsufficientData(t *testing.T) {
	sim := New(Config{Trials: 100, Seed: 1}, quietLogger())
	_, err := sim.SimulateFromReturns(make([]float64, MinObservations-1), MethodShuffle)
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestSimulateFromReturns_StripsNonFinite(t *testing.T) {
	returns := syntheticReturns(25, 0.001, 0.01, 3)
	returns = append(returns, math.NaN(), math.Inf(1))

	sim := New(Config{Trials: 50, Seed: 1}, quietLogger())
	result, err := sim.SimulateFromReturns(returns, MethodShuffle)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(result.Sharpe.Mean), "non-finite inputs must not poison the simulation")
}

func TestShuffle_PreservesTotalReturnExactly(t *testing.T) {
	returns := syntheticReturns(60, 0.0006, 0.0094, 7)
	sim := New(Config{Trials: 500, Seed: 42}, quietLogger())

	result, err := sim.SimulateFromReturns(returns, MethodShuffle)
	require.NoError(t, err)

	// compounding is order-independent: every shuffled trial reproduces the
	// original total return
	assert.InDelta(t, result.TotalReturn.Original, result.TotalReturn.Mean, 1e-9)
	assert.InDelta(t, 0, result.TotalReturn.Std, 1e-9)

	// Sharpe depends only on mean/std of the sample, so shuffling leaves it
	// unchanged as well
	assert.InDelta(t, result.Sharpe.Original, result.Sharpe.Mean, 1e-9)
}

func TestBootstrap_VariesTotalReturn(t *testing.T) {
	returns := syntheticReturns(60, 0.0006, 0.0094, 7)
	sim := New(Config{Trials: 500, Seed: 42}, quietLogger())

	result, err := sim.SimulateFromReturns(returns, MethodBootstrap)
	require.NoError(t, err)
	assert.Positive(t, result.TotalReturn.Std, "bootstrap resampling should spread total returns")
}

// standardizedReturns rescales a draw so the sample moments match exactly.
func standardizedReturns(n int, mean, std float64, seed uint64) []float64 {
	out := syntheticReturns(n, mean, std, seed)
	m, s := stat.MeanStdDev(out, nil)
	for i := range out {
		out[i] = mean + (out[i]-m)/s*std
	}
	return out
}

func TestSimulate_EndToEndMildSeries(t *testing.T) {
	// ~15% annualized return at 15% annualized vol, exact sample moments
	returns := standardizedReturns(60, 0.0006, 0.0094, 11)
	sim := New(Config{Trials: 1000, Seed: 9, RiskFreeRate: 0}, quietLogger())

	result, err := sim.SimulateFromReturns(returns, MethodBootstrap)
	require.NoError(t, err)

	expectedSharpe := 0.0006 / 0.0094 * math.Sqrt(252) // ~1.01
	assert.InDelta(t, expectedSharpe, result.Sharpe.Mean, 0.3,
		"simulated mean Sharpe should be near the analytic value")
	assert.Less(t, result.ProbRuin, 0.02, "mild volatility should almost never breach a 20%% drawdown")
	assert.GreaterOrEqual(t, result.PathDependency, 0.0)
	assert.LessOrEqual(t, result.PathDependency, 1.0)
}

func TestSimulate_Reproducible(t *testing.T) {
	returns := syntheticReturns(60, 0.0006, 0.0094, 5)

	a, err := New(Config{Trials: 200, Seed: 123, Workers: 4}, quietLogger()).
		SimulateFromReturns(returns, MethodParametric)
	require.NoError(t, err)
	b, err := New(Config{Trials: 200, Seed: 123, Workers: 4}, quietLogger()).
		SimulateFromReturns(returns, MethodParametric)
	require.NoError(t, err)

	assert.Equal(t, a.Sharpe.Mean, b.Sharpe.Mean, "equal seeds must reproduce the run")
	assert.Equal(t, a.VaR95, b.VaR95)
}

func TestSimulate_ReproducibleAcrossWorkerCounts(t *testing.T) {
	returns := syntheticReturns(60, 0.0006, 0.0094, 5)

	for _, method := range []Method{MethodShuffle, MethodBootstrap, MethodParametric} {
		serial, err := New(Config{Trials: 200, Seed: 123, Workers: 1}, quietLogger()).
			SimulateFromReturns(returns, method)
		require.NoError(t, err)
		parallel, err := New(Config{Trials: 200, Seed: 123, Workers: 7}, quietLogger()).
			SimulateFromReturns(returns, method)
		require.NoError(t, err)

		assert.Equal(t, serial.Sharpe.Mean, parallel.Sharpe.Mean,
			"%s: worker count must not change seeded results", method)
		assert.Equal(t, serial.TotalReturn.Mean, parallel.TotalReturn.Mean, "%s", method)
		assert.Equal(t, serial.VaR95, parallel.VaR95, "%s", method)
		assert.Equal(t, serial.ProbRuin, parallel.ProbRuin, "%s", method)
	}
}

func TestSimulate_UnknownMethod(t *testing.T) {
	sim := New(Config{Trials: 10, Seed: 1}, quietLogger())
	_, err := sim.SimulateFromReturns(syntheticReturns(30, 0, 0.01, 2), Method("levy"))
	require.Error(t, err)
}

func TestVaRAndShortfallOrdering(t *testing.T) {
	returns := syntheticReturns(120, 0.0002, 0.015, 21)
	sim := New(Config{Trials: 1000, Seed: 4}, quietLogger())

	result, err := sim.SimulateFromReturns(returns, MethodBootstrap)
	require.NoError(t, err)
	assert.LessOrEqual(t, result.ExpectedShortfall95, result.VaR95,
		"expected shortfall averages the tail at or below VaR")
}

func TestSimulateFromEquityCurve(t *testing.T) {
	equity := []float64{100_000}
	returns := syntheticReturns(60, 0.0006, 0.0094, 13)
	for _, r := range returns {
		equity = append(equity, equity[len(equity)-1]*(1+r))
	}

	sim := New(Config{Trials: 200, Seed: 8}, quietLogger())
	fromEquity, err := sim.SimulateFromEquityCurve(equity, MethodShuffle)
	require.NoError(t, err)
	fromReturns, err := sim.SimulateFromReturns(returns, MethodShuffle)
	require.NoError(t, err)

	assert.InDelta(t, fromReturns.TotalReturn.Original, fromEquity.TotalReturn.Original, 1e-9,
		"equity-curve conversion must reproduce the underlying returns")
}

func TestStressTestScenarios(t *testing.T) {
	returns := syntheticReturns(120, 0.0006, 0.0094, 17)
	sim := New(Config{Trials: 300, Seed: 2}, quietLogger())

	results, err := sim.StressTestScenarios(returns, nil, MethodBootstrap)
	require.NoError(t, err)

	for _, name := range []string{"base", "mild_correction", "moderate_selloff", "severe_crash", "historical_crisis", "flash_crash"} {
		require.Contains(t, results, name)
	}

	base := results["base"]
	severe := results["severe_crash"]
	assert.Less(t, severe.TotalReturn.Mean, base.TotalReturn.Mean,
		"a crash scenario must hurt mean total return")
	assert.GreaterOrEqual(t, severe.ProbRuin, base.ProbRuin,
		"a crash scenario cannot reduce ruin probability")
}
