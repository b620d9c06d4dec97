// Package montecarlo stress-tests a realized return sequence by simulating
// many resampled alternatives and reporting the distribution of the headline
// performance metrics.
package montecarlo

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrInsufficientData is returned below the statistical minimum of
// observations.
var ErrInsufficientData = errors.New("insufficient return observations")

// MinObservations is the smallest return sample the simulator accepts.
const MinObservations = 20

const tradingDaysPerYear = 252

// Method selects how each trial transforms the return series.
type Method string

const (
	// MethodShuffle randomly permutes the returns, destroying their order
	// while preserving the multiset.
	MethodShuffle Method = "shuffle"
	// MethodBootstrap samples with replacement to the same length.
	MethodBootstrap Method = "bootstrap"
	// MethodParametric draws i.i.d. normal samples matching the sample
	// mean and standard deviation.
	MethodParametric Method = "parametric"
)

// Valid returns true for a defined method.
func (m Method) Valid() bool {
	switch m {
	case MethodShuffle, MethodBootstrap, MethodParametric:
		return true
	}
	return false
}

// Config holds simulation parameters. Zero values take documented defaults.
type Config struct {
	Trials        int     // default 1000
	RuinThreshold float64 // drawdown fraction counted as ruin, default 0.20
	RiskFreeRate  float64 // annualized, decimal, default 0.04
	Seed          uint64  // RNG seed; equal seeds reproduce results at any worker count
	Workers       int     // default runtime.NumCPU()
}

func (c Config) withDefaults() Config {
	if c.Trials <= 0 {
		c.Trials = 1000
	}
	if c.RuinThreshold <= 0 {
		c.RuinThreshold = 0.20
	}
	if c.RiskFreeRate == 0 {
		c.RiskFreeRate = 0.04
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	return c
}

// MetricBand summarizes one metric's simulated distribution against its
// original, unsimulated value. For drawdown the upper bound is the 95th
// percentile (the worst case) rather than a symmetric band.
type MetricBand struct {
	Original float64 `json:"original"`
	Mean     float64 `json:"mean"`
	Std      float64 `json:"std"`
	Lower    float64 `json:"lower"`
	Upper    float64 `json:"upper"`
}

// Result is the immutable outcome of one simulation run. Return and drawdown
// figures are fractions, Sharpe is dimensionless.
type Result struct {
	Method Method `json:"method"`
	Trials int    `json:"trials"`

	Sharpe      MetricBand `json:"sharpe"`
	TotalReturn MetricBand `json:"total_return"`
	MaxDrawdown MetricBand `json:"max_drawdown"`

	ProbLoss            float64 `json:"prob_loss"`             // fraction of trials with negative return
	ProbRuin            float64 `json:"prob_ruin"`             // fraction of trials breaching the ruin threshold
	VaR95               float64 `json:"var_95"`                // 5th percentile of simulated total returns
	ExpectedShortfall95 float64 `json:"expected_shortfall_95"` // mean of returns at or below VaR95

	// PathDependency scores in [0,1] how much the original result depends
	// on the specific ordering of returns. Near 0: order-independent.
	PathDependency float64 `json:"path_dependency"`
}

// Simulator runs independent resampling trials. Each trial draws from its own
// seeded stream and results are combined only by aggregation after all trials
// complete.
type Simulator struct {
	cfg    Config
	logger *logrus.Logger
}

// New creates a simulator.
func New(cfg Config, logger *logrus.Logger) *Simulator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Simulator{cfg: cfg.withDefaults(), logger: logger}
}

// SimulateFromReturns runs the configured number of trials over the daily
// return series. Non-finite observations are stripped; fewer than
// MinObservations finite returns is an error.
func (s *Simulator) SimulateFromReturns(returns []float64, method Method) (*Result, error) {
	if !method.Valid() {
		return nil, fmt.Errorf("unknown simulation method %q", method)
	}
	clean := stripNonFinite(returns)
	if len(clean) < MinObservations {
		return nil, fmt.Errorf("%d finite returns, need %d: %w", len(clean), MinObservations, ErrInsufficientData)
	}

	original := evaluate(clean, s.cfg.RiskFreeRate)
	mean, std := stat.MeanStdDev(clean, nil)

	trials := s.cfg.Trials
	sharpes := make([]float64, trials)
	totals := make([]float64, trials)
	drawdowns := make([]float64, trials)

	var g errgroup.Group
	workers := s.cfg.Workers
	chunk := (trials + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > trials {
			hi = trials
		}
		if lo >= hi {
			break
		}
		g.Go(func() error {
			sample := make([]float64, len(clean))
			for i := lo; i < hi; i++ {
				// One stream per trial, so equal seeds reproduce the run
				// no matter how the trials are split across workers.
				rng := rand.New(rand.NewSource(s.cfg.Seed + uint64(i)*0x9E3779B97F4A7C15 + 1))
				normal := distuv.Normal{Mu: mean, Sigma: std, Src: rng}
				resample(clean, sample, method, rng, normal)
				metrics := evaluate(sample, s.cfg.RiskFreeRate)
				sharpes[i] = metrics.sharpe
				totals[i] = metrics.totalReturn
				drawdowns[i] = metrics.maxDrawdown
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{
		Method:      method,
		Trials:      trials,
		Sharpe:      band(original.sharpe, sharpes, false),
		TotalReturn: band(original.totalReturn, totals, false),
		MaxDrawdown: band(original.maxDrawdown, drawdowns, true),
	}

	var losses, ruins int
	for i := 0; i < trials; i++ {
		if totals[i] < 0 {
			losses++
		}
		if drawdowns[i] > s.cfg.RuinThreshold {
			ruins++
		}
	}
	result.ProbLoss = float64(losses) / float64(trials)
	result.ProbRuin = float64(ruins) / float64(trials)

	sortedTotals := sortedCopy(totals)
	result.VaR95 = stat.Quantile(0.05, stat.Empirical, sortedTotals, nil)
	var tailSum float64
	var tailN int
	for _, r := range sortedTotals {
		if r <= result.VaR95 {
			tailSum += r
			tailN++
		}
	}
	if tailN > 0 {
		result.ExpectedShortfall95 = tailSum / float64(tailN)
	}

	bandWidth := result.Sharpe.Upper - result.Sharpe.Lower
	result.PathDependency = math.Min(1,
		math.Abs(original.sharpe-result.Sharpe.Mean)/math.Max(bandWidth, 0.1))

	s.logger.WithFields(logrus.Fields{
		"method":    method,
		"trials":    trials,
		"prob_loss": result.ProbLoss,
		"prob_ruin": result.ProbRuin,
	}).Debug("simulation complete")

	return result, nil
}

// SimulateFromEquityCurve converts a portfolio-value series to daily returns
// and delegates to SimulateFromReturns.
func (s *Simulator) SimulateFromEquityCurve(equity []float64, method Method) (*Result, error) {
	if len(equity) < 2 {
		return nil, fmt.Errorf("equity curve too short: %w", ErrInsufficientData)
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			continue
		}
		returns = append(returns, (equity[i]-equity[i-1])/equity[i-1])
	}
	return s.SimulateFromReturns(returns, method)
}

// resample fills sample from base according to the method.
func resample(base, sample []float64, method Method, rng *rand.Rand, normal distuv.Normal) {
	switch method {
	case MethodShuffle:
		perm := rng.Perm(len(base))
		for i, j := range perm {
			sample[i] = base[j]
		}
	case MethodBootstrap:
		for i := range sample {
			sample[i] = base[rng.Intn(len(base))]
		}
	case MethodParametric:
		for i := range sample {
			sample[i] = normal.Rand()
		}
	}
}

// trialMetrics are the per-series performance figures recomputed every trial.
type trialMetrics struct {
	sharpe      float64
	totalReturn float64
	maxDrawdown float64
}

func evaluate(returns []float64, riskFreeRate float64) trialMetrics {
	mean, std := stat.MeanStdDev(returns, nil)

	var m trialMetrics
	if std > 0 {
		dailyRF := riskFreeRate / tradingDaysPerYear
		m.sharpe = (mean - dailyRF) / std * math.Sqrt(tradingDaysPerYear)
	}

	equity := 1.0
	peak := 1.0
	for _, r := range returns {
		equity *= 1 + r
		if equity > peak {
			peak = equity
		}
		if dd := (peak - equity) / peak; dd > m.maxDrawdown {
			m.maxDrawdown = dd
		}
	}
	m.totalReturn = equity - 1
	return m
}

// band aggregates a trial metric. Drawdown reports its worst case as the
// upper bound instead of a symmetric interval.
func band(original float64, samples []float64, worstCaseUpper bool) MetricBand {
	mean, std := stat.MeanStdDev(samples, nil)
	sorted := sortedCopy(samples)

	b := MetricBand{Original: original, Mean: mean, Std: std}
	if worstCaseUpper {
		b.Lower = stat.Quantile(0.05, stat.Empirical, sorted, nil)
		b.Upper = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	} else {
		b.Lower = stat.Quantile(0.025, stat.Empirical, sorted, nil)
		b.Upper = stat.Quantile(0.975, stat.Empirical, sorted, nil)
	}
	return b
}

func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}

func stripNonFinite(returns []float64) []float64 {
	out := make([]float64, 0, len(returns))
	for _, r := range returns {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			continue
		}
		out = append(out, r)
	}
	return out
}
