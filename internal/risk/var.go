package risk

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrInsufficientData is returned below the statistical minimum of return
// observations.
var ErrInsufficientData = errors.New("insufficient return observations")

// MinObservations is the smallest return sample the calculator accepts.
const MinObservations = 20

// Method selects how VaR is estimated.
type Method string

const (
	// MethodHistorical takes empirical percentiles of the sample.
	MethodHistorical Method = "historical"
	// MethodParametric assumes normal returns, with a GARCH(1,1) one-step
	// volatility forecast when enough history is available.
	MethodParametric Method = "parametric"
	// MethodMonteCarlo draws normal samples and applies the historical
	// estimator to the simulated sample.
	MethodMonteCarlo Method = "monte_carlo"
)

// Valid returns true for a defined method.
func (m Method) Valid() bool {
	switch m {
	case MethodHistorical, MethodParametric, MethodMonteCarlo:
		return true
	}
	return false
}

// Config holds calculator parameters. Zero values take documented defaults.
type Config struct {
	Method      Method
	HorizonDays int    // risk horizon; returns scale by sqrt(horizon), default 1
	Trials      int    // Monte Carlo sample size, default 10000
	Seed        uint64 // Monte Carlo RNG seed
}

func (c Config) withDefaults() Config {
	if c.Method == "" {
		c.Method = MethodHistorical
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 1
	}
	if c.Trials <= 0 {
		c.Trials = 10000
	}
	return c
}

// Result reports VaR and CVaR at the 95% and 99% confidence levels. The
// fractional fields are signed returns (a loss is negative); the dollar
// fields convert them with PortfolioValue.
type Result struct {
	Method         Method  `json:"method"`
	HorizonDays    int     `json:"horizon_days"`
	PortfolioValue float64 `json:"portfolio_value"` // dollars

	VaR95  float64 `json:"var_95"`  // fraction
	CVaR95 float64 `json:"cvar_95"` // fraction
	VaR99  float64 `json:"var_99"`  // fraction
	CVaR99 float64 `json:"cvar_99"` // fraction

	DollarVaR95  float64 `json:"dollar_var_95"`
	DollarCVaR95 float64 `json:"dollar_cvar_95"`
	DollarVaR99  float64 `json:"dollar_var_99"`
	DollarCVaR99 float64 `json:"dollar_cvar_99"`
}

// Calculator computes VaR/CVaR from daily returns. It consults the GARCH
// forecaster for parametric volatility when the sample is large enough and
// falls back to the sample standard deviation when the fit fails; the
// fallback is logged at debug level, never surfaced as an error.
type Calculator struct {
	cfg      Config
	garch    VolatilityForecaster
	fallback VolatilityForecaster
	logger   *logrus.Logger
}

// NewCalculator creates a calculator with the standard forecaster pair.
func NewCalculator(cfg Config, logger *logrus.Logger) *Calculator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Calculator{
		cfg:      cfg.withDefaults(),
		garch:    GARCHForecaster{},
		fallback: SampleStdForecaster{},
		logger:   logger,
	}
}

// CalculateVaR computes VaR and CVaR at 95% and 99% confidence over the
// configured horizon.
//
// Fewer than MinObservations finite returns yields ErrInsufficientData. This
// is a deliberate policy choice: callers that prefer a silent zero result
// (no alarm on short history) should treat that error as such, the way the
// Monitor does.
func (c *Calculator) CalculateVaR(returns []float64, portfolioValue float64) (*Result, error) {
	clean := make([]float64, 0, len(returns))
	for _, r := range returns {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			continue
		}
		clean = append(clean, r)
	}
	if len(clean) < MinObservations {
		return nil, fmt.Errorf("%d finite returns, need %d: %w", len(clean), MinObservations, ErrInsufficientData)
	}

	// square-root-of-time scaling to the risk horizon
	if c.cfg.HorizonDays > 1 {
		scale := math.Sqrt(float64(c.cfg.HorizonDays))
		scaled := make([]float64, len(clean))
		for i, r := range clean {
			scaled[i] = r * scale
		}
		clean = scaled
	}

	result := &Result{
		Method:         c.cfg.Method,
		HorizonDays:    c.cfg.HorizonDays,
		PortfolioValue: portfolioValue,
	}

	switch c.cfg.Method {
	case MethodHistorical:
		result.VaR95, result.CVaR95 = empiricalVaR(clean, 0.95)
		result.VaR99, result.CVaR99 = empiricalVaR(clean, 0.99)
	case MethodParametric:
		mu := stat.Mean(clean, nil)
		sigma := c.forecastVolatility(clean)
		result.VaR95, result.CVaR95 = normalVaR(mu, sigma, 0.95)
		result.VaR99, result.CVaR99 = normalVaR(mu, sigma, 0.99)
	case MethodMonteCarlo:
		mu, sigma := stat.MeanStdDev(clean, nil)
		simulated := c.simulateNormal(mu, sigma)
		result.VaR95, result.CVaR95 = empiricalVaR(simulated, 0.95)
		result.VaR99, result.CVaR99 = empiricalVaR(simulated, 0.99)
	default:
		return nil, fmt.Errorf("unknown VaR method %q", c.cfg.Method)
	}

	result.DollarVaR95 = result.VaR95 * portfolioValue
	result.DollarCVaR95 = result.CVaR95 * portfolioValue
	result.DollarVaR99 = result.VaR99 * portfolioValue
	result.DollarCVaR99 = result.CVaR99 * portfolioValue
	return result, nil
}

// forecastVolatility prefers the GARCH one-step forecast on large samples and
// silently downgrades to the sample standard deviation.
func (c *Calculator) forecastVolatility(returns []float64) float64 {
	if len(returns) >= garchMinObservations {
		sigma, err := c.garch.Forecast(returns)
		if err == nil && sigma > 0 {
			return sigma
		}
		c.logger.WithError(err).Debug("garch forecast unavailable, using sample volatility")
	}
	sigma, err := c.fallback.Forecast(returns)
	if err != nil {
		return 0
	}
	return sigma
}

func (c *Calculator) simulateNormal(mu, sigma float64) []float64 {
	normal := distuv.Normal{Mu: mu, Sigma: sigma, Src: rand.New(rand.NewSource(c.cfg.Seed))}
	out := make([]float64, c.cfg.Trials)
	for i := range out {
		out[i] = normal.Rand()
	}
	return out
}

// empiricalVaR takes the (1-c) percentile and the mean of the tail at or
// below it.
func empiricalVaR(returns []float64, confidence float64) (varX, cvar float64) {
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	varX = stat.Quantile(1-confidence, stat.Empirical, sorted, nil)

	var tailSum float64
	var tailN int
	for _, r := range sorted {
		if r <= varX {
			tailSum += r
			tailN++
		} else {
			break
		}
	}
	if tailN > 0 {
		cvar = tailSum / float64(tailN)
	} else {
		cvar = varX
	}
	return varX, cvar
}

// normalVaR is the closed-form normal quantile and tail expectation.
func normalVaR(mu, sigma, confidence float64) (varX, cvar float64) {
	std := distuv.Normal{Mu: 0, Sigma: 1}
	z := std.Quantile(1 - confidence)
	varX = mu + z*sigma
	cvar = mu - sigma*std.Prob(z)/(1-confidence)
	return varX, cvar
}
