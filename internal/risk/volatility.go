// Package risk provides Value-at-Risk calculation under multiple volatility
// models and a stateful portfolio risk monitor.
package risk

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// ErrGARCHFit is returned when GARCH(1,1) parameter estimation fails or
// produces a non-stationary model.
var ErrGARCHFit = errors.New("garch fit failed")

// garchMinObservations is the sample size below which GARCH estimation is not
// attempted.
const garchMinObservations = 100

// VolatilityForecaster produces a one-step-ahead daily volatility estimate
// from a daily return series.
type VolatilityForecaster interface {
	Forecast(returns []float64) (float64, error)
}

// GARCH11 holds the parameters of a GARCH(1,1) model: tomorrow's variance is
// Omega + Alpha*today's squared shock + Beta*today's variance.
type GARCH11 struct {
	Omega float64 `json:"omega"`
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
}

// stationary reports whether the parameters define a valid mean-reverting
// process.
func (g GARCH11) stationary() bool {
	return g.Omega > 0 && g.Alpha >= 0 && g.Beta >= 0 && g.Alpha+g.Beta < 1
}

// LogLikelihood calculates the Gaussian log-likelihood of the model over the
// return series.
func (g GARCH11) LogLikelihood(returns []float64) float64 {
	variance := g.Omega / (1 - g.Alpha - g.Beta)
	logLik := 0.0
	for i := 1; i < len(returns); i++ {
		variance = g.Omega + g.Alpha*returns[i-1]*returns[i-1] + g.Beta*variance
		if variance <= 0 {
			return math.Inf(-1)
		}
		logLik += -0.5*math.Log(2*math.Pi) - 0.5*math.Log(variance) - 0.5*returns[i]*returns[i]/variance
	}
	return logLik
}

// OneStepVariance filters the variance recursion through the sample and
// returns the forecast for the next day.
func (g GARCH11) OneStepVariance(returns []float64) float64 {
	variance := g.Omega / (1 - g.Alpha - g.Beta)
	for i := 1; i < len(returns); i++ {
		variance = g.Omega + g.Alpha*returns[i-1]*returns[i-1] + g.Beta*variance
	}
	last := returns[len(returns)-1]
	return g.Omega + g.Alpha*last*last + g.Beta*variance
}

// EstimateGARCH11 fits parameters by maximum likelihood with Nelder-Mead,
// starting from a standard volatility-clustering prior scaled to the sample
// variance.
func EstimateGARCH11(returns []float64) (GARCH11, error) {
	if len(returns) < garchMinObservations {
		return GARCH11{}, fmt.Errorf("%d returns, need %d: %w", len(returns), garchMinObservations, ErrGARCHFit)
	}

	sampleVar := stat.Variance(returns, nil)
	if sampleVar <= 0 {
		return GARCH11{}, fmt.Errorf("degenerate sample variance: %w", ErrGARCHFit)
	}

	// alpha=0.1, beta=0.8 with omega matching the unconditional variance
	initial := GARCH11{Omega: sampleVar * 0.1, Alpha: 0.1, Beta: 0.8}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			g := GARCH11{Omega: x[0], Alpha: x[1], Beta: x[2]}
			if !g.stationary() {
				return math.Inf(1)
			}
			return -g.LogLikelihood(returns)
		},
	}

	result, err := optimize.Minimize(problem,
		[]float64{initial.Omega, initial.Alpha, initial.Beta}, nil, &optimize.NelderMead{})
	if err != nil {
		return GARCH11{}, fmt.Errorf("nelder-mead: %w: %v", ErrGARCHFit, err)
	}

	fitted := GARCH11{Omega: result.X[0], Alpha: result.X[1], Beta: result.X[2]}
	if !fitted.stationary() {
		return GARCH11{}, fmt.Errorf("non-stationary parameters (alpha+beta=%.4f): %w",
			fitted.Alpha+fitted.Beta, ErrGARCHFit)
	}
	return fitted, nil
}

// GARCHForecaster estimates a fresh GARCH(1,1) per call and forecasts the
// next day's volatility.
type GARCHForecaster struct{}

// Forecast implements VolatilityForecaster.
func (GARCHForecaster) Forecast(returns []float64) (float64, error) {
	params, err := EstimateGARCH11(returns)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(params.OneStepVariance(returns)), nil
}

// SampleStdForecaster is the constant-volatility fallback: tomorrow looks
// like the sample.
type SampleStdForecaster struct{}

// Forecast implements VolatilityForecaster.
func (SampleStdForecaster) Forecast(returns []float64) (float64, error) {
	if len(returns) < 2 {
		return 0, ErrInsufficientData
	}
	return stat.StdDev(returns, nil), nil
}
