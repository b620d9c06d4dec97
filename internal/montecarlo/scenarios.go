package montecarlo

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Scenario is a named stress applied to the return series before simulation.
// ReturnShock is a total return applied across the whole series (spread
// per-day); VolMultiplier scales deviations around the mean.
type Scenario struct {
	Name          string  `json:"name"`
	ReturnShock   float64 `json:"return_shock"`
	VolMultiplier float64 `json:"vol_multiplier"`
}

// DefaultScenarios mirrors the standard stress ladder from benign to crash.
func DefaultScenarios() []Scenario {
	return []Scenario{
		{Name: "base", ReturnShock: 0, VolMultiplier: 1.0},
		{Name: "mild_correction", ReturnShock: -0.05, VolMultiplier: 1.2},
		{Name: "moderate_selloff", ReturnShock: -0.10, VolMultiplier: 1.5},
		{Name: "severe_crash", ReturnShock: -0.20, VolMultiplier: 2.0},
		{Name: "historical_crisis", ReturnShock: -0.35, VolMultiplier: 2.5},
		{Name: "flash_crash", ReturnShock: -0.10, VolMultiplier: 3.0},
	}
}

// StressTestScenarios re-centers and re-scales the return series per scenario
// and runs a full simulation on each, keyed by scenario name.
func (s *Simulator) StressTestScenarios(returns []float64, scenarios []Scenario, method Method) (map[string]*Result, error) {
	if len(scenarios) == 0 {
		scenarios = DefaultScenarios()
	}
	clean := stripNonFinite(returns)
	if len(clean) < MinObservations {
		return nil, fmt.Errorf("%d finite returns, need %d: %w", len(clean), MinObservations, ErrInsufficientData)
	}

	mean := stat.Mean(clean, nil)
	results := make(map[string]*Result, len(scenarios))
	for _, scenario := range scenarios {
		stressed := make([]float64, len(clean))
		dailyShock := scenario.ReturnShock / float64(len(clean))
		for i, r := range clean {
			stressed[i] = mean + (r-mean)*scenario.VolMultiplier + dailyShock
		}

		result, err := s.SimulateFromReturns(stressed, method)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
		}
		results[scenario.Name] = result
	}
	return results, nil
}
