// Package pricing provides closed-form option valuation and Greeks under the
// Black-Scholes-Merton model with continuous dividend yield.
package pricing

import (
	"math"
)

// OptionKind identifies the option contract type.
type OptionKind string

const (
	// Call is a call option.
	Call OptionKind = "call"
	// Put is a put option.
	Put OptionKind = "put"
)

// Valid returns true if the OptionKind is one of the defined constants.
func (k OptionKind) Valid() bool {
	return k == Call || k == Put
}

// DefaultIVMultiplier is the premium applied over historical volatility when
// no market-quoted implied volatility is available.
const DefaultIVMultiplier = 1.2

// Input holds the pricing parameters for a single option contract.
type Input struct {
	Spot          float64    // current underlying price, dollars
	Strike        float64    // strike price, dollars
	TimeToExpiry  float64    // years until expiration
	RiskFreeRate  float64    // annualized risk-free rate, decimal (0.05 = 5%)
	Volatility    float64    // annualized volatility, decimal
	Kind          OptionKind // call or put
	DividendYield float64    // continuous dividend yield, decimal
}

// Result holds the theoretical price and sensitivities for an option.
//
// Theta is reported as daily decay (annualized theta / 365). Vega and Rho are
// reported per one percentage-point move in volatility and rate respectively.
type Result struct {
	Price float64 `json:"price"`
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

// Price computes the theoretical value and Greeks for the given inputs.
//
// At or past expiration (TimeToExpiry <= 0) it returns intrinsic value with
// delta reflecting moneyness and all other Greeks zero.
func Price(in Input) Result {
	if in.TimeToExpiry <= 0 {
		return expiryPayoff(in)
	}

	S := in.Spot
	K := in.Strike
	T := in.TimeToExpiry
	r := in.RiskFreeRate
	q := in.DividendYield
	sigma := in.Volatility

	sqrtT := math.Sqrt(T)
	d1 := (math.Log(S/K) + (r-q+0.5*sigma*sigma)*T) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT

	discR := math.Exp(-r * T)
	discQ := math.Exp(-q * T)

	var price, delta, theta, rho float64
	if in.Kind == Call {
		price = S*discQ*normCDF(d1) - K*discR*normCDF(d2)
		delta = discQ * normCDF(d1)
		theta = -(S*discQ*normPDF(d1)*sigma)/(2*sqrtT) -
			r*K*discR*normCDF(d2) + q*S*discQ*normCDF(d1)
		rho = K * T * discR * normCDF(d2)
	} else {
		price = K*discR*normCDF(-d2) - S*discQ*normCDF(-d1)
		delta = discQ * (normCDF(d1) - 1)
		theta = -(S*discQ*normPDF(d1)*sigma)/(2*sqrtT) +
			r*K*discR*normCDF(-d2) - q*S*discQ*normCDF(-d1)
		rho = -K * T * discR * normCDF(-d2)
	}

	gamma := discQ * normPDF(d1) / (S * sigma * sqrtT)
	vega := S * discQ * normPDF(d1) * sqrtT

	return Result{
		Price: price,
		Delta: delta,
		Gamma: gamma,
		Theta: theta / 365, // daily decay
		Vega:  vega / 100,  // per 1 vol point
		Rho:   rho / 100,   // per 1 rate point
	}
}

// expiryPayoff returns the intrinsic value at expiration.
func expiryPayoff(in Input) Result {
	var price, delta float64
	if in.Kind == Call {
		price = math.Max(0, in.Spot-in.Strike)
		if in.Spot > in.Strike {
			delta = 1.0
		}
	} else {
		price = math.Max(0, in.Strike-in.Spot)
		if in.Spot < in.Strike {
			delta = -1.0
		}
	}
	return Result{Price: price, Delta: delta}
}

// ImpliedVolFromHistorical estimates an implied volatility as a linear premium
// over historical volatility. Options typically trade with IV above realized
// vol, so multiplier defaults to DefaultIVMultiplier when <= 0.
func ImpliedVolFromHistorical(hv, multiplier float64) float64 {
	if multiplier <= 0 {
		multiplier = DefaultIVMultiplier
	}
	return hv * multiplier
}

// normCDF calculates the cumulative distribution function of the standard normal distribution
func normCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// normPDF calculates the probability density function of the standard normal distribution
func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}
