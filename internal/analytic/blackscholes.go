// Package analytic prices European options with the closed-form
// Black-Scholes model and computes the five standard Greeks.
package analytic

import (
	"math"

	perrors "option-pricer/internal/errors"
	"option-pricer/internal/models"
)

// VolatilityEstimator derives an annualized volatility from a price history.
type VolatilityEstimator interface {
	Estimate(prices []float64) (float64, error)
}

// Pricer evaluates Black-Scholes prices and Greeks for one set of market parameters.
type Pricer struct {
	params models.MarketParameters
}

// New creates a Pricer. Parameters are validated on every evaluation so that
// values built as struct literals are checked too.
func New(params models.MarketParameters) *Pricer {
	return &Pricer{params: params}
}

// FromHistory creates a Pricer whose volatility is estimated from prices.
// The Volatility field of params is ignored.
func FromHistory(params models.MarketParameters, prices []float64, estimator VolatilityEstimator) (*Pricer, error) {
	if estimator == nil {
		return nil, perrors.InvalidInput("estimator", nil, "volatility estimator is required")
	}
	vol, err := estimator.Estimate(prices)
	if err != nil {
		return nil, perrors.Wrap(err, "estimating volatility")
	}

	p := params.WithVolatility(vol)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return New(p), nil
}

// Params returns the market parameters the pricer was built with.
func (p *Pricer) Params() models.MarketParameters {
	return p.params
}

// D1D2 returns the d1 and d2 terms of the Black-Scholes formula.
func (p *Pricer) D1D2() (float64, float64, error) {
	if err := p.params.Validate(); err != nil {
		return 0, 0, err
	}
	d1, d2 := p.d1d2()
	return d1, d2, nil
}

func (p *Pricer) d1d2() (float64, float64) {
	s, k, t, r, v := p.params.Spot, p.params.Strike, p.params.Maturity, p.params.Rate, p.params.Volatility
	volSqrtT := v * math.Sqrt(t)
	d1 := (math.Log(s/k) + (r+0.5*v*v)*t) / volSqrtT
	return d1, d1 - volSqrtT
}

// Price returns the option premium.
func (p *Pricer) Price(optionType models.OptionType) (float64, error) {
	if !optionType.Valid() {
		return 0, perrors.UnsupportedOptionType(optionType)
	}
	d1, d2, err := p.D1D2()
	if err != nil {
		return 0, err
	}
	return p.price(optionType, d1, d2), nil
}

func (p *Pricer) price(optionType models.OptionType, d1, d2 float64) float64 {
	s := p.params.Spot
	kdf := p.params.Strike * p.params.DiscountFactor()
	if optionType == models.Call {
		return s*NormCDF(d1) - kdf*NormCDF(d2)
	}
	return kdf*NormCDF(-d2) - s*NormCDF(-d1)
}

// Greeks returns the price and all five sensitivities from a single d1/d2 evaluation.
func (p *Pricer) Greeks(optionType models.OptionType) (models.PricingResult, error) {
	if !optionType.Valid() {
		return models.PricingResult{}, perrors.UnsupportedOptionType(optionType)
	}
	d1, d2, err := p.D1D2()
	if err != nil {
		return models.PricingResult{}, err
	}

	s, k, t, r, v := p.params.Spot, p.params.Strike, p.params.Maturity, p.params.Rate, p.params.Volatility
	sqrtT := math.Sqrt(t)
	df := p.params.DiscountFactor()
	pdf := NormPDF(d1)

	g := models.OptionGreeks{
		Gamma: pdf / (s * v * sqrtT),
		Vega:  s * pdf * sqrtT,
	}
	decay := -(s * pdf * v) / (2 * sqrtT)

	switch optionType {
	case models.Call:
		nd2 := NormCDF(d2)
		g.Delta = NormCDF(d1)
		g.Theta = decay - r*k*df*nd2
		g.Rho = k * t * df * nd2
	case models.Put:
		nmd2 := NormCDF(-d2)
		g.Delta = NormCDF(d1) - 1
		g.Theta = decay + r*k*df*nmd2
		g.Rho = -k * t * df * nmd2
	}

	return models.PricingResult{
		OptionType:   optionType,
		Price:        p.price(optionType, d1, d2),
		OptionGreeks: g,
	}, nil
}

// PutCallParityGap returns (Call - Put) - (S - K*e^(-rT)), which is zero up to
// rounding for a consistent model.
func (p *Pricer) PutCallParityGap() (float64, error) {
	d1, d2, err := p.D1D2()
	if err != nil {
		return 0, err
	}
	call := p.price(models.Call, d1, d2)
	put := p.price(models.Put, d1, d2)
	return (call - put) - (p.params.Spot - p.params.Strike*p.params.DiscountFactor()), nil
}
