// Package models provides domain models for the option pricer.
package models

import (
	"math"
	"strings"

	perrors "option-pricer/internal/errors"
)

// OptionType represents the exercise right of a European option.
type OptionType string

const (
	Call OptionType = "CALL"
	Put  OptionType = "PUT"
)

// ParseOptionType parses "call"/"put" and the exchange aliases "CE"/"PE".
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CALL", "CE", "C":
		return Call, nil
	case "PUT", "PE", "P":
		return Put, nil
	default:
		return "", perrors.UnsupportedOptionType(s)
	}
}

// Valid reports whether t is Call or Put.
func (t OptionType) Valid() bool {
	return t == Call || t == Put
}

func (t OptionType) String() string {
	return strings.ToLower(string(t))
}

// MarketParameters holds the inputs shared by every pricing model.
// It is a value type: pricers copy it and never modify it.
type MarketParameters struct {
	Spot       float64 `json:"spot"`
	Strike     float64 `json:"strike"`
	Maturity   float64 `json:"maturity"` // years
	Rate       float64 `json:"rate"`     // continuously compounded
	Volatility float64 `json:"volatility"`
}

// NewMarketParameters validates the inputs and returns a MarketParameters value.
func NewMarketParameters(spot, strike, maturity, rate, volatility float64) (MarketParameters, error) {
	p := MarketParameters{
		Spot:       spot,
		Strike:     strike,
		Maturity:   maturity,
		Rate:       rate,
		Volatility: volatility,
	}
	if err := p.Validate(); err != nil {
		return MarketParameters{}, err
	}
	return p, nil
}

// Validate checks the positivity invariants. Zero maturity or zero volatility
// make d1/d2 divide by zero and are reported as degenerate rather than invalid.
func (p MarketParameters) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"spot", p.Spot},
		{"strike", p.Strike},
		{"maturity", p.Maturity},
		{"rate", p.Rate},
		{"volatility", p.Volatility},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return perrors.InvalidInput(f.name, f.value, "must be finite")
		}
	}

	if p.Spot <= 0 {
		return perrors.InvalidInput("spot", p.Spot, "must be positive")
	}
	if p.Strike <= 0 {
		return perrors.InvalidInput("strike", p.Strike, "must be positive")
	}
	if p.Maturity < 0 {
		return perrors.InvalidInput("maturity", p.Maturity, "must be positive")
	}
	if p.Volatility < 0 {
		return perrors.InvalidInput("volatility", p.Volatility, "must be positive")
	}
	if p.Maturity == 0 {
		return perrors.Degenerate("maturity", p.Maturity, "zero time to expiry")
	}
	if p.Volatility == 0 {
		return perrors.Degenerate("volatility", p.Volatility, "zero volatility")
	}
	return nil
}

// WithVolatility returns a copy of p with the given volatility.
func (p MarketParameters) WithVolatility(v float64) MarketParameters {
	p.Volatility = v
	return p
}

// DiscountFactor returns e^(-rT).
func (p MarketParameters) DiscountFactor() float64 {
	return math.Exp(-p.Rate * p.Maturity)
}
