package models

// OptionGreeks represents option Greeks.
type OptionGreeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

// PricingResult is the closed-form price of one option type with its Greeks.
type PricingResult struct {
	OptionType OptionType `json:"option_type"`
	Price      float64    `json:"price"`
	OptionGreeks
}

// Estimate is a Monte Carlo price estimate.
type Estimate struct {
	Price    float64 `json:"price"`
	StdError float64 `json:"std_error"`
	Samples  int     `json:"samples"`
}

// SimulationResult holds a price estimate and the simulated price paths.
// Paths[i] is trajectory i; Paths[i][0] is always the spot price.
type SimulationResult struct {
	EstimatedPrice float64     `json:"estimated_price"`
	Paths          [][]float64 `json:"paths"`
}

// NumSteps returns the number of time steps per trajectory.
func (r SimulationResult) NumSteps() int {
	if len(r.Paths) == 0 {
		return 0
	}
	return len(r.Paths[0]) - 1
}
