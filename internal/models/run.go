package models

import "time"

// PricingModel identifies which model produced a run.
type PricingModel string

const (
	ModelBlackScholes PricingModel = "BS"
	ModelMonteCarlo   PricingModel = "MC"
)

// Run is a recorded pricing invocation.
type Run struct {
	ID         string
	Timestamp  time.Time
	Model      PricingModel
	OptionType OptionType
	Params     MarketParameters
	Price      float64
	Greeks     *OptionGreeks // BS only
	StdError   float64       // MC only
	Samples    int
	Seed       uint64
}
