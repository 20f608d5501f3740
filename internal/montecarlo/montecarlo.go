// Package montecarlo prices European options by simulating terminal prices
// under risk-neutral geometric Brownian motion, and generates full price
// paths for visualization.
package montecarlo

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"

	perrors "option-pricer/internal/errors"
	"option-pricer/internal/models"
)

// Defaults for the simulation sizes.
const (
	DefaultNumSamples      = 1000
	DefaultNumTrajectories = 10000
	DefaultNumSteps        = 100
)

// Source supplies standard normal variates. *rand.Rand satisfies it.
type Source interface {
	NormFloat64() float64
}

// NewSource returns a seeded PCG generator.
func NewSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 0))
}

// NewChunkSource returns the generator for one chunk of a parallel run.
// Each chunk index gets its own stream so the result does not depend on scheduling.
func NewChunkSource(seed uint64, chunk int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(chunk)+1))
}

// Options controls the size of a simulation.
type Options struct {
	NumSamples      int `mapstructure:"num_samples"`
	NumTrajectories int `mapstructure:"num_trajectories"`
	NumSteps        int `mapstructure:"num_steps"`
}

// DefaultOptions returns the default simulation sizes.
func DefaultOptions() Options {
	return Options{
		NumSamples:      DefaultNumSamples,
		NumTrajectories: DefaultNumTrajectories,
		NumSteps:        DefaultNumSteps,
	}
}

// Validate checks that every count is positive.
func (o Options) Validate() error {
	if o.NumSamples <= 0 {
		return perrors.InvalidInput("num_samples", o.NumSamples, "must be positive")
	}
	if o.NumTrajectories <= 0 {
		return perrors.InvalidInput("num_trajectories", o.NumTrajectories, "must be positive")
	}
	if o.NumSteps <= 0 {
		return perrors.InvalidInput("num_steps", o.NumSteps, "must be positive")
	}
	return nil
}

// Pricer runs simulations against an injected random source.
// A Pricer is not safe for concurrent use unless its Source is.
type Pricer struct {
	src Source
}

// New creates a Pricer drawing from src.
func New(src Source) *Pricer {
	return &Pricer{src: src}
}

// EstimatePrice returns the discounted mean payoff over numSamples terminal prices.
func (p *Pricer) EstimatePrice(params models.MarketParameters, optionType models.OptionType, numSamples int) (float64, error) {
	est, err := p.Estimate(params, optionType, numSamples)
	if err != nil {
		return 0, err
	}
	return est.Price, nil
}

// Estimate is EstimatePrice with the standard error of the estimate.
func (p *Pricer) Estimate(params models.MarketParameters, optionType models.OptionType, numSamples int) (models.Estimate, error) {
	if err := p.check(params, optionType); err != nil {
		return models.Estimate{}, err
	}
	if numSamples <= 0 {
		return models.Estimate{}, perrors.InvalidInput("num_samples", numSamples, "must be positive")
	}

	payoffs := make([]float64, numSamples)
	samplePayoffs(p.src, params, optionType, payoffs)
	return summarize(params, payoffs)
}

// SimulatePaths generates numTrajectories paths of numSteps exact GBM steps.
// Each returned row has numSteps+1 points and starts at params.Spot.
func (p *Pricer) SimulatePaths(params models.MarketParameters, numTrajectories, numSteps int) ([][]float64, error) {
	if err := p.checkParams(params); err != nil {
		return nil, err
	}
	if err := checkPathCounts(numTrajectories, numSteps); err != nil {
		return nil, err
	}

	paths := make([][]float64, numTrajectories)
	step := newStepper(params, numSteps)
	for i := range paths {
		path, err := step.path(p.src)
		if err != nil {
			return nil, err
		}
		paths[i] = path
	}
	return paths, nil
}

// Simulate estimates the price and then generates paths. The estimate is
// complete before the first path draw, so path generation never changes it.
func (p *Pricer) Simulate(params models.MarketParameters, optionType models.OptionType, opts Options) (models.SimulationResult, error) {
	if err := opts.Validate(); err != nil {
		return models.SimulationResult{}, err
	}
	price, err := p.EstimatePrice(params, optionType, opts.NumSamples)
	if err != nil {
		return models.SimulationResult{}, err
	}
	paths, err := p.SimulatePaths(params, opts.NumTrajectories, opts.NumSteps)
	if err != nil {
		return models.SimulationResult{}, err
	}
	return models.SimulationResult{EstimatedPrice: price, Paths: paths}, nil
}

func (p *Pricer) check(params models.MarketParameters, optionType models.OptionType) error {
	if !optionType.Valid() {
		return perrors.UnsupportedOptionType(optionType)
	}
	return p.checkParams(params)
}

func (p *Pricer) checkParams(params models.MarketParameters) error {
	if p.src == nil {
		return perrors.InvalidInput("source", nil, "random source is required")
	}
	return params.Validate()
}

func checkPathCounts(numTrajectories, numSteps int) error {
	if numTrajectories <= 0 {
		return perrors.InvalidInput("num_trajectories", numTrajectories, "must be positive")
	}
	if numSteps <= 0 {
		return perrors.InvalidInput("num_steps", numSteps, "must be positive")
	}
	return nil
}

// samplePayoffs fills out with undiscounted payoffs of independent terminal prices.
func samplePayoffs(src Source, params models.MarketParameters, optionType models.OptionType, out []float64) {
	t := params.Maturity
	drift := (params.Rate - 0.5*params.Volatility*params.Volatility) * t
	diffusion := params.Volatility * math.Sqrt(t)

	for i := range out {
		st := params.Spot * math.Exp(drift+diffusion*src.NormFloat64())
		out[i] = payoff(optionType, st, params.Strike)
	}
}

func payoff(optionType models.OptionType, st, strike float64) float64 {
	if optionType == models.Call {
		return math.Max(st-strike, 0)
	}
	return math.Max(strike-st, 0)
}

// summarize discounts the mean payoff. Estimates that overflow float64 are
// rejected rather than returned as Inf or NaN.
func summarize(params models.MarketParameters, payoffs []float64) (models.Estimate, error) {
	df := params.DiscountFactor()
	n := len(payoffs)

	est := models.Estimate{Samples: n}
	if n == 1 {
		est.Price = df * payoffs[0]
	} else {
		mean, sd := stat.MeanStdDev(payoffs, nil)
		est.Price = df * mean
		est.StdError = df * sd / math.Sqrt(float64(n))
	}

	if !isFinite(est.Price) || !isFinite(est.StdError) {
		return models.Estimate{}, errOverflow(est.Price)
	}
	return est, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func errOverflow(value float64) error {
	return perrors.InvalidInput("params", value, "simulated prices overflow float64; reduce spot, volatility or maturity")
}

// stepper applies S_{t+dt} = S_t * exp((r - σ²/2)dt + σ√dt Z).
type stepper struct {
	spot      float64
	steps     int
	drift     float64
	diffusion float64
}

func newStepper(params models.MarketParameters, numSteps int) stepper {
	dt := params.Maturity / float64(numSteps)
	return stepper{
		spot:      params.Spot,
		steps:     numSteps,
		drift:     (params.Rate - 0.5*params.Volatility*params.Volatility) * dt,
		diffusion: params.Volatility * math.Sqrt(dt),
	}
}

func (s stepper) path(src Source) ([]float64, error) {
	path := make([]float64, s.steps+1)
	path[0] = s.spot
	for j := 1; j <= s.steps; j++ {
		path[j] = path[j-1] * math.Exp(s.drift+s.diffusion*src.NormFloat64())
		if !isFinite(path[j]) {
			return nil, errOverflow(path[j])
		}
	}
	return path, nil
}

// TimeGrid returns the n+1 equally spaced times 0, T/n, ..., T of a path.
func TimeGrid(maturity float64, numSteps int) []float64 {
	grid := make([]float64, numSteps+1)
	for j := range grid {
		grid[j] = maturity * float64(j) / float64(numSteps)
	}
	return grid
}
