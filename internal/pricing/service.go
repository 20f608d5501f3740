// Package pricing wires the pricing models to configuration, logging and
// run history for the command-line interface.
package pricing

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"option-pricer/internal/analytic"
	perrors "option-pricer/internal/errors"
	"option-pricer/internal/logging"
	"option-pricer/internal/marketdata"
	"option-pricer/internal/models"
	"option-pricer/internal/montecarlo"
	"option-pricer/internal/store"
	"option-pricer/internal/volatility"
)

// Service runs pricing requests and records them.
type Service struct {
	logger  zerolog.Logger
	store   store.RunStore // may be nil
	workers int
	now     func() time.Time
}

// NewService creates a Service. runStore may be nil to disable history.
// workers follows montecarlo.ParallelEstimate: 1 runs sequentially, 0 uses all CPUs.
func NewService(logger zerolog.Logger, runStore store.RunStore, workers int) *Service {
	return &Service{
		logger:  logger,
		store:   runStore,
		workers: workers,
		now:     time.Now,
	}
}

// HistoryRequest describes a volatility estimate from a price history.
type HistoryRequest struct {
	Bars           []models.PriceBar
	Field          models.PriceField
	PeriodsPerYear int
}

// BlackScholesRequest prices one or both option types in closed form.
// When History is set its estimate replaces Params.Volatility.
type BlackScholesRequest struct {
	Params  models.MarketParameters
	Types   []models.OptionType
	History *HistoryRequest
}

// BlackScholesResponse holds the results of a BlackScholesRequest.
type BlackScholesResponse struct {
	Params     models.MarketParameters `json:"params"`
	Results    []models.PricingResult  `json:"results"`
	ParityGap  float64                 `json:"parity_gap"`
	Volatility float64                 `json:"volatility"`
}

// MonteCarloRequest estimates a price by simulation.
type MonteCarloRequest struct {
	Params     models.MarketParameters
	OptionType models.OptionType
	NumSamples int
	Seed       uint64 // 0 picks a fresh seed
}

// MonteCarloResponse holds a simulation estimate and its analytic reference.
type MonteCarloResponse struct {
	Params     models.MarketParameters `json:"params"`
	OptionType models.OptionType       `json:"option_type"`
	Estimate   models.Estimate         `json:"estimate"`
	Analytic   float64                 `json:"analytic"`
	Seed       uint64                  `json:"seed"`
}

// PathsRequest generates price paths.
type PathsRequest struct {
	Params          models.MarketParameters
	NumTrajectories int
	NumSteps        int
	Seed            uint64
}

// PathsResponse holds generated paths with their time grid.
type PathsResponse struct {
	Times []float64   `json:"times"`
	Paths [][]float64 `json:"paths"`
	Seed  uint64      `json:"seed"`
}

// Volatility estimates annualized volatility from a price history.
func (s *Service) Volatility(ctx context.Context, req HistoryRequest) (float64, error) {
	est := volatility.NewEstimator(req.PeriodsPerYear)
	vol, err := est.FromBars(req.Bars, req.Field)
	if err != nil {
		return 0, err
	}
	logging.LogVolatility(logging.WithOperation(s.logger, "volatility"), len(req.Bars), est.PeriodsPerYear, vol)
	return vol, nil
}

// BlackScholes prices the requested option types with the analytic model.
func (s *Service) BlackScholes(ctx context.Context, req BlackScholesRequest) (*BlackScholesResponse, error) {
	logger := logging.WithModel(s.logger, string(models.ModelBlackScholes))

	types := req.Types
	if len(types) == 0 {
		types = []models.OptionType{models.Call}
	}

	var pricer *analytic.Pricer
	if req.History != nil {
		prices, err := marketdata.Prices(req.History.Bars, req.History.Field)
		if err != nil {
			return nil, err
		}
		est := volatility.NewEstimator(req.History.PeriodsPerYear)
		pricer, err = analytic.FromHistory(req.Params, prices, est)
		if err != nil {
			return nil, err
		}
		logging.LogVolatility(logger, len(prices), est.PeriodsPerYear, pricer.Params().Volatility)
	} else {
		pricer = analytic.New(req.Params)
	}

	resp := &BlackScholesResponse{
		Params:     pricer.Params(),
		Volatility: pricer.Params().Volatility,
	}
	for _, ot := range types {
		res, err := pricer.Greeks(ot)
		if err != nil {
			return nil, err
		}
		resp.Results = append(resp.Results, res)
	}

	gap, err := pricer.PutCallParityGap()
	if err != nil {
		return nil, err
	}
	resp.ParityGap = gap

	// Runs are recorded only once every requested type has priced.
	for _, res := range resp.Results {
		logging.LogPricing(logger, res.OptionType.String(), resp.Params.Spot, resp.Params.Strike, resp.Params.Volatility, res.Price)

		greeks := res.OptionGreeks
		s.record(ctx, &models.Run{
			Model:      models.ModelBlackScholes,
			OptionType: res.OptionType,
			Params:     resp.Params,
			Price:      res.Price,
			Greeks:     &greeks,
		})
	}
	return resp, nil
}

// MonteCarlo estimates the option price by simulation and reports the
// analytic price for the same inputs.
func (s *Service) MonteCarlo(ctx context.Context, req MonteCarloRequest) (*MonteCarloResponse, error) {
	logger := logging.WithModel(s.logger, string(models.ModelMonteCarlo))
	seed := s.resolveSeed(req.Seed)
	start := time.Now()

	var (
		est models.Estimate
		err error
	)
	if s.workers == 1 {
		est, err = montecarlo.New(montecarlo.NewSource(seed)).Estimate(req.Params, req.OptionType, req.NumSamples)
	} else {
		est, err = montecarlo.ParallelEstimate(ctx, req.Params, req.OptionType, req.NumSamples, seed, s.workers)
	}
	if err != nil {
		return nil, err
	}

	reference, err := analytic.New(req.Params).Price(req.OptionType)
	if err != nil {
		return nil, err
	}

	logging.LogSimulation(logger, req.OptionType.String(), est.Samples, seed, est.Price, est.StdError, time.Since(start))
	if se := est.StdError; se > 0 && math.Abs(est.Price-reference) > 3*se {
		logger.Warn().
			Float64("estimate", est.Price).
			Float64("analytic", reference).
			Float64("std_error", se).
			Msg("Monte Carlo estimate outside 3 standard errors of analytic price")
	}

	s.record(ctx, &models.Run{
		Model:      models.ModelMonteCarlo,
		OptionType: req.OptionType,
		Params:     req.Params,
		Price:      est.Price,
		StdError:   est.StdError,
		Samples:    est.Samples,
		Seed:       seed,
	})

	return &MonteCarloResponse{
		Params:     req.Params,
		OptionType: req.OptionType,
		Estimate:   est,
		Analytic:   reference,
		Seed:       seed,
	}, nil
}

// Paths generates simulated price paths for export or plotting.
func (s *Service) Paths(ctx context.Context, req PathsRequest) (*PathsResponse, error) {
	seed := s.resolveSeed(req.Seed)
	start := time.Now()

	var (
		paths [][]float64
		err   error
	)
	if s.workers == 1 {
		paths, err = montecarlo.New(montecarlo.NewSource(seed)).SimulatePaths(req.Params, req.NumTrajectories, req.NumSteps)
	} else {
		paths, err = montecarlo.ParallelPaths(ctx, req.Params, req.NumTrajectories, req.NumSteps, seed, s.workers)
	}
	if err != nil {
		return nil, err
	}

	logging.LogPaths(logging.WithModel(s.logger, string(models.ModelMonteCarlo)), req.NumTrajectories, req.NumSteps, seed, time.Since(start))
	return &PathsResponse{
		Times: montecarlo.TimeGrid(req.Params.Maturity, req.NumSteps),
		Paths: paths,
		Seed:  seed,
	}, nil
}

// History returns recorded runs.
func (s *Service) History(ctx context.Context, filter store.RunFilter) ([]models.Run, error) {
	if s.store == nil {
		return nil, fmt.Errorf("run history: %w", perrors.ErrDataNotFound)
	}
	return s.store.GetRuns(ctx, filter)
}

// Prune deletes runs recorded before the given time.
func (s *Service) Prune(ctx context.Context, before time.Time) (int64, error) {
	if s.store == nil {
		return 0, fmt.Errorf("run history: %w", perrors.ErrDataNotFound)
	}
	n, err := s.store.DeleteRunsBefore(ctx, before)
	if err != nil {
		return 0, err
	}
	logger := logging.WithOperation(s.logger, "prune")
	logger.Info().Int64("deleted", n).Time("before", before).Msg("Pruned run history")
	return n, nil
}

// record saves a run. Storage failures are logged and never fail the pricing call.
func (s *Service) record(ctx context.Context, run *models.Run) {
	if s.store == nil {
		return
	}
	run.Timestamp = s.now()
	run.ID = fmt.Sprintf("%s-%s-%d", run.Model, run.OptionType, run.Timestamp.UnixNano())

	if err := s.store.SaveRun(ctx, run); err != nil {
		logger := logging.WithRunID(s.logger, run.ID)
		logger.Warn().Err(err).Msg("Failed to record run")
	}
}

func (s *Service) resolveSeed(seed uint64) uint64 {
	if seed != 0 {
		return seed
	}
	return uint64(s.now().UnixNano())
}
