package montecarlo

import (
	"context"
	"runtime"

	"github.com/sourcegraph/conc/pool"

	perrors "option-pricer/internal/errors"
	"option-pricer/internal/models"
)

// Work is split into fixed-size chunks; chunk i always draws from
// NewChunkSource(seed, i) and results are reduced in chunk order.
const (
	sampleChunkSize     = 1 << 16
	trajectoryChunkSize = 256
)

// ParallelEstimate is Estimate spread over a bounded pool of goroutines.
// The result depends only on the seed, not on the number of workers.
func ParallelEstimate(ctx context.Context, params models.MarketParameters, optionType models.OptionType, numSamples int, seed uint64, workers int) (models.Estimate, error) {
	if !optionType.Valid() {
		return models.Estimate{}, perrors.UnsupportedOptionType(optionType)
	}
	if err := params.Validate(); err != nil {
		return models.Estimate{}, err
	}
	if numSamples <= 0 {
		return models.Estimate{}, perrors.InvalidInput("num_samples", numSamples, "must be positive")
	}

	payoffs := make([]float64, numSamples)
	err := runChunks(ctx, numSamples, sampleChunkSize, workers, func(chunk, lo, hi int) error {
		samplePayoffs(NewChunkSource(seed, chunk), params, optionType, payoffs[lo:hi])
		return nil
	})
	if err != nil {
		return models.Estimate{}, err
	}
	return summarize(params, payoffs)
}

// ParallelPaths is SimulatePaths spread over a bounded pool of goroutines.
func ParallelPaths(ctx context.Context, params models.MarketParameters, numTrajectories, numSteps int, seed uint64, workers int) ([][]float64, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := checkPathCounts(numTrajectories, numSteps); err != nil {
		return nil, err
	}

	paths := make([][]float64, numTrajectories)
	step := newStepper(params, numSteps)
	err := runChunks(ctx, numTrajectories, trajectoryChunkSize, workers, func(chunk, lo, hi int) error {
		src := NewChunkSource(seed, chunk)
		for i := lo; i < hi; i++ {
			path, err := step.path(src)
			if err != nil {
				return err
			}
			paths[i] = path
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// runChunks calls fn for each [lo, hi) chunk of n items. Chunks write to
// disjoint ranges so no locking is needed.
func runChunks(ctx context.Context, n, chunkSize, workers int, fn func(chunk, lo, hi int) error) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	p := pool.New().WithMaxGoroutines(workers).WithContext(ctx).WithCancelOnError()
	for chunk, lo := 0, 0; lo < n; chunk, lo = chunk+1, lo+chunkSize {
		chunk, lo := chunk, lo
		hi := min(lo+chunkSize, n)
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(chunk, lo, hi)
		})
	}
	return p.Wait()
}
