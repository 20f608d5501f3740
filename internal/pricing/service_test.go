package pricing

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	perrors "option-pricer/internal/errors"
	"option-pricer/internal/models"
	"option-pricer/internal/store"
)

func newTestService(t *testing.T, workers int) (*Service, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewService(zerolog.Nop(), st, workers), st
}

// closeBars builds daily bars whose close column is prices.
func closeBars(prices ...float64) []models.PriceBar {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]models.PriceBar, len(prices))
	for i, p := range prices {
		bars[i] = models.PriceBar{Date: start.AddDate(0, 0, i), Open: p, High: p, Low: p, Close: p}
	}
	return bars
}

var refParams = models.MarketParameters{Spot: 100, Strike: 110, Maturity: 1, Rate: 0.05, Volatility: 0.2}

func TestBlackScholes_BothTypesRecorded(t *testing.T) {
	svc, st := newTestService(t, 1)
	ctx := context.Background()

	resp, err := svc.BlackScholes(ctx, BlackScholesRequest{
		Params: refParams,
		Types:  []models.OptionType{models.Call, models.Put},
	})
	if err != nil {
		t.Fatalf("BlackScholes: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("len(Results) = %d", len(resp.Results))
	}
	if math.Abs(resp.Results[0].Price-6.040) > 1e-3 {
		t.Errorf("call = %v", resp.Results[0].Price)
	}
	if math.Abs(resp.ParityGap) > 1e-10 {
		t.Errorf("parity gap = %g", resp.ParityGap)
	}

	runs, err := st.GetRuns(ctx, store.RunFilter{Model: models.ModelBlackScholes})
	if err != nil {
		t.Fatalf("GetRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("recorded %d runs, want 2", len(runs))
	}
	for _, r := range runs {
		if r.Greeks == nil {
			t.Errorf("run %s has no greeks", r.ID)
		}
	}
}

func TestBlackScholes_FromHistory(t *testing.T) {
	svc, _ := newTestService(t, 1)

	bars := closeBars(100, 102, 101, 103, 104, 102.5, 105)
	resp, err := svc.BlackScholes(context.Background(), BlackScholesRequest{
		Params:  models.MarketParameters{Spot: 105, Strike: 100, Maturity: 0.25, Rate: 0.01},
		History: &HistoryRequest{Bars: bars, Field: models.FieldClose, PeriodsPerYear: 252},
	})
	if err != nil {
		t.Fatalf("BlackScholes: %v", err)
	}

	vol, err := svc.Volatility(context.Background(), HistoryRequest{Bars: bars, Field: models.FieldClose, PeriodsPerYear: 252})
	if err != nil {
		t.Fatalf("Volatility: %v", err)
	}
	if resp.Volatility != vol {
		t.Errorf("volatility = %v, want %v", resp.Volatility, vol)
	}
	if len(resp.Results) != 1 || resp.Results[0].OptionType != models.Call {
		t.Errorf("default type should be call, got %+v", resp.Results)
	}
}

func TestBlackScholes_Errors(t *testing.T) {
	svc, _ := newTestService(t, 1)
	ctx := context.Background()

	zeroVol := refParams
	zeroVol.Volatility = 0
	if _, err := svc.BlackScholes(ctx, BlackScholesRequest{Params: zeroVol}); !errors.Is(err, perrors.ErrDegenerateInput) {
		t.Errorf("zero vol: %v", err)
	}

	_, err := svc.BlackScholes(ctx, BlackScholesRequest{
		Params:  refParams,
		History: &HistoryRequest{Bars: closeBars(100), Field: models.FieldClose},
	})
	if !errors.Is(err, perrors.ErrInsufficientData) {
		t.Errorf("short history: %v", err)
	}

	_, err = svc.BlackScholes(ctx, BlackScholesRequest{
		Params:  refParams,
		History: &HistoryRequest{Bars: closeBars(100, 101, 102), Field: models.PriceField("vwap")},
	})
	if !errors.Is(err, perrors.ErrInvalidInput) {
		t.Errorf("unknown field: %v", err)
	}
	if _, err := svc.Volatility(ctx, HistoryRequest{Bars: closeBars(100, 101, 102), Field: models.PriceField("vwap")}); !errors.Is(err, perrors.ErrInvalidInput) {
		t.Errorf("unknown field: %v", err)
	}
}

func TestBlackScholes_FailedRequestRecordsNothing(t *testing.T) {
	svc, st := newTestService(t, 1)
	ctx := context.Background()

	_, err := svc.BlackScholes(ctx, BlackScholesRequest{
		Params: refParams,
		Types:  []models.OptionType{models.Call, models.OptionType("STRADDLE")},
	})
	if !errors.Is(err, perrors.ErrUnsupportedOptionType) {
		t.Fatalf("err = %v, want ErrUnsupportedOptionType", err)
	}

	runs, err := st.GetRuns(ctx, store.RunFilter{})
	if err != nil {
		t.Fatalf("GetRuns: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("recorded %d runs for a failed request", len(runs))
	}
}

func TestMonteCarlo_SeededRunsMatch(t *testing.T) {
	ctx := context.Background()

	seq, st := newTestService(t, 1)
	a, err := seq.MonteCarlo(ctx, MonteCarloRequest{Params: refParams, OptionType: models.Call, NumSamples: 20000, Seed: 123})
	if err != nil {
		t.Fatalf("MonteCarlo: %v", err)
	}
	b, _ := seq.MonteCarlo(ctx, MonteCarloRequest{Params: refParams, OptionType: models.Call, NumSamples: 20000, Seed: 123})
	if a.Estimate != b.Estimate {
		t.Errorf("same seed, different estimates: %+v vs %+v", a.Estimate, b.Estimate)
	}
	if a.Seed != 123 {
		t.Errorf("seed = %d", a.Seed)
	}
	if math.Abs(a.Estimate.Price-a.Analytic) > 4*a.Estimate.StdError {
		t.Errorf("estimate %v far from analytic %v", a.Estimate.Price, a.Analytic)
	}

	runs, _ := st.GetRuns(ctx, store.RunFilter{Model: models.ModelMonteCarlo})
	if len(runs) != 2 || runs[0].Seed != 123 || runs[0].Samples != 20000 {
		t.Errorf("unexpected recorded runs: %+v", runs)
	}

	par, _ := newTestService(t, 4)
	p, err := par.MonteCarlo(ctx, MonteCarloRequest{Params: refParams, OptionType: models.Put, NumSamples: 20000, Seed: 123})
	if err != nil {
		t.Fatalf("parallel MonteCarlo: %v", err)
	}
	if math.Abs(p.Estimate.Price-p.Analytic) > 4*p.Estimate.StdError {
		t.Errorf("parallel estimate %v far from analytic %v", p.Estimate.Price, p.Analytic)
	}
}

func TestMonteCarlo_FreshSeed(t *testing.T) {
	svc, _ := newTestService(t, 1)
	svc.now = func() time.Time { return time.Unix(0, 987654321) }

	resp, err := svc.MonteCarlo(context.Background(), MonteCarloRequest{Params: refParams, OptionType: models.Call, NumSamples: 10})
	if err != nil {
		t.Fatalf("MonteCarlo: %v", err)
	}
	if resp.Seed != 987654321 {
		t.Errorf("seed = %d, want 987654321", resp.Seed)
	}
}

func TestPaths(t *testing.T) {
	for _, workers := range []int{1, 3} {
		svc, _ := newTestService(t, workers)
		resp, err := svc.Paths(context.Background(), PathsRequest{Params: refParams, NumTrajectories: 40, NumSteps: 8, Seed: 5})
		if err != nil {
			t.Fatalf("Paths(workers=%d): %v", workers, err)
		}
		if len(resp.Paths) != 40 || len(resp.Times) != 9 {
			t.Errorf("shape %d x %d", len(resp.Paths), len(resp.Times))
		}
		if resp.Times[8] != refParams.Maturity {
			t.Errorf("last time = %v", resp.Times[8])
		}
		for _, p := range resp.Paths {
			if p[0] != refParams.Spot {
				t.Fatalf("path starts at %v", p[0])
			}
		}
	}

	svc, _ := newTestService(t, 1)
	if _, err := svc.Paths(context.Background(), PathsRequest{Params: refParams, NumTrajectories: 0, NumSteps: 8}); !errors.Is(err, perrors.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestHistory_WithoutStore(t *testing.T) {
	svc := NewService(zerolog.Nop(), nil, 1)
	if _, err := svc.History(context.Background(), store.RunFilter{}); !errors.Is(err, perrors.ErrDataNotFound) {
		t.Errorf("expected ErrDataNotFound, got %v", err)
	}
	// Pricing still works without a store.
	if _, err := svc.BlackScholes(context.Background(), BlackScholesRequest{Params: refParams}); err != nil {
		t.Errorf("BlackScholes without store: %v", err)
	}
}

func TestPrune(t *testing.T) {
	svc, st := newTestService(t, 1)
	ctx := context.Background()

	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return old }
	if _, err := svc.BlackScholes(ctx, BlackScholesRequest{Params: refParams}); err != nil {
		t.Fatalf("BlackScholes: %v", err)
	}
	svc.now = func() time.Time { return old.AddDate(0, 2, 0) }
	if _, err := svc.BlackScholes(ctx, BlackScholesRequest{Params: refParams}); err != nil {
		t.Fatalf("BlackScholes: %v", err)
	}

	n, err := svc.Prune(ctx, old.AddDate(0, 1, 0))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d runs, want 1", n)
	}
	runs, _ := st.GetRuns(ctx, store.RunFilter{})
	if len(runs) != 1 {
		t.Errorf("%d runs left, want 1", len(runs))
	}

	if _, err := NewService(zerolog.Nop(), nil, 1).Prune(ctx, old); !errors.Is(err, perrors.ErrDataNotFound) {
		t.Errorf("expected ErrDataNotFound without store, got %v", err)
	}
}
