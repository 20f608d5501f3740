// Package volatility estimates annualized volatility from historical prices.
package volatility

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	perrors "option-pricer/internal/errors"
	"option-pricer/internal/models"
)

// DefaultPeriodsPerYear is the number of trading days used to annualize daily returns.
const DefaultPeriodsPerYear = 252

// Estimator converts a price series into annualized log-return volatility.
type Estimator struct {
	PeriodsPerYear int
}

// NewEstimator creates an Estimator. A non-positive periodsPerYear selects the default.
func NewEstimator(periodsPerYear int) *Estimator {
	if periodsPerYear <= 0 {
		periodsPerYear = DefaultPeriodsPerYear
	}
	return &Estimator{PeriodsPerYear: periodsPerYear}
}

// Estimate returns the sample standard deviation of log returns scaled by
// sqrt(PeriodsPerYear). A constant series yields zero.
func (e *Estimator) Estimate(prices []float64) (float64, error) {
	if e.PeriodsPerYear <= 0 {
		return 0, perrors.InvalidInput("periods_per_year", e.PeriodsPerYear, "must be positive")
	}

	returns, err := LogReturns(prices)
	if err != nil {
		return 0, err
	}

	// A single return has no sample deviation.
	if len(returns) < 2 {
		return 0, nil
	}

	sd := stat.StdDev(returns, nil)
	return sd * math.Sqrt(float64(e.PeriodsPerYear)), nil
}

// FromBars estimates volatility from one price column of historical bars.
func (e *Estimator) FromBars(bars []models.PriceBar, field models.PriceField) (float64, error) {
	if !field.Valid() {
		return 0, perrors.InvalidInput("field", field, "must be open, high, low or close")
	}
	prices := make([]float64, len(bars))
	for i, b := range bars {
		prices[i] = field.Value(b)
	}
	return e.Estimate(prices)
}

// LogReturns computes ln(p[i]/p[i-1]) for i = 1..n-1.
func LogReturns(prices []float64) ([]float64, error) {
	if len(prices) < 2 {
		return nil, perrors.InsufficientData("prices", len(prices), 2)
	}
	for i, p := range prices {
		if p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, perrors.InvalidInput("prices", p, fmt.Sprintf("price at index %d must be positive and finite", i))
		}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		returns[i-1] = math.Log(prices[i] / prices[i-1])
	}
	return returns, nil
}
