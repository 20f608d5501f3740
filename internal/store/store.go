// Package store provides persistence for pricing run history.
package store

import (
	"context"
	"time"

	"option-pricer/internal/models"
)

// RunStore defines the interface for run history persistence.
type RunStore interface {
	SaveRun(ctx context.Context, run *models.Run) error
	GetRun(ctx context.Context, id string) (*models.Run, error)
	GetRuns(ctx context.Context, filter RunFilter) ([]models.Run, error)
	DeleteRunsBefore(ctx context.Context, before time.Time) (int64, error)

	// Lifecycle
	Close() error
}

// RunFilter represents filters for querying runs.
type RunFilter struct {
	Model      models.PricingModel
	OptionType models.OptionType
	StartDate  time.Time
	EndDate    time.Time
	Limit      int
}
