// internal/storage/storage.go
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/rovshanmuradov/solana-portfolio/internal/activity"
	"github.com/rovshanmuradov/solana-portfolio/internal/portfolio"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Storage persists the last-known portfolio and locally recorded activity.
type Storage interface {
	// Portfolio cache
	LoadPortfolio(ctx context.Context, wallet string) (*portfolio.TrackedPortfolio, error)
	SavePortfolio(ctx context.Context, wallet string, p portfolio.TrackedPortfolio) error

	// Local activity
	SaveActivity(ctx context.Context, wallet string, e activity.Entry) error
	UpdateActivityStatus(ctx context.Context, wallet, id string, status activity.Status, detail string) error
	ListActivity(ctx context.Context, wallet string, limit int) ([]activity.Entry, error)
	DeleteActivityBefore(ctx context.Context, wallet string, cutoff time.Time, status activity.Status) (int64, error)

	RunMigrations() error
	Close() error
}
