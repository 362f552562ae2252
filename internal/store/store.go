// Package store defines the persistence interface for analysis reports.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing and development).
package store

import (
	"context"
	"errors"

	"github.com/atmx/sales-analytics/internal/model"
)

// ErrReportNotFound is returned (wrapped) when a report id is unknown.
var ErrReportNotFound = errors.New("store: report not found")

// Store is the persistence interface. Reports are immutable once saved.
type Store interface {
	// SaveReport persists a finished report with all its seller lines.
	SaveReport(ctx context.Context, report *model.Report) error

	// GetReport retrieves a report and its seller lines by ID.
	GetReport(ctx context.Context, id string) (*model.Report, error)

	// ListReports returns report headers (no seller lines), newest first.
	ListReports(ctx context.Context) ([]model.Report, error)

	// GetSellerHistory returns the seller's line from every stored report,
	// oldest first.
	GetSellerHistory(ctx context.Context, sellerID string) ([]model.SellerSnapshot, error)
}
