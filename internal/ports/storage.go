package ports

import (
	"context"

	"github.com/alejandrodnm/rotabot/internal/domain"
)

// CycleStorage keeps the history of completed cycles for reporting. It is not
// an order journal: the exchange remains the only source of trading state.
type CycleStorage interface {
	// SaveCycle persists the summary of one cycle.
	SaveCycle(ctx context.Context, report domain.CycleReport) error

	// RecentCycles returns the last limit cycles, newest first.
	RecentCycles(ctx context.Context, limit int) ([]domain.CycleReport, error)

	// Close closes the database cleanly.
	Close() error
}
