package ports

import (
	"context"

	"github.com/alejandrodnm/rotabot/internal/domain"
)

// Notifier presents the outcome of a cycle to the operator.
type Notifier interface {
	// Notify prints or forwards the cycle report. In the console
	// implementation it renders the order views and the decision as tables.
	Notify(ctx context.Context, report domain.CycleReport) error
}
