// Package engine holds what the execution engines share: the candidate
// source they buy from and context-aware pauses.
package engine

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/rotabot/internal/domain"
)

// CandidateSource is the minimal interface the engines need from the ranker.
// Decouples the live engine from *ranker.Ranker.
type CandidateSource interface {
	Candidates(ctx context.Context, exclude map[string]bool) ([]domain.Candidate, error)
}

// Sleep waits d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ClientOrderID returns a fresh exchange client order id: prefix followed by
// 32 hex digits. Binance accepts up to 36 characters.
func ClientOrderID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}
