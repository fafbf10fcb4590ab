// Package retention holds the result store contract, the in-process store and
// the expiry sweeper.
package retention

import (
	"context"

	"casino-relay/internal/results"
)

// Store is implemented by *store.Store and *MemoryStore.
type Store interface {
	SaveResult(ctx context.Context, rec results.GameResult) (bool, error)
	SaveResultSafe(ctx context.Context, rec results.GameResult)
	QueryRecent(ctx context.Context, q results.RecentQuery) ([]results.GameResult, error)
	CleanupExpired(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}
