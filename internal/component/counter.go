package component

import (
	"context"
	"database/sql"
	"time"

	"github.com/erazemk/komponente/internal/store"
)

// Counter reads allocated unit counts outside of a mutation, for display.
// Reads are idempotent, so failures are retried a few times before
// surfacing as ErrUnavailable.
type Counter struct {
	DB       *sql.DB
	Attempts int
	Backoff  time.Duration
}

// NewCounter returns a Counter with three attempts and a 50ms base backoff.
func NewCounter(database *sql.DB) *Counter {
	return &Counter{DB: database, Attempts: 3, Backoff: 50 * time.Millisecond}
}

// AllocatedCount returns the number of units of a component currently checked
// out.
func (c *Counter) AllocatedCount(ctx context.Context, componentID int64) (int, error) {
	attempts := max(c.Attempts, 1)

	var err error
	for attempt := range attempts {
		var n int
		n, err = store.AllocatedCount(ctx, c.DB, componentID)
		if err == nil {
			return n, nil
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if attempt == attempts-1 {
			break
		}

		timer := time.NewTimer(c.Backoff * time.Duration(attempt+1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, ctx.Err()
		case <-timer.C:
		}
	}
	return 0, unavailable("counting allocated units", err)
}
