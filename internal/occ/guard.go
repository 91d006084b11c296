// Package occ wraps entity mutations with optimistic concurrency control:
// stores detect write-write races via a version counter and report them as
// domain.ErrWriteConflict, and Guard retries those with exponential backoff.
package occ

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"meetsync/internal/domain"
)

// Guard retries a mutation on transient write conflicts. A zero Guard is not
// usable; construct with Default or set all fields.
type Guard struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  int
}

// Default returns the guard policy used by all services: 3 attempts with
// 500ms, 1s, 2s backoff.
func Default() Guard {
	return Guard{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, Multiplier: 2}
}

// Do runs fn, retrying while it returns domain.ErrWriteConflict. Any other
// error (including domain.ErrConflict from a client-supplied stale version)
// is returned immediately without retry. Once the attempt budget is spent the
// conflict is surfaced as domain.ErrConcurrentModification.
func (g Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	delay := g.BaseDelay
	var err error
	for attempt := 1; attempt <= g.MaxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil || !errors.Is(err, domain.ErrWriteConflict) {
			return err
		}
		if attempt == g.MaxAttempts {
			break
		}
		slog.Warn("write conflict, retrying", "attempt", attempt, "delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= time.Duration(g.Multiplier)
	}
	return fmt.Errorf("%w: %v", domain.ErrConcurrentModification, err)
}
