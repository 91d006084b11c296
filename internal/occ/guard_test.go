package occ

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"meetsync/internal/domain"
)

func testGuard() Guard {
	return Guard{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := testGuard().Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestDo_RetriesWriteConflict(t *testing.T) {
	calls := 0
	err := testGuard().Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return domain.ErrWriteConflict
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestDo_ExhaustedBudgetBecomesConcurrentModification(t *testing.T) {
	calls := 0
	err := testGuard().Do(context.Background(), func(ctx context.Context) error {
		calls++
		return domain.ErrWriteConflict
	})
	require.ErrorIs(t, err, domain.ErrConcurrentModification)
	require.Equal(t, 3, calls)
}

func TestDo_VersionMismatchNotRetried(t *testing.T) {
	calls := 0
	err := testGuard().Do(context.Background(), func(ctx context.Context) error {
		calls++
		return domain.Conflictf("version mismatch")
	})
	require.ErrorIs(t, err, domain.ErrConflict)
	require.Equal(t, 1, calls)
}

func TestDo_NotFoundNotRetried(t *testing.T) {
	calls := 0
	err := testGuard().Do(context.Background(), func(ctx context.Context) error {
		calls++
		return domain.ErrNotFound
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.Equal(t, 1, calls)
}

func TestDo_ContextCancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := Guard{MaxAttempts: 3, BaseDelay: 50 * time.Millisecond, Multiplier: 2}
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := g.Do(ctx, func(ctx context.Context) error {
		calls++
		return domain.ErrWriteConflict
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}
