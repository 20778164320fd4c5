package credentials

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakePruner struct {
	calls chan time.Time
	err   error
}

func (f *fakePruner) PruneExpiredRefreshTokens(_ context.Context, now time.Time) (int64, error) {
	f.calls <- now
	return 1, f.err
}

func TestPruneRunsOnEveryTick(t *testing.T) {
	pruner := &fakePruner{calls: make(chan time.Time, 8)}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		PruneRefreshTokensPeriodically(ctx, pruner, 5*time.Millisecond, nil)
		close(done)
	}()

	for i := 0; i < 2; i++ {
		select {
		case now := <-pruner.calls:
			require.False(t, now.IsZero())
		case <-time.After(time.Second):
			t.Fatal("prune was not invoked")
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pruner did not stop on cancellation")
	}
}

func TestPruneKeepsRunningAfterFailure(t *testing.T) {
	pruner := &fakePruner{calls: make(chan time.Time, 8), err: errors.New("backend down")}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go PruneRefreshTokensPeriodically(ctx, pruner, 5*time.Millisecond, nil)

	for i := 0; i < 2; i++ {
		select {
		case <-pruner.calls:
		case <-time.After(time.Second):
			t.Fatal("prune stopped after an error")
		}
	}
}
