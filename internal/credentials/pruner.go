package credentials

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RefreshTokenPruner removes refresh tokens past their expiry, returning the
// number of rows deleted.
type RefreshTokenPruner interface {
	PruneExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

// PruneRefreshTokensPeriodically prunes expired refresh tokens on every tick
// until ctx is cancelled. Rotation and sign-out only delete the token they
// are presented with, so abandoned sessions are cleaned up here.
func PruneRefreshTokensPeriodically(ctx context.Context, pruner RefreshTokenPruner, interval time.Duration, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := pruner.PruneExpiredRefreshTokens(ctx, time.Now().UTC())
			if err != nil {
				log.Warn("refresh token prune failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				log.Info("pruned expired refresh tokens", zap.Int64("removed", removed))
			}
		}
	}
}
