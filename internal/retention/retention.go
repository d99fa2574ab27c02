// Package retention runs the scheduled cleanup pass: it retries attachment
// blob deletions recorded on tombstones and purges tombstones once nothing
// is pending.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"go.uber.org/zap"

	"whisperboard/pkg/blob"
	"whisperboard/pkg/config"
	"whisperboard/pkg/logger"
	"whisperboard/pkg/store"
)

// Start starts the retention scheduler if enabled. Returns a cancel func.
func Start(ctx context.Context, eff config.EffectiveConfigResult, blobs blob.Provider) (context.CancelFunc, error) {
	ret := eff.Config.Retention
	if !ret.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}

	cronExpr := ret.Cron
	if cronExpr == "" {
		cronExpr = "0 3 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", zap.String("cron", ret.Cron))
		return nil, fmt.Errorf("invalid retention cron expression: %s", ret.Cron)
	}

	logger.Info("retention_enabled", zap.String("cron", cronExpr), zap.Bool("dry_run", ret.DryRun))
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cronExpr, ret.DryRun, blobs)
	return cancel, nil
}

// runScheduler computes the next tick for the cron expression and sleeps
// until that time, then triggers a run.
func runScheduler(ctx context.Context, cronExpr string, dryRun bool, blobs blob.Provider) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", zap.String("cron", cronExpr), zap.Error(err))
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			if err := RunOnce(ctx, dryRun, blobs); err != nil {
				logger.Error("retention_run_error", zap.Error(err))
			}
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}

// RunOnce walks all tombstones, retries their pending blob deletions and
// purges tombstones that have nothing left to clean. Exported so admin
// tooling and tests can trigger a pass on demand.
func RunOnce(ctx context.Context, dryRun bool, blobs blob.Provider) error {
	tombs, err := store.ListTombstones()
	if err != nil {
		return fmt.Errorf("failed to list tombstones: %w", err)
	}
	var retried, purged int
	for _, tb := range tombs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var remaining []string
		for _, ref := range tb.PendingRefs {
			if dryRun {
				logger.Info("retention_would_delete", zap.String("node", tb.NodeID), zap.String("ref", ref))
				remaining = append(remaining, ref)
				continue
			}
			if blobs == nil {
				remaining = append(remaining, ref)
				continue
			}
			retried++
			if err := blobs.Delete(ctx, ref); err != nil {
				logger.Warn("retention_blob_delete_failed", zap.String("node", tb.NodeID), zap.String("ref", ref), zap.Error(err))
				remaining = append(remaining, ref)
			}
		}

		if len(remaining) == 0 {
			if dryRun {
				logger.Info("retention_would_purge", zap.String("node", tb.NodeID))
				continue
			}
			if err := store.PurgeTombstone(tb.NodeID); err != nil {
				logger.Error("retention_purge_failed", zap.String("node", tb.NodeID), zap.Error(err))
				continue
			}
			purged++
			continue
		}
		if !dryRun && len(remaining) != len(tb.PendingRefs) {
			tb.PendingRefs = remaining
			if err := store.SaveTombstone(tb); err != nil {
				logger.Error("retention_tombstone_update_failed", zap.String("node", tb.NodeID), zap.Error(err))
			}
		}
	}
	logger.Info("retention_run_complete", zap.Int("tombstones", len(tombs)), zap.Int("retried", retried), zap.Int("purged", purged))
	return nil
}
