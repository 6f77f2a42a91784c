// Package janitor periodically scans for orphaned threads: a
// conversation thread survives when both participants remove it from
// their indices, since deletion only ever touches the requester's own
// list. Orphans are counted and reported, never reclaimed; history may
// still be restorable and reclamation is a product decision.
package janitor

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"go.uber.org/zap"

	"chatdb/pkg/convindex"
	"chatdb/pkg/logger"
	"chatdb/pkg/metrics"
	"chatdb/pkg/models"
	"chatdb/pkg/store"
	"chatdb/pkg/thread"
)

// DefaultCron runs the scan daily at 03:00.
const DefaultCron = "0 3 * * *"

// Start schedules orphan scans until ctx is done. The cron expression
// is validated up front; an empty one falls back to DefaultCron.
func Start(ctx context.Context, p *store.Pebble, cron string) error {
	if cron == "" {
		cron = DefaultCron
	}
	gx := gronx.New()
	if !gx.IsValid(cron) {
		logger.Log.Error("janitor_invalid_cron", zap.String("cron", cron))
		return errInvalidCron(cron)
	}
	logger.Log.Info("janitor_started", zap.String("cron", cron))

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				logger.Log.Info("janitor_stopped")
				return
			case t := <-ticker.C:
				due, err := gx.IsDue(cron, t)
				if err != nil || !due {
					continue
				}
				if _, err := Scan(p); err != nil {
					logger.Log.Error("janitor_scan_failed", zap.Error(err))
				}
			}
		}
	}()
	return nil
}

type errInvalidCron string

func (e errInvalidCron) Error() string { return "invalid cron expression: " + string(e) }

// Scan walks every thread and every conversation index and returns the
// ids of threads no index references.
func Scan(p *store.Pebble) ([]string, error) {
	start := time.Now()

	threads, err := p.ListPaths(thread.IDPrefix)
	if err != nil {
		return nil, err
	}

	paths, err := p.ListPaths("")
	if err != nil {
		return nil, err
	}
	indexSuffix := convindex.IndexPath("")
	referenced := make(map[string]struct{})
	for _, path := range paths {
		if !strings.HasSuffix(path, indexSuffix) {
			continue
		}
		raw, ok, err := p.ReadOnce(path)
		if err != nil || !ok {
			continue
		}
		var list []models.ConversationSummary
		if err := json.Unmarshal(raw, &list); err != nil {
			logger.Log.Warn("janitor_index_undecodable", zap.String("node", path), zap.Error(err))
			continue
		}
		for _, c := range list {
			referenced[c.ID] = struct{}{}
		}
	}
	var orphans []string
	for _, id := range threads {
		if _, ok := referenced[id]; !ok {
			orphans = append(orphans, id)
		}
	}

	metrics.OrphanedThreads.Set(float64(len(orphans)))
	logger.Log.Info("janitor_scan_done",
		zap.Int("threads", len(threads)),
		zap.Int("orphans", len(orphans)),
		zap.Duration("took", time.Since(start)))
	return orphans, nil
}
