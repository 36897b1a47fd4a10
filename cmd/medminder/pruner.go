package main

import (
	"context"
	"time"

	"github.com/nerrad567/medminder/internal/infrastructure/logging"
)

type dosePruner interface {
	PruneDoses(ctx context.Context, olderThan time.Duration) (int64, error)
}

// historyPruner trims the dose history once a day alongside the counter reset.
type historyPruner struct {
	repo      dosePruner
	retention time.Duration
	log       *logging.Logger
}

func (historyPruner) ScheduleCheck(context.Context, time.Time) {}

func (p historyPruner) DailyReset(ctx context.Context) {
	n, err := p.repo.PruneDoses(ctx, p.retention)
	if err != nil {
		p.log.Error("pruning dose history failed", "error", err)
		return
	}
	if n > 0 {
		p.log.Info("dose history pruned", "removed", n, "retention", p.retention.String())
	}
}
