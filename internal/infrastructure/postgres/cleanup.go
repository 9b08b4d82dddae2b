package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/powderplans/event-service/internal/pkg/logger"
)

const (
	sentOutboxRetention = 24 * time.Hour
	deadOutboxRetention = 7 * 24 * time.Hour
)

// StartOutboxCleanup prunes delivered outbox rows on an hourly schedule.
// Dead rows are kept longer so an operator can inspect the last_error.
func (r *Repository) StartOutboxCleanup(ctx context.Context) {
	go func() {
		log := logger.Logger.With().Str("component", "outbox_cleanup").Logger()

		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()

		// run once at startup, then hourly
		r.pruneOutbox(ctx)

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("stopped")
				return
			case <-ticker.C:
				r.pruneOutbox(ctx)
			}
		}
	}()
}

func (r *Repository) pruneOutbox(ctx context.Context) {
	log := logger.Logger.With().Str("component", "outbox_cleanup").Logger()

	sent, err := r.pool.Exec(ctx, `
		DELETE FROM outbox
		WHERE status = 'sent'
		  AND occurred_at < NOW() - $1::interval
	`, fmt.Sprintf("%f hours", sentOutboxRetention.Hours()))
	if err != nil {
		log.Warn().Err(err).Msg("failed to prune sent outbox rows")
		return
	}

	dead, err := r.pool.Exec(ctx, `
		DELETE FROM outbox
		WHERE status = 'dead'
		  AND occurred_at < NOW() - $1::interval
	`, fmt.Sprintf("%f hours", deadOutboxRetention.Hours()))
	if err != nil {
		log.Warn().Err(err).Msg("failed to prune dead outbox rows")
		return
	}

	if sent.RowsAffected() > 0 || dead.RowsAffected() > 0 {
		log.Info().
			Int64("sent_pruned", sent.RowsAffected()).
			Int64("dead_pruned", dead.RowsAffected()).
			Msg("outbox pruned")
	}
}
