package bootstrap

import (
	"github.com/jackc/pgx/v5/pgxpool"

	appconfig "github.com/kazdocs/kazdocs-platform/internal/config"
	"github.com/kazdocs/kazdocs-platform/internal/events"
	"github.com/kazdocs/kazdocs-platform/pkg/logging"
)

// BuildEventPipeline returns the publisher used by the intake endpoint and,
// when Postgres is available, the deliverer draining the outbox. Without a
// pool events are handed to handler inline.
func BuildEventPipeline(pool *pgxpool.Pool, handler events.DeliveryHandler, cfg *appconfig.Config, logger *logging.Logger) (events.Publisher, *events.Deliverer) {
	if logger == nil {
		logger = logging.Default()
	}
	if pool == nil {
		logger.Warn("postgres not configured; contact events delivered inline")
		return events.NewInlinePublisher(handler, logger), nil
	}
	store := events.NewOutboxStore(pool)
	deliverer := events.NewDeliverer(store, handler, logger).
		WithBatchSize(int32(cfg.OutboxBatchSize)).
		WithInterval(cfg.OutboxPollInterval)
	return store, deliverer
}
