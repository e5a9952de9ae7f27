package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/farmsync/farmsync/internal/jobmetrics"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskValuationAudit replays receipt history and flags average-cost drift.
	TaskValuationAudit = "inventory:valuation_audit"
	// TaskIdempotencyCleanup prunes old idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// ValuationAuditPayload carries scheduling metadata.
type ValuationAuditPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewValuationAuditTask constructs the nightly valuation audit task.
func NewValuationAuditTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ValuationAuditPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskValuationAudit, body, asynq.Queue(QueueDefault)), nil
}

// ValuationAuditor is the slice of the stock valuation engine the audit needs.
type ValuationAuditor interface {
	AuditAll(ctx context.Context) (int, error)
}

// NewValuationAuditHandler builds the audit task handler.
func NewValuationAuditHandler(auditor ValuationAuditor, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ValuationAuditPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		tracker := metrics.Track("valuation_audit")
		drifted, err := auditor.AuditAll(ctx)
		metrics.AddDrift(drifted)
		if err == nil {
			logger.Info("valuation audit finished", slog.Int("drifted_items", drifted))
		}
		return tracker.End(err)
	}
}

// IdempotencyCleanupPayload carries the retention window.
type IdempotencyCleanupPayload struct {
	OlderThan time.Duration `json:"older_than"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(olderThan time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{OlderThan: olderThan})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

// KeyCleaner prunes processed idempotency keys.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// NewIdempotencyCleanupHandler builds the cleanup task handler.
func NewIdempotencyCleanupHandler(cleaner KeyCleaner, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload IdempotencyCleanupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.OlderThan <= 0 {
			payload.OlderThan = 7 * 24 * time.Hour
		}
		tracker := metrics.Track("idempotency_cleanup")
		err := cleaner.Cleanup(ctx, payload.OlderThan)
		if err == nil {
			logger.Info("idempotency keys pruned", slog.Duration("older_than", payload.OlderThan))
		}
		return tracker.End(err)
	}
}
