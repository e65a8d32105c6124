package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/liquistock/liquistock/internal/sales"
	"github.com/liquistock/liquistock/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeTicketEmail is the task type for emailing a sale ticket.
	TaskTypeTicketEmail = "ticket:email"
	// TaskTypeIdempotencyCleanup prunes expired idempotency keys.
	TaskTypeIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// TicketEmailPayload describes a ticket delivery request.
type TicketEmailPayload struct {
	SaleID int64  `json:"sale_id"`
	Email  string `json:"email"`
}

// NewTicketEmailTask constructs an Asynq task.
func NewTicketEmailTask(payload TicketEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeTicketEmail, data), nil
}

// NewIdempotencyCleanupTask constructs the periodic cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskTypeIdempotencyCleanup, nil)
}

// TicketRenderer produces the PDF ticket for a committed sale.
type TicketRenderer interface {
	Render(ctx context.Context, sale sales.Sale) ([]byte, error)
}

// SaleLoader fetches a sale with its lines.
type SaleLoader interface {
	GetSale(ctx context.Context, id int64) (sales.Sale, error)
}

// NewTicketEmailHandler returns the handler for TaskTypeTicketEmail tasks.
func NewTicketEmailHandler(loader SaleLoader, renderer TicketRenderer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload TicketEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		sale, err := loader.GetSale(ctx, payload.SaleID)
		if err != nil {
			return err
		}
		pdf, err := renderer.Render(ctx, sale)
		if err != nil {
			return err
		}
		// Placeholder: hand off to SMTP once an outbound relay is provisioned.
		logger.Info("ticket rendered for delivery",
			slog.Int64("sale_id", payload.SaleID),
			slog.String("email", payload.Email),
			slog.Int("pdf_bytes", len(pdf)),
		)
		return nil
	}
}

// NewIdempotencyCleanupHandler returns the handler for the cleanup task.
func NewIdempotencyCleanupHandler(store *shared.IdempotencyStore, retention time.Duration, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		if err := store.Cleanup(ctx, retention); err != nil {
			return err
		}
		logger.Info("idempotency keys pruned", slog.Duration("retention", retention))
		return nil
	}
}
