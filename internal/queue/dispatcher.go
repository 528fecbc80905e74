package queue

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type Enqueuer interface {
	Enqueue(ctx context.Context, taskType string, id uuid.UUID) error
}

// Dispatcher hands work to the queue or, in inline mode, runs it in the
// caller. Queue consumers must call the same entry point as the inline func.
type Dispatcher struct {
	enqueuer Enqueuer
}

func NewDispatcher(enq Enqueuer) *Dispatcher {
	return &Dispatcher{enqueuer: enq}
}

func NewInlineDispatcher() *Dispatcher {
	return &Dispatcher{}
}

func (d *Dispatcher) Inline() bool {
	return d.enqueuer == nil
}

// Dispatch never fails the caller. Enqueue errors are logged; the entity is
// already persisted in its pending state and can be resubmitted.
func (d *Dispatcher) Dispatch(ctx context.Context, taskType string, id uuid.UUID, inline func(context.Context) error) {
	if d.Inline() {
		if err := inline(ctx); err != nil {
			slog.Error("inline task failed", "type", taskType, "id", id, "error", err)
		}
		return
	}

	if err := d.enqueuer.Enqueue(ctx, taskType, id); err != nil {
		slog.Error("failed to enqueue task", "type", taskType, "id", id, "error", err)
		return
	}
	slog.Debug("task enqueued", "type", taskType, "id", id)
}
