package handlers

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/nordgate/tipbot/internal/jobs"
	"github.com/nordgate/tipbot/internal/reconcile"
)

// ReconcileHandler processes both the per-user reconcile task and the
// periodic sweep over all wallet-linked accounts.
type ReconcileHandler struct {
	worker *reconcile.Worker
	log    *slog.Logger
}

func NewReconcileHandler(worker *reconcile.Worker, log *slog.Logger) *ReconcileHandler {
	return &ReconcileHandler{worker: worker, log: log}
}

func (h *ReconcileHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	switch t.Type() {
	case jobs.TaskTypeReconcileUser:
		var payload jobs.ReconcileUserPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			if h.log != nil {
				h.log.ErrorContext(ctx, "reconcile task: failed to decode payload",
					slog.String("task_type", t.Type()), slog.String("error", err.Error()))
			}
			return err
		}

		return h.worker.Reconcile(ctx, payload.UserID)

	case jobs.TaskTypeReconcileSweep:
		failures, err := h.worker.ReconcileAll(ctx)
		if h.log != nil {
			h.log.InfoContext(ctx, "reconciliation sweep finished",
				slog.Int("failures", failures))
		}
		return err
	}

	if h.log != nil {
		h.log.WarnContext(ctx, "reconcile handler received unknown task",
			slog.String("task_type", t.Type()))
	}

	return nil
}
