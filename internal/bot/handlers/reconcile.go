package handlers

import (
	"context"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/nordgate/tipbot/internal/jobs"
)

// NewReconcileHandler queues an on-demand reconciliation of the sender's
// balance against the chain. The heavy lifting happens in the jobs worker so
// the chat handler never blocks on oracle I/O.
func NewReconcileHandler(queue jobs.Manager, log *slog.Logger) Handler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return c.Send("An internal error occurred. Please try again later.")
		}

		if queue == nil {
			return c.Send("Balance reconciliation is not enabled.")
		}

		task, err := jobs.NewReconcileUserTask(sender.ID)
		if err != nil {
			return c.Send("An error occurred. Please try again later.")
		}

		if _, err := queue.Enqueue(context.Background(), task); err != nil {
			if log != nil {
				log.Error("failed to enqueue reconciliation",
					slog.Int64("user_id", sender.ID), slog.Any("error", err))
			}
			return c.Send("An error occurred. Please try again later.")
		}

		return c.Send("Balance sync started. Check /balance in a moment.")
	}
}
