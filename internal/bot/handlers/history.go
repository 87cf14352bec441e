package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/nordgate/tipbot/internal/domain"
	"github.com/nordgate/tipbot/internal/ledger"
)

// NewHistoryHandler lists the sender's most recent transfers from the log.
func NewHistoryHandler(engine *ledger.Engine, limit int, log *slog.Logger) Handler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return c.Send("An internal error occurred. Please try again later.")
		}

		ctx := context.Background()

		records, err := engine.History(ctx, sender.ID, limit)
		if err != nil {
			if log != nil {
				log.Error("history handler failed", slog.Int64("user_id", sender.ID), slog.Any("error", err))
			}
			return c.Send("An error occurred while fetching your history.")
		}

		if len(records) == 0 {
			return c.Send("No transfers yet.")
		}

		var b strings.Builder
		b.WriteString("Your recent transfers:\n")
		for _, rec := range records {
			if rec.SenderID == sender.ID {
				fmt.Fprintf(&b, "- sent %s to %d on %s\n",
					domain.FormatAmount(rec.Amount), rec.RecipientID, rec.OccurredAt.Format("Jan 2, 15:04"))
			} else {
				fmt.Fprintf(&b, "- received %s from %d on %s\n",
					domain.FormatAmount(rec.Amount), rec.SenderID, rec.OccurredAt.Format("Jan 2, 15:04"))
			}
		}

		return c.Send(b.String())
	}
}
