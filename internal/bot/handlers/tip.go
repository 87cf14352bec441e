package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/nordgate/tipbot/internal/domain"
	apperrors "github.com/nordgate/tipbot/internal/errors"
	"github.com/nordgate/tipbot/internal/ledger"
	"github.com/nordgate/tipbot/internal/usercache"
)

const tipUsage = "Usage: /tip <userId or @username> <amount>"

// NewTipHandler moves balance from the sender to the named recipient and
// notifies the recipient on success.
func NewTipHandler(engine *ledger.Engine, cache *usercache.Cache, errHandler *apperrors.Handler, log *slog.Logger) Handler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return c.Send("An internal error occurred. Please try again later.")
		}

		args := c.Args()
		if len(args) < 2 {
			return c.Send(tipUsage)
		}

		recipientIdentifier := args[0]
		amount, err := domain.ParseAmount(args[1])
		if err != nil || amount <= 0 {
			return c.Send("Please provide a valid amount.")
		}

		ctx := context.Background()

		recipientID, err := engine.LookupRecipient(ctx, recipientIdentifier)
		if err != nil {
			msg, _ := errHandler.Handle(ctx, err)
			return c.Send(msg)
		}

		record, err := engine.Transfer(ctx, sender.ID, recipientID, amount)
		if err != nil {
			msg, _ := errHandler.Handle(ctx, err)
			return c.Send(msg)
		}

		_ = cache.Invalidate(ctx, sender.ID, recipientID)

		if err := c.Send(fmt.Sprintf("Successfully sent %s units to %s.",
			domain.FormatAmount(record.Amount), displayName(recipientIdentifier))); err != nil {
			return err
		}

		// Recipient notification is best effort; the transfer is already
		// committed and must not be reported as failed.
		notification := fmt.Sprintf("You have received %s units from %s.",
			domain.FormatAmount(record.Amount), senderName(sender))
		if _, err := c.Bot().Send(&telebot.User{ID: recipientID}, notification); err != nil && log != nil {
			log.Warn("failed to notify tip recipient",
				slog.Int64("recipient_id", recipientID),
				slog.Any("error", err),
			)
		}

		return nil
	}
}

func displayName(identifier string) string {
	trimmed := strings.TrimPrefix(identifier, "@")
	if trimmed != identifier {
		return "@" + trimmed
	}
	return identifier
}

func senderName(sender *telebot.User) string {
	if sender.Username != "" {
		return "@" + sender.Username
	}
	return fmt.Sprintf("ID:%d", sender.ID)
}
