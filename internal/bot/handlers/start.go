package handlers

import (
	"context"
	stdErrors "errors"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/nordgate/tipbot/internal/domain"
	"github.com/nordgate/tipbot/internal/ledger"
	"github.com/nordgate/tipbot/internal/store"
	"github.com/nordgate/tipbot/internal/wallet"
)

// NewStartHandler registers the sender's account on first contact and
// refreshes the username on every later /start.
func NewStartHandler(engine *ledger.Engine, wallets wallet.Provider, log *slog.Logger) Handler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return c.Send("An internal error occurred. Please try again later.")
		}

		ctx := context.Background()

		_, findErr := engine.Account(ctx, sender.ID)
		firstContact := stdErrors.Is(findErr, store.ErrAccountNotFound)

		acc, err := engine.RegisterAccount(ctx, sender.ID, sender.Username, wallets.GenerateWalletRef())
		if err != nil {
			if log != nil {
				log.Error("failed to register account", slog.Int64("user_id", sender.ID), slog.Any("error", err))
			}
			return c.Send("There was an error initializing your account.")
		}

		if firstContact {
			return c.Send("Welcome! Your account has been set up. Your balance is " +
				domain.FormatAmount(acc.Balance) + " units.")
		}

		return c.Send("Welcome back!")
	}
}
