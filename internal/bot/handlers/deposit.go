package handlers

import (
	"context"
	stdErrors "errors"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/nordgate/tipbot/internal/ledger"
	"github.com/nordgate/tipbot/internal/store"
	"github.com/nordgate/tipbot/internal/wallet"
)

// NewDepositHandler shows the sender's wallet reference for on-chain deposits,
// provisioning one for accounts that predate wallet linking.
func NewDepositHandler(engine *ledger.Engine, wallets wallet.Provider, log *slog.Logger) Handler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return c.Send("An internal error occurred. Please try again later.")
		}

		ctx := context.Background()

		acc, err := engine.Account(ctx, sender.ID)
		if stdErrors.Is(err, store.ErrAccountNotFound) {
			return c.Send("You are not registered yet. Send /start first.")
		}
		if err != nil {
			if log != nil {
				log.Error("deposit handler failed", slog.Int64("user_id", sender.ID), slog.Any("error", err))
			}
			return c.Send("An error occurred. Please try again later.")
		}

		if acc.WalletRef == "" {
			// CreateOrTouch only fills an empty wallet reference, so this is
			// safe to repeat.
			acc, err = engine.RegisterAccount(ctx, sender.ID, sender.Username, wallets.GenerateWalletRef())
			if err != nil || acc.WalletRef == "" {
				return c.Send("Deposits are not available right now.")
			}
		}

		return c.Send("To deposit, please send funds to this address: " + acc.WalletRef)
	}
}
