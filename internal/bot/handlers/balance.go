package handlers

import (
	"context"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/nordgate/tipbot/internal/domain"
	"github.com/nordgate/tipbot/internal/ledger"
	"github.com/nordgate/tipbot/internal/usercache"
)

// NewBalanceHandler replies with the sender's balance. Users that never
// registered read as zero by contract.
func NewBalanceHandler(engine *ledger.Engine, cache *usercache.Cache, log *slog.Logger) Handler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return c.Send("An internal error occurred. Please try again later.")
		}

		ctx := context.Background()

		if cached, err := cache.Get(ctx, sender.ID); err == nil && cached != nil {
			return c.Send("Your balance is: " + domain.FormatAmount(cached.Balance) + " units.")
		}

		balance, err := engine.QueryBalance(ctx, sender.ID)
		if err != nil {
			if log != nil {
				log.Error("balance handler failed", slog.Int64("user_id", sender.ID), slog.Any("error", err))
			}
			return c.Send("An error occurred while fetching your balance.")
		}

		if acc, accErr := engine.Account(ctx, sender.ID); accErr == nil {
			_ = cache.Set(ctx, acc, usercache.DefaultTTL)
		}

		return c.Send("Your balance is: " + domain.FormatAmount(balance) + " units.")
	}
}
