package handlers

import (
	telebot "gopkg.in/telebot.v3"
)

const helpText = `Available commands:
/start - register your account
/balance - show your balance
/tip <userId or @username> <amount> - send units to another member
/history - show your recent transfers
/deposit - show your deposit address
/reconcile - sync your balance with the chain
/help - this message`

// NewHelpHandler lists the available commands.
func NewHelpHandler() Handler {
	return func(c telebot.Context) error {
		return c.Send(helpText)
	}
}
