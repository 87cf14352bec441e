package bot

// Command constants for Telegram bot commands.
const (
	CommandStart     = "/start"
	CommandBalance   = "/balance"
	CommandTip       = "/tip"
	CommandDeposit   = "/deposit"
	CommandHistory   = "/history"
	CommandReconcile = "/reconcile"
	CommandHelp      = "/help"
)
