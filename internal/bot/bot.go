package bot

import (
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/nordgate/tipbot/internal/bot/handlers"
	apperrors "github.com/nordgate/tipbot/internal/errors"
	"github.com/nordgate/tipbot/internal/jobs"
	"github.com/nordgate/tipbot/internal/ledger"
	"github.com/nordgate/tipbot/internal/middleware"
	"github.com/nordgate/tipbot/internal/usercache"
	"github.com/nordgate/tipbot/internal/wallet"
	"github.com/nordgate/tipbot/pkg/config"
)

// Bot wraps telebot.Bot with application dependencies required for handling updates.
type Bot struct {
	telebot     *telebot.Bot
	log         *slog.Logger
	cfg         config.Config
	engine      *ledger.Engine
	cache       *usercache.Cache
	wallets     wallet.Provider
	queue       jobs.Manager
	rateLimitMw *middleware.RateLimitMiddleware
	errHandler  *apperrors.Handler
}

// New builds a telegram bot instance configured according to the application settings.
func New(
	cfg config.Config,
	log *slog.Logger,
	engine *ledger.Engine,
	cache *usercache.Cache,
	wallets wallet.Provider,
	queue jobs.Manager,
	rateLimitMw *middleware.RateLimitMiddleware,
) (*Bot, error) {
	settings := telebot.Settings{
		Token: cfg.Bot.Token,
	}

	if cfg.Bot.Mode == "webhook" {
		settings.Poller = &telebot.Webhook{
			Listen: cfg.Server.Port,
		}
	} else {
		settings.Poller = &telebot.LongPoller{
			Timeout: cfg.Bot.Timeout,
		}
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	b := &Bot{
		telebot:     tb,
		log:         log,
		cfg:         cfg,
		engine:      engine,
		cache:       cache,
		wallets:     wallets,
		queue:       queue,
		rateLimitMw: rateLimitMw,
		errHandler:  apperrors.NewHandler(log, cfg.Sentry.Enabled),
	}

	b.telebot.Use(RecoveryMiddleware(b.log, b.errHandler))
	b.telebot.Use(ErrorHandlingMiddleware(b.errHandler))
	b.telebot.Use(LoggingMiddleware(b.log))
	if b.rateLimitMw != nil {
		b.telebot.Use(b.rateLimitMw.Handle)
	}
	b.telebot.Use(middleware.Metrics)

	b.registerHandlers()

	return b, nil
}

// Start runs the telegram bot event loop.
func (b *Bot) Start() {
	if b.telebot != nil {
		b.telebot.Start()
	}
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	if b.telebot == nil {
		return
	}

	if b.log != nil {
		b.log.Info("stopping telegram bot...")
	}

	b.telebot.Stop()
}

// Telebot exposes the underlying telebot.Bot instance for integrations such as health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

func (b *Bot) registerHandlers() {
	historyLimit := b.cfg.Ledger.HistoryLimit

	b.handle(CommandStart, handlers.NewStartHandler(b.engine, b.wallets, b.log))
	b.handle(CommandBalance, handlers.NewBalanceHandler(b.engine, b.cache, b.log))
	b.handle(CommandTip, handlers.NewTipHandler(b.engine, b.cache, b.errHandler, b.log))
	b.handle(CommandDeposit, handlers.NewDepositHandler(b.engine, b.wallets, b.log))
	b.handle(CommandHistory, handlers.NewHistoryHandler(b.engine, historyLimit, b.log))
	b.handle(CommandReconcile, handlers.NewReconcileHandler(b.queue, b.log))
	b.handle(CommandHelp, handlers.NewHelpHandler())
}

func (b *Bot) handle(command string, h handlers.Handler) {
	b.telebot.Handle(command, telebot.HandlerFunc(h))
}
