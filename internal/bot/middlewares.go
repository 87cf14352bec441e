package bot

import (
	"context"
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	apperrors "github.com/nordgate/tipbot/internal/errors"
	"github.com/nordgate/tipbot/pkg/logger"
)

// RecoveryMiddleware converts handler panics into logged errors so a single
// malformed update cannot take down the event loop.
func RecoveryMiddleware(log *slog.Logger, errHandler *apperrors.Handler) telebot.MiddlewareFunc {
	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					if log != nil {
						log.Error("panic recovered in bot handler",
							slog.Any("panic", r),
							slog.String("text", c.Text()))
					}
					if errHandler != nil {
						errHandler.Handle(context.Background(), fmt.Errorf("handler panic: %v", r))
					}
					err = c.Send("An internal error occurred. Please try again later.")
				}
			}()
			return next(c)
		}
	}
}

// ErrorHandlingMiddleware translates handler errors into user-facing replies
// and routes them through the central error handler for logging and alerting.
func ErrorHandlingMiddleware(errHandler *apperrors.Handler) telebot.MiddlewareFunc {
	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			err := next(c)
			if err == nil || errHandler == nil {
				return err
			}

			msg, _ := errHandler.Handle(context.Background(), err)
			return c.Send(msg)
		}
	}
}

// LoggingMiddleware records each incoming command with a correlation id.
func LoggingMiddleware(log *slog.Logger) telebot.MiddlewareFunc {
	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			if log == nil {
				return next(c)
			}

			correlationID := logger.NewCorrelationID()
			attrs := []any{
				slog.String("correlation_id", correlationID),
				slog.String("text", c.Text()),
			}
			if sender := c.Sender(); sender != nil {
				attrs = append(attrs, slog.Int64("user_id", sender.ID))
			}

			log.Info("update received", attrs...)
			return next(c)
		}
	}
}
