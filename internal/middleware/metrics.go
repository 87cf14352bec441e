package middleware

import (
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/nordgate/tipbot/pkg/metrics"
)

// Metrics measures execution time and status for bot handlers, reporting them to Prometheus.
func Metrics(next telebot.HandlerFunc) telebot.HandlerFunc {
	if next == nil {
		return nil
	}

	return func(c telebot.Context) error {
		start := time.Now()
		err := next(c)

		status := "ok"
		if err != nil {
			status = "error"
		}

		metrics.RecordCommand(extractCommandName(c), status, time.Since(start))

		return err
	}
}

func extractCommandName(c telebot.Context) string {
	if c == nil {
		return "unknown"
	}

	text := c.Text()
	if !strings.HasPrefix(text, "/") {
		return "unknown"
	}

	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "unknown"
	}

	return fields[0]
}
