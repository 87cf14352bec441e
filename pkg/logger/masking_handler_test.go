package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskingHandler(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewMaskingHandler(slog.NewTextHandler(&buf, nil)))

	log.Info("bot starting",
		slog.String("token", "12345:AAbbCCdd"),
		slog.String("wallet_ref", "wlt-0123456789abcdef"),
		slog.Int64("user_id", 42),
	)

	output := buf.String()
	assert.NotContains(t, output, "12345:AAbbCCdd")
	assert.Contains(t, output, "token=***")
	assert.NotContains(t, output, "wlt-0123456789abcdef")
	assert.Contains(t, output, "wlt-0123...")
	assert.Contains(t, output, "user_id=42")
}

func TestMaskingHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewMaskingHandler(slog.NewTextHandler(&buf, nil)))

	log.With(slog.String("api_key", "sk-live-secret")).Info("request sent")

	output := buf.String()
	assert.NotContains(t, output, "sk-live-secret")
	assert.Contains(t, output, "api_key=***")
}

func TestTruncateRef(t *testing.T) {
	assert.Equal(t, "short", truncateRef("short"))
	assert.Equal(t, "wlt-1234...", truncateRef("wlt-1234567890"))
}
