package logger

import (
	"context"
	"log/slog"
	"strings"
)

// Attributes masked entirely before a record leaves the process.
var secretKeys = []string{
	"password",
	"token",
	"secret",
	"api_key",
	"authorization",
}

// Wallet references are pseudonymous, not secret; keeping a short prefix lets
// operators correlate log lines without exposing the full reference.
const walletRefKey = "wallet_ref"

// MaskingHandler wraps a slog.Handler and masks sensitive attributes before delegating.
type MaskingHandler struct {
	next slog.Handler
}

// NewMaskingHandler creates a handler that masks sensitive fields before passing records downstream.
func NewMaskingHandler(next slog.Handler) *MaskingHandler {
	return &MaskingHandler{next: next}
}

// Enabled reports whether the handler handles records at the given level.
func (h *MaskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// WithAttrs returns a new handler with additional attributes.
func (h *MaskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &MaskingHandler{next: h.next.WithAttrs(maskAttrs(attrs))}
}

// WithGroup returns a new handler with an appended group name.
func (h *MaskingHandler) WithGroup(name string) slog.Handler {
	return &MaskingHandler{next: h.next.WithGroup(name)}
}

// Handle applies masking to sensitive attributes and delegates to the wrapped handler.
func (h *MaskingHandler) Handle(ctx context.Context, record slog.Record) error {
	masked := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)

	record.Attrs(func(attr slog.Attr) bool {
		masked.AddAttrs(maskAttr(attr))
		return true
	})

	return h.next.Handle(ctx, masked)
}

func maskAttrs(attrs []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		out[i] = maskAttr(attr)
	}
	return out
}

func maskAttr(attr slog.Attr) slog.Attr {
	switch {
	case strings.EqualFold(attr.Key, walletRefKey):
		attr.Value = slog.StringValue(truncateRef(attr.Value.String()))
	case isSecretKey(attr.Key):
		attr.Value = slog.StringValue("***")
	}
	return attr
}

func truncateRef(ref string) string {
	if len(ref) <= 8 {
		return ref
	}
	return ref[:8] + "..."
}

func isSecretKey(key string) bool {
	for _, secret := range secretKeys {
		if strings.EqualFold(key, secret) {
			return true
		}
	}
	return false
}
