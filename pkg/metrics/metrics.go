// Package metrics exposes Prometheus instrumentation for the tip bot.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nordgate/tipbot/internal/domain"
)

var (
	botCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Total number of bot commands received labeled by command and status",
		},
		[]string{"command", "status"},
	)
	commandDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "command_duration_seconds",
			Help:    "Duration of bot commands in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
	transfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_transfers_total",
			Help: "Total number of transfer attempts labeled by outcome",
		},
		[]string{"status"},
	)
	transferredUnits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_transferred_units_total",
			Help: "Sum of successfully transferred amounts in ledger units",
		},
	)
	reconciliationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_reconciliations_total",
			Help: "Total number of reconciliation runs labeled by outcome",
		},
		[]string{"status"},
	)
	reconciliationDrift = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_reconciliation_drift_units_total",
			Help: "Absolute drift corrected by reconciliation, in ledger units",
		},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by code and severity",
		},
		[]string{"code", "severity"},
	)
)

// RecordCommand increments command counters and records duration.
func RecordCommand(command, status string, duration time.Duration) {
	if command == "" {
		command = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	botCommandsTotal.WithLabelValues(command, status).Inc()
	commandDurationSeconds.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordTransfer tracks one transfer attempt. amount is only added to the
// transferred-units counter for successful transfers.
func RecordTransfer(status string, amount int64) {
	if status == "" {
		status = "unknown"
	}

	transfersTotal.WithLabelValues(status).Inc()

	if status == "ok" && amount > 0 {
		transferredUnits.Add(domain.Units(amount))
	}
}

// RecordReconciliation tracks one reconciliation run and the drift it corrected.
func RecordReconciliation(status string, drift int64) {
	if status == "" {
		status = "unknown"
	}

	reconciliationsTotal.WithLabelValues(status).Inc()

	if drift < 0 {
		drift = -drift
	}
	if drift > 0 {
		reconciliationDrift.Add(domain.Units(drift))
	}
}

// RecordError increments error counters with metadata.
func RecordError(code, severity string) {
	if code == "" {
		code = "unknown"
	}
	if severity == "" {
		severity = "unknown"
	}

	errorsTotal.WithLabelValues(code, severity).Inc()
}
