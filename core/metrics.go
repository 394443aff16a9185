package core

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	errorsLogged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elmah_errors_logged_total",
			Help: "Total number of errors written to a store",
		},
		[]string{"store"},
	)

	corruptEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elmah_corrupt_entries_total",
			Help: "Stored entries that could not be decoded while paging",
		},
		[]string{"store"},
	)
)

func init() {
	prometheus.MustRegister(errorsLogged, corruptEntries)
}

// RecordLogged counts a successful write to store.
func RecordLogged(store string) {
	errorsLogged.WithLabelValues(store).Inc()
}

// ReportCorrupt logs and counts an entry skipped while paging.
func ReportCorrupt(logger *slog.Logger, store, id string, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("skipping corrupt error entry", "store", store, "id", id, "error", err)
	corruptEntries.WithLabelValues(store).Inc()
}
