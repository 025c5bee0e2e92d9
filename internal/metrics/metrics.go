/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics exposes the in-process Prometheus counters and
// gauges for job runs, alerts, and crontab reconciliations.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	ExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "omicron_executions_total",
		Help: "Total number of task launches, by terminal status.",
	}, []string{"status"})

	SkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "omicron_skipped_total",
		Help: "Total number of scheduled minutes that did not launch a task.",
	})

	AlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "omicron_alerts_total",
		Help: "Total number of alert emails dispatched, by outcome.",
	}, []string{"outcome"})

	ActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "omicron_active_jobs",
		Help: "Number of currently reconciled jobs.",
	})

	RetiredJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "omicron_retired_jobs",
		Help: "Number of jobs draining after being removed from the crontab.",
	})

	BadRows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "omicron_bad_rows",
		Help: "Number of malformed rows in the most recently loaded crontab.",
	})

	ReconciliationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "omicron_reconciliation_duration_seconds",
		Help: "Time spent reconciling the job set against a reloaded crontab.",
	})
)

// RecordExecution increments the execution counter for a terminal
// task status.
func RecordExecution(status string) {
	ExecutionsTotal.WithLabelValues(status).Inc()
}

// RecordAlert increments the alert counter for an outcome (sent,
// failed, dry_run, dropped_flood, dropped_busy).
func RecordAlert(outcome string) {
	AlertsTotal.WithLabelValues(outcome).Inc()
}

// Serve starts a plain net/http server exposing /metrics at addr. It
// runs until ctx is cancelled. Used only when metrics.bind.address is
// configured non-empty (SPEC_FULL.md §4.6a) — there is no
// controller-runtime manager in this domain to host it instead.
func Serve(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("metrics endpoint listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("metrics server stopped")
	}
}
