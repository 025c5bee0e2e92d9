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

// Package jobmanager reconciles the live Job set against a reloaded
// Crontab, drives the per-minute evaluation fan-out, and hands the
// per-minute snapshot to the alert engine.
package jobmanager

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/omicron-cron/omicron/internal/config"
	"github.com/omicron-cron/omicron/internal/crontab"
	"github.com/omicron-cron/omicron/internal/job"
	"github.com/omicron-cron/omicron/internal/metrics"
	"github.com/omicron-cron/omicron/internal/supervisor"
)

// AlertSender evaluates policies over the current job set and batches
// any resulting alerts for delivery. Implemented by internal/alerting.
type AlertSender interface {
	SendAlerts(ctx context.Context, jobs []*job.Job)
	SetConfiguration(cfg *config.Configuration)
}

// identityKey is a Job's reconciliation identity: (row, configuration).
type identityKey struct {
	row crontab.RowIdentity
	cfg string // a stable fingerprint of the Configuration's overridable values
}

// JobManager owns the live Job set and drives per-minute evaluation.
type JobManager struct {
	mu      sync.Mutex
	active  map[identityKey]*job.Job
	retired []*job.Job

	processTree ProcessTreeFactory
	alerts      AlertSender
}

// ProcessTreeFactory returns the ProcessTree implementation used for
// every new Job. It is a function, not a shared value, only so tests
// can hand each Job its own scripted tree.
type ProcessTreeFactory func() supervisor.ProcessTree

// New returns an empty JobManager.
func New(treeFactory ProcessTreeFactory, alerts AlertSender) *JobManager {
	return &JobManager{
		active:      map[identityKey]*job.Job{},
		processTree: treeFactory,
		alerts:      alerts,
	}
}

func keyFor(row *crontab.Row, cfg *config.Configuration) identityKey {
	return identityKey{row: row.Identity(), cfg: fingerprint(cfg)}
}

// fingerprint renders a Configuration's per-row overridable values into
// a stable string for use as a reconciliation map key; non-overridable
// keys are not part of it.
func fingerprint(cfg *config.Configuration) string {
	keys := []config.Key{
		config.KeyTaskMaxInstanceCount, config.KeyTaskCriticalReturnCode,
		config.KeyTaskTimeoutMinutes, config.KeyAlertEmailEnabled,
		config.KeyAlertMinutesDelayRepeat, config.KeyAlertDowntime,
		config.KeySLAMinutesSinceSuccess, config.KeySLACommentedExpressionDelayMins,
		config.KeySLAMalformedExpressionDelayMins,
	}
	out := ""
	for _, k := range keys {
		out += string(k) + "=" + cfg.String(k) + ";"
	}
	return out
}

// UpdateConfiguration reconciles the live Job set against newCrontab,
// per spec.md §4.6.
func (m *JobManager) UpdateConfiguration(newConfig *config.Configuration, newCrontab *crontab.Crontab) {
	start := time.Now()
	defer func() { metrics.ReconciliationDuration.Observe(time.Since(start).Seconds()) }()

	m.mu.Lock()
	defer m.mu.Unlock()

	next := map[identityKey]*job.Job{}

	for _, row := range newCrontab.Rows {
		cfg := newConfig
		if override, ok := newCrontab.Overrides[row.LineNumber]; ok {
			cfg = override
		}
		key := keyFor(row, cfg)

		existing, ok := m.active[key]
		if !ok {
			for i, r := range m.retired {
				if keyFor(r.Row, r.Configuration) == key {
					m.retired = append(m.retired[:i], m.retired[i+1:]...)
					existing, ok = r, true
					break
				}
			}
		}
		if ok {
			if !existing.Active() {
				existing.Reactivate()
			}
			// The identity fingerprint only covers the overridable keys,
			// so a reload that changes a non-overridable one (timezone,
			// command paths, ...) needs to be applied here explicitly.
			existing.Configuration = cfg
			next[key] = existing
			continue
		}
		next[key] = job.New(row, cfg, m.processTree())
	}

	for key, existing := range m.active {
		if _, stillPresent := next[key]; stillPresent {
			continue
		}
		if existing.RunningTaskCount() > 0 {
			existing.Retire()
			m.retired = append(m.retired, existing)
		}
	}

	m.active = next
	m.alerts.SetConfiguration(newConfig)

	metrics.ActiveJobs.Set(float64(len(m.active)))
	metrics.RetiredJobs.Set(float64(len(m.retired)))
	metrics.BadRows.Set(float64(newCrontab.BadRowCount))

	log.Info().Int("jobs", len(m.active)).Int("retired", len(m.retired)).
		Int("badRows", newCrontab.BadRowCount).Msg("crontab reconciled")
}

// Run evaluates every active and retired Job for the current minute,
// exception-isolated so one Job's failure cannot block the others,
// then retires drained Jobs and hands the snapshot to the alert engine.
func (m *JobManager) Run(ctx context.Context, now time.Time) {
	m.mu.Lock()
	jobs := make([]*job.Job, 0, len(m.active)+len(m.retired))
	for _, j := range m.active {
		jobs = append(jobs, j)
	}
	jobs = append(jobs, m.retired...)
	m.mu.Unlock()

	for _, j := range jobs {
		m.runOneIsolated(ctx, j, now)
	}

	m.retireDrained()

	m.mu.Lock()
	snapshot := make([]*job.Job, 0, len(m.active))
	for _, j := range m.active {
		snapshot = append(snapshot, j)
	}
	m.mu.Unlock()

	m.alerts.SendAlerts(ctx, snapshot)
}

func (m *JobManager) runOneIsolated(ctx context.Context, j *job.Job, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Int64("jobId", j.JobID).
				Msg("job evaluation panicked, isolated from other jobs")
		}
	}()
	j.Run(ctx, now)
}

// retireDrained removes retired Jobs whose running tasks have all
// exited (Open Question b: retired jobs are swept every tick until
// drained, never dropped early).
func (m *JobManager) retireDrained() {
	m.mu.Lock()
	defer m.mu.Unlock()

	remaining := m.retired[:0]
	for _, j := range m.retired {
		if j.RunningTaskCount() == 0 {
			continue
		}
		remaining = append(remaining, j)
	}
	m.retired = remaining
	metrics.RetiredJobs.Set(float64(len(m.retired)))
}

// ActiveJobCount reports the number of currently reconciled Jobs, for
// metrics.
func (m *JobManager) ActiveJobCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// RetiredJobCount reports the number of draining Jobs, for metrics.
func (m *JobManager) RetiredJobCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.retired)
}
