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

// Package policy implements the SLA policy engine: three tagged-variant
// policies sharing one evaluation harness, with per-(policy, job) alert
// de-duplication state.
package policy

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/omicron-cron/omicron/internal/config"
	"github.com/omicron-cron/omicron/internal/job"
)

// AlertStatus is an Alert's outcome.
type AlertStatus int

const (
	StatusSuccess AlertStatus = iota
	StatusFailure
	StatusNotApplicable
)

func (s AlertStatus) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusFailure:
		return "Failure"
	default:
		return "NotApplicable"
	}
}

// Alert is one policy's verdict for one job.
type Alert struct {
	Message string
	Job     *job.Job
	Status  AlertStatus
}

// Policy is the tagged-variant interface shared by TimeSinceLastSuccess,
// CommentedExpression, and MalformedExpression.
type Policy interface {
	// Name identifies the policy for logging and the per-(policy,jobId)
	// de-dup map key.
	Name() string
	// IsDisabled reports whether this job's configuration disables the
	// policy (by convention, threshold == -1).
	IsDisabled(j *job.Job) bool
	// Evaluate produces this policy's Alert for job j at time now, or
	// ok=false if the signal is NotApplicable/ambiguous.
	Evaluate(j *job.Job, now time.Time) (Alert, bool)
}

// AlertLogEntry is the most recently emitted alert for a (policy, job).
type AlertLogEntry struct {
	Status          AlertStatus
	TimestampMillis int64
}

// Engine runs the shared evaluation harness (spec.md §4.7) for one
// Policy, holding its own per-jobId de-dup/repeat-delay state.
type Engine struct {
	policy Policy
	last   map[int64]AlertLogEntry
}

// NewEngine returns an Engine for policy.
func NewEngine(p Policy) *Engine {
	return &Engine{policy: p, last: map[int64]AlertLogEntry{}}
}

// allowFailure reports whether a new Failure emission is permitted for
// j right now, given its configured AlertMinutesDelayRepeat measured
// against j's own prior emission in e.last — not a token bucket, since
// a freshly seeded rate.Limiter starts with its burst token already
// available and would let the very next Failure through regardless of
// how soon it follows the first.
func (e *Engine) allowFailure(j *job.Job, now time.Time) bool {
	delayMinutes, err := j.Configuration.Int(config.KeyAlertMinutesDelayRepeat)
	if err != nil || delayMinutes <= 0 {
		delayMinutes = 1
	}

	prev := e.last[j.JobID]
	elapsed := now.Sub(time.UnixMilli(prev.TimestampMillis))
	return elapsed >= time.Duration(delayMinutes)*time.Minute
}

// Evaluate runs the shared harness across jobs and returns the outbox
// of Alerts to send this tick. Entries for jobs no longer present are
// purged afterward.
func (e *Engine) Evaluate(jobs []*job.Job, now time.Time) []Alert {
	var outbox []Alert
	present := map[int64]struct{}{}

	for _, j := range jobs {
		present[j.JobID] = struct{}{}

		if !j.Active() {
			continue
		}
		if e.policy.IsDisabled(j) {
			log.Info().Str("policy", e.policy.Name()).Int64("jobId", j.JobID).
				Msg("policy disabled for job")
			continue
		}
		if e.inDowntime(j, now) {
			continue
		}

		alert, ok := e.policy.Evaluate(j, now)
		if !ok {
			continue
		}

		prev, hadPrev := e.last[j.JobID]

		if alert.Status == StatusSuccess && hadPrev && prev.Status == StatusSuccess {
			continue
		}
		if alert.Status == StatusFailure && hadPrev {
			if !e.allowFailure(j, now) {
				continue
			}
		}
		if !hadPrev && alert.Status != StatusFailure {
			continue
		}

		e.last[j.JobID] = AlertLogEntry{Status: alert.Status, TimestampMillis: now.UnixMilli()}
		outbox = append(outbox, alert)
	}

	for jobID := range e.last {
		if _, ok := present[jobID]; !ok {
			delete(e.last, jobID)
		}
	}

	return outbox
}

func (e *Engine) inDowntime(j *job.Job, now time.Time) bool {
	window, err := j.Configuration.Downtime()
	if err != nil || window == nil {
		return false
	}
	loc, err := j.Configuration.TimeZone()
	if err != nil {
		return false
	}
	return window.Contains(now.In(loc))
}
