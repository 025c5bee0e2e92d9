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

package policy

import (
	"fmt"
	"time"

	"github.com/omicron-cron/omicron/internal/config"
	"github.com/omicron-cron/omicron/internal/job"
)

// TimeSinceLastSuccess fires Failure when no Complete task log entry
// exists within the configured threshold window.
type TimeSinceLastSuccess struct{}

func (TimeSinceLastSuccess) Name() string { return "TimeSinceLastSuccess" }

func (TimeSinceLastSuccess) IsDisabled(j *job.Job) bool {
	threshold, err := j.Configuration.Int(config.KeySLAMinutesSinceSuccess)
	return err != nil || threshold == -1
}

func (p TimeSinceLastSuccess) Evaluate(j *job.Job, now time.Time) (Alert, bool) {
	if !j.Active() || !j.Row.Runnable() {
		return Alert{}, false
	}

	last, hasAny := j.TaskLog().Last()
	if !hasAny {
		return Alert{}, false
	}

	// Ambiguous signal: most recent entry is Started and a Complete
	// exists within the window — wait rather than judge prematurely.
	threshold, err := j.Configuration.Int(config.KeySLAMinutesSinceSuccess)
	if err != nil {
		return Alert{}, false
	}
	window := time.Duration(threshold) * time.Minute

	lastComplete, hasComplete := j.TaskLog().LastComplete()

	if last.Status == job.TaskStarted && hasComplete {
		age := now.Sub(time.UnixMilli(lastComplete.TimestampMillis))
		if age <= window {
			return Alert{}, false
		}
	}

	if last.Status == job.TaskComplete {
		return Alert{
			Message: fmt.Sprintf("job is healthy, last success at %s", time.UnixMilli(last.TimestampMillis).Format(time.RFC3339)),
			Job:     j,
			Status:  StatusSuccess,
		}, true
	}

	var reference time.Time
	if hasComplete {
		reference = time.UnixMilli(lastComplete.TimestampMillis)
	} else if first, ok := j.TaskLog().First(); ok {
		reference = time.UnixMilli(first.TimestampMillis)
	} else {
		return Alert{}, false
	}

	age := now.Sub(reference)
	if age <= window {
		return Alert{
			Message: fmt.Sprintf("within SLA window, last success %s ago", age.Round(time.Second)),
			Job:     j,
			Status:  StatusSuccess,
		}, true
	}

	return Alert{
		Message: fmt.Sprintf("no successful run in %s (threshold %s)", age.Round(time.Second), window),
		Job:     j,
		Status:  StatusFailure,
	}, true
}
