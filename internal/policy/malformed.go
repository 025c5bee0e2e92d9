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

// MalformedExpression fires Failure when a row has failed to parse for
// longer than the configured threshold.
type MalformedExpression struct{}

func (MalformedExpression) Name() string { return "MalformedExpression" }

func (MalformedExpression) IsDisabled(j *job.Job) bool {
	threshold, err := j.Configuration.Int(config.KeySLAMalformedExpressionDelayMins)
	return err != nil || threshold == -1
}

func (p MalformedExpression) Evaluate(j *job.Job, now time.Time) (Alert, bool) {
	if !j.Active() {
		return Alert{}, false
	}
	if !j.Row.Malformed {
		return Alert{
			Message: "row parses successfully",
			Job:     j,
			Status:  StatusSuccess,
		}, true
	}

	threshold, err := j.Configuration.Int(config.KeySLAMalformedExpressionDelayMins)
	if err != nil {
		return Alert{}, false
	}
	age := now.Sub(time.UnixMilli(j.Row.ReadTimestampMillis))
	window := time.Duration(threshold) * time.Minute

	if age <= window {
		return Alert{
			Message: fmt.Sprintf("row malformed for %s, within threshold", age.Round(time.Second)),
			Job:     j,
			Status:  StatusSuccess,
		}, true
	}
	return Alert{
		Message: fmt.Sprintf("row %q has been malformed for %s (threshold %s)", j.Row.RawExpression, age.Round(time.Second), window),
		Job:     j,
		Status:  StatusFailure,
	}, true
}
