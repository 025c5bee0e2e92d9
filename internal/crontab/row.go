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

package crontab

import (
	"strings"

	"github.com/omicron-cron/omicron/internal/schedule"
)

// Row is a single parsed crontab line.
type Row struct {
	LineNumber           int
	RawExpression        string
	ExecutingUser        string
	Command              string
	Commented            bool
	Malformed            bool
	ReadTimestampMillis  int64
	Schedule             *schedule.Schedule
}

// Identity returns the reconciliation key: raw expression compared
// case-insensitively, plus the commented flag.
func (r *Row) Identity() RowIdentity {
	return RowIdentity{
		RawExpression: strings.ToLower(r.RawExpression),
		Commented:     r.Commented,
	}
}

// Runnable reports whether the row can actually be launched: neither
// commented nor malformed.
func (r *Row) Runnable() bool {
	return !r.Commented && !r.Malformed
}

// RowIdentity is the dedup/reconciliation key for a Row.
type RowIdentity struct {
	RawExpression string
	Commented     bool
}
