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

package job

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/omicron-cron/omicron/internal/config"
	"github.com/omicron-cron/omicron/internal/crontab"
	"github.com/omicron-cron/omicron/internal/metrics"
	"github.com/omicron-cron/omicron/internal/supervisor"
)

var nextJobID atomic.Int64

// Job encapsulates one schedule + post-substitution command +
// configuration, and owns its running children and task log.
type Job struct {
	JobID         int64
	Row           *crontab.Row
	Configuration *config.Configuration

	active atomic.Bool

	mu                     sync.Mutex
	runningTasks           []*supervisor.RunningTask // newest-first
	scheduledRunCount      int64
	nextExecutionTimestamp int64

	taskLog     *TaskLog
	processTree supervisor.ProcessTree
}

// New constructs an active Job for a row.
func New(row *crontab.Row, cfg *config.Configuration, tree supervisor.ProcessTree) *Job {
	j := &Job{
		JobID:         nextJobID.Add(1),
		Row:           row,
		Configuration: cfg,
		taskLog:       NewTaskLog(),
		processTree:   tree,
	}
	j.active.Store(true)
	return j
}

// Active reports whether the Job is still live (not retired).
func (j *Job) Active() bool { return j.active.Load() }

// Retire marks the Job inactive; it is kept around purely to drain its
// running tasks and continues to be swept until RunningTaskCount() hits
// zero.
func (j *Job) Retire() { j.active.Store(false) }

// Reactivate marks a previously retired Job active again, preserving
// its scheduledRunCount, task log, and running tasks (Open Question c).
func (j *Job) Reactivate() { j.active.Store(true) }

// RunningTaskCount returns the number of tasks not yet known done.
func (j *Job) RunningTaskCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.runningTasks)
}

// TaskLog exposes the bounded task log for the policy engine.
func (j *Job) TaskLog() *TaskLog { return j.taskLog }

// ScheduledRunCount returns the number of times the schedule has
// matched the current local minute, whether or not a task launched.
func (j *Job) ScheduledRunCount() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.scheduledRunCount
}

// Run performs one per-minute evaluation per spec.md §4.4. It returns
// true iff a new task was launched this minute.
func (j *Job) Run(ctx context.Context, now time.Time) bool {
	j.sweep()

	nowLocal, err := j.localNow(now)
	if err != nil {
		log.Error().Err(err).Int64("jobId", j.JobID).Msg("resolving job time zone")
		return false
	}

	if j.Row.Schedule == nil || !j.Row.Schedule.Contains(nowLocal) {
		return false
	}

	j.mu.Lock()
	j.scheduledRunCount++
	runCount := j.scheduledRunCount
	j.mu.Unlock()

	maxInstances, err := j.Configuration.Int(config.KeyTaskMaxInstanceCount)
	if err != nil {
		maxInstances = 1
	}

	if !j.Active() || j.RunningTaskCount() >= maxInstances || !j.Row.Runnable() {
		j.taskLog.Append(now.UnixMilli(), int(runCount), TaskSkipped)
		metrics.SkippedTotal.Inc()
		return false
	}

	timeoutMinutes, err := j.Configuration.Int(config.KeyTaskTimeoutMinutes)
	if err != nil {
		timeoutMinutes = -1
	}
	var timeout time.Duration
	if timeoutMinutes > 0 {
		timeout = time.Duration(timeoutMinutes) * time.Minute
	}

	task := supervisor.NewRunningTask(
		int(runCount),
		j.Row.Command,
		j.Row.ExecutingUser,
		j.Configuration.String(config.KeyCommandPathSu),
		j.Configuration.String(config.KeyCommandPathKill),
		timeout,
		j.processTree,
	)

	j.mu.Lock()
	j.runningTasks = append([]*supervisor.RunningTask{task}, j.runningTasks...)
	j.mu.Unlock()

	j.taskLog.Append(now.UnixMilli(), task.TaskID, TaskStarted)

	task.Launch(ctx, j.Configuration.String(config.KeyCommandPathSu), j.Configuration.String(config.KeyCommandPathKill))

	j.mu.Lock()
	nextTime := j.Row.Schedule.Next(nowLocal, nowLocal.Location())
	j.nextExecutionTimestamp = nextTime.UnixMilli()
	j.mu.Unlock()

	return true
}

// NextExecutionTimestamp is the next whitelisted minute strictly after
// the most recent launch, in epoch millis (0 before the first launch).
func (j *Job) NextExecutionTimestamp() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.nextExecutionTimestamp
}

func (j *Job) localNow(now time.Time) (time.Time, error) {
	loc, err := j.Configuration.TimeZone()
	if err != nil {
		return time.Time{}, err
	}
	return now.In(loc), nil
}

// sweep removes every finished task, appending its final disposition to
// the task log. It always runs before the schedule check within Run.
func (j *Job) sweep() {
	j.mu.Lock()
	defer j.mu.Unlock()

	remaining := j.runningTasks[:0]
	for _, t := range j.runningTasks {
		if t.IsDone() {
			status := FromSupervisorStatus(t.TaskStatus())
			j.taskLog.Append(t.EndTimeMillis(), t.TaskID, status)
			metrics.RecordExecution(status.String())
			continue
		}
		remaining = append(remaining, t)
	}
	j.runningTasks = remaining
}
