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

// Package job implements the per-schedule coordinator: dedup, the
// concurrency cap, active/retired state, and the bounded task log.
package job

import (
	"container/list"
	"sync"

	"github.com/omicron-cron/omicron/internal/supervisor"
)

const taskLogCapacity = 500

// TaskStatus is a task log entry's disposition: every supervisor.Status
// plus Skipped, which a RunningTask itself never reports (it is
// recorded when a scheduled minute produced no task at all).
type TaskStatus int

const (
	TaskFailedStart TaskStatus = iota
	TaskStarted
	TaskComplete
	TaskError
	TaskKilled
	TaskSkipped
)

func (s TaskStatus) String() string {
	switch s {
	case TaskFailedStart:
		return "FailedStart"
	case TaskStarted:
		return "Started"
	case TaskComplete:
		return "Complete"
	case TaskError:
		return "Error"
	case TaskKilled:
		return "Killed"
	case TaskSkipped:
		return "Skipped"
	default:
		return "Unknown"
	}
}

// FromSupervisorStatus converts a RunningTask's status into the
// corresponding log entry status.
func FromSupervisorStatus(s supervisor.Status) TaskStatus {
	switch s {
	case supervisor.StatusFailedStart:
		return TaskFailedStart
	case supervisor.StatusStarted:
		return TaskStarted
	case supervisor.StatusComplete:
		return TaskComplete
	case supervisor.StatusError:
		return TaskError
	case supervisor.StatusKilled:
		return TaskKilled
	default:
		return TaskSkipped
	}
}

// TaskLogEntry is one record of a RunningTask's disposition.
type TaskLogEntry struct {
	EntryID         int64
	TimestampMillis int64
	TaskID          int
	Status          TaskStatus
}

// TaskLog is a bounded, (timestamp, entryId)-ordered set of entries.
// It evicts the oldest entry once it exceeds capacity; reads and
// writes are serialized by a single mutex, giving readers a consistent
// snapshot.
type TaskLog struct {
	mu      sync.Mutex
	entries *list.List // of TaskLogEntry, oldest at Front
	nextID  int64
}

// NewTaskLog returns an empty bounded log.
func NewTaskLog() *TaskLog {
	return &TaskLog{entries: list.New()}
}

// Append records a new entry at its (timestamp, entryId) position,
// evicting the oldest if over capacity.
func (l *TaskLog) Append(timestampMillis int64, taskID int, status TaskStatus) TaskLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	entry := TaskLogEntry{
		EntryID:         l.nextID,
		TimestampMillis: timestampMillis,
		TaskID:          taskID,
		Status:          status,
	}
	mark := l.entries.Back()
	for mark != nil && mark.Value.(TaskLogEntry).TimestampMillis > timestampMillis {
		mark = mark.Prev()
	}
	if mark == nil {
		l.entries.PushFront(entry)
	} else {
		l.entries.InsertAfter(entry, mark)
	}
	for l.entries.Len() > taskLogCapacity {
		l.entries.Remove(l.entries.Front())
	}
	return entry
}

// Entries returns a snapshot of all entries, oldest first.
func (l *TaskLog) Entries() []TaskLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]TaskLogEntry, 0, l.entries.Len())
	for e := l.entries.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(TaskLogEntry))
	}
	return out
}

// Last returns the newest entry in (timestamp, entryId) order, if any.
func (l *TaskLog) Last() (TaskLogEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.entries.Len() == 0 {
		return TaskLogEntry{}, false
	}
	return l.entries.Back().Value.(TaskLogEntry), true
}

// LastComplete returns the most recent Complete entry, if any.
func (l *TaskLog) LastComplete() (TaskLogEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for e := l.entries.Back(); e != nil; e = e.Prev() {
		entry := e.Value.(TaskLogEntry)
		if entry.Status == TaskComplete {
			return entry, true
		}
	}
	return TaskLogEntry{}, false
}

// First returns the earliest retained entry, if any.
func (l *TaskLog) First() (TaskLogEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.entries.Len() == 0 {
		return TaskLogEntry{}, false
	}
	return l.entries.Front().Value.(TaskLogEntry), true
}
