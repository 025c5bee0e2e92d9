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

package scheduler

import "time"

// Clock abstracts wall-clock reads and sleeps so the per-minute loop
// can be driven step by step in tests instead of waiting on real time.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// realClock is the production Clock, backed directly by the time package.
type realClock struct{}

// NewRealClock returns the production Clock.
func NewRealClock() Clock { return realClock{} }

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// ceiling returns the next instant at or after t that falls on a whole
// multiple of unit, measured from the Unix epoch.
func ceiling(t time.Time, unit time.Duration) time.Time {
	rem := t.UnixNano() % unit.Nanoseconds()
	if rem == 0 {
		return t
	}
	return t.Add(unit - time.Duration(rem))
}
