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

// Package schedule implements the five-field minute/hour/day-of-month/month/
// day-of-week whitelist that a crontab row evaluates against.
package schedule

import (
	"fmt"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule is an unordered set of integers per field. A local time t
// satisfies the schedule iff every component of t is a member of its
// corresponding set, with Sunday normalized to 0.
type Schedule struct {
	Minutes     map[int]struct{}
	Hours       map[int]struct{}
	DaysOfMonth map[int]struct{}
	Months      map[int]struct{}
	DaysOfWeek  map[int]struct{}
}

// Bounds for each field, inclusive.
var (
	MinuteBounds = [2]int{0, 59}
	HourBounds   = [2]int{0, 23}
	DomBounds    = [2]int{1, 31}
	MonthBounds  = [2]int{1, 12}
	DowBounds    = [2]int{0, 6}
)

// New returns an empty Schedule with all fields initialized.
func New() *Schedule {
	return &Schedule{
		Minutes:     map[int]struct{}{},
		Hours:       map[int]struct{}{},
		DaysOfMonth: map[int]struct{}{},
		Months:      map[int]struct{}{},
		DaysOfWeek:  map[int]struct{}{},
	}
}

// Valid reports whether every set is non-empty, the invariant a
// successfully parsed schedule must hold.
func (s *Schedule) Valid() bool {
	return len(s.Minutes) > 0 && len(s.Hours) > 0 && len(s.DaysOfMonth) > 0 &&
		len(s.Months) > 0 && len(s.DaysOfWeek) > 0
}

// Contains reports whether t satisfies the schedule: every component of
// t is a member of its corresponding set. Sunday is normalized to 0.
// This is always a direct set-membership check, never delegated to a
// library, per the data-model invariant.
func (s *Schedule) Contains(t time.Time) bool {
	dow := int(t.Weekday()) // time.Sunday == 0 already
	if _, ok := s.Minutes[t.Minute()]; !ok {
		return false
	}
	if _, ok := s.Hours[t.Hour()]; !ok {
		return false
	}
	if _, ok := s.DaysOfMonth[t.Day()]; !ok {
		return false
	}
	if _, ok := s.Months[int(t.Month())]; !ok {
		return false
	}
	if _, ok := s.DaysOfWeek[dow]; !ok {
		return false
	}
	return true
}

// starBit is robfig/cron's internal sentinel marking a Dom/Dow field as
// having come from a literal "*" in the original expression; its
// SpecSchedule.Next falls back to OR'ing Dom and Dow whenever neither
// field carries it. Schedule has no notion of "came from a star" — it
// always ANDs every field (see Contains) — so it must set the bit on
// both fields unconditionally to get the same semantics out of Next.
const starBit = 1 << 63

// Next returns the earliest local time strictly after `after` that the
// schedule contains, resolved in loc. It builds a robfig/cron
// SpecSchedule bitmask from the sets and delegates the search to the
// library's Next(), rather than hand-rolling a minute-stepping loop.
func (s *Schedule) Next(after time.Time, loc *time.Location) time.Time {
	spec := &cron.SpecSchedule{
		Second:   1 << 0,
		Minute:   bitmask(s.Minutes),
		Hour:     bitmask(s.Hours),
		Dom:      bitmask(s.DaysOfMonth) | starBit,
		Month:    bitmask(s.Months),
		Dow:      bitmask(s.DaysOfWeek) | starBit,
		Location: loc,
	}
	return spec.Next(after.In(loc))
}

func bitmask(set map[int]struct{}) uint64 {
	var m uint64
	for v := range set {
		m |= 1 << uint(v)
	}
	return m
}

// Describe returns a short human-readable field dump, used in log lines.
func (s *Schedule) Describe() string {
	return fmt.Sprintf("min=%s hour=%s dom=%s month=%s dow=%s",
		describeSet(s.Minutes), describeSet(s.Hours), describeSet(s.DaysOfMonth),
		describeSet(s.Months), describeSet(s.DaysOfWeek))
}

func describeSet(set map[int]struct{}) string {
	vals := make([]int, 0, len(set))
	for v := range set {
		vals = append(vals, v)
	}
	sort.Ints(vals)
	return fmt.Sprint(vals)
}
