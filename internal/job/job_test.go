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
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/omicron-cron/omicron/internal/config"
	"github.com/omicron-cron/omicron/internal/crontab"
	"github.com/omicron-cron/omicron/internal/schedule"
	"github.com/omicron-cron/omicron/internal/supervisor"
)

func everyMinuteSchedule() *schedule.Schedule {
	s := schedule.New()
	for m := schedule.MinuteBounds[0]; m <= schedule.MinuteBounds[1]; m++ {
		s.Minutes[m] = struct{}{}
	}
	for h := schedule.HourBounds[0]; h <= schedule.HourBounds[1]; h++ {
		s.Hours[h] = struct{}{}
	}
	for d := schedule.DomBounds[0]; d <= schedule.DomBounds[1]; d++ {
		s.DaysOfMonth[d] = struct{}{}
	}
	for mo := schedule.MonthBounds[0]; mo <= schedule.MonthBounds[1]; mo++ {
		s.Months[mo] = struct{}{}
	}
	for w := schedule.DowBounds[0]; w <= schedule.DowBounds[1]; w++ {
		s.DaysOfWeek[w] = struct{}{}
	}
	return s
}

func testConfig() *config.Configuration {
	cfg, err := config.Load(filepath.Join(GinkgoT().TempDir(), "missing.conf"))
	Expect(err).NotTo(HaveOccurred())
	return cfg
}

var _ = Describe("Job.Run", func() {
	var row *crontab.Row
	var cfg *config.Configuration

	BeforeEach(func() {
		row = &crontab.Row{
			RawExpression: "* * * * * root echo hi",
			ExecutingUser: "root",
			Command:       "echo hi",
			Schedule:      everyMinuteSchedule(),
		}
		cfg = testConfig()
	})

	It("does nothing when the schedule does not match the current minute", func() {
		empty := schedule.New()
		empty.Minutes[0] = struct{}{}
		empty.Hours[0] = struct{}{}
		empty.DaysOfMonth[1] = struct{}{}
		empty.Months[1] = struct{}{}
		empty.DaysOfWeek[0] = struct{}{}
		row.Schedule = empty

		j := New(row, cfg, supervisor.NewFakeProcessTree())
		ran := j.Run(context.Background(), time.Date(2026, 6, 15, 9, 30, 0, 0, time.UTC))
		Expect(ran).To(BeFalse())
		Expect(j.ScheduledRunCount()).To(Equal(int64(0)))
	})

	It("increments scheduledRunCount and logs Skipped when inactive", func() {
		j := New(row, cfg, supervisor.NewFakeProcessTree())
		j.Retire()

		ran := j.Run(context.Background(), time.Now())
		Expect(ran).To(BeFalse())
		Expect(j.ScheduledRunCount()).To(Equal(int64(1)))

		last, ok := j.TaskLog().Last()
		Expect(ok).To(BeTrue())
		Expect(last.Status).To(Equal(TaskSkipped))
	})

	It("skips a malformed or commented row even if active", func() {
		row.Malformed = true
		j := New(row, cfg, supervisor.NewFakeProcessTree())

		ran := j.Run(context.Background(), time.Now())
		Expect(ran).To(BeFalse())

		last, ok := j.TaskLog().Last()
		Expect(ok).To(BeTrue())
		Expect(last.Status).To(Equal(TaskSkipped))
	})

	It("skips when already at the configured max instance count", func() {
		cfg = cfg.WithOverrides(map[string]string{"task.max.instance.count": "0"})
		j := New(row, cfg, supervisor.NewFakeProcessTree())

		ran := j.Run(context.Background(), time.Now())
		Expect(ran).To(BeFalse())
	})

	It("launches a task and appends a Started entry when runnable and active", func() {
		j := New(row, cfg, supervisor.NewFakeProcessTree())
		ran := j.Run(context.Background(), time.Now())
		Expect(ran).To(BeTrue())
		Expect(j.RunningTaskCount()).To(Equal(1))

		last, ok := j.TaskLog().Last()
		Expect(ok).To(BeTrue())
		Expect(last.Status).To(Equal(TaskStarted))
	})

	It("advances nextExecutionTimestamp on a successful launch", func() {
		j := New(row, cfg, supervisor.NewFakeProcessTree())
		before := j.NextExecutionTimestamp()
		j.Run(context.Background(), time.Now())
		Expect(j.NextExecutionTimestamp()).NotTo(Equal(before))
	})
})
