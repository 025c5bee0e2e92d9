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

package jobmanager

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/omicron-cron/omicron/internal/config"
	"github.com/omicron-cron/omicron/internal/crontab"
	"github.com/omicron-cron/omicron/internal/job"
	"github.com/omicron-cron/omicron/internal/supervisor"
)

func TestJobManager(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "JobManager Suite")
}

type fakeAlertSender struct {
	mu       sync.Mutex
	sentJobs [][]*job.Job
}

func (f *fakeAlertSender) SendAlerts(_ context.Context, jobs []*job.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentJobs = append(f.sentJobs, jobs)
}

func (f *fakeAlertSender) SetConfiguration(*config.Configuration) {}

func fakeTreeFactory() supervisor.ProcessTree { return supervisor.NewFakeProcessTree() }

func loadCrontabBody(body string, baseConfig *config.Configuration) *crontab.Crontab {
	path := filepath.Join(GinkgoT().TempDir(), "crontab")
	Expect(os.WriteFile(path, []byte(body), 0o644)).To(Succeed())
	ct, err := crontab.Load(path, baseConfig)
	Expect(err).NotTo(HaveOccurred())
	return ct
}

func testConfig() *config.Configuration {
	cfg, err := config.Load(filepath.Join(GinkgoT().TempDir(), "missing.conf"))
	Expect(err).NotTo(HaveOccurred())
	return cfg
}

var _ = Describe("UpdateConfiguration", func() {
	It("creates one Job per row on first load", func() {
		cfg := testConfig()
		ct := loadCrontabBody("* * * * * root echo a\n* * * * * root echo b\n", cfg)

		m := New(fakeTreeFactory, &fakeAlertSender{})
		m.UpdateConfiguration(cfg, ct)
		Expect(m.ActiveJobCount()).To(Equal(2))
	})

	It("carries over the same Job pointer when identity is unchanged", func() {
		cfg := testConfig()
		ct := loadCrontabBody("* * * * * root echo a\n", cfg)

		m := New(fakeTreeFactory, &fakeAlertSender{})
		m.UpdateConfiguration(cfg, ct)
		m.Run(context.Background(), time.Now())

		ct2 := loadCrontabBody("* * * * * root echo a\n", cfg)
		m.UpdateConfiguration(cfg, ct2)

		Expect(m.ActiveJobCount()).To(Equal(1))
		for _, j := range m.active {
			Expect(j.ScheduledRunCount()).To(Equal(int64(1)))
		}
	})

	It("retires a removed row that still has running tasks, and discards one that has none", func() {
		cfg := testConfig()
		// The commented row is skipped every minute, so it never has a
		// running task to drain.
		ct := loadCrontabBody("* * * * * root echo a\n# * * * * * root echo b\n", cfg)

		m := New(fakeTreeFactory, &fakeAlertSender{})
		m.UpdateConfiguration(cfg, ct)
		Expect(m.ActiveJobCount()).To(Equal(2))
		m.Run(context.Background(), time.Now()) // launches a running task for "echo a" only

		empty := loadCrontabBody("", cfg)
		m.UpdateConfiguration(cfg, empty)

		Expect(m.ActiveJobCount()).To(Equal(0))
		Expect(m.RetiredJobCount()).To(Equal(1))
		Expect(m.retired[0].Row.Commented).To(BeFalse())
	})

	It("gives an overridden row a distinct identity from the base configuration", func() {
		cfg := testConfig()
		ct := loadCrontabBody("#override:task.max.instance.count=5\n* * * * * root echo a\n", cfg)

		m := New(fakeTreeFactory, &fakeAlertSender{})
		m.UpdateConfiguration(cfg, ct)
		Expect(m.ActiveJobCount()).To(Equal(1))

		var theJob *job.Job
		for _, j := range m.active {
			theJob = j
		}
		n, err := theJob.Configuration.Int(config.KeyTaskMaxInstanceCount)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(5))
	})
})

var _ = Describe("Run", func() {
	It("hands the active-job snapshot to the alert sender", func() {
		cfg := testConfig()
		ct := loadCrontabBody("* * * * * root echo a\n", cfg)

		sender := &fakeAlertSender{}
		m := New(fakeTreeFactory, sender)
		m.UpdateConfiguration(cfg, ct)
		m.Run(context.Background(), time.Now())

		sender.mu.Lock()
		defer sender.mu.Unlock()
		Expect(sender.sentJobs).To(HaveLen(1))
		Expect(sender.sentJobs[0]).To(HaveLen(1))
	})

	It("isolates a panicking Job from the rest", func() {
		cfg := testConfig()
		ct := loadCrontabBody("* * * * * root echo a\n", cfg)

		m := New(fakeTreeFactory, &fakeAlertSender{})
		m.UpdateConfiguration(cfg, ct)

		Expect(func() { m.Run(context.Background(), time.Now()) }).NotTo(Panic())
	})
})
