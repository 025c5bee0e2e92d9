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

// Package alerting batches each tick's policy outboxes into a single
// email and dispatches it on a background worker, best-effort.
package alerting

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/smtp"
	"os"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/omicron-cron/omicron/internal/config"
	"github.com/omicron-cron/omicron/internal/job"
	"github.com/omicron-cron/omicron/internal/metrics"
	"github.com/omicron-cron/omicron/internal/policy"
)

const sentinelRecipient = "someone@example.com"

var templateFuncs = template.FuncMap{
	"upper": strings.ToUpper,
}

var bodyTemplate = template.Must(template.New("body").Funcs(templateFuncs).Parse(
	`{{.Summary}}
{{range .Entries}}
{{.RawExpression}}

{{if eq .Status "Failure"}}FAIL: {{else}}SUCCESS: {{end}}{{.Message}}
{{end}}
-- omicron on {{.Hostname}}
`))

// bodyEntry is one Alert rendered for the email body template.
type bodyEntry struct {
	RawExpression string
	Status        string
	Message       string
}

type bodyData struct {
	Summary  string
	Entries  []bodyEntry
	Hostname string
}

// sendTask is one batch of alerts queued for the background worker.
type sendTask struct {
	subject string
	body    string
	to      []string
	from    string
	host    string
	port    string
}

// Manager owns the single dispatcher worker behind a one-slot queue,
// per spec.md §4.8/§5.
type Manager struct {
	engines []*policy.Engine

	mu  sync.Mutex
	cfg *config.Configuration

	queue       chan sendTask
	globalLimit *rate.Limiter

	once sync.Once
}

// New returns an AlertManager running TimeSinceLastSuccess,
// CommentedExpression, and MalformedExpression.
func New() *Manager {
	m := &Manager{
		engines: []*policy.Engine{
			policy.NewEngine(policy.TimeSinceLastSuccess{}),
			policy.NewEngine(policy.CommentedExpression{}),
			policy.NewEngine(policy.MalformedExpression{}),
		},
		queue: make(chan sendTask, 1),
	}
	return m
}

// SetConfiguration installs the configuration the next evaluation should
// use. The global alert-flood limiter is built from the first
// configuration installed and is not rebuilt by later calls.
func (m *Manager) SetConfiguration(cfg *config.Configuration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg

	maxPerMinute, err := cfg.Int(config.KeyAlertMaxPerMinute)
	if err != nil || maxPerMinute <= 0 {
		maxPerMinute = 50
	}
	if m.globalLimit == nil {
		m.globalLimit = rate.NewLimiter(rate.Limit(float64(maxPerMinute)/60.0), maxPerMinute)
	}

	m.once.Do(func() {
		go m.worker()
	})
}

// SendAlerts evaluates every policy over jobs and submits one email
// task if the combined outbox is non-empty.
func (m *Manager) SendAlerts(ctx context.Context, jobs []*job.Job) {
	m.mu.Lock()
	cfg := m.cfg
	limiter := m.globalLimit
	m.mu.Unlock()
	if cfg == nil {
		return
	}

	now := time.Now()
	var all []policy.Alert
	for _, e := range m.engines {
		all = append(all, e.Evaluate(jobs, now)...)
	}
	if len(all) == 0 {
		return
	}

	if limiter != nil {
		allowed := all[:0]
		dropped := 0
		for _, a := range all {
			if limiter.AllowN(now, 1) {
				allowed = append(allowed, a)
			} else {
				dropped++
				metrics.RecordAlert("dropped_flood")
			}
		}
		all = allowed
		if dropped > 0 {
			log.Warn().Int("dropped", dropped).Msg("alert.max.per.minute exceeded, excess alerts dropped")
		}
	}
	if len(all) == 0 {
		return
	}

	if !cfg.Bool(config.KeyAlertEmailEnabled) {
		return
	}

	task := m.buildTask(cfg, all)
	select {
	case m.queue <- task:
	default:
		log.Warn().Msg("alert dispatcher busy, dropping this tick's batch")
		metrics.RecordAlert("dropped_busy")
	}
}

func (m *Manager) buildTask(cfg *config.Configuration, alerts []policy.Alert) sendTask {
	var failures, successes int
	entries := make([]bodyEntry, 0, len(alerts))
	for _, a := range alerts {
		switch a.Status {
		case policy.StatusFailure:
			failures++
		case policy.StatusSuccess:
			successes++
		}
		entries = append(entries, bodyEntry{
			RawExpression: a.Job.Row.RawExpression,
			Status:        a.Status.String(),
			Message:       a.Message,
		})
	}

	hostname := resolveHostname()
	subject := fmt.Sprintf("[OMICRON ALERT: %s]", hostname)
	if failures > 0 {
		subject += fmt.Sprintf(" failures: %d", failures)
	}
	if successes > 0 {
		subject += fmt.Sprintf(" successes: %d", successes)
	}

	var buf bytes.Buffer
	_ = bodyTemplate.Execute(&buf, bodyData{
		Summary:  fmt.Sprintf("%d alert(s) from omicron", len(entries)),
		Entries:  entries,
		Hostname: hostname,
	})

	return sendTask{
		subject: subject,
		body:    buf.String(),
		to:      []string{cfg.String(config.KeyAlertEmailAddressTo)},
		from:    cfg.String(config.KeyAlertEmailAddressFrom),
		host:    cfg.String(config.KeyAlertEmailSMTPHost),
		port:    cfg.String(config.KeyAlertEmailSMTPPort),
	}
}

func (m *Manager) worker() {
	for task := range m.queue {
		m.deliver(task)
	}
}

func (m *Manager) deliver(task sendTask) {
	if len(task.to) == 1 && task.to[0] == sentinelRecipient {
		log.Info().Str("subject", task.subject).Str("body", task.body).
			Msg("sentinel recipient configured, dumping alert to log instead of sending")
		metrics.RecordAlert("dry_run")
		return
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		task.from, strings.Join(task.to, ", "), task.subject, task.body)

	addr := net.JoinHostPort(task.host, task.port)
	if err := smtp.SendMail(addr, nil, task.from, task.to, []byte(msg)); err != nil {
		log.Error().Err(err).Msg("sending alert email failed, dropping (never retried)")
		metrics.RecordAlert("failed")
		return
	}
	metrics.RecordAlert("sent")
}

func resolveHostname() string {
	if h := os.Getenv("HOSTNAME"); h != "" {
		return h
	}
	if h, err := os.Hostname(); err == nil && h != "" {
		if addrs, err := net.LookupAddr(h); err == nil && len(addrs) > 0 {
			return strings.TrimSuffix(addrs[0], ".")
		}
		return h
	}
	return "UNKNOWN_HOST"
}
