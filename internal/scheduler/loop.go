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

// Package scheduler drives JobManager.Run exactly once per calendar
// minute, watching the configuration and crontab files for changes in
// between ticks.
package scheduler

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/omicron-cron/omicron/internal/config"
	"github.com/omicron-cron/omicron/internal/crontab"
)

func statMtime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

const reloadPollInterval = 1 * time.Second

// JobManager is the subset of jobmanager.JobManager the loop drives.
type JobManager interface {
	UpdateConfiguration(newConfig *config.Configuration, newCrontab *crontab.Crontab)
	Run(ctx context.Context, now time.Time)
}

// Loop is the minute-aligned scheduler described by spec.md §4.2.
type Loop struct {
	clock   Clock
	manager JobManager

	configPath string

	cfg          *config.Configuration
	cfgMtime     time.Time
	crontabMtime time.Time
}

// New returns a Loop that reloads from configPath and drives manager.
// cfg is the already-loaded initial configuration.
func New(clock Clock, manager JobManager, configPath string, cfg *config.Configuration) *Loop {
	return &Loop{
		clock:      clock,
		manager:    manager,
		configPath: configPath,
		cfg:        cfg,
		cfgMtime:   cfg.Mtime(),
	}
}

// Run blocks, ticking once per calendar minute, until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	l.reloadIfChanged()

	target := ceiling(l.clock.Now(), time.Minute)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		for l.clock.Now().Before(target) {
			l.reloadIfChanged()
			l.clock.Sleep(reloadPollInterval)

			select {
			case <-ctx.Done():
				return
			default:
			}
		}

		now := l.clock.Now()
		if now.After(target) {
			log.Warn().Time("target", target).Time("now", now).Msg("scheduler tick skipped, continuing without catch-up")
		}
		target = ceiling(now.Add(time.Nanosecond), time.Minute)

		l.manager.Run(ctx, now)
	}
}

// reloadIfChanged re-reads the configuration and crontab when either
// file's mtime has advanced past what was last observed, per
// spec.md §4.2.
func (l *Loop) reloadIfChanged() {
	info, err := statMtime(l.configPath)
	if err != nil {
		log.Error().Err(err).Str("path", l.configPath).Msg("stat configuration file")
		return
	}

	crontabPath := l.cfg.String(config.KeyCrontabPath)
	crontabInfo, err := statMtime(crontabPath)
	if err != nil {
		log.Error().Err(err).Str("path", crontabPath).Msg("stat crontab file")
		return
	}

	if !info.After(l.cfgMtime) && !crontabInfo.After(l.crontabMtime) {
		return
	}

	newConfig, err := l.cfg.Reload()
	if err != nil {
		log.Error().Err(err).Msg("reloading configuration, keeping previous")
		return
	}

	newCrontab, err := crontab.Load(crontabPath, newConfig)
	if err != nil {
		log.Error().Err(err).Msg("reloading crontab, keeping previous")
		return
	}

	l.manager.UpdateConfiguration(newConfig, newCrontab)

	l.cfg = newConfig
	l.cfgMtime = info
	l.crontabMtime = newCrontab.FileMtime
}
