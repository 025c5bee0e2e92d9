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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/omicron-cron/omicron/internal/alerting"
	"github.com/omicron-cron/omicron/internal/config"
	"github.com/omicron-cron/omicron/internal/crontab"
	"github.com/omicron-cron/omicron/internal/jobmanager"
	"github.com/omicron-cron/omicron/internal/metrics"
	"github.com/omicron-cron/omicron/internal/scheduler"
	"github.com/omicron-cron/omicron/internal/supervisor"
)

const defaultConfigPath = "/etc/omicron/omicron.conf"

const usage = `omicron [<config-path>]

Reads a crontab-format file, launches each enabled schedule's command
as its configured user every calendar minute, supervises the running
process trees, and alerts over email when jobs violate their
configured service levels.

  <config-path>  path to the omicron properties file (default ` + defaultConfigPath + `)
`

func main() {
	configPath := defaultConfigPath
	if len(os.Args) > 1 {
		if strings.Contains(os.Args[1], "?") {
			fmt.Print(usage)
			os.Exit(0)
		}
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading configuration %s: %v\n", configPath, err)
		os.Exit(1)
	}

	setupLogging(cfg)

	if err := run(cfg, configPath); err != nil {
		log.Error().Err(err).Msg("fatal error")
		os.Exit(1)
	}
}

func setupLogging(cfg *config.Configuration) {
	level, err := zerolog.ParseLevel(cfg.String(config.KeyLogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger()
}

func run(cfg *config.Configuration, configPath string) error {
	log.Info().Str("configPath", configPath).Msg("omicron starting")

	initialCrontab, err := crontab.Load(cfg.String(config.KeyCrontabPath), cfg)
	if err != nil {
		return fmt.Errorf("loading crontab: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	alertManager := alerting.New()
	manager := jobmanager.New(func() supervisor.ProcessTree { return supervisor.NewProcessTree() }, alertManager)
	manager.UpdateConfiguration(cfg, initialCrontab)

	if addr := cfg.String(config.KeyMetricsBindAddress); addr != "" {
		go metrics.Serve(ctx, addr)
	}

	loop := scheduler.New(scheduler.NewRealClock(), manager, configPath, cfg)
	loop.Run(ctx)

	log.Info().Msg("omicron shutting down")
	return nil
}
