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

// Package config implements the closed, keyed option store every
// Configuration instance in the system is built from: a file-backed
// set of recognised keys with defaults, per-key overridability, and
// typed accessors.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Key identifies one recognised configuration option.
type Key string

const (
	KeyCrontabPath                     Key = "crontab.path"
	KeyTimezone                        Key = "timezone"
	KeyAlertEmailEnabled               Key = "alert.email.enabled"
	KeyAlertEmailAddressTo             Key = "alert.email.address.to"
	KeyAlertEmailAddressFrom           Key = "alert.email.address.from"
	KeyAlertEmailSMTPHost              Key = "alert.email.smtp.host"
	KeyAlertEmailSMTPPort              Key = "alert.email.smtp.port"
	KeyAlertMinutesDelayRepeat         Key = "alert.minutes.delay.repeat"
	KeyAlertDowntime                   Key = "alert.downtime"
	KeyAlertMaxPerMinute               Key = "alert.max.per.minute"
	KeyTaskMaxInstanceCount            Key = "task.max.instance.count"
	KeyTaskCriticalReturnCode          Key = "task.critical.return.code"
	KeyTaskTimeoutMinutes              Key = "task.timeout.minutes"
	KeySLAMinutesSinceSuccess          Key = "sla.minutes.since.success"
	KeySLACommentedExpressionDelayMins Key = "sla.commented.expression.alert.delay.minutes"
	KeySLAMalformedExpressionDelayMins Key = "sla.malformed.expression.alert.delay.minutes"
	KeyCommandPathSu                   Key = "command.path.su"
	KeyCommandPathKill                 Key = "command.path.kill"
	KeyMetricsBindAddress              Key = "metrics.bind.address"
	KeyLogLevel                        Key = "log.level"
)

type keyDef struct {
	def           string
	allowOverride bool
}

// registry is the closed set of recognised keys, their defaults, and
// whether a crontab row's #override: line may set them.
var registry = map[Key]keyDef{
	KeyCrontabPath:                     {"/etc/crontab", false},
	KeyTimezone:                        {"UTC", false},
	KeyAlertEmailEnabled:               {"false", true},
	KeyAlertEmailAddressTo:             {"someone@example.com", false},
	KeyAlertEmailAddressFrom:           {"someone@example.com", false},
	KeyAlertEmailSMTPHost:              {"localhost", false},
	KeyAlertEmailSMTPPort:              {"25", false},
	KeyAlertMinutesDelayRepeat:         {"20", true},
	KeyAlertDowntime:                   {"", true},
	KeyAlertMaxPerMinute:               {"50", false},
	KeyTaskMaxInstanceCount:            {"1", true},
	KeyTaskCriticalReturnCode:          {"100", true},
	KeyTaskTimeoutMinutes:              {"-1", true},
	KeySLAMinutesSinceSuccess:          {"60", true},
	KeySLACommentedExpressionDelayMins: {"-1", true},
	KeySLAMalformedExpressionDelayMins: {"-1", true},
	KeyCommandPathSu:                   {"/usr/bin/su", false},
	KeyCommandPathKill:                 {"/usr/bin/kill", false},
	KeyMetricsBindAddress:              {"", false},
	KeyLogLevel:                        {"info", false},
}

// IsRecognized reports whether key is a member of the closed key set.
func IsRecognized(key string) (Key, bool) {
	k := Key(strings.ToLower(key))
	_, ok := registry[k]
	return k, ok
}

// AllowsOverride reports whether a crontab row may override key.
func AllowsOverride(key Key) bool {
	return registry[key].allowOverride
}

// Configuration is an immutable, keyed option store. Values are always
// loaded as strings and interpreted on demand by the typed getters.
type Configuration struct {
	values map[Key]string
	path   string
	mtime  time.Time
}

// Load reads path as a Java-properties-style key=value file via viper,
// falling back to the closed registry's defaults for anything absent
// or unrecognized. An OMICRON_-prefixed environment overlay is applied
// on top (SPEC_FULL.md §4.3b), additive over file-backed values.
func Load(path string) (*Configuration, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("properties")
	v.SetEnvPrefix("OMICRON")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key, def := range registry {
		v.SetDefault(string(key), def.def)
	}

	var mtime time.Time
	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", path).Msg("configuration file missing, using defaults")
		} else {
			return nil, fmt.Errorf("reading configuration %s: %w", path, err)
		}
	} else {
		if info, statErr := os.Stat(path); statErr == nil {
			mtime = info.ModTime()
		}
	}

	values := make(map[Key]string, len(registry))
	for key := range registry {
		values[key] = v.GetString(string(key))
	}

	for _, rawKey := range v.AllKeys() {
		if _, ok := IsRecognized(rawKey); !ok {
			log.Warn().Str("key", rawKey).Msg("unrecognized configuration key dropped")
		}
	}

	return &Configuration{values: values, path: path, mtime: mtime}, nil
}

// Reload re-reads the configuration from disk, returning a new instance.
func (c *Configuration) Reload() (*Configuration, error) {
	return Load(c.path)
}

// Mtime is the backing file's modification time at load.
func (c *Configuration) Mtime() time.Time { return c.mtime }

// Path is the backing file path.
func (c *Configuration) Path() string { return c.path }

// String returns the raw string value for key, or its default if absent.
func (c *Configuration) String(key Key) string {
	if v, ok := c.values[key]; ok {
		return v
	}
	return registry[key].def
}

// Int parses key's value as a decimal integer.
func (c *Configuration) Int(key Key) (int, error) {
	return strconv.Atoi(strings.TrimSpace(c.String(key)))
}

// Bool parses key's value case-insensitively as "true"/"false".
func (c *Configuration) Bool(key Key) bool {
	return strings.EqualFold(strings.TrimSpace(c.String(key)), "true")
}

// DowntimeWindow is a daily wall-clock interval in a time zone.
type DowntimeWindow struct {
	StartHour   int
	StartMinute int
	DurationHrs int
}

// Contains reports whether t (already converted to the configured time
// zone) falls within the window, inclusive at both ends. A window that
// runs past midnight continues into the early hours of the next day.
func (w DowntimeWindow) Contains(t time.Time) bool {
	const minutesPerDay = 24 * 60
	startMin := w.StartHour*60 + w.StartMinute
	endMin := startMin + w.DurationHrs*60
	nowMin := t.Hour()*60 + t.Minute()
	if endMin < minutesPerDay {
		return nowMin >= startMin && nowMin <= endMin
	}
	return nowMin >= startMin || nowMin <= endMin-minutesPerDay
}

// Downtime parses the alert.downtime key (format HH:mm+H) if set.
func (c *Configuration) Downtime() (*DowntimeWindow, error) {
	raw := strings.TrimSpace(c.String(KeyAlertDowntime))
	if raw == "" {
		return nil, nil
	}
	plusIdx := strings.LastIndex(raw, "+")
	if plusIdx < 0 {
		return nil, fmt.Errorf("malformed downtime spec %q: missing '+H'", raw)
	}
	clock, durStr := raw[:plusIdx], raw[plusIdx+1:]
	parts := strings.SplitN(clock, ":", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("malformed downtime spec %q: expected HH:mm", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("malformed downtime hour in %q: %w", raw, err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("malformed downtime minute in %q: %w", raw, err)
	}
	dur, err := strconv.Atoi(durStr)
	if err != nil || dur <= 0 {
		return nil, fmt.Errorf("malformed downtime duration in %q: must be a positive whole number of hours", raw)
	}
	return &DowntimeWindow{StartHour: hour, StartMinute: minute, DurationHrs: dur}, nil
}

// TimeZone resolves the configured IANA time zone id.
func (c *Configuration) TimeZone() (*time.Location, error) {
	name := c.String(KeyTimezone)
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", name, err)
	}
	return loc, nil
}

// WithOverrides returns a new Configuration with overrides merged in,
// ignoring any key whose allowOverride is false.
func (c *Configuration) WithOverrides(overrides map[string]string) *Configuration {
	merged := make(map[Key]string, len(c.values))
	for k, v := range c.values {
		merged[k] = v
	}
	for rawKey, v := range overrides {
		key, ok := IsRecognized(rawKey)
		if !ok {
			log.Warn().Str("key", rawKey).Msg("unrecognized override key dropped")
			continue
		}
		if !AllowsOverride(key) {
			log.Warn().Str("key", rawKey).Msg("override key is not overridable per-row, dropped")
			continue
		}
		merged[key] = v
	}
	return &Configuration{values: merged, path: c.path, mtime: c.mtime}
}

// Equal compares all recognised values and the source mtime; two
// Configurations are interchangeable for Job identity iff Equal.
func (c *Configuration) Equal(other *Configuration) bool {
	if other == nil {
		return false
	}
	if !c.mtime.Equal(other.mtime) {
		return false
	}
	if len(c.values) != len(other.values) {
		return false
	}
	for k, v := range c.values {
		if other.values[k] != v {
			return false
		}
	}
	return true
}
