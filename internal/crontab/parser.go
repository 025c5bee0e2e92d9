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

// Package crontab implements the whole-file crontab reader: comments,
// variable declarations, per-row configuration overrides, and the
// five-field schedule grammar rows are checked against.
package crontab

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/omicron-cron/omicron/internal/config"
	"github.com/omicron-cron/omicron/internal/schedule"
)

// Crontab is the result of parsing a whole crontab file.
type Crontab struct {
	Rows         []*Row
	Variables    []*CronVariable
	Overrides    map[int]*config.Configuration
	BadRowCount  int
	FileMtime    time.Time
}

// Load reads path line by line, applying the reading rules of spec.md
// §4.1 in order, and returns the resulting Crontab. baseConfig supplies
// the starting point that #override: lines are merged onto, per row.
func Load(path string, baseConfig *config.Configuration) (*Crontab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening crontab %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat crontab %s: %w", path, err)
	}

	ct := &Crontab{
		Overrides: map[int]*config.Configuration{},
		FileMtime: info.ModTime(),
	}

	var pendingOverride map[string]string
	seen := map[RowIdentity]*Row{}
	var vars []*CronVariable

	scanner := bufio.NewScanner(f)
	lineNumber := 0
	now := time.Now().UnixMilli()

	for scanner.Scan() {
		lineNumber++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		// Rule 1: blank lines skipped silently.
		if trimmed == "" {
			continue
		}

		// Rule 2: #override: lines.
		if rest, ok := strings.CutPrefix(trimmed, "#override:"); ok {
			pendingOverride = parseOverrideList(rest)
			continue
		}

		// Rule 3: NAME=VALUE variable declarations.
		if name, value, ok := parseVariableDecl(trimmed); ok {
			vars = append(vars, newCronVariable(name, value))
			// pending override is retained across a variable line.
			continue
		}

		// Rule 4: comment-collapse.
		if collapsed, isComment := collapseComment(trimmed); isComment {
			row, parseErr := parseExpressionRow(collapsed, vars, lineNumber, now)
			if parseErr == nil {
				row.Commented = true
				ct.addRow(row, seen)
				ct.attachOverride(lineNumber, pendingOverride, baseConfig)
				pendingOverride = nil
				continue
			}
			// Commented + parse-failure: general comment, discarded.
			if pendingOverride != nil {
				log.Warn().Int("line", lineNumber).Msg("pending override cleared: line is a plain comment")
			}
			pendingOverride = nil
			continue
		}

		// Rule 5: uncommented expression row.
		row, parseErr := parseExpressionRow(trimmed, vars, lineNumber, now)
		if parseErr != nil {
			row = &Row{
				LineNumber:          lineNumber,
				RawExpression:       trimmed,
				Malformed:           true,
				ReadTimestampMillis: now,
			}
			ct.BadRowCount++
		}
		ct.addRow(row, seen)
		ct.attachOverride(lineNumber, pendingOverride, baseConfig)
		pendingOverride = nil
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading crontab %s: %w", path, err)
	}

	ct.Variables = vars
	ct.Rows = make([]*Row, 0, len(seen))
	for _, r := range seen {
		ct.Rows = append(ct.Rows, r)
	}
	return ct, nil
}

// addRow performs the dedup-by-identity merge: duplicate (rawExpression
// case-insensitive, commented) rows merge into the first occurrence.
func (ct *Crontab) addRow(row *Row, seen map[RowIdentity]*Row) {
	id := row.Identity()
	if _, exists := seen[id]; exists {
		return
	}
	seen[id] = row
}

// attachOverride converts a pending raw override map into a Configuration
// keyed by line number, merged onto baseConfig. After attaching, the
// caller clears pendingOverride (rule 6).
func (ct *Crontab) attachOverride(lineNumber int, pending map[string]string, baseConfig *config.Configuration) {
	if pending == nil {
		return
	}
	ct.Overrides[lineNumber] = baseConfig.WithOverrides(pending)
}

// parseOverrideList parses "key=v,key=v" into a raw string map; keys are
// lower-cased for later case-insensitive registry lookup.
func parseOverrideList(rest string) map[string]string {
	result := map[string]string{}
	for _, pair := range strings.Split(rest, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			log.Warn().Str("pair", pair).Msg("malformed override pair, ignored")
			continue
		}
		result[strings.ToLower(strings.TrimSpace(kv[0]))] = strings.TrimSpace(kv[1])
	}
	return result
}

// parseVariableDecl recognizes a NAME=VALUE line. NAME must contain no
// whitespace; VALUE may be double-quoted, in which case the value is
// the content between the first and last double quote.
func parseVariableDecl(line string) (name, value string, ok bool) {
	eq := strings.Index(line, "=")
	if eq <= 0 {
		return "", "", false
	}
	candidateName := line[:eq]
	if strings.ContainsAny(candidateName, " \t") {
		return "", "", false
	}
	rest := line[eq+1:]
	if strings.HasPrefix(rest, `"`) && strings.HasSuffix(rest, `"`) && len(rest) >= 2 {
		rest = rest[1 : len(rest)-1]
	}
	return candidateName, rest, true
}

// collapseComment collapses line's leading run of '#' characters plus
// the whitespace after it to a single '#', returning the collapsed text
// (the '#' plus everything after the run) and whether the line is a
// comment at all. Whether the comment holds an expression is decided by
// the caller's parse of the collapsed text.
func collapseComment(line string) (collapsed string, isComment bool) {
	if !strings.HasPrefix(line, "#") {
		return "", false
	}
	i := 0
	for i < len(line) && line[i] == '#' {
		i++
	}
	rest := strings.TrimLeft(line[i:], " \t")
	return "#" + rest, true
}

// parseExpressionRow parses the six-token uncommented/collapsed-comment
// form: minute hour dom month dow user command..., expanding variables
// into the command first.
func parseExpressionRow(text string, vars []*CronVariable, lineNumber int, now int64) (*Row, error) {
	// A commented row is passed in already collapsed to a single '#';
	// strip it for field tokenization.
	body := strings.TrimPrefix(text, "#")
	body = strings.TrimSpace(body)

	fields := strings.Fields(body)
	if len(fields) < 6 {
		return nil, fmt.Errorf("expected at least 6 fields, got %d", len(fields))
	}

	sched := schedule.New()
	kinds := []fieldKind{fieldMinute, fieldHour, fieldDom, fieldMonth, fieldDow}
	sets := make([]map[int]struct{}, 5)
	for i, k := range kinds {
		set, err := parseField(fields[i], k)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		sets[i] = set
	}
	sched.Minutes, sched.Hours, sched.DaysOfMonth, sched.Months, sched.DaysOfWeek =
		sets[0], sets[1], sets[2], sets[3], sets[4]
	if !sched.Valid() {
		return nil, fmt.Errorf("empty field set after parse")
	}

	user := fields[5]
	commandTokens := fields[6:]
	if len(commandTokens) == 0 {
		return nil, fmt.Errorf("missing command")
	}
	command := strings.Join(commandTokens, " ")
	command = expandVariables(command, vars)

	return &Row{
		LineNumber:          lineNumber,
		RawExpression:       text,
		ExecutingUser:       user,
		Command:             command,
		ReadTimestampMillis: now,
		Schedule:            sched,
	}, nil
}
