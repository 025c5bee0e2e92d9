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

package crontab

import (
	"regexp"
	"sort"
)

// CronVariable is a NAME=VALUE declaration from a crontab file. Its
// pattern matches a whole occurrence of $NAME in later row text — never
// a prefix of a longer variable name.
type CronVariable struct {
	Name    string
	Value   string
	pattern *regexp.Regexp
}

func newCronVariable(name, value string) *CronVariable {
	return &CronVariable{
		Name:    name,
		Value:   value,
		pattern: regexp.MustCompile(`\$` + regexp.QuoteMeta(name) + `(\s+|$)`),
	}
}

// expandVariables substitutes every declared variable into text, in
// longest-name-first order so that $VAR1 is never partially consumed by
// a substitution meant for $VAR.
func expandVariables(text string, vars []*CronVariable) string {
	ordered := make([]*CronVariable, len(vars))
	copy(ordered, vars)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].Name) > len(ordered[j].Name)
	})

	for _, v := range ordered {
		text = v.pattern.ReplaceAllString(text, v.Value+"$1")
	}
	return text
}
