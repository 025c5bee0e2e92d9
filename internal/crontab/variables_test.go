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
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("expandVariables", func() {
	It("substitutes a whole-token variable", func() {
		vars := []*CronVariable{newCronVariable("PATH", "/usr/bin")}
		Expect(expandVariables("echo $PATH here", vars)).To(Equal("echo /usr/bin here"))
	})

	It("substitutes a variable at end of string", func() {
		vars := []*CronVariable{newCronVariable("PATH", "/usr/bin")}
		Expect(expandVariables("echo $PATH", vars)).To(Equal("echo /usr/bin"))
	})

	It("prefers the longest matching name so $VAR1 is not eaten by $VAR", func() {
		vars := []*CronVariable{
			newCronVariable("VAR", "short"),
			newCronVariable("VAR1", "long"),
		}
		Expect(expandVariables("$VAR1 $VAR", vars)).To(Equal("long short"))
	})

	It("leaves an undeclared variable reference untouched", func() {
		vars := []*CronVariable{newCronVariable("PATH", "/usr/bin")}
		Expect(expandVariables("echo $OTHER", vars)).To(Equal("echo $OTHER"))
	})
})
