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
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/omicron-cron/omicron/internal/config"
)

func loadCrontab(body string) *Crontab {
	path := filepath.Join(GinkgoT().TempDir(), "crontab")
	Expect(os.WriteFile(path, []byte(body), 0o644)).To(Succeed())
	baseConfig, err := config.Load(filepath.Join(GinkgoT().TempDir(), "missing.conf"))
	Expect(err).NotTo(HaveOccurred())
	ct, err := Load(path, baseConfig)
	Expect(err).NotTo(HaveOccurred())
	return ct
}

var _ = Describe("Load", func() {
	It("parses a well-formed row", func() {
		ct := loadCrontab("* * * * * root echo hello\n")
		Expect(ct.Rows).To(HaveLen(1))
		Expect(ct.Rows[0].Malformed).To(BeFalse())
		Expect(ct.Rows[0].ExecutingUser).To(Equal("root"))
		Expect(ct.Rows[0].Command).To(Equal("echo hello"))
		Expect(ct.BadRowCount).To(Equal(0))
	})

	It("skips blank lines", func() {
		ct := loadCrontab("\n\n* * * * * root echo hi\n\n")
		Expect(ct.Rows).To(HaveLen(1))
	})

	It("retains a malformed row and counts it", func() {
		ct := loadCrontab("99 * * * * root echo hi\n")
		Expect(ct.Rows).To(HaveLen(1))
		Expect(ct.Rows[0].Malformed).To(BeTrue())
		Expect(ct.BadRowCount).To(Equal(1))
	})

	It("expands a declared variable into later commands", func() {
		ct := loadCrontab("NAME=world\n* * * * * root echo $NAME\n")
		Expect(ct.Rows).To(HaveLen(1))
		Expect(ct.Rows[0].Command).To(Equal("echo world"))
	})

	It("treats a double-quoted variable value literally", func() {
		ct := loadCrontab(`NAME="hello world"` + "\n* * * * * root echo $NAME\n")
		Expect(ct.Rows[0].Command).To(Equal("echo hello world"))
	})

	It("parses a commented expression row as commented, not malformed", func() {
		ct := loadCrontab("# * * * * * root echo hi\n")
		Expect(ct.Rows).To(HaveLen(1))
		Expect(ct.Rows[0].Commented).To(BeTrue())
		Expect(ct.Rows[0].Malformed).To(BeFalse())
	})

	It("collapses a run of leading '#' before parsing", func() {
		ct := loadCrontab("### * * * * * root echo hi\n")
		Expect(ct.Rows).To(HaveLen(1))
		Expect(ct.Rows[0].Commented).To(BeTrue())
	})

	It("discards a line that is a comment but doesn't parse as an expression", func() {
		ct := loadCrontab("# just a note\n* * * * * root echo hi\n")
		Expect(ct.Rows).To(HaveLen(1))
		Expect(ct.Rows[0].Commented).To(BeFalse())
	})

	It("dedups rows with the same raw expression and commented state, case-insensitively", func() {
		ct := loadCrontab("* * * * * root ECHO hi\n* * * * * ROOT echo hi\n")
		Expect(ct.Rows).To(HaveLen(1))
	})

	It("attaches a pending #override: to the next row by line number, then clears it", func() {
		ct := loadCrontab("#override:task.max.instance.count=5\n* * * * * root echo hi\n* * * * * root echo bye\n")
		Expect(ct.Overrides).To(HaveLen(1))
		for line, cfg := range ct.Overrides {
			Expect(line).To(Equal(2))
			n, err := cfg.Int(config.KeyTaskMaxInstanceCount)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(5))
		}
	})

	It("retains a pending override across an intervening variable declaration", func() {
		ct := loadCrontab("#override:task.max.instance.count=5\nNAME=world\n* * * * * root echo $NAME\n")
		Expect(ct.Overrides).To(HaveLen(1))
	})
})
