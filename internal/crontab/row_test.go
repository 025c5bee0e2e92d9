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

var _ = Describe("Row", func() {
	It("is runnable only when neither commented nor malformed", func() {
		Expect((&Row{}).Runnable()).To(BeTrue())
		Expect((&Row{Commented: true}).Runnable()).To(BeFalse())
		Expect((&Row{Malformed: true}).Runnable()).To(BeFalse())
	})

	It("identity lowercases the raw expression", func() {
		a := &Row{RawExpression: "* * * * * root ECHO hi"}
		b := &Row{RawExpression: "* * * * * root echo hi"}
		Expect(a.Identity()).To(Equal(b.Identity()))
	})

	It("treats commented state as part of identity", func() {
		a := &Row{RawExpression: "x", Commented: true}
		b := &Row{RawExpression: "x", Commented: false}
		Expect(a.Identity()).NotTo(Equal(b.Identity()))
	})
})
