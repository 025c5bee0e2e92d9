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

package supervisor

import (
	"context"
	"sort"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("FakeProcessTree", func() {
	It("walks the scripted tree including the root pid", func() {
		tree := NewFakeProcessTree()
		tree.Tree[1] = []int{2, 3}
		tree.Tree[2] = []int{4}

		got := tree.Descendants(context.Background(), 1)
		sort.Ints(got)
		Expect(got).To(Equal([]int{1, 2, 3, 4}))
	})

	It("returns just the root when it has no children", func() {
		tree := NewFakeProcessTree()
		Expect(tree.Descendants(context.Background(), 42)).To(Equal([]int{42}))
	})

	It("never loops on a cycle", func() {
		tree := NewFakeProcessTree()
		tree.Tree[1] = []int{2}
		tree.Tree[2] = []int{1}

		got := tree.Descendants(context.Background(), 1)
		sort.Ints(got)
		Expect(got).To(Equal([]int{1, 2}))
	})
})
