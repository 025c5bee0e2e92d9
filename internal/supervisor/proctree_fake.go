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

import "context"

// FakeProcessTree is a scripted ProcessTree for tests: callers set
// Tree[pid] = children and Descendants walks it exactly like the real
// /proc-backed implementation.
type FakeProcessTree struct {
	Tree map[int][]int
}

// NewFakeProcessTree returns an empty scripted tree.
func NewFakeProcessTree() *FakeProcessTree {
	return &FakeProcessTree{Tree: map[int][]int{}}
}

func (f *FakeProcessTree) Descendants(ctx context.Context, pid int) []int {
	visited := map[int]struct{}{}
	var walk func(p int)
	walk = func(p int) {
		if _, ok := visited[p]; ok {
			return
		}
		visited[p] = struct{}{}
		for _, c := range f.Tree[p] {
			walk(c)
		}
	}
	walk(pid)
	out := make([]int, 0, len(visited))
	for p := range visited {
		out = append(out, p)
	}
	return out
}
