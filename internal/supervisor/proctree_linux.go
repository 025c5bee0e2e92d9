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

//go:build linux

package supervisor

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LinuxProcessTree reads /proc/<pid>/task/<pid>/children recursively,
// per spec.md §4.5.
type LinuxProcessTree struct{}

// NewProcessTree returns the platform ProcessTree implementation.
func NewProcessTree() ProcessTree { return LinuxProcessTree{} }

func (LinuxProcessTree) Descendants(ctx context.Context, pid int) []int {
	visited := map[int]struct{}{}
	var walk func(p int)
	walk = func(p int) {
		if _, ok := visited[p]; ok {
			return
		}
		visited[p] = struct{}{}
		select {
		case <-ctx.Done():
			return
		default:
		}
		children := readChildren(p)
		for _, c := range children {
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

func readChildren(pid int) []int {
	path := fmt.Sprintf("/proc/%d/task/%d/children", pid, pid)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	fields := strings.Fields(string(data))
	children := make([]int, 0, len(fields))
	for _, f := range fields {
		if c, err := strconv.Atoi(f); err == nil {
			children = append(children, c)
		}
	}
	return children
}
