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

//go:build !linux

package supervisor

import "context"

// noopProcessTree is used on platforms without /proc; the root PID is
// still returned so a timeout can at least kill the direct child, and
// the supervisor falls back to the process-group kill (see task.go).
type noopProcessTree struct{}

// NewProcessTree returns the platform ProcessTree implementation.
func NewProcessTree() ProcessTree { return noopProcessTree{} }

func (noopProcessTree) Descendants(ctx context.Context, pid int) []int {
	return []int{pid}
}
