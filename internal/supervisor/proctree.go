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

// Package supervisor launches and supervises a single crontab command
// invocation: su-based launch, PID capture, timeout-and-kill loop, and
// exit-code recording.
package supervisor

import "context"

// ProcessTree enumerates the descendant PIDs of a root process. It is
// an interface so tests can script a fake tree instead of depending on
// the real /proc filesystem.
type ProcessTree interface {
	// Descendants returns every PID in the process tree rooted at pid,
	// including pid itself. A missing or unreadable /proc entry yields
	// an empty subtree, not an error.
	Descendants(ctx context.Context, pid int) []int
}
