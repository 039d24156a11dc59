/*
Copyright 2022 The Numaproj Authors.

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

package window

import (
	"fmt"
	"sort"
)

// MergeOverlapping computes the merge plan for windows that are merged whenever they intersect, which is how session
// windows behave. Windows that only touch are kept apart. Groups of a single window are not part of the plan, so
// running it on an already merged set returns an empty plan.
func MergeOverlapping(windows []Window) []MergeResult {
	if len(windows) < 2 {
		return nil
	}
	sorted := make([]Window, len(windows))
	copy(sorted, windows)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].start.Equal(sorted[j].start) {
			return sorted[i].end.Before(sorted[j].end)
		}
		return sorted[i].start.Before(sorted[j].start)
	})

	var (
		plan    []MergeResult
		current = MergeResult{From: []Window{sorted[0]}, To: sorted[0]}
	)
	flush := func() {
		if len(current.From) > 1 {
			plan = append(plan, current)
		}
	}
	for _, w := range sorted[1:] {
		if current.To.Intersects(w) {
			current.From = append(current.From, w)
			current.To = current.To.Span(w)
			continue
		}
		flush()
		current = MergeResult{From: []Window{w}, To: w}
	}
	flush()
	return plan
}

// ValidateMergePlan checks that a merge plan produced for the given windows is consistent. Every source window must be
// one of the windows, no window may be merged twice, the result must cover its sources and must not collide with a
// window that survives the merge.
func ValidateMergePlan(windows []Window, plan []MergeResult) error {
	known := make(map[string]struct{}, len(windows))
	for _, w := range windows {
		known[w.ID()] = struct{}{}
	}
	merged := make(map[string]struct{})
	for _, r := range plan {
		if len(r.From) == 0 {
			return fmt.Errorf("%w: merge into %s has no source windows", ErrInvalidWindowing, r.To)
		}
		for _, from := range r.From {
			if _, ok := known[from.ID()]; !ok {
				return fmt.Errorf("%w: merge source %s is not an active window", ErrInvalidWindowing, from)
			}
			if _, ok := merged[from.ID()]; ok {
				return fmt.Errorf("%w: window %s is merged more than once", ErrInvalidWindowing, from)
			}
			merged[from.ID()] = struct{}{}
			if from.start.Before(r.To.start) || from.end.After(r.To.end) {
				return fmt.Errorf("%w: merge result %s does not cover %s", ErrInvalidWindowing, r.To, from)
			}
		}
	}
	results := make(map[string]struct{}, len(plan))
	for _, r := range plan {
		if _, ok := results[r.To.ID()]; ok {
			return fmt.Errorf("%w: two merges produce %s", ErrInvalidWindowing, r.To)
		}
		results[r.To.ID()] = struct{}{}
		if _, ok := known[r.To.ID()]; ok {
			if _, ok := merged[r.To.ID()]; !ok {
				return fmt.Errorf("%w: merge result %s collides with an active window", ErrInvalidWindowing, r.To)
			}
		}
	}
	return nil
}
