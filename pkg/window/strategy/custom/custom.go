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
// Package custom is the extension point for user defined windowing. A custom strategy is configured with pure
// functions, the assign function must return the same windows for the same event time and the merge function must be
// idempotent.
package custom

import (
	"fmt"
	"time"

	"github.com/numaproj/reducefn/pkg/window"
)

// AssignFunc maps an event time to its windows.
type AssignFunc func(eventTime time.Time) []window.Window

// MergeFunc computes a merge plan for the windows of a key.
type MergeFunc func(windows []window.Window) ([]window.MergeResult, error)

// Custom is a window strategy built from functions.
type Custom struct {
	assign AssignFunc
}

var _ window.Assigner = (*Custom)(nil)

// Merging is a Custom strategy that also merges windows.
type Merging struct {
	*Custom
	merge MergeFunc
}

var _ window.Merger = (*Merging)(nil)

// New returns a custom assigner, the returned assigner implements window.Merger only when merge is not nil.
func New(assign AssignFunc, merge MergeFunc) (window.Assigner, error) {
	if assign == nil {
		return nil, fmt.Errorf("%w: custom windowing requires an assign function", window.ErrInvalidWindowing)
	}
	c := &Custom{assign: assign}
	if merge == nil {
		return c, nil
	}
	return &Merging{Custom: c, merge: merge}, nil
}

func (c *Custom) Strategy() window.Strategy {
	return window.Custom
}

func (c *Custom) AssignWindows(eventTime time.Time) []window.Window {
	return c.assign(eventTime)
}

// MergeWindows delegates to the merge function and validates the plan it returns.
func (m *Merging) MergeWindows(windows []window.Window) ([]window.MergeResult, error) {
	plan, err := m.merge(windows)
	if err != nil {
		return nil, err
	}
	if err := window.ValidateMergePlan(windows, plan); err != nil {
		return nil, err
	}
	return plan, nil
}
