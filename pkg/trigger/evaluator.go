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

package trigger

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidTrigger is returned for a malformed trigger tree.
	ErrInvalidTrigger = errors.New("invalid trigger")
	// ErrMergeConflict is returned when a finished window would be merged with a window that still has live state.
	ErrMergeConflict = errors.New("merge conflict")
	// ErrIncompatibleState is returned for a state that was not built for the trigger tree being evaluated.
	ErrIncompatibleState = errors.New("incompatible trigger state")
)

// Evaluator evaluates a compiled trigger tree against the per window State. An Evaluator is immutable and can be
// shared by concurrent invocations, all the progress lives in the State.
type Evaluator struct {
	root Trigger
	// nodes in pre order
	nodes []Trigger
	// children holds the node indexes of the sub triggers of each node
	children [][]int
	// size of the subtree rooted at each node, including the node
	size []int
}

// NewEvaluator validates and compiles the trigger tree.
func NewEvaluator(root Trigger) (*Evaluator, error) {
	if err := Validate(root); err != nil {
		return nil, err
	}
	e := &Evaluator{root: root}
	e.compile(root)
	return e, nil
}

func (e *Evaluator) compile(t Trigger) int {
	i := len(e.nodes)
	e.nodes = append(e.nodes, t)
	e.size = append(e.size, 1)
	e.children = append(e.children, nil)
	for _, sub := range t.children() {
		e.children[i] = append(e.children[i], len(e.nodes))
		e.size[i] += e.compile(sub)
	}
	return i
}

// Validate checks the trigger tree. Composites need their sub triggers and primitive parameters must be in range.
func Validate(root Trigger) error {
	var walk func(t Trigger) error
	walk = func(t Trigger) error {
		if t == nil {
			return fmt.Errorf("%w: nil trigger", ErrInvalidTrigger)
		}
		switch tt := t.(type) {
		case *AfterCountTrigger:
			if tt.Count < 1 {
				return fmt.Errorf("%w: element count must be at least 1, got %d", ErrInvalidTrigger, tt.Count)
			}
		case *AfterProcessingTimeTrigger:
			if tt.Delay < 0 || tt.AlignPeriod < 0 {
				return fmt.Errorf("%w: processing time delay and alignment must not be negative", ErrInvalidTrigger)
			}
		case *RepeatedlyTrigger:
			if tt.Repeated == nil {
				return fmt.Errorf("%w: repeatedly requires a sub trigger", ErrInvalidTrigger)
			}
		case *OrFinallyTrigger:
			if tt.Main == nil || tt.Until == nil {
				return fmt.Errorf("%w: or finally requires a main and an until trigger", ErrInvalidTrigger)
			}
		case *AfterAllTrigger, *AfterAnyTrigger, *AfterEachTrigger:
			if len(t.children()) == 0 {
				return fmt.Errorf("%w: %v requires sub triggers", ErrInvalidTrigger, t)
			}
		}
		for _, sub := range t.children() {
			if err := walk(sub); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(root)
}

// Root returns the trigger tree.
func (e *Evaluator) Root() Trigger {
	return e.root
}

// NewState returns the state of a window that has not seen any element.
func (e *Evaluator) NewState() *State {
	return &State{Nodes: make([]NodeState, len(e.nodes))}
}

func (e *Evaluator) check(st *State) error {
	if st == nil || len(st.Nodes) != len(e.nodes) {
		n := 0
		if st != nil {
			n = len(st.Nodes)
		}
		return fmt.Errorf("%w: state has %d nodes, trigger %v has %d", ErrIncompatibleState, n, e.root, len(e.nodes))
	}
	return nil
}

// OnElement records the arrival of n elements into the window and evaluates the trigger. A fire is committed to the
// state before returning.
func (e *Evaluator) OnElement(st *State, in Input, n int) (Result, error) {
	if err := e.check(st); err != nil {
		return Result{}, err
	}
	if n > 0 {
		st.Started = true
	}
	return e.evaluate(st, in, int64(n)), nil
}

// OnTimer evaluates the trigger after a timer of the window fired, i.e. the watermark or processing time advanced.
func (e *Evaluator) OnTimer(st *State, in Input) (Result, error) {
	if err := e.check(st); err != nil {
		return Result{}, err
	}
	return e.evaluate(st, in, 0), nil
}

func (e *Evaluator) evaluate(st *State, in Input, n int64) Result {
	c := &evalContext{ev: e, st: st, in: in, eow: in.EndOfWindowReached(), newElements: n}
	if c.finished(0) {
		return Result{}
	}
	c.onElement(0)
	if !c.shouldFire(0) {
		return Result{}
	}
	c.onFire(0)
	st.Fires++
	return Result{ShouldFire: true, ShouldFinish: c.finished(0)}
}

// IsFinished reports whether the trigger of the window finished.
func (e *Evaluator) IsFinished(st *State) bool {
	return e.check(st) == nil && st.Nodes[0].Finished
}

// Status derives the lifecycle status of the trigger of the window.
func (e *Evaluator) Status(st *State) Status {
	switch {
	case e.IsFinished(st):
		return Finished
	case st == nil || !st.Started:
		return Unstarted
	case st.Fires > 0:
		return Fired
	default:
		return Active
	}
}

// NextDeadline returns the earliest processing time at which the trigger may fire, if any.
func (e *Evaluator) NextDeadline(st *State) (time.Time, bool) {
	if e.check(st) != nil || st.Nodes[0].Finished {
		return time.Time{}, false
	}
	var (
		next  time.Time
		found bool
	)
	for i := range st.Nodes {
		n := &st.Nodes[i]
		if n.Finished {
			continue
		}
		if d, ok := n.deadline(); ok && (!found || d.Before(next)) {
			next, found = d, true
		}
	}
	return next, found
}

// OnMerge combines the trigger states of windows being merged into the window of in. A window whose trigger finished
// absorbs windows that have not started, the merged window is finished as well. Merging a finished window with a
// window that holds live state is a conflict.
func (e *Evaluator) OnMerge(in Input, states []*State) (*State, error) {
	var finished, live []int
	for i, st := range states {
		if err := e.check(st); err != nil {
			return nil, err
		}
		switch e.Status(st) {
		case Finished:
			finished = append(finished, i)
		case Active, Fired:
			live = append(live, i)
		}
	}
	merged := e.NewState()
	for _, st := range states {
		merged.Started = merged.Started || st.Started
		if st.Fires > merged.Fires {
			merged.Fires = st.Fires
		}
	}
	if len(finished) > 0 {
		if len(live) > 0 {
			return nil, fmt.Errorf("%w: cannot merge %d finished window(s) with %d window(s) in progress", ErrMergeConflict, len(finished), len(live))
		}
		merged.Nodes[0].Finished = true
		return merged, nil
	}

	for _, st := range states {
		for i := range st.Nodes {
			src, dst := &st.Nodes[i], &merged.Nodes[i]
			dst.Finished = dst.Finished || src.Finished
			dst.Count += src.Count
			dst.EndOfWindow = dst.EndOfWindow || src.EndOfWindow
			if d := src.Deadline; d != nil && (dst.Deadline == nil || *d < *dst.Deadline) {
				v := *d
				dst.Deadline = &v
			}
		}
	}

	// the merged window may end later than the windows it replaces, re-derive the end of window transition
	c := &evalContext{ev: e, st: merged, in: in, eow: in.EndOfWindowReached()}
	for i, t := range e.nodes {
		wt, ok := t.(*AfterWatermarkTrigger)
		if !ok || c.finished(i) {
			continue
		}
		s := c.node(i)
		early, late := wt.parts(c, i)
		if s.EndOfWindow && !c.eow {
			s.EndOfWindow = false
			if late >= 0 {
				c.reset(late)
			}
			if early >= 0 {
				c.reset(early)
			}
		}
		if s.EndOfWindow && early >= 0 {
			c.clearAndFinish(early)
		}
	}
	return merged, nil
}
