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
	"time"

	"github.com/numaproj/reducefn/pkg/window"
)

// Status is the lifecycle status of the trigger of a window.
type Status int

const (
	// Unstarted triggers have not seen any element yet.
	Unstarted Status = iota
	// Active triggers have seen elements but have not fired.
	Active
	// Fired triggers fired at least once and may fire again.
	Fired
	// Finished triggers never fire again.
	Finished
)

func (s Status) String() string {
	switch s {
	case Unstarted:
		return "UNSTARTED"
	case Active:
		return "ACTIVE"
	case Fired:
		return "FIRED"
	case Finished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// NodeState is the progress of a single node of the trigger tree. Each kind of node uses the fields it needs.
type NodeState struct {
	Finished bool `json:"finished,omitempty"`
	// Count is the number of elements seen by an AfterCount node.
	Count int64 `json:"count,omitempty"`
	// EndOfWindow is set by an AfterWatermark node once its on time firing happened.
	EndOfWindow bool `json:"endOfWindow,omitempty"`
	// Deadline is the processing time in epoch milliseconds an AfterProcessingTime node fires at.
	Deadline *int64 `json:"deadline,omitempty"`
}

func (n *NodeState) deadline() (time.Time, bool) {
	if n.Deadline == nil {
		return time.Time{}, false
	}
	return time.UnixMilli(*n.Deadline).UTC(), true
}

// State is the persisted trigger state of a window. Nodes are stored in the pre order of the trigger tree.
type State struct {
	Nodes   []NodeState `json:"nodes"`
	Started bool        `json:"started,omitempty"`
	Fires   int64       `json:"fires,omitempty"`
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := &State{
		Nodes:   make([]NodeState, len(s.Nodes)),
		Started: s.Started,
		Fires:   s.Fires,
	}
	copy(c.Nodes, s.Nodes)
	for i := range c.Nodes {
		if d := c.Nodes[i].Deadline; d != nil {
			v := *d
			c.Nodes[i].Deadline = &v
		}
	}
	return c
}

// Result is the outcome of evaluating a trigger.
type Result struct {
	ShouldFire   bool
	ShouldFinish bool
}

// Input is what the trigger of a window is evaluated against.
type Input struct {
	Window window.Window
	// Watermark is the current input watermark.
	Watermark time.Time
	// Now is the current processing time.
	Now time.Time
}

// EndOfWindowReached reports whether the watermark passed the end of the window.
func (in Input) EndOfWindowReached() bool {
	return in.Window.MaxTimestamp().Before(in.Watermark)
}
