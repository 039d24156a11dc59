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

package reduce

import (
	"fmt"

	"github.com/numaproj/reducefn/pkg/window"
)

// Timing tells where a pane was emitted relative to the end of its window.
type Timing int

const (
	// Early panes are emitted before the watermark passed the end of the window.
	Early Timing = iota
	// OnTime is the first pane emitted after the watermark passed the end of the window.
	OnTime
	// Late panes follow the on time pane.
	Late
)

func (t Timing) String() string {
	switch t {
	case Early:
		return "EARLY"
	case OnTime:
		return "ON_TIME"
	case Late:
		return "LATE"
	default:
		return "UNKNOWN"
	}
}

func (t Timing) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Timing) UnmarshalText(b []byte) error {
	switch string(b) {
	case "EARLY":
		*t = Early
	case "ON_TIME":
		*t = OnTime
	case "LATE":
		*t = Late
	default:
		return fmt.Errorf("unknown pane timing %q", b)
	}
	return nil
}

// PaneInfo describes a firing of a window.
type PaneInfo struct {
	// Index is the firing index, starting at 0.
	Index int64 `json:"index"`
	// NonSpeculativeIndex numbers the on time and late panes, it is -1 for early panes.
	NonSpeculativeIndex int64  `json:"nonSpeculativeIndex"`
	IsFirst             bool   `json:"isFirst"`
	IsLast              bool   `json:"isLast"`
	Timing              Timing `json:"timing"`
}

func (p PaneInfo) String() string {
	return fmt.Sprintf("pane#%d(%s, first=%t, last=%t)", p.Index, p.Timing, p.IsFirst, p.IsLast)
}

// Pane is the output of a firing of a window.
type Pane struct {
	Key    string        `json:"key"`
	Window window.Window `json:"window"`
	Values [][]byte      `json:"values"`
	Info   PaneInfo      `json:"info"`
}
