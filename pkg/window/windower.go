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
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/goccy/go-json"
)

var (
	// MinTimestamp is the smallest event time a window can start at.
	MinTimestamp = time.UnixMilli(math.MinInt64 / 1000).UTC()
	// MaxTimestamp is the largest event time the system can represent.
	MaxTimestamp = time.UnixMilli(math.MaxInt64 / 1000).UTC()
	// EndOfGlobalWindow leaves a day of headroom below MaxTimestamp so that the allowed lateness of the
	// global window can still be expressed.
	EndOfGlobalWindow = MaxTimestamp.Add(-24 * time.Hour)
)

// ErrInvalidWindowing is returned for malformed windowing configuration or an inconsistent merge plan.
var ErrInvalidWindowing = errors.New("invalid windowing")

// Window is a half open interval [Start, End) of event time. Windows of the same key may be merged, never split.
// Times are truncated to millisecond precision in UTC so that two windows built from the same boundaries compare equal.
type Window struct {
	start time.Time
	end   time.Time
}

// NewWindow returns the window [start, end).
func NewWindow(start, end time.Time) Window {
	return Window{
		start: time.UnixMilli(start.UnixMilli()).UTC(),
		end:   time.UnixMilli(end.UnixMilli()).UTC(),
	}
}

// NewGlobalWindow returns the single window that spans all of event time.
func NewGlobalWindow() Window {
	return NewWindow(MinTimestamp, EndOfGlobalWindow)
}

// StartTime returns the start time of the window
func (w Window) StartTime() time.Time {
	return w.start
}

// EndTime returns the exclusive end time of the window
func (w Window) EndTime() time.Time {
	return w.end
}

// MaxTimestamp is the largest event time that belongs to the window. Expiry is always computed from it.
func (w Window) MaxTimestamp() time.Time {
	return w.end.Add(-time.Millisecond)
}

// IsGlobal reports whether w is the global window.
func (w Window) IsGlobal() bool {
	return w.Equal(NewGlobalWindow())
}

// ID uniquely identifies the window.
func (w Window) ID() string {
	return fmt.Sprintf("%d-%d", w.start.UnixMilli(), w.end.UnixMilli())
}

func (w Window) String() string {
	if w.IsGlobal() {
		return "[global)"
	}
	return fmt.Sprintf("[%s, %s)", w.start.Format(time.RFC3339Nano), w.end.Format(time.RFC3339Nano))
}

// Equal reports whether both windows have the same boundaries.
func (w Window) Equal(o Window) bool {
	return w.start.Equal(o.start) && w.end.Equal(o.end)
}

// Contains reports whether the event time t falls within the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.start) && t.Before(w.end)
}

// Intersects reports whether the two windows overlap. Windows that merely touch do not intersect.
func (w Window) Intersects(o Window) bool {
	return w.start.Before(o.end) && o.start.Before(w.end)
}

// Span returns the smallest window that covers both windows.
func (w Window) Span(o Window) Window {
	span := w
	// expand the start and end to accommodate the other window
	if o.start.Before(span.start) {
		span.start = o.start
	}
	if o.end.After(span.end) {
		span.end = o.end
	}
	return span
}

type windowJSON struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// MarshalJSON encodes the window as epoch milliseconds, the boundaries of the global window are outside the range
// of RFC 3339 timestamps.
func (w Window) MarshalJSON() ([]byte, error) {
	return json.Marshal(windowJSON{Start: w.start.UnixMilli(), End: w.end.UnixMilli()})
}

// UnmarshalJSON decodes a window encoded by MarshalJSON.
func (w *Window) UnmarshalJSON(data []byte) error {
	var wj windowJSON
	if err := json.Unmarshal(data, &wj); err != nil {
		return err
	}
	*w = NewWindow(time.UnixMilli(wj.Start), time.UnixMilli(wj.End))
	return nil
}

// Assigner maps the event time of an element to the set of windows it belongs to. AssignWindows must be a pure,
// deterministic function of the event time.
type Assigner interface {
	// Strategy returns the window strategy
	Strategy() Strategy
	// AssignWindows assigns the event to the window based on give window configuration.
	AssignWindows(eventTime time.Time) []Window
}

// Merger is implemented by assigners whose windows may need merging after assignment, e.g. sessions.
type Merger interface {
	// MergeWindows computes the merge plan for the given set of windows of a single key. Only the windows that
	// collapse into a different window are part of the plan.
	MergeWindows(windows []Window) ([]MergeResult, error)
}

// MergeResult collapses From into To.
type MergeResult struct {
	From []Window
	To   Window
}

// IsMerging reports whether the assigner requires the merge step.
func IsMerging(a Assigner) bool {
	_, ok := a.(Merger)
	return ok
}

// Strategy represents the windowing strategy
type Strategy int

const (
	Fixed Strategy = iota
	Sliding
	Session
	Global
	Custom
)

func (s Strategy) String() string {
	switch s {
	case Fixed:
		return "Fixed"
	case Sliding:
		return "Sliding"
	case Session:
		return "Session"
	case Global:
		return "Global"
	case Custom:
		return "Custom"
	default:
		return "Unknown"
	}
}
