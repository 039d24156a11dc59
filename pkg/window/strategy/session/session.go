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
// Package session implements Session windows. Session windows are unaligned windows that group the elements of a key
// which are not separated by more than the configured gap. Every element starts out in its own window [t, t+gap)
// and the windows of a key are merged whenever they overlap.
package session

import (
	"time"

	"github.com/numaproj/reducefn/pkg/window"
)

// Session implements session windows.
type Session struct {
	// Gap is the minimum gap of inactivity that closes a session.
	Gap time.Duration
}

var (
	_ window.Assigner = (*Session)(nil)
	_ window.Merger   = (*Session)(nil)
)

// NewSession returns a session assigner.
func NewSession(gap time.Duration) *Session {
	return &Session{Gap: gap}
}

func (s *Session) Strategy() window.Strategy {
	return window.Session
}

// AssignWindows returns the provisional window of the element, it is expected to merge with the other windows of the key.
func (s *Session) AssignWindows(eventTime time.Time) []window.Window {
	return []window.Window{window.NewWindow(eventTime, eventTime.Add(s.Gap))}
}

// MergeWindows merges the windows that overlap. Windows that only touch are different sessions.
func (s *Session) MergeWindows(windows []window.Window) ([]window.MergeResult, error) {
	return window.MergeOverlapping(windows), nil
}
