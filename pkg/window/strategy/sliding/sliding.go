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
// Package sliding implements Sliding windows. Sliding windows are defined by a static window size
// e.g. minutely windows or hourly windows and a fixed "slide". This is the duration by which the boundaries
// of the windows move once every <slide> duration.
package sliding

import (
	"time"

	"github.com/numaproj/reducefn/pkg/window"
)

// Sliding implements sliding windows
type Sliding struct {
	// Length is the duration of the window
	Length time.Duration
	// offset between successive windows.
	// successive windows are phased out by this duration.
	Slide time.Duration
	// Offset shifts the window boundaries away from the epoch.
	Offset time.Duration
}

var _ window.Assigner = (*Sliding)(nil)

// NewSliding returns a Sliding assigner
func NewSliding(length time.Duration, slide time.Duration, offset time.Duration) *Sliding {
	return &Sliding{
		Length: length,
		Slide:  slide,
		Offset: offset,
	}
}

func (s *Sliding) Strategy() window.Strategy {
	return window.Sliding
}

// AssignWindows returns a set of windows that contain the element based on event time
func (s *Sliding) AssignWindows(eventTime time.Time) []window.Window {
	windows := make([]window.Window, 0)

	// use the highest integer multiple of slide length which is less than or equal to the eventTime
	// as the start time for the window. For example if the eventTime is 810 and slide
	// length is 70, use 770 as the startTime of the window. In that way we can be guarantee
	// consistency while assigning the messages to the windows.
	startTime := window.AlignedStart(eventTime, s.Slide, s.Offset)
	endTime := startTime.Add(s.Length)

	// startTime and endTime will be the largest timestamp window for the given eventTime,
	// using that we can create other windows by subtracting the slide length

	// since there is overlap at the boundaries
	// we attribute the element to the window to the right (higher)
	// of the boundary
	// left inclusive and right exclusive
	// so given windows 500-600 and 600-700 and the event time is 600
	// we will add the element to 600-700 window and not to the 500-600 window.
	for !startTime.After(eventTime) && endTime.After(eventTime) {
		windows = append(windows, window.NewWindow(startTime, endTime))
		startTime = startTime.Add(-s.Slide)
		endTime = endTime.Add(-s.Slide)
	}

	return windows
}
