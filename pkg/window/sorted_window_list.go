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
	"sort"
	"sync"
	"time"
)

// SortedWindowList is a thread safe list implementation, which is sorted by window start time
// from lowest to highest. Windows with the same start are ordered by end time.
type SortedWindowList struct {
	windows []Window
	lock    *sync.RWMutex
}

// NewSortedWindowList implements a window list ordered by the start time. The Front/Head of the list will always have the smallest
// element while the End/Tail will have the largest element (start time).
func NewSortedWindowList(windows ...Window) *SortedWindowList {
	s := &SortedWindowList{
		windows: make([]Window, 0, len(windows)),
		lock:    &sync.RWMutex{},
	}
	for _, w := range windows {
		s.InsertIfNotPresent(w)
	}
	return s
}

func less(a, b Window) bool {
	if a.start.Equal(b.start) {
		return a.end.Before(b.end)
	}
	return a.start.Before(b.start)
}

// InsertIfNotPresent inserts a window to the list of active windows if not present and returns the window.
func (s *SortedWindowList) InsertIfNotPresent(window Window) (Window, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	index := sort.Search(len(s.windows), func(i int) bool {
		return !less(s.windows[i], window)
	})

	if index < len(s.windows) && s.windows[index].Equal(window) {
		return s.windows[index], true
	}

	s.windows = append(s.windows, window)
	copy(s.windows[index+1:], s.windows[index:])
	s.windows[index] = window

	return window, false
}

// Contains reports whether the window is in the list.
func (s *SortedWindowList) Contains(window Window) bool {
	s.lock.RLock()
	defer s.lock.RUnlock()

	index := sort.Search(len(s.windows), func(i int) bool {
		return !less(s.windows[i], window)
	})
	return index < len(s.windows) && s.windows[index].Equal(window)
}

// Delete deletes a window from the list.
func (s *SortedWindowList) Delete(window Window) (deleted bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	index := sort.Search(len(s.windows), func(i int) bool {
		return !less(s.windows[i], window)
	})

	if index < len(s.windows) && s.windows[index].Equal(window) {
		s.windows = append(s.windows[:index], s.windows[index+1:]...)
		return true
	}
	return false
}

// Len returns the length of the window.
func (s *SortedWindowList) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.windows)
}

// Front returns the smallest element from the list.
func (s *SortedWindowList) Front() (Window, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if len(s.windows) == 0 {
		return Window{}, false
	}
	return s.windows[0], true
}

// Items returns the entire window list.
func (s *SortedWindowList) Items() []Window {
	s.lock.RLock()
	defer s.lock.RUnlock()

	items := make([]Window, len(s.windows))
	copy(items, s.windows)

	return items
}

// FindWindowsForTime returns all the windows that contain the given event time.
func (s *SortedWindowList) FindWindowsForTime(t time.Time) []Window {
	s.lock.RLock()
	defer s.lock.RUnlock()

	var found []Window
	for _, w := range s.windows {
		if w.start.After(t) {
			break
		}
		if w.Contains(t) {
			found = append(found, w)
		}
	}
	return found
}
