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

// MetricsSink receives the counters of the runners. Counters are reported once an invocation persisted, so a retried
// invocation is counted once.
type MetricsSink interface {
	// DroppedDueToLateness counts elements dropped because their window expired.
	DroppedDueToLateness(key string, n int64)
	// DroppedDueToClosedWindow counts elements dropped because the trigger of their window finished.
	DroppedDueToClosedWindow(key string, n int64)
	// PaneEmitted counts an emitted pane.
	PaneEmitted(key string, info PaneInfo)
	// WindowsGarbageCollected counts deleted windows.
	WindowsGarbageCollected(key string, n int64)
}

// Stats are the counters of a single invocation.
type Stats struct {
	DroppedDueToLateness     int64
	DroppedDueToClosedWindow int64
	PanesEmitted             int64
	WindowsGarbageCollected  int64
}

type noopSink struct{}

func (noopSink) DroppedDueToLateness(string, int64)     {}
func (noopSink) DroppedDueToClosedWindow(string, int64) {}
func (noopSink) PaneEmitted(string, PaneInfo)           {}
func (noopSink) WindowsGarbageCollected(string, int64)  {}

// NoopSink returns a sink discarding the counters.
func NoopSink() MetricsSink {
	return noopSink{}
}
