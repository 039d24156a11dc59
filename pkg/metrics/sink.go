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

package metrics

import (
	"time"

	"go.uber.org/atomic"

	"github.com/numaproj/reducefn/pkg/reduce"
)

// PrometheusSink reports the counters of the runners to prometheus. Keys are not used as labels.
type PrometheusSink struct{}

var _ reduce.MetricsSink = PrometheusSink{}

func (PrometheusSink) DroppedDueToLateness(_ string, n int64) {
	DroppedDueToLateness.Add(float64(n))
}

func (PrometheusSink) DroppedDueToClosedWindow(_ string, n int64) {
	DroppedDueToClosedWindow.Add(float64(n))
}

func (PrometheusSink) PaneEmitted(_ string, info reduce.PaneInfo) {
	PanesEmitted.WithLabelValues(info.Timing.String()).Inc()
}

func (PrometheusSink) WindowsGarbageCollected(_ string, n int64) {
	WindowsGarbageCollected.Add(float64(n))
}

func (PrometheusSink) InvocationStarted(string) {
	Invocations.Inc()
}

func (PrometheusSink) InvocationFailed(_ string, reason string) {
	InvocationErrors.WithLabelValues(reason).Inc()
}

func (PrometheusSink) Persisted(_ string, store string, d time.Duration) {
	PersistDuration.WithLabelValues(store).Observe(d.Seconds())
}

// CountingSink keeps the counters in memory.
type CountingSink struct {
	droppedDueToLateness     *atomic.Int64
	droppedDueToClosedWindow *atomic.Int64
	panes                    *atomic.Int64
	windowsGarbageCollected  *atomic.Int64
	invocations              *atomic.Int64
	transientErrors          *atomic.Int64
	fatalErrors              *atomic.Int64
	persists                 *atomic.Int64
}

var _ reduce.MetricsSink = (*CountingSink)(nil)

func NewCountingSink() *CountingSink {
	return &CountingSink{
		droppedDueToLateness:     atomic.NewInt64(0),
		droppedDueToClosedWindow: atomic.NewInt64(0),
		panes:                    atomic.NewInt64(0),
		windowsGarbageCollected:  atomic.NewInt64(0),
		invocations:              atomic.NewInt64(0),
		transientErrors:          atomic.NewInt64(0),
		fatalErrors:              atomic.NewInt64(0),
		persists:                 atomic.NewInt64(0),
	}
}

func (c *CountingSink) DroppedDueToLateness(_ string, n int64) {
	c.droppedDueToLateness.Add(n)
}

func (c *CountingSink) DroppedDueToClosedWindow(_ string, n int64) {
	c.droppedDueToClosedWindow.Add(n)
}

func (c *CountingSink) PaneEmitted(string, reduce.PaneInfo) {
	c.panes.Inc()
}

func (c *CountingSink) WindowsGarbageCollected(_ string, n int64) {
	c.windowsGarbageCollected.Add(n)
}

func (c *CountingSink) InvocationStarted(string) {
	c.invocations.Inc()
}

func (c *CountingSink) InvocationFailed(_ string, reason string) {
	if reason == ReasonFatal {
		c.fatalErrors.Inc()
		return
	}
	c.transientErrors.Inc()
}

func (c *CountingSink) Persisted(string, string, time.Duration) {
	c.persists.Inc()
}

// Summary is a snapshot of the counters.
type Summary struct {
	DroppedDueToLateness     int64 `json:"droppedDueToLateness"`
	DroppedDueToClosedWindow int64 `json:"droppedDueToClosedWindow"`
	PanesEmitted             int64 `json:"panesEmitted"`
	WindowsGarbageCollected  int64 `json:"windowsGarbageCollected"`
}

// Summary returns the current counters.
func (c *CountingSink) Summary() Summary {
	return Summary{
		DroppedDueToLateness:     c.droppedDueToLateness.Load(),
		DroppedDueToClosedWindow: c.droppedDueToClosedWindow.Load(),
		PanesEmitted:             c.panes.Load(),
		WindowsGarbageCollected:  c.windowsGarbageCollected.Load(),
	}
}

// InvocationSummary is a snapshot of the invocation counters.
type InvocationSummary struct {
	Invocations     int64 `json:"invocations"`
	TransientErrors int64 `json:"transientErrors"`
	FatalErrors     int64 `json:"fatalErrors"`
	Persists        int64 `json:"persists"`
}

// InvocationSummary returns the current invocation counters.
func (c *CountingSink) InvocationSummary() InvocationSummary {
	return InvocationSummary{
		Invocations:     c.invocations.Load(),
		TransientErrors: c.transientErrors.Load(),
		FatalErrors:     c.fatalErrors.Load(),
		Persists:        c.persists.Load(),
	}
}

// Tee reports the counters to all the sinks.
func Tee(sinks ...reduce.MetricsSink) reduce.MetricsSink {
	return tee(sinks)
}

type tee []reduce.MetricsSink

func (t tee) DroppedDueToLateness(key string, n int64) {
	for _, s := range t {
		s.DroppedDueToLateness(key, n)
	}
}

func (t tee) DroppedDueToClosedWindow(key string, n int64) {
	for _, s := range t {
		s.DroppedDueToClosedWindow(key, n)
	}
}

func (t tee) PaneEmitted(key string, info reduce.PaneInfo) {
	for _, s := range t {
		s.PaneEmitted(key, info)
	}
}

func (t tee) WindowsGarbageCollected(key string, n int64) {
	for _, s := range t {
		s.WindowsGarbageCollected(key, n)
	}
}

type invocationCounter interface {
	InvocationStarted(key string)
	InvocationFailed(key string, reason string)
	Persisted(key string, store string, d time.Duration)
}

func (t tee) InvocationStarted(key string) {
	for _, s := range t {
		if ic, ok := s.(invocationCounter); ok {
			ic.InvocationStarted(key)
		}
	}
}

func (t tee) InvocationFailed(key string, reason string) {
	for _, s := range t {
		if ic, ok := s.(invocationCounter); ok {
			ic.InvocationFailed(key, reason)
		}
	}
}

func (t tee) Persisted(key string, store string, d time.Duration) {
	for _, s := range t {
		if ic, ok := s.(invocationCounter); ok {
			ic.Persisted(key, store, d)
		}
	}
}
