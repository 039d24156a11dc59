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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelVersion  = "version"
	LabelPlatform = "platform"
	LabelTiming   = "timing"
	LabelReason   = "reason"
	LabelStore    = "store"

	// ReasonFatal and ReasonTransient label the failed invocations
	ReasonFatal     = "fatal"
	ReasonTransient = "transient"
)

var (
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "A metric with a constant value '1', labeled by reducefn binary version and platform",
	}, []string{LabelVersion, LabelPlatform})
)

// Group also by window metrics
var (
	// DroppedDueToLateness is the number of elements dropped because their window expired
	DroppedDueToLateness = promauto.NewCounter(prometheus.CounterOpts{
		Subsystem: "gabw",
		Name:      "dropped_due_to_lateness_total",
		Help:      "Total number of elements dropped because the allowed lateness of their window elapsed",
	})

	// DroppedDueToClosedWindow is the number of elements dropped because the trigger of their window finished
	DroppedDueToClosedWindow = promauto.NewCounter(prometheus.CounterOpts{
		Subsystem: "gabw",
		Name:      "dropped_due_to_closed_window_total",
		Help:      "Total number of elements dropped because the trigger of their window finished",
	})

	// PanesEmitted is the number of panes emitted, by timing
	PanesEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "gabw",
		Name:      "panes_emitted_total",
		Help:      "Total number of panes emitted",
	}, []string{LabelTiming})

	// WindowsGarbageCollected is the number of windows deleted
	WindowsGarbageCollected = promauto.NewCounter(prometheus.CounterOpts{
		Subsystem: "gabw",
		Name:      "windows_gc_total",
		Help:      "Total number of windows garbage collected",
	})

	// Invocations is the number of keyed work items processed
	Invocations = promauto.NewCounter(prometheus.CounterOpts{
		Subsystem: "gabw",
		Name:      "invocations_total",
		Help:      "Total number of invocations",
	})

	// InvocationErrors is the number of failed invocation attempts, the reason is fatal or transient
	InvocationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "gabw",
		Name:      "invocation_errors_total",
		Help:      "Total number of failed invocation attempts",
	}, []string{LabelReason})

	// PersistDuration is the time it takes to commit the state and timers of an invocation
	PersistDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem: "gabw",
		Name:      "persist_duration_seconds",
		Help:      "Time taken to persist the state of an invocation",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
	}, []string{LabelStore})
)
