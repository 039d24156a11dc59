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

package gabw

import (
	"fmt"
	"time"

	"github.com/numaproj/reducefn/pkg/metrics"
	"github.com/numaproj/reducefn/pkg/reduce"
	"github.com/numaproj/reducefn/pkg/watermark"
)

// InvocationSink receives the invocation counters of a DoFn. The metrics sink of the DoFn gets them when it
// implements InvocationSink.
type InvocationSink interface {
	InvocationStarted(key string)
	// InvocationFailed is called with metrics.ReasonFatal or metrics.ReasonTransient.
	InvocationFailed(key string, reason string)
	// Persisted is called with the duration of every persist attempt.
	Persisted(key string, store string, d time.Duration)
}

var _ InvocationSink = metrics.PrometheusSink{}

type noopInvocationSink struct{}

func (noopInvocationSink) InvocationStarted(string)                {}
func (noopInvocationSink) InvocationFailed(string, string)         {}
func (noopInvocationSink) Persisted(string, string, time.Duration) {}

type options struct {
	sink  reduce.MetricsSink
	clock *watermark.ProcessingClock
}

func defaultOptions() *options {
	return &options{
		sink:  metrics.PrometheusSink{},
		clock: watermark.NewProcessingClock(nil),
	}
}

// Option to apply to the DoFn.
type Option func(*options) error

// WithMetricsSink sets the sink the counters are reported to, the default is the prometheus sink. The invocation
// counters are reported too when the sink implements InvocationSink.
func WithMetricsSink(sink reduce.MetricsSink) Option {
	return func(o *options) error {
		if sink == nil {
			return fmt.Errorf("metrics sink must not be nil")
		}
		o.sink = sink
		return nil
	}
}

// WithProcessingClock sets the clock the processing time is read from.
func WithProcessingClock(c *watermark.ProcessingClock) Option {
	return func(o *options) error {
		if c == nil {
			return fmt.Errorf("processing clock must not be nil")
		}
		o.clock = c
		return nil
	}
}
