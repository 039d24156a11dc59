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

package driver

import (
	"fmt"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/numaproj/reducefn/pkg/metrics"
	"github.com/numaproj/reducefn/pkg/reduce"
	"github.com/numaproj/reducefn/pkg/shared/util"
)

type options struct {
	workers   int
	batchSize int
	sink      reduce.MetricsSink
	backoff   wait.Backoff
}

func defaultOptions() *options {
	return &options{
		workers:   1,
		batchSize: 1000,
		sink:      metrics.PrometheusSink{},
		backoff:   util.DefaultRetryBackoff,
	}
}

// Option to apply to the driver.
type Option func(*options) error

// WithWorkers sets the number of keys processed in parallel.
func WithWorkers(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return fmt.Errorf("number of workers must be positive, got %d", n)
		}
		o.workers = n
		return nil
	}
}

// WithBatchSize sets the number of elements buffered before they are processed.
func WithBatchSize(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return fmt.Errorf("batch size must be positive, got %d", n)
		}
		o.batchSize = n
		return nil
	}
}

// WithMetricsSink sets the sink the counters are reported to.
func WithMetricsSink(sink reduce.MetricsSink) Option {
	return func(o *options) error {
		o.sink = sink
		return nil
	}
}

// WithRetryBackoff sets the backoff of transient failures.
func WithRetryBackoff(b wait.Backoff) Option {
	return func(o *options) error {
		o.backoff = b
		return nil
	}
}
