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
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/numaproj/reducefn/pkg/metrics"
	"github.com/numaproj/reducefn/pkg/reduce"
	"github.com/numaproj/reducefn/pkg/shared/logging"
	"github.com/numaproj/reducefn/pkg/state"
	"github.com/numaproj/reducefn/pkg/timer"
	"github.com/numaproj/reducefn/pkg/watermark"
)

// KeyedWorkItem is the input of one invocation, the elements and the fired timers of a key.
type KeyedWorkItem struct {
	Key      string
	Elements []reduce.Element
	Timers   []timer.Data
}

// Processor processes keyed work items.
type Processor interface {
	// Process runs one invocation and returns the panes it emitted. No pane is returned unless the state of the
	// invocation is committed.
	Process(ctx context.Context, item KeyedWorkItem) ([]reduce.Pane, error)
}

// DoFn is the group also by window function of a step. It is stateless, all the state of a key lives in the store.
type DoFn struct {
	strategy *reduce.WindowingStrategy
	store    state.Store
	timers   timer.Service
	fetcher  watermark.Fetcher
	opts     *options
	counters InvocationSink
}

var _ Processor = (*DoFn)(nil)

// NewDoFn returns a DoFn for the strategy.
func NewDoFn(strategy *reduce.WindowingStrategy, store state.Store, timers timer.Service, fetcher watermark.Fetcher, opts ...Option) (*DoFn, error) {
	if strategy == nil || store == nil || timers == nil || fetcher == nil {
		return nil, fmt.Errorf("strategy, store, timer service and watermark fetcher are required")
	}
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	counters, ok := o.sink.(InvocationSink)
	if !ok {
		counters = noopInvocationSink{}
	}
	return &DoFn{
		strategy: strategy,
		store:    store,
		timers:   timers,
		fetcher:  fetcher,
		opts:     o,
		counters: counters,
	}, nil
}

// Process drives a runner through the elements and timers of the item and persists it.
func (d *DoFn) Process(ctx context.Context, item KeyedWorkItem) ([]reduce.Pane, error) {
	log := logging.FromContext(ctx).With(zap.String("key", item.Key), zap.String("invocation", uuid.NewString()))
	ctx = logging.WithLogger(ctx, log)
	d.counters.InvocationStarted(item.Key)

	progress := reduce.Progress{
		Watermark: d.fetcher.GetWatermark().Time(),
		Now:       d.opts.clock.Now(),
	}
	log.Debugw("Invocation started", zap.Int("elements", len(item.Elements)), zap.Int("timers", len(item.Timers)), zap.Time("watermark", progress.Watermark))

	panes, err := d.invoke(ctx, item, progress)
	if err != nil {
		reason := metrics.ReasonTransient
		if reduce.IsFatal(err) {
			reason = metrics.ReasonFatal
		}
		d.counters.InvocationFailed(item.Key, reason)
		return nil, fmt.Errorf("invocation of key %q failed, %w", item.Key, err)
	}
	log.Debugw("Invocation done", zap.Int("panes", len(panes)))
	return panes, nil
}

func (d *DoFn) invoke(ctx context.Context, item KeyedWorkItem, progress reduce.Progress) ([]reduce.Pane, error) {
	runner, err := reduce.NewRunner(ctx, item.Key, d.strategy, d.store, d.timers, progress, reduce.WithMetricsSink(d.opts.sink))
	if err != nil {
		return nil, err
	}
	if err := runner.ProcessElements(ctx, item.Elements); err != nil {
		return nil, err
	}
	for _, t := range item.Timers {
		if err := runner.OnTimer(ctx, t); err != nil {
			return nil, err
		}
	}
	start := time.Now()
	panes, err := runner.Persist(ctx)
	d.counters.Persisted(item.Key, d.store.Name(), time.Since(start))
	return panes, err
}
