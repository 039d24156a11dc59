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

// Package driver runs a windowing strategy over a stream of JSON line events. Elements are buffered and processed
// per key when the watermark or the processing time moves, the timers that became due are then delivered to their
// keys and the emitted panes are written as JSON lines.
package driver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/numaproj/reducefn/pkg/gabw"
	"github.com/numaproj/reducefn/pkg/reduce"
	"github.com/numaproj/reducefn/pkg/shared/logging"
	"github.com/numaproj/reducefn/pkg/state"
	"github.com/numaproj/reducefn/pkg/timer"
	timerinmem "github.com/numaproj/reducefn/pkg/timer/inmem"
	"github.com/numaproj/reducefn/pkg/watermark"
)

// maxFiringRounds bounds the rounds of timers fired for one progress update, a round may set timers that are
// already due.
const maxFiringRounds = 16

// Driver feeds events to the group also by window step.
type Driver struct {
	pool    *gabw.Pool
	timers  *timerinmem.Scheduler
	fetcher *watermark.ManualFetcher
	clock   *eventClock
	opts    *options

	// pending elements, keys in order of arrival
	keys     []string
	elements map[string][]reduce.Element
	buffered int
}

// New returns a driver that runs the strategy on the store.
func New(strategy *reduce.WindowingStrategy, store state.Store, opts ...Option) (*Driver, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	d := &Driver{
		timers:   timerinmem.NewScheduler(),
		fetcher:  watermark.NewManualFetcher(),
		clock:    &eventClock{now: time.UnixMilli(0).UTC()},
		opts:     o,
		elements: make(map[string][]reduce.Element),
	}
	doFn, err := gabw.NewDoFn(strategy, store, d.timers, d.fetcher,
		gabw.WithMetricsSink(o.sink),
		gabw.WithProcessingClock(watermark.NewProcessingClock(d.clock)))
	if err != nil {
		return nil, err
	}
	if d.pool, err = gabw.NewPool(gabw.NewRetryingProcessor(doFn, o.backoff), o.workers); err != nil {
		return nil, err
	}
	return d, nil
}

// Run reads events from in until it is exhausted and writes the panes to out. The elements left in the buffer are
// processed at the end, the timers that are not due yet stay pending.
func (d *Driver) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	log := logging.FromContext(ctx).Named("driver")
	ctx = logging.WithLogger(ctx, log)
	events := make(chan Event)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(events)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
		line := 0
		for scanner.Scan() {
			line++
			if len(scanner.Bytes()) == 0 {
				continue
			}
			e, err := parseEvent(scanner.Bytes())
			if err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}
			select {
			case events <- e:
			case <-gCtx.Done():
				return gCtx.Err()
			}
		}
		return scanner.Err()
	})
	g.Go(func() error {
		enc := json.NewEncoder(out)
		for e := range events {
			panes, err := d.handle(gCtx, e)
			if err != nil {
				return err
			}
			if err := write(enc, panes); err != nil {
				return err
			}
		}
		if gCtx.Err() != nil {
			return gCtx.Err()
		}
		panes, err := d.flush(gCtx)
		if err != nil {
			return err
		}
		return write(enc, panes)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	log.Infow("Driver finished", zap.String("watermark", d.fetcher.GetWatermark().String()), zap.Int("pendingTimers", d.timers.Len()))
	return nil
}

func write(enc *json.Encoder, panes []reduce.Pane) error {
	for _, p := range panes {
		if err := enc.Encode(newOutput(p)); err != nil {
			return fmt.Errorf("failed to write pane, %w", err)
		}
	}
	return nil
}

func (d *Driver) handle(ctx context.Context, e Event) ([]reduce.Pane, error) {
	switch e.Type {
	case EventTypeElement:
		if _, ok := d.elements[e.Key]; !ok {
			d.keys = append(d.keys, e.Key)
		}
		d.elements[e.Key] = append(d.elements[e.Key], reduce.Element{Value: []byte(e.Value), Timestamp: e.Time()})
		d.buffered++
		if d.buffered >= d.opts.batchSize {
			return d.flush(ctx)
		}
		return nil, nil
	case EventTypeWatermark:
		panes, err := d.flush(ctx)
		if err != nil {
			return nil, err
		}
		if !d.fetcher.Advance(e.Time()) {
			return panes, nil
		}
		fired, err := d.fire(ctx, func() map[string][]timer.Data {
			return d.timers.FireEventTimers(d.fetcher.GetWatermark().Time())
		})
		return append(panes, fired...), err
	case EventTypeProcessingTime:
		panes, err := d.flush(ctx)
		if err != nil {
			return nil, err
		}
		if !d.clock.advance(e.Time()) {
			return panes, nil
		}
		fired, err := d.fire(ctx, func() map[string][]timer.Data {
			return d.timers.FireProcessingTimers(d.clock.Now())
		})
		return append(panes, fired...), err
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
}

// flush processes the buffered elements, one work item per key.
func (d *Driver) flush(ctx context.Context) ([]reduce.Pane, error) {
	if d.buffered == 0 {
		return nil, nil
	}
	items := make([]gabw.KeyedWorkItem, 0, len(d.keys))
	for _, key := range d.keys {
		items = append(items, gabw.KeyedWorkItem{Key: key, Elements: d.elements[key]})
	}
	d.keys = nil
	d.elements = make(map[string][]reduce.Element)
	d.buffered = 0
	return d.pool.Process(ctx, items)
}

// fire delivers the due timers until no timer is due.
func (d *Driver) fire(ctx context.Context, due func() map[string][]timer.Data) ([]reduce.Pane, error) {
	var panes []reduce.Pane
	for round := 0; round < maxFiringRounds; round++ {
		fired := due()
		if len(fired) == 0 {
			return panes, nil
		}
		keys := make([]string, 0, len(fired))
		for key := range fired {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		items := make([]gabw.KeyedWorkItem, 0, len(keys))
		for _, key := range keys {
			items = append(items, gabw.KeyedWorkItem{Key: key, Timers: fired[key]})
		}
		out, err := d.pool.Process(ctx, items)
		if err != nil {
			return nil, err
		}
		panes = append(panes, out...)
	}
	logging.FromContext(ctx).Warnw("Timers are still due after the maximum number of rounds", zap.Int("rounds", maxFiringRounds))
	return panes, nil
}
