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

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/numaproj/reducefn/pkg/apis"
	"github.com/numaproj/reducefn/pkg/shared/logging"
	"github.com/numaproj/reducefn/pkg/state"
	"github.com/numaproj/reducefn/pkg/timer"
	"github.com/numaproj/reducefn/pkg/trigger"
	"github.com/numaproj/reducefn/pkg/window"
)

// Element is a value of the key with its event time.
type Element struct {
	Value     []byte
	Timestamp time.Time
}

// Progress is the progress of the key partition an invocation runs at. It does not change during the invocation.
type Progress struct {
	// Watermark is the input watermark.
	Watermark time.Time
	// Now is the processing time.
	Now time.Time
}

type runnerOptions struct {
	sink MetricsSink
}

// RunnerOption to apply to the runner.
type RunnerOption func(*runnerOptions)

// WithMetricsSink sets the sink the counters of the invocation are reported to.
func WithMetricsSink(sink MetricsSink) RunnerOption {
	return func(o *runnerOptions) {
		if sink != nil {
			o.sink = sink
		}
	}
}

// Runner runs a single invocation of a key. It loads the committed state of the key when created, ProcessElements
// and OnTimer work on a copy of it, Persist commits the copy and releases the panes. A Runner must not be reused
// once Persist was called, a failed invocation is retried with a new Runner.
type Runner struct {
	key       string
	strategy  *WindowingStrategy
	store     state.Store
	timers    timer.Service
	progress  Progress
	sink      MetricsSink
	committed map[string]*state.WindowState
	windows   map[string]*state.WindowState
	// touched are the windows changed by the invocation
	touched   map[string]struct{}
	panes     []Pane
	stats     Stats
	persisted bool
	log       *zap.SugaredLogger
}

// NewRunner loads the state of the key and returns a runner evaluating it at the given progress.
func NewRunner(ctx context.Context, key string, strategy *WindowingStrategy, store state.Store, timers timer.Service, progress Progress, opts ...RunnerOption) (*Runner, error) {
	o := &runnerOptions{sink: NoopSink()}
	for _, opt := range opts {
		opt(o)
	}
	committed, err := state.Load(ctx, store, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load the state of key %q, %w", key, err)
	}
	windows := make(map[string]*state.WindowState, len(committed))
	for id, ws := range committed {
		windows[id] = ws.Clone()
	}
	return &Runner{
		key:      key,
		strategy: strategy,
		store:    store,
		timers:   timers,
		progress: Progress{
			Watermark: time.UnixMilli(progress.Watermark.UnixMilli()).UTC(),
			Now:       time.UnixMilli(progress.Now.UnixMilli()).UTC(),
		},
		sink:      o.sink,
		committed: committed,
		windows:   windows,
		touched:   make(map[string]struct{}),
		log:       logging.FromContext(ctx).With("key", key),
	}, nil
}

func (r *Runner) input(w window.Window) trigger.Input {
	return trigger.Input{Window: w, Watermark: r.progress.Watermark, Now: r.progress.Now}
}

// expired reports whether the allowed lateness of the window elapsed.
func (r *Runner) expired(w window.Window) bool {
	return r.strategy.GarbageCollectionTime(w).Before(r.progress.Watermark)
}

type assignment struct {
	element Element
	windows []window.Window
}

// ProcessElements adds the elements to their windows and evaluates the triggers after every element. Elements of
// expired windows and of windows whose trigger finished are counted and dropped.
func (r *Runner) ProcessElements(ctx context.Context, elements []Element) error {
	if r.persisted {
		return ErrAlreadyPersisted
	}
	batch := make([]assignment, 0, len(elements))
	for _, e := range elements {
		a := assignment{element: e}
		for _, w := range r.strategy.assigner.AssignWindows(e.Timestamp) {
			if r.expired(w) {
				r.stats.DroppedDueToLateness++
				r.log.Debugw("Dropping late element", zap.String("window", w.String()), zap.Int64("eventTime", e.Timestamp.UnixMilli()), zap.Int64("watermark", r.progress.Watermark.UnixMilli()))
				continue
			}
			a.windows = append(a.windows, w)
		}
		batch = append(batch, a)
	}

	var merged map[string]window.Window
	if r.strategy.IsMerging() {
		var err error
		if merged, err = r.mergeWindows(batch); err != nil {
			return err
		}
	}

	for _, a := range batch {
		for _, w := range a.windows {
			if to, ok := merged[w.ID()]; ok {
				w = to
			}
			if err := r.processElement(a.element, w); err != nil {
				return err
			}
		}
	}
	return nil
}

// mergeWindows merges the new windows of the batch with the windows of the key. It returns the window every merged
// window was folded into.
func (r *Runner) mergeWindows(batch []assignment) (map[string]window.Window, error) {
	list := window.NewSortedWindowList()
	for _, ws := range r.windows {
		list.InsertIfNotPresent(ws.Window)
	}
	for _, a := range batch {
		for _, w := range a.windows {
			list.InsertIfNotPresent(w)
		}
	}
	windows := list.Items()
	plan, err := r.strategy.merger.MergeWindows(windows)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to merge the windows of key %q, %v", window.ErrInvalidWindowing, r.key, err)
	}
	if err := window.ValidateMergePlan(windows, plan); err != nil {
		return nil, err
	}
	merged := make(map[string]window.Window)
	for _, m := range plan {
		for _, from := range m.From {
			merged[from.ID()] = m.To
		}
		if err := r.merge(m); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

// merge folds the state of the windows of the merge into the resulting window.
func (r *Runner) merge(m window.MergeResult) error {
	var sources []*state.WindowState
	for _, from := range m.From {
		if ws, ok := r.windows[from.ID()]; ok {
			sources = append(sources, ws)
		}
	}
	if len(sources) == 0 {
		// only new windows
		return nil
	}
	sort.Slice(sources, func(i, j int) bool {
		a, b := sources[i].Window, sources[j].Window
		if a.StartTime().Equal(b.StartTime()) {
			return a.EndTime().Before(b.EndTime())
		}
		return a.StartTime().Before(b.StartTime())
	})

	in := r.input(m.To)
	states := make([]*trigger.State, len(sources))
	for i, ws := range sources {
		states[i] = ws.Trigger
	}
	ts, err := r.strategy.evaluator.OnMerge(in, states)
	if err != nil {
		return fmt.Errorf("failed to merge %d window(s) into %s for key %q, %w", len(m.From), m.To, r.key, err)
	}
	result := &state.WindowState{Window: m.To, Trigger: ts}
	if err := r.strategy.reduceFn.Merge(result, sources); err != nil {
		return fmt.Errorf("%w: failed to merge the contents of window %s for key %q, %v", ErrInvalidElement, m.To, r.key, err)
	}
	for _, ws := range sources {
		result.ElementsSincePane += ws.ElementsSincePane
		if ws.Pane.Index > result.Pane.Index {
			result.Pane.Index = ws.Pane.Index
		}
		if ws.Pane.NonSpeculativeIndex > result.Pane.NonSpeculativeIndex {
			result.Pane.NonSpeculativeIndex = ws.Pane.NonSpeculativeIndex
		}
		result.Pane.OnTimeEmitted = result.Pane.OnTimeEmitted || ws.Pane.OnTimeEmitted
		delete(r.windows, ws.Window.ID())
		delete(r.touched, ws.Window.ID())
	}
	// the merged window may end after the watermark
	result.Pane.OnTimeEmitted = result.Pane.OnTimeEmitted && in.EndOfWindowReached()
	r.windows[m.To.ID()] = result
	r.touched[m.To.ID()] = struct{}{}
	r.log.Debugw("Merged windows", zap.Int("sources", len(sources)), zap.String("window", m.To.String()), zap.String("trigger", r.strategy.evaluator.Status(ts).String()))
	return nil
}

func (r *Runner) processElement(e Element, w window.Window) error {
	id := w.ID()
	ws, ok := r.windows[id]
	if ok && r.strategy.evaluator.IsFinished(ws.Trigger) {
		r.stats.DroppedDueToClosedWindow++
		r.log.Debugw("Dropping element of a closed window", zap.String("window", w.String()), zap.Int64("eventTime", e.Timestamp.UnixMilli()))
		return nil
	}
	if !ok {
		ws = &state.WindowState{Window: w, Trigger: r.strategy.evaluator.NewState()}
		r.windows[id] = ws
	}
	r.touched[id] = struct{}{}
	if err := r.strategy.reduceFn.Add(ws, e.Value); err != nil {
		return fmt.Errorf("%w: failed to add an element to window %s of key %q, %v", ErrInvalidElement, w, r.key, err)
	}
	ws.ElementsSincePane++
	res, err := r.strategy.evaluator.OnElement(ws.Trigger, r.input(w), 1)
	if err != nil {
		return fmt.Errorf("failed to evaluate the trigger of window %s of key %q, %w", w, r.key, err)
	}
	return r.onTrigger(ws, res)
}

// OnTimer re-evaluates the trigger of the window of the timer, and deletes the window once it expired. Timers of
// windows without state are ignored, they were registered before the window was merged or deleted.
func (r *Runner) OnTimer(_ context.Context, t timer.Data) error {
	if r.persisted {
		return ErrAlreadyPersisted
	}
	id := t.Window.ID()
	ws, ok := r.windows[id]
	if !ok {
		r.log.Debugw("Ignoring timer of a window without state", zap.String("timer", t.String()))
		return nil
	}
	r.touched[id] = struct{}{}
	if !r.strategy.evaluator.IsFinished(ws.Trigger) {
		res, err := r.strategy.evaluator.OnTimer(ws.Trigger, r.input(ws.Window))
		if err != nil {
			return fmt.Errorf("failed to evaluate the trigger of window %s of key %q, %w", ws.Window, r.key, err)
		}
		if err := r.onTrigger(ws, res); err != nil {
			return err
		}
	}
	gcTime := r.strategy.GarbageCollectionTime(ws.Window)
	if (t.Domain == timer.EventTime && !t.Timestamp.Before(gcTime)) || gcTime.Before(r.progress.Watermark) {
		return r.garbageCollect(ws)
	}
	return nil
}

func (r *Runner) onTrigger(ws *state.WindowState, res trigger.Result) error {
	if res.ShouldFire {
		if err := r.emit(ws, res.ShouldFinish, false); err != nil {
			return err
		}
	}
	if res.ShouldFinish {
		// a finished window keeps its trigger state until it is deleted, to tell closed windows apart
		r.strategy.reduceFn.Clear(ws)
		ws.ElementsSincePane = 0
	}
	return nil
}

// emit buffers a pane of the window. A pane without elements added since the previous pane is only emitted when it
// is the on time pane or the last pane of a finishing trigger. The closing pane of garbage collection always needs
// new elements.
func (r *Runner) emit(ws *state.WindowState, isLast, closing bool) error {
	timing := Late
	switch {
	case !r.input(ws.Window).EndOfWindowReached():
		timing = Early
	case !ws.Pane.OnTimeEmitted:
		timing = OnTime
	}
	if ws.ElementsSincePane == 0 && (closing || (!isLast && timing != OnTime)) {
		return nil
	}
	values, err := r.strategy.reduceFn.Output(ws)
	if err != nil {
		return fmt.Errorf("%w: failed to extract the output of window %s of key %q, %v", ErrInvalidElement, ws.Window, r.key, err)
	}
	info := PaneInfo{
		Index:               ws.Pane.Index,
		NonSpeculativeIndex: -1,
		IsFirst:             ws.Pane.Index == 0,
		IsLast:              isLast,
		Timing:              timing,
	}
	if timing == OnTime {
		ws.Pane.OnTimeEmitted = true
	}
	if info.Timing != Early {
		info.NonSpeculativeIndex = ws.Pane.NonSpeculativeIndex
		ws.Pane.NonSpeculativeIndex++
	}
	ws.Pane.Index++
	ws.ElementsSincePane = 0
	if r.strategy.mode == apis.AccumulationModeDiscarding {
		r.strategy.reduceFn.Clear(ws)
	}
	r.panes = append(r.panes, Pane{Key: r.key, Window: ws.Window, Values: values, Info: info})
	r.stats.PanesEmitted++
	r.log.Debugw("Emitting pane", zap.String("window", ws.Window.String()), zap.String("pane", info.String()), zap.Int("values", len(values)))
	return nil
}

// garbageCollect deletes the window, after a last pane if elements were not emitted yet.
func (r *Runner) garbageCollect(ws *state.WindowState) error {
	if !r.strategy.evaluator.IsFinished(ws.Trigger) {
		if err := r.emit(ws, true, true); err != nil {
			return err
		}
	}
	delete(r.windows, ws.Window.ID())
	r.stats.WindowsGarbageCollected++
	r.log.Debugw("Garbage collected window", zap.String("window", ws.Window.String()), zap.Int64("watermark", r.progress.Watermark.UnixMilli()))
	return nil
}

// timersFor returns the timers the window needs. The event time timer is the end of window timer while the trigger
// waits for it, otherwise the garbage collection timer. The processing time timer follows the trigger deadline.
func (r *Runner) timersFor(ws *state.WindowState) []timer.Data {
	w := ws.Window
	finished := r.strategy.evaluator.IsFinished(ws.Trigger)
	var timers []timer.Data
	if !finished && !r.input(w).EndOfWindowReached() {
		timers = append(timers, timer.NewEventTimer(w, timer.EndOfWindow, w.MaxTimestamp()))
	} else {
		timers = append(timers, timer.NewEventTimer(w, timer.GarbageCollection, r.strategy.GarbageCollectionTime(w)))
	}
	if !finished {
		if d, ok := r.strategy.evaluator.NextDeadline(ws.Trigger); ok {
			timers = append(timers, timer.NewProcessingTimer(w, d))
		}
	}
	return timers
}

// Persist registers the timers of the changed windows, commits the state of the key and returns the panes of the
// invocation. Timers are registered first, a failed commit leaves at most timers of windows without state behind,
// which are ignored when they fire.
func (r *Runner) Persist(ctx context.Context) ([]Pane, error) {
	if r.persisted {
		return nil, ErrAlreadyPersisted
	}
	r.persisted = true

	ids := make([]string, 0, len(r.touched))
	for id := range r.touched {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if ws, ok := r.windows[id]; ok {
			ws.Timers = r.timersFor(ws)
		}
	}
	mutations, err := state.Diff(r.committed, r.windows, r.touched)
	if err != nil {
		return nil, err
	}
	if err := r.reconcileTimers(ctx, ids); err != nil {
		return nil, err
	}
	if err := state.Commit(ctx, r.store, r.key, mutations); err != nil {
		return nil, err
	}
	r.report()
	r.log.Debugw("Persisted", zap.Int("mutations", len(mutations)), zap.Int("panes", len(r.panes)), zap.Int("windows", len(r.windows)))
	return r.panes, nil
}

// reconcileTimers sets the timers of the changed windows and deletes the timers of the deleted ones.
func (r *Runner) reconcileTimers(ctx context.Context, touched []string) error {
	var errs error
	for _, id := range touched {
		ws, ok := r.windows[id]
		if !ok {
			continue
		}
		domains := map[timer.Domain]bool{timer.EventTime: false, timer.ProcessingTime: false}
		for _, t := range ws.Timers {
			domains[t.Domain] = true
			errs = multierr.Append(errs, r.timers.SetTimer(ctx, r.key, t))
		}
		for _, d := range []timer.Domain{timer.EventTime, timer.ProcessingTime} {
			if !domains[d] {
				errs = multierr.Append(errs, r.timers.DeleteTimer(ctx, r.key, ws.Window, d))
			}
		}
	}
	deleted := make([]*state.WindowState, 0)
	for id, ws := range r.committed {
		if _, ok := r.windows[id]; !ok {
			deleted = append(deleted, ws)
		}
	}
	sort.Slice(deleted, func(i, j int) bool {
		return state.WindowStateID(deleted[i].Window) < state.WindowStateID(deleted[j].Window)
	})
	for _, ws := range deleted {
		for _, t := range ws.Timers {
			errs = multierr.Append(errs, r.timers.DeleteTimer(ctx, r.key, ws.Window, t.Domain))
		}
	}
	if errs != nil {
		return fmt.Errorf("failed to reconcile the timers of key %q, %w", r.key, errs)
	}
	return nil
}

func (r *Runner) report() {
	if r.stats.DroppedDueToLateness > 0 {
		r.sink.DroppedDueToLateness(r.key, r.stats.DroppedDueToLateness)
	}
	if r.stats.DroppedDueToClosedWindow > 0 {
		r.sink.DroppedDueToClosedWindow(r.key, r.stats.DroppedDueToClosedWindow)
	}
	for _, p := range r.panes {
		r.sink.PaneEmitted(r.key, p.Info)
	}
	if r.stats.WindowsGarbageCollected > 0 {
		r.sink.WindowsGarbageCollected(r.key, r.stats.WindowsGarbageCollected)
	}
}

// Stats returns the counters of the invocation so far.
func (r *Runner) Stats() Stats {
	return r.stats
}

// Windows returns the windows of the key with state, in the order of their start.
func (r *Runner) Windows() []window.Window {
	list := window.NewSortedWindowList()
	for _, ws := range r.windows {
		list.InsertIfNotPresent(ws.Window)
	}
	return list.Items()
}

// WindowState returns the working copy of the state of the window.
func (r *Runner) WindowState(w window.Window) (*state.WindowState, bool) {
	ws, ok := r.windows[w.ID()]
	return ws, ok
}
