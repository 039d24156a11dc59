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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/reducefn/pkg/apis"
	"github.com/numaproj/reducefn/pkg/state"
	stateinmem "github.com/numaproj/reducefn/pkg/state/inmem"
	"github.com/numaproj/reducefn/pkg/timer"
	timerinmem "github.com/numaproj/reducefn/pkg/timer/inmem"
	"github.com/numaproj/reducefn/pkg/trigger"
	"github.com/numaproj/reducefn/pkg/window"
	"github.com/numaproj/reducefn/pkg/window/strategy/fixed"
	"github.com/numaproj/reducefn/pkg/window/strategy/global"
	"github.com/numaproj/reducefn/pkg/window/strategy/session"
	"github.com/numaproj/reducefn/pkg/window/strategy/sliding"
)

func minute(m int) time.Time {
	return time.UnixMilli(0).UTC().Add(time.Duration(m) * time.Minute)
}

func element(value string, m int) Element {
	return Element{Value: []byte(value), Timestamp: minute(m)}
}

func values(vs ...string) [][]byte {
	out := make([][]byte, len(vs))
	for i, v := range vs {
		out[i] = []byte(v)
	}
	return out
}

type recordingSink struct {
	late, closed, gc int64
	panes            []PaneInfo
}

func (s *recordingSink) DroppedDueToLateness(_ string, n int64)     { s.late += n }
func (s *recordingSink) DroppedDueToClosedWindow(_ string, n int64) { s.closed += n }
func (s *recordingSink) PaneEmitted(_ string, info PaneInfo)        { s.panes = append(s.panes, info) }
func (s *recordingSink) WindowsGarbageCollected(_ string, n int64)  { s.gc += n }

// failingStore fails the commits while fail is set.
type failingStore struct {
	*stateinmem.Store
	fail bool
}

func (f *failingStore) Commit(ctx context.Context, key string, mutations []state.Mutation) error {
	if f.fail {
		return errors.New("store unavailable")
	}
	return f.Store.Commit(ctx, key, mutations)
}

// unbatchedStore applies commits one mutation at a time and fails the writes of the index while failIndex is set.
type unbatchedStore struct {
	inner     *stateinmem.Store
	failIndex bool
}

func (u *unbatchedStore) Read(ctx context.Context, key string, stateID string) ([]byte, error) {
	return u.inner.Read(ctx, key, stateID)
}

func (u *unbatchedStore) Write(ctx context.Context, key string, stateID string, value []byte) error {
	if u.failIndex && stateID == state.IndexStateID {
		return errors.New("store unavailable")
	}
	return u.inner.Write(ctx, key, stateID, value)
}

func (u *unbatchedStore) Clear(ctx context.Context, key string, stateID string) error {
	return u.inner.Clear(ctx, key, stateID)
}

func (u *unbatchedStore) Name() string { return "unbatched" }

func (u *unbatchedStore) Close() error { return nil }

type harness struct {
	t        *testing.T
	strategy *WindowingStrategy
	store    *failingStore
	timers   *timerinmem.Scheduler
	sink     *recordingSink
}

func newHarness(t *testing.T, assigner window.Assigner, tr trigger.Trigger, opts ...Option) *harness {
	s, err := NewWindowingStrategy(assigner, tr, opts...)
	require.NoError(t, err)
	return &harness{
		t:        t,
		strategy: s,
		store:    &failingStore{Store: stateinmem.NewStore("test")},
		timers:   timerinmem.NewScheduler(),
		sink:     &recordingSink{},
	}
}

// invoke runs a whole invocation of the key.
func (h *harness) invoke(key string, progress Progress, elements []Element, timers []timer.Data) ([]Pane, error) {
	return h.invokeOn(h.store, key, progress, elements, timers)
}

func (h *harness) invokeOn(store state.Store, key string, progress Progress, elements []Element, timers []timer.Data) ([]Pane, error) {
	ctx := context.Background()
	r, err := NewRunner(ctx, key, h.strategy, store, h.timers, progress, WithMetricsSink(h.sink))
	if err != nil {
		return nil, err
	}
	if err := r.ProcessElements(ctx, elements); err != nil {
		return nil, err
	}
	for _, t := range timers {
		if err := r.OnTimer(ctx, t); err != nil {
			return nil, err
		}
	}
	return r.Persist(ctx)
}

func (h *harness) process(key string, wm time.Time, elements ...Element) []Pane {
	panes, err := h.invoke(key, Progress{Watermark: wm, Now: wm}, elements, nil)
	require.NoError(h.t, err)
	return panes
}

// advance moves the watermark and runs the key with the event time timers that fired.
func (h *harness) advance(key string, wm time.Time) []Pane {
	fired := h.timers.FireEventTimers(wm)
	panes, err := h.invoke(key, Progress{Watermark: wm, Now: wm}, nil, fired[key])
	require.NoError(h.t, err)
	return panes
}

func TestRunner_FixedWindowsAfterWatermark(t *testing.T) {
	h := newHarness(t, fixed.NewFixed(10*time.Minute, 0), trigger.AfterWatermark())
	w := window.NewWindow(minute(0), minute(10))

	panes := h.process("k", minute(0), element("a", 1), element("b", 9))
	assert.Empty(t, panes)
	pending := h.timers.Pending("k")
	require.Len(t, pending, 1)
	assert.True(t, pending[0].Equal(timer.NewEventTimer(w, timer.EndOfWindow, w.MaxTimestamp())))

	panes = h.advance("k", minute(10))
	require.Len(t, panes, 1)
	assert.Equal(t, "k", panes[0].Key)
	assert.True(t, panes[0].Window.Equal(w))
	assert.Equal(t, values("a", "b"), panes[0].Values)
	assert.Equal(t, PaneInfo{Index: 0, NonSpeculativeIndex: 0, IsFirst: true, IsLast: true, Timing: OnTime}, panes[0].Info)
	// the window was garbage collected
	assert.Equal(t, 0, h.store.Len())
	assert.Equal(t, 0, h.timers.Len())
	assert.Equal(t, int64(1), h.sink.gc)

	panes = h.process("k", minute(10), element("c", 5))
	assert.Empty(t, panes)
	assert.Equal(t, int64(1), h.sink.late)
	assert.Equal(t, 0, h.store.Len())
}

func TestRunner_SessionWindowsMerge(t *testing.T) {
	tests := []struct {
		name    string
		batches [][]Element
	}{
		{
			name:    "separate invocations",
			batches: [][]Element{{element("a", 0)}, {element("b", 4)}},
		},
		{
			name:    "single invocation",
			batches: [][]Element{{element("a", 0), element("b", 4)}},
		},
		{
			name:    "out of order",
			batches: [][]Element{{element("b", 4)}, {element("a", 0)}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, session.NewSession(5*time.Minute), trigger.AfterWatermark())
			merged := window.NewWindow(minute(0), minute(9))
			for _, b := range tt.batches {
				assert.Empty(t, h.process("k", minute(0).Add(-time.Millisecond), b...))
			}
			pending := h.timers.Pending("k")
			require.Len(t, pending, 1)
			assert.True(t, pending[0].Window.Equal(merged))
			assert.Equal(t, timer.EndOfWindow, pending[0].ID)

			// the end of the first session does not fire anything
			assert.Empty(t, h.advance("k", minute(5)))

			panes := h.advance("k", minute(9))
			require.Len(t, panes, 1)
			assert.True(t, panes[0].Window.Equal(merged))
			assert.ElementsMatch(t, values("a", "b"), panes[0].Values)
			assert.Equal(t, OnTime, panes[0].Info.Timing)
			assert.True(t, panes[0].Info.IsLast)
			assert.Equal(t, 0, h.store.Len())
		})
	}
}

func TestRunner_RepeatedlyAfterCount(t *testing.T) {
	tests := []struct {
		name  string
		mode  apis.AccumulationMode
		panes [][][]byte
	}{
		{
			name:  "discarding",
			mode:  apis.AccumulationModeDiscarding,
			panes: [][][]byte{values("a", "b"), values("c", "d")},
		},
		{
			name:  "accumulating",
			mode:  apis.AccumulationModeAccumulating,
			panes: [][][]byte{values("a", "b"), values("a", "b", "c", "d")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, fixed.NewFixed(10*time.Minute, 0), trigger.Repeatedly(trigger.AfterCount(2)), WithAccumulationMode(tt.mode))
			panes := h.process("k", minute(0), element("a", 1), element("b", 2), element("c", 3), element("d", 4))
			require.Len(t, panes, 2)
			for i, p := range panes {
				assert.Equal(t, tt.panes[i], p.Values)
				assert.Equal(t, int64(i), p.Info.Index)
				assert.Equal(t, i == 0, p.Info.IsFirst)
				assert.False(t, p.Info.IsLast)
				assert.Equal(t, Early, p.Info.Timing)
				assert.Equal(t, int64(-1), p.Info.NonSpeculativeIndex)
			}
			assert.Len(t, h.sink.panes, 2)
			// the end of window timer is the only timer
			assert.Equal(t, 1, h.timers.Len())
		})
	}
}

func TestRunner_ClosedWindow(t *testing.T) {
	h := newHarness(t, fixed.NewFixed(10*time.Minute, 0), trigger.AfterCount(1), WithAllowedLateness(time.Minute))
	panes := h.process("k", minute(0), element("a", 1), element("b", 2))
	require.Len(t, panes, 1)
	assert.Equal(t, values("a"), panes[0].Values)
	assert.True(t, panes[0].Info.IsLast)
	assert.Equal(t, int64(1), h.sink.closed)

	// the finished window is kept until it expires
	assert.Empty(t, h.process("k", minute(5), element("c", 3)))
	assert.Equal(t, int64(2), h.sink.closed)
	pending := h.timers.Pending("k")
	require.Len(t, pending, 1)
	assert.Equal(t, timer.GarbageCollection, pending[0].ID)
	assert.True(t, minute(11).Add(-time.Millisecond).Equal(pending[0].Timestamp))

	assert.Empty(t, h.advance("k", minute(11)))
	assert.Equal(t, 0, h.store.Len())
	assert.Equal(t, 0, h.timers.Len())

	// a garbage collected window is not resurrected
	assert.Empty(t, h.process("k", minute(11), element("d", 4)))
	assert.Equal(t, int64(1), h.sink.late)
	assert.Equal(t, 0, h.store.Len())
}

func TestRunner_GarbageCollectionEmitsFinalPane(t *testing.T) {
	h := newHarness(t, fixed.NewFixed(10*time.Minute, 0), trigger.Never(), WithReduceFn(Combining(Count())))
	assert.Empty(t, h.process("k", minute(0), element("a", 1), element("b", 2), element("c", 3)))
	panes := h.advance("k", minute(10))
	require.Len(t, panes, 1)
	assert.Equal(t, values("3"), panes[0].Values)
	assert.Equal(t, PaneInfo{Index: 0, NonSpeculativeIndex: 0, IsFirst: true, IsLast: true, Timing: OnTime}, panes[0].Info)
	assert.Equal(t, 0, h.store.Len())
}

func TestRunner_AllowedLateness(t *testing.T) {
	h := newHarness(t, fixed.NewFixed(10*time.Minute, 0), trigger.Default(), WithAllowedLateness(5*time.Minute))
	assert.Empty(t, h.process("k", minute(0), element("a", 1)))

	panes := h.advance("k", minute(10))
	require.Len(t, panes, 1)
	assert.Equal(t, values("a"), panes[0].Values)
	assert.Equal(t, PaneInfo{Index: 0, NonSpeculativeIndex: 0, IsFirst: true, IsLast: false, Timing: OnTime}, panes[0].Info)
	pending := h.timers.Pending("k")
	require.Len(t, pending, 1)
	assert.Equal(t, timer.GarbageCollection, pending[0].ID)

	// late but within the allowed lateness
	panes = h.process("k", minute(12), element("b", 2))
	require.Len(t, panes, 1)
	assert.Equal(t, values("b"), panes[0].Values)
	assert.Equal(t, PaneInfo{Index: 1, NonSpeculativeIndex: 1, IsFirst: false, IsLast: false, Timing: Late}, panes[0].Info)

	// nothing left to emit when the window expires
	assert.Empty(t, h.advance("k", minute(15)))
	assert.Equal(t, 0, h.store.Len())
	assert.Equal(t, int64(1), h.sink.gc)

	assert.Empty(t, h.process("k", minute(15), element("c", 3)))
	assert.Equal(t, int64(1), h.sink.late)
}

func TestRunner_EarlyAndLateFirings(t *testing.T) {
	tr := trigger.AfterWatermark().WithEarlyFirings(trigger.AfterCount(2)).WithLateFirings(trigger.AfterCount(1))
	h := newHarness(t, fixed.NewFixed(10*time.Minute, 0), tr, WithAllowedLateness(10*time.Minute), WithAccumulationMode(apis.AccumulationModeAccumulating))

	panes := h.process("k", minute(0), element("a", 1), element("b", 2), element("c", 3))
	require.Len(t, panes, 1)
	assert.Equal(t, Early, panes[0].Info.Timing)
	assert.Equal(t, values("a", "b"), panes[0].Values)

	panes = h.advance("k", minute(10))
	require.Len(t, panes, 1)
	assert.Equal(t, OnTime, panes[0].Info.Timing)
	assert.Equal(t, values("a", "b", "c"), panes[0].Values)
	assert.Equal(t, int64(1), panes[0].Info.Index)

	panes = h.process("k", minute(11), element("d", 4))
	require.Len(t, panes, 1)
	assert.Equal(t, Late, panes[0].Info.Timing)
	assert.Equal(t, values("a", "b", "c", "d"), panes[0].Values)
	assert.Equal(t, int64(2), panes[0].Info.Index)
	assert.Equal(t, int64(1), panes[0].Info.NonSpeculativeIndex)
}

func TestRunner_OnTimePaneWithoutNewElements(t *testing.T) {
	tests := []struct {
		name   string
		mode   apis.AccumulationMode
		onTime [][]byte
	}{
		{
			name:   "accumulating",
			mode:   apis.AccumulationModeAccumulating,
			onTime: values("a"),
		},
		{
			name:   "discarding",
			mode:   apis.AccumulationModeDiscarding,
			onTime: values(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := trigger.AfterWatermark().WithEarlyFirings(trigger.AfterCount(1))
			h := newHarness(t, fixed.NewFixed(10*time.Minute, 0), tr, WithAllowedLateness(5*time.Minute), WithAccumulationMode(tt.mode))

			panes := h.process("k", minute(0), element("a", 1))
			require.Len(t, panes, 1)
			assert.Equal(t, Early, panes[0].Info.Timing)
			assert.False(t, panes[0].Info.IsLast)

			// every element was emitted early, the on time pane still closes the window
			panes = h.advance("k", minute(10))
			require.Len(t, panes, 1)
			assert.Equal(t, tt.onTime, panes[0].Values)
			assert.Equal(t, PaneInfo{Index: 1, NonSpeculativeIndex: 0, IsFirst: false, IsLast: true, Timing: OnTime}, panes[0].Info)

			// nothing is left for garbage collection
			assert.Empty(t, h.advance("k", minute(16)))
			assert.Equal(t, 0, h.store.Len())
			assert.Equal(t, int64(1), h.sink.gc)
			assert.Len(t, h.sink.panes, 2)
		})
	}
}

func TestRunner_ProcessingTimeTrigger(t *testing.T) {
	h := newHarness(t, fixed.NewFixed(10*time.Minute, 0), trigger.Repeatedly(trigger.AfterProcessingTime(time.Minute)))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	panes, err := h.invoke("k", Progress{Watermark: minute(0), Now: start}, []Element{element("a", 1)}, nil)
	require.NoError(t, err)
	assert.Empty(t, panes)
	pending := h.timers.Pending("k")
	require.Len(t, pending, 2)
	assert.Equal(t, timer.ProcessingTime, pending[1].Domain)
	assert.True(t, start.Add(time.Minute).Equal(pending[1].Timestamp))

	fired := h.timers.FireProcessingTimers(start.Add(time.Minute))
	require.Len(t, fired["k"], 1)
	panes, err = h.invoke("k", Progress{Watermark: minute(0), Now: start.Add(time.Minute)}, nil, fired["k"])
	require.NoError(t, err)
	require.Len(t, panes, 1)
	assert.Equal(t, values("a"), panes[0].Values)
	assert.Equal(t, Early, panes[0].Info.Timing)

	// the deadline is re-armed by the next element
	pending = h.timers.Pending("k")
	require.Len(t, pending, 1)
	assert.Equal(t, timer.EventTime, pending[0].Domain)
}

func TestRunner_SlidingWindows(t *testing.T) {
	h := newHarness(t, sliding.NewSliding(10*time.Minute, 5*time.Minute, 0), trigger.AfterWatermark(), WithReduceFn(Combining(Count())))
	assert.Empty(t, h.process("k", minute(0), element("a", 7), element("b", 12)))
	assert.Equal(t, 3, h.timers.Len())

	panes := h.advance("k", minute(10))
	require.Len(t, panes, 1)
	assert.True(t, panes[0].Window.Equal(window.NewWindow(minute(0), minute(10))))
	assert.Equal(t, values("1"), panes[0].Values)

	panes = h.advance("k", minute(20))
	require.Len(t, panes, 2)
	assert.True(t, panes[0].Window.Equal(window.NewWindow(minute(5), minute(15))))
	assert.Equal(t, values("2"), panes[0].Values)
	assert.True(t, panes[1].Window.Equal(window.NewWindow(minute(10), minute(20))))
	assert.Equal(t, values("1"), panes[1].Values)
	assert.Equal(t, 0, h.store.Len())
}

func TestRunner_GlobalWindow(t *testing.T) {
	h := newHarness(t, global.NewGlobal(), trigger.Repeatedly(trigger.AfterCount(2)),
		WithReduceFn(Combining(SumInt64())), WithAccumulationMode(apis.AccumulationModeAccumulating))
	panes := h.process("k", minute(0), element("1", 1), element("2", 2), element("3", 3))
	require.Len(t, panes, 1)
	assert.Equal(t, values("3"), panes[0].Values)
	panes = h.process("k", minute(100), element("4", 100))
	require.Len(t, panes, 1)
	assert.Equal(t, values("10"), panes[0].Values)
	assert.True(t, panes[0].Window.IsGlobal())
}

func TestRunner_MergeFinishedWindow(t *testing.T) {
	h := newHarness(t, session.NewSession(5*time.Minute), trigger.AfterWatermark(), WithAllowedLateness(10*time.Minute))
	assert.Empty(t, h.process("k", minute(0), element("a", 0)))
	panes := h.advance("k", minute(5))
	require.Len(t, panes, 1)

	// a new session overlapping the finished one is closed as well
	assert.Empty(t, h.process("k", minute(5), element("b", 3)))
	assert.Equal(t, int64(1), h.sink.closed)
	r, err := NewRunner(context.Background(), "k", h.strategy, h.store, h.timers, Progress{Watermark: minute(5)})
	require.NoError(t, err)
	windows := r.Windows()
	require.Len(t, windows, 1)
	assert.True(t, windows[0].Equal(window.NewWindow(minute(0), minute(8))))
}

func TestRunner_MergeConflict(t *testing.T) {
	h := newHarness(t, session.NewSession(5*time.Minute), trigger.AfterWatermark(), WithAllowedLateness(10*time.Minute))
	assert.Empty(t, h.process("k", minute(0), element("a", 0)))
	require.Len(t, h.advance("k", minute(5)), 1)
	assert.Empty(t, h.process("k", minute(5), element("b", 7)))
	before := h.store.Snapshot()

	// [4, 9) bridges the finished [0, 5) and the active [7, 12)
	_, err := h.invoke("k", Progress{Watermark: minute(5), Now: minute(5)}, []Element{element("c", 4)}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMergeConflict)
	assert.True(t, IsFatal(err))
	assert.Equal(t, before, h.store.Snapshot())
}

func TestRunner_IdempotentReplay(t *testing.T) {
	elements := []Element{element("a", 1), element("b", 2), element("c", 3), element("d", 4), element("e", 5)}
	run := func(failFirst bool) (*harness, []Pane) {
		h := newHarness(t, fixed.NewFixed(10*time.Minute, 0), trigger.Repeatedly(trigger.AfterCount(2)))
		assert.Empty(t, h.process("k", minute(0), element("x", 0)))
		if failFirst {
			h.store.fail = true
			panes, err := h.invoke("k", Progress{Watermark: minute(0)}, elements, nil)
			require.Error(t, err)
			assert.False(t, IsFatal(err))
			assert.Nil(t, panes)
			h.store.fail = false
		}
		panes, err := h.invoke("k", Progress{Watermark: minute(0)}, elements, nil)
		require.NoError(t, err)
		return h, panes
	}
	reference, expected := run(false)
	retried, got := run(true)
	assert.Equal(t, expected, got)
	assert.Len(t, got, 3)
	assert.Equal(t, reference.store.Snapshot(), retried.store.Snapshot())
	assert.Equal(t, reference.timers.Pending("k"), retried.timers.Pending("k"))
	// the failed attempt is not counted
	assert.Equal(t, reference.sink.panes, retried.sink.panes)
}

func TestRunner_RetryAfterPartialCommit(t *testing.T) {
	tests := []struct {
		name    string
		initial Element
		retried Element
		merged  window.Window
	}{
		{
			name:    "merged session",
			initial: element("a", 1),
			retried: element("b", 4),
			merged:  window.NewWindow(minute(1), minute(9)),
		},
		{
			name:    "grown session",
			initial: element("a", 1),
			retried: element("b", 1),
			merged:  window.NewWindow(minute(1), minute(6)),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, session.NewSession(5*time.Minute), trigger.AfterWatermark())
			store := &unbatchedStore{inner: stateinmem.NewStore("unbatched")}
			progress := Progress{Watermark: minute(0)}
			_, err := h.invokeOn(store, "k", progress, []Element{tt.initial}, nil)
			require.NoError(t, err)

			store.failIndex = true
			_, err = h.invokeOn(store, "k", progress, []Element{tt.retried}, nil)
			require.Error(t, err)
			store.failIndex = false
			_, err = h.invokeOn(store, "k", progress, []Element{tt.retried}, nil)
			require.NoError(t, err)

			windows, err := state.Load(context.Background(), store, "k")
			require.NoError(t, err)
			require.Len(t, windows, 1)
			ws := windows[tt.merged.ID()]
			require.NotNil(t, ws)
			assert.ElementsMatch(t, values("a", "b"), ws.Values)

			fired := h.timers.FireEventTimers(tt.merged.EndTime())
			panes, err := h.invokeOn(store, "k", Progress{Watermark: tt.merged.EndTime()}, nil, fired["k"])
			require.NoError(t, err)
			require.Len(t, panes, 1)
			assert.ElementsMatch(t, values("a", "b"), panes[0].Values)
			assert.Equal(t, 0, store.inner.Len())
		})
	}
}

func TestRunner_StaleTimer(t *testing.T) {
	h := newHarness(t, fixed.NewFixed(10*time.Minute, 0), trigger.AfterWatermark())
	w := window.NewWindow(minute(0), minute(10))
	panes, err := h.invoke("k", Progress{Watermark: minute(10)}, nil, []timer.Data{timer.NewEventTimer(w, timer.EndOfWindow, w.MaxTimestamp())})
	assert.NoError(t, err)
	assert.Empty(t, panes)
	assert.Equal(t, 0, h.store.Len())
}

func TestRunner_PersistOnce(t *testing.T) {
	h := newHarness(t, fixed.NewFixed(10*time.Minute, 0), trigger.AfterWatermark())
	ctx := context.Background()
	r, err := NewRunner(ctx, "k", h.strategy, h.store, h.timers, Progress{})
	require.NoError(t, err)
	require.NoError(t, r.ProcessElements(ctx, []Element{element("a", 1)}))
	assert.Equal(t, int64(0), r.Stats().PanesEmitted)
	ws, ok := r.WindowState(window.NewWindow(minute(0), minute(10)))
	require.True(t, ok)
	assert.Equal(t, int64(1), ws.ElementsSincePane)
	_, err = r.Persist(ctx)
	require.NoError(t, err)
	_, err = r.Persist(ctx)
	assert.ErrorIs(t, err, ErrAlreadyPersisted)
	assert.ErrorIs(t, r.ProcessElements(ctx, nil), ErrAlreadyPersisted)
	assert.ErrorIs(t, r.OnTimer(ctx, timer.Data{}), ErrAlreadyPersisted)
}

func TestRunner_InvalidElement(t *testing.T) {
	h := newHarness(t, fixed.NewFixed(10*time.Minute, 0), trigger.AfterWatermark(), WithReduceFn(Combining(SumInt64())))
	_, err := h.invoke("k", Progress{}, []Element{element("not a number", 1)}, nil)
	assert.ErrorIs(t, err, ErrInvalidElement)
	assert.True(t, IsFatal(err))
}

func TestRunner_KeysAreIsolated(t *testing.T) {
	h := newHarness(t, fixed.NewFixed(10*time.Minute, 0), trigger.AfterWatermark())
	assert.Empty(t, h.process("k1", minute(0), element("a", 1)))
	assert.Empty(t, h.process("k2", minute(0), element("b", 1)))
	panes := h.advance("k1", minute(10))
	require.Len(t, panes, 1)
	assert.Equal(t, "k1", panes[0].Key)
	assert.Equal(t, values("a"), panes[0].Values)
	// the state of k2 is untouched
	assert.Equal(t, 2, h.store.Len())
}
