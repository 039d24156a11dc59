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

package inmem

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/numaproj/reducefn/pkg/timer"
	"github.com/numaproj/reducefn/pkg/window"
)

func TestScheduler(t *testing.T) {
	ctx := context.Background()
	s := NewScheduler()
	w1 := window.NewWindow(time.Unix(0, 0), time.Unix(60, 0))
	w2 := window.NewWindow(time.Unix(60, 0), time.Unix(120, 0))

	assert.NoError(t, s.SetTimer(ctx, "k1", timer.NewEventTimer(w1, timer.EndOfWindow, w1.MaxTimestamp())))
	// replaces the end of window timer of the same window
	assert.NoError(t, s.SetTimer(ctx, "k1", timer.NewEventTimer(w1, timer.GarbageCollection, w1.MaxTimestamp().Add(2*time.Minute))))
	assert.NoError(t, s.SetTimer(ctx, "k1", timer.NewEventTimer(w2, timer.EndOfWindow, w2.MaxTimestamp())))
	assert.NoError(t, s.SetTimer(ctx, "k2", timer.NewProcessingTimer(w1, time.Unix(1000, 0))))
	assert.Equal(t, 3, s.Len())

	fired := s.FireEventTimers(time.Unix(60, 0))
	assert.Empty(t, fired)

	fired = s.FireEventTimers(time.Unix(120, 0))
	assert.Len(t, fired["k1"], 1)
	assert.Equal(t, timer.EndOfWindow, fired["k1"][0].ID)
	assert.True(t, fired["k1"][0].Window.Equal(w2))

	fired = s.FireProcessingTimers(time.Unix(1000, 0))
	assert.Len(t, fired["k2"], 1)

	assert.Len(t, s.Pending("k1"), 1)
	assert.NoError(t, s.DeleteTimer(ctx, "k1", w1, timer.EventTime))
	assert.NoError(t, s.DeleteTimer(ctx, "k1", w1, timer.EventTime))
	assert.Equal(t, 0, s.Len())
}

func TestScheduler_Order(t *testing.T) {
	ctx := context.Background()
	s := NewScheduler()
	for i := 3; i > 0; i-- {
		w := window.NewWindow(time.Unix(int64(i*60), 0), time.Unix(int64(i*60+60), 0))
		assert.NoError(t, s.SetTimer(ctx, "k", timer.NewEventTimer(w, timer.EndOfWindow, w.MaxTimestamp())))
	}
	fired := s.FireEventTimers(time.Unix(1000, 0))["k"]
	assert.Len(t, fired, 3)
	for i := 1; i < len(fired); i++ {
		assert.True(t, fired[i-1].Timestamp.Before(fired[i].Timestamp))
	}
}

func TestScheduler_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewScheduler()
	w := window.NewWindow(time.Unix(0, 0), time.Unix(60, 0))
	assert.ErrorIs(t, s.SetTimer(ctx, "k", timer.NewEventTimer(w, timer.EndOfWindow, w.MaxTimestamp())), context.Canceled)
}
