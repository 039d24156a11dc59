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

// Package inmem implements an in memory timer scheduler. It stores the timers of every key and hands out the timers
// that are due when the watermark or the processing time advances.
package inmem

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/numaproj/reducefn/pkg/timer"
	"github.com/numaproj/reducefn/pkg/window"
)

// Fired is a timer that became due for a key.
type Fired struct {
	Key   string
	Timer timer.Data
}

type slot struct {
	window string
	domain timer.Domain
}

// Scheduler is the in memory timer.Service.
type Scheduler struct {
	sync.Mutex
	timers map[string]map[slot]timer.Data
}

var _ timer.Service = (*Scheduler)(nil)

// NewScheduler returns an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{
		timers: make(map[string]map[slot]timer.Data),
	}
}

func (s *Scheduler) SetTimer(ctx context.Context, key string, d timer.Data) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to set timer %s for key %q, %w", d, key, err)
	}
	s.Lock()
	defer s.Unlock()
	timers, ok := s.timers[key]
	if !ok {
		timers = make(map[slot]timer.Data)
		s.timers[key] = timers
	}
	timers[slot{window: d.Window.ID(), domain: d.Domain}] = d
	return nil
}

func (s *Scheduler) DeleteTimer(ctx context.Context, key string, w window.Window, domain timer.Domain) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to delete timer of %s for key %q, %w", w, key, err)
	}
	s.Lock()
	defer s.Unlock()
	if timers, ok := s.timers[key]; ok {
		delete(timers, slot{window: w.ID(), domain: domain})
		if len(timers) == 0 {
			delete(s.timers, key)
		}
	}
	return nil
}

// Pending returns the timers of the key.
func (s *Scheduler) Pending(key string) []timer.Data {
	s.Lock()
	defer s.Unlock()
	var pending []timer.Data
	for _, d := range s.timers[key] {
		pending = append(pending, d)
	}
	sortTimers(pending)
	return pending
}

// Len returns the number of timers of all keys.
func (s *Scheduler) Len() int {
	s.Lock()
	defer s.Unlock()
	n := 0
	for _, timers := range s.timers {
		n += len(timers)
	}
	return n
}

// FireEventTimers removes and returns the event time timers that are due at the watermark, grouped by key.
func (s *Scheduler) FireEventTimers(watermark time.Time) map[string][]timer.Data {
	return s.fire(func(d timer.Data) bool {
		return d.Domain == timer.EventTime && d.Due(watermark, time.Time{})
	})
}

// FireProcessingTimers removes and returns the processing time timers that are due at now, grouped by key.
func (s *Scheduler) FireProcessingTimers(now time.Time) map[string][]timer.Data {
	return s.fire(func(d timer.Data) bool {
		return d.Domain == timer.ProcessingTime && d.Due(time.Time{}, now)
	})
}

func (s *Scheduler) fire(due func(timer.Data) bool) map[string][]timer.Data {
	s.Lock()
	defer s.Unlock()
	fired := make(map[string][]timer.Data)
	for key, timers := range s.timers {
		for sl, d := range timers {
			if due(d) {
				fired[key] = append(fired[key], d)
				delete(timers, sl)
			}
		}
		if len(timers) == 0 {
			delete(s.timers, key)
		}
	}
	for key := range fired {
		sortTimers(fired[key])
	}
	return fired
}

// sortTimers orders timers by timestamp so that a key sees its timers in firing order.
func sortTimers(timers []timer.Data) {
	sort.Slice(timers, func(i, j int) bool {
		a, b := timers[i], timers[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if !a.Window.StartTime().Equal(b.Window.StartTime()) {
			return a.Window.StartTime().Before(b.Window.StartTime())
		}
		if !a.Window.EndTime().Equal(b.Window.EndTime()) {
			return a.Window.EndTime().Before(b.Window.EndTime())
		}
		return a.Domain < b.Domain
	})
}
