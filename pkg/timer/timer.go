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

// Package timer defines the timers a window registers to be re-invoked. Timers are owned by an external scheduler,
// the fired timers are delivered back with the next work item of the key.
package timer

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/numaproj/reducefn/pkg/window"
)

// Domain is the time domain a timer fires in.
type Domain int

const (
	// EventTime timers fire when the watermark passes their timestamp.
	EventTime Domain = iota
	// ProcessingTime timers fire when the wall clock reaches their timestamp.
	ProcessingTime
)

func (d Domain) String() string {
	switch d {
	case EventTime:
		return "EVENT_TIME"
	case ProcessingTime:
		return "PROCESSING_TIME"
	default:
		return "UNKNOWN"
	}
}

// Timer ids.
const (
	// EndOfWindow re-evaluates the trigger once the watermark passes the end of the window.
	EndOfWindow = "end-of-window"
	// GarbageCollection deletes the window once the allowed lateness elapsed.
	GarbageCollection = "gc"
	// ProcessingTimeDeadline re-evaluates the trigger at its processing time deadline.
	ProcessingTimeDeadline = "processing-time"
)

// Data is a timer of a window. There is at most one timer per window and domain.
type Data struct {
	Window    window.Window
	ID        string
	Domain    Domain
	Timestamp time.Time
}

// NewEventTimer returns an event time timer.
func NewEventTimer(w window.Window, id string, ts time.Time) Data {
	return Data{Window: w, ID: id, Domain: EventTime, Timestamp: time.UnixMilli(ts.UnixMilli()).UTC()}
}

// NewProcessingTimer returns a processing time timer.
func NewProcessingTimer(w window.Window, ts time.Time) Data {
	return Data{Window: w, ID: ProcessingTimeDeadline, Domain: ProcessingTime, Timestamp: time.UnixMilli(ts.UnixMilli()).UTC()}
}

func (d Data) String() string {
	return fmt.Sprintf("%s/%s@%d[%s]", d.ID, d.Domain, d.Timestamp.UnixMilli(), d.Window)
}

// Equal reports whether both timers are the same.
func (d Data) Equal(o Data) bool {
	return d.ID == o.ID && d.Domain == o.Domain && d.Timestamp.Equal(o.Timestamp) && d.Window.Equal(o.Window)
}

// Due reports whether the timer fires at the given progress. Event time timers use the watermark, processing
// time timers the wall clock. A timer is due once the progress is past its timestamp.
func (d Data) Due(watermark, now time.Time) bool {
	if d.Domain == ProcessingTime {
		return !now.Before(d.Timestamp)
	}
	return d.Timestamp.Before(watermark)
}

type dataJSON struct {
	Window    window.Window `json:"window"`
	ID        string        `json:"id"`
	Domain    Domain        `json:"domain"`
	Timestamp int64         `json:"timestamp"`
}

func (d Data) MarshalJSON() ([]byte, error) {
	return json.Marshal(dataJSON{Window: d.Window, ID: d.ID, Domain: d.Domain, Timestamp: d.Timestamp.UnixMilli()})
}

func (d *Data) UnmarshalJSON(b []byte) error {
	var dj dataJSON
	if err := json.Unmarshal(b, &dj); err != nil {
		return err
	}
	*d = Data{Window: dj.Window, ID: dj.ID, Domain: dj.Domain, Timestamp: time.UnixMilli(dj.Timestamp).UTC()}
	return nil
}

// Service schedules the timers of keys.
type Service interface {
	// SetTimer sets the timer, replacing the timer of the same window and domain.
	SetTimer(ctx context.Context, key string, d Data) error
	// DeleteTimer deletes the timer of the window in the domain, deleting a missing timer is not an error.
	DeleteTimer(ctx context.Context, key string, w window.Window, domain Domain) error
}
