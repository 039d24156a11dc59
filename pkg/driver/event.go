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
	"time"

	"github.com/goccy/go-json"

	"github.com/numaproj/reducefn/pkg/reduce"
	"github.com/numaproj/reducefn/pkg/window"
)

// EventType is the type of an input line.
type EventType string

const (
	// EventTypeElement is an element of a key.
	EventTypeElement EventType = "element"
	// EventTypeWatermark advances the input watermark.
	EventTypeWatermark EventType = "watermark"
	// EventTypeProcessingTime advances the processing time.
	EventTypeProcessingTime EventType = "processing_time"
)

// Event is one line of the input, the timestamp is in epoch milliseconds.
type Event struct {
	Type      EventType `json:"type"`
	Key       string    `json:"key,omitempty"`
	Value     string    `json:"value,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

func (e Event) Time() time.Time {
	return time.UnixMilli(e.Timestamp).UTC()
}

func parseEvent(line []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(line, &e); err != nil {
		return e, fmt.Errorf("failed to decode event %q, %w", line, err)
	}
	switch e.Type {
	case EventTypeElement:
		if e.Key == "" {
			return e, fmt.Errorf("element event without a key: %q", line)
		}
	case EventTypeWatermark, EventTypeProcessingTime:
	default:
		return e, fmt.Errorf("unknown event type %q", e.Type)
	}
	return e, nil
}

// Output is one line of the output, a pane with its values as strings.
type Output struct {
	Key    string          `json:"key"`
	Window window.Window   `json:"window"`
	Values []string        `json:"values"`
	Pane   reduce.PaneInfo `json:"pane"`
}

func newOutput(p reduce.Pane) Output {
	values := make([]string, len(p.Values))
	for i, v := range p.Values {
		values[i] = string(v)
	}
	return Output{Key: p.Key, Window: p.Window, Values: values, Pane: p.Info}
}
