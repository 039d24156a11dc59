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

package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/numaproj/reducefn/pkg/shared/logging"
	"github.com/numaproj/reducefn/pkg/timer"
	"github.com/numaproj/reducefn/pkg/trigger"
	"github.com/numaproj/reducefn/pkg/window"
)

// IndexStateID is the state id of the index of active windows of a key.
const IndexStateID = "windows"

// WindowStateID returns the state id of the record of the window.
func WindowStateID(w window.Window) string {
	return fmt.Sprintf("w.%d_%d", w.StartTime().UnixMilli(), w.EndTime().UnixMilli())
}

// recordStateID returns the state id of a revision of the record of the window.
func recordStateID(w window.Window, revision int64) string {
	if revision == 0 {
		return WindowStateID(w)
	}
	return fmt.Sprintf("%s.r%d", WindowStateID(w), revision)
}

// Index lists the active windows of a key and the revision of the record of each window.
type Index struct {
	Windows   []window.Window `json:"windows"`
	Revisions []int64         `json:"revisions,omitempty"`
}

func (idx Index) revision(i int) int64 {
	if i < len(idx.Revisions) {
		return idx.Revisions[i]
	}
	return 0
}

// PaneState tracks the panes emitted for a window.
type PaneState struct {
	// Index is the number of panes emitted.
	Index int64 `json:"index"`
	// NonSpeculativeIndex is the number of on time and late panes emitted.
	NonSpeculativeIndex int64 `json:"nonSpeculativeIndex"`
	// OnTimeEmitted is set once the on time pane was emitted.
	OnTimeEmitted bool `json:"onTimeEmitted,omitempty"`
}

// WindowState is the persisted state of a window of a key.
type WindowState struct {
	Window window.Window `json:"window"`
	// Values are the buffered elements, used when the reduce function buffers.
	Values [][]byte `json:"values,omitempty"`
	// Accumulator is the partial aggregate, used when the reduce function combines.
	Accumulator []byte `json:"accumulator,omitempty"`
	// ElementsSincePane is the number of elements added since the last pane.
	ElementsSincePane int64          `json:"elementsSincePane,omitempty"`
	Trigger           *trigger.State `json:"trigger"`
	Pane              PaneState      `json:"pane"`
	// Timers are the timers registered for the window.
	Timers []timer.Data `json:"timers,omitempty"`
	// Revision is the revision of the committed record, kept in the index.
	Revision int64 `json:"-"`
}

// Clone returns a deep copy of the window state.
func (ws *WindowState) Clone() *WindowState {
	c := *ws
	if ws.Values != nil {
		c.Values = make([][]byte, len(ws.Values))
		copy(c.Values, ws.Values)
	}
	if ws.Accumulator != nil {
		c.Accumulator = append([]byte(nil), ws.Accumulator...)
	}
	c.Trigger = ws.Trigger.Clone()
	if ws.Timers != nil {
		c.Timers = append([]timer.Data(nil), ws.Timers...)
	}
	return &c
}

// Encode encodes the window state.
func (ws *WindowState) Encode() ([]byte, error) {
	return json.Marshal(ws)
}

// DecodeWindowState decodes a window state encoded by Encode.
func DecodeWindowState(b []byte) (*WindowState, error) {
	ws := &WindowState{}
	if err := json.Unmarshal(b, ws); err != nil {
		return nil, fmt.Errorf("failed to decode window state, %w", err)
	}
	return ws, nil
}

// Load reads the committed state of the key. A key without state has no windows.
func Load(ctx context.Context, store Store, key string) (map[string]*WindowState, error) {
	log := logging.FromContext(ctx)
	windows := make(map[string]*WindowState)
	b, err := store.Read(ctx, key, IndexStateID)
	if errors.Is(err, ErrNotFound) {
		return windows, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read the window index of key %q, %w", key, err)
	}
	var idx Index
	if err := json.Unmarshal(b, &idx); err != nil {
		return nil, fmt.Errorf("failed to decode the window index of key %q, %w", key, err)
	}
	for i, w := range idx.Windows {
		b, err := store.Read(ctx, key, recordStateID(w, idx.revision(i)))
		if errors.Is(err, ErrNotFound) {
			log.Warnw("Window is indexed but has no state, skipping", zap.String("key", key), zap.String("window", w.String()))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read the state of window %s of key %q, %w", w, key, err)
		}
		ws, err := DecodeWindowState(b)
		if err != nil {
			return nil, err
		}
		ws.Revision = idx.revision(i)
		windows[w.ID()] = ws
	}
	return windows, nil
}

// Diff computes the mutations that turn the committed windows into the current ones. Only the windows listed in
// touched are written, windows missing from current are deleted. A touched window is written under the next revision
// of its record and the previous revision is deleted, the index is rewritten whenever a record was written or deleted.
func Diff(committed, current map[string]*WindowState, touched map[string]struct{}) ([]Mutation, error) {
	var mutations []Mutation
	for id, ws := range committed {
		if _, ok := current[id]; !ok {
			mutations = append(mutations, Mutation{StateID: recordStateID(ws.Window, ws.Revision), Delete: true})
		}
	}
	revisions := make(map[string]int64, len(current))
	for id, ws := range current {
		prev, existed := committed[id]
		if existed {
			revisions[id] = prev.Revision
		}
		if _, ok := touched[id]; !ok && existed {
			continue
		}
		b, err := ws.Encode()
		if err != nil {
			return nil, fmt.Errorf("failed to encode the state of window %s, %w", ws.Window, err)
		}
		if existed {
			revisions[id] = prev.Revision + 1
			mutations = append(mutations, Mutation{StateID: recordStateID(prev.Window, prev.Revision), Delete: true})
		}
		mutations = append(mutations, Mutation{StateID: recordStateID(ws.Window, revisions[id]), Value: b})
	}
	if len(mutations) == 0 {
		return nil, nil
	}
	if len(current) == 0 {
		return sortMutations(append(mutations, Mutation{StateID: IndexStateID, Delete: true})), nil
	}
	list := window.NewSortedWindowList()
	for _, ws := range current {
		list.InsertIfNotPresent(ws.Window)
	}
	idx := Index{Windows: list.Items(), Revisions: make([]int64, 0, len(current))}
	for _, w := range idx.Windows {
		idx.Revisions = append(idx.Revisions, revisions[w.ID()])
	}
	b, err := json.Marshal(idx)
	if err != nil {
		return nil, fmt.Errorf("failed to encode the window index, %w", err)
	}
	return sortMutations(append(mutations, Mutation{StateID: IndexStateID, Value: b})), nil
}
