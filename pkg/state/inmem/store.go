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

// Package inmem implements the state store in memory. All the mutations of a commit are applied under a single lock.
package inmem

import (
	"context"
	"fmt"
	"sync"

	"github.com/numaproj/reducefn/pkg/state"
)

// Store implements the state store in memory.
type Store struct {
	sync.RWMutex
	name   string
	data   map[string][]byte
	closed bool
}

var (
	_ state.Store          = (*Store)(nil)
	_ state.BatchCommitter = (*Store)(nil)
)

// NewStore returns an empty in memory store.
func NewStore(name string) *Store {
	return &Store{
		name: name,
		data: make(map[string][]byte),
	}
}

func entryKey(key, stateID string) string {
	return key + "\x00" + stateID
}

func (m *Store) Read(_ context.Context, key string, stateID string) ([]byte, error) {
	m.RLock()
	defer m.RUnlock()
	if m.closed {
		return nil, state.ErrStoreClosed
	}
	v, ok := m.data[entryKey(key, stateID)]
	if !ok {
		return nil, fmt.Errorf("%s of key %q, %w", stateID, key, state.ErrNotFound)
	}
	return append([]byte(nil), v...), nil
}

func (m *Store) Write(ctx context.Context, key string, stateID string, value []byte) error {
	return m.Commit(ctx, key, []state.Mutation{{StateID: stateID, Value: value}})
}

func (m *Store) Clear(ctx context.Context, key string, stateID string) error {
	return m.Commit(ctx, key, []state.Mutation{{StateID: stateID, Delete: true}})
}

func (m *Store) Commit(ctx context.Context, key string, mutations []state.Mutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.Lock()
	defer m.Unlock()
	if m.closed {
		return state.ErrStoreClosed
	}
	for _, mu := range mutations {
		if mu.Delete {
			delete(m.data, entryKey(key, mu.StateID))
			continue
		}
		m.data[entryKey(key, mu.StateID)] = append([]byte(nil), mu.Value...)
	}
	return nil
}

func (m *Store) Name() string {
	return m.name
}

// Len returns the number of state entries of all keys.
func (m *Store) Len() int {
	m.RLock()
	defer m.RUnlock()
	return len(m.data)
}

// Snapshot returns a copy of all the entries.
func (m *Store) Snapshot() map[string][]byte {
	m.RLock()
	defer m.RUnlock()
	snap := make(map[string][]byte, len(m.data))
	for k, v := range m.data {
		snap[k] = append([]byte(nil), v...)
	}
	return snap
}

func (m *Store) Close() error {
	m.Lock()
	defer m.Unlock()
	m.closed = true
	return nil
}
