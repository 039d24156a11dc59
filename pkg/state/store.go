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

// Package state defines the persisted per key state of the windows and the store it lives in. The state of a key is
// an index of its active windows plus one record per window, every record is addressed by a state id. An invocation
// loads the whole state of its key, works on a copy and commits all the changes at once.
package state

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/numaproj/reducefn/pkg/shared/logging"
)

var (
	// ErrNotFound is returned by Read when the state does not exist.
	ErrNotFound = errors.New("state not found")
	// ErrStoreClosed is returned when the store is used after Close.
	ErrStoreClosed = errors.New("state store is closed")
)

// Store is the external key value store the state is persisted in. Writes become visible to the next
// invocation of the same key.
type Store interface {
	// Read returns the state, ErrNotFound if it does not exist.
	Read(ctx context.Context, key string, stateID string) ([]byte, error)
	// Write writes the state.
	Write(ctx context.Context, key string, stateID string, value []byte) error
	// Clear deletes the state, clearing a missing state is not an error.
	Clear(ctx context.Context, key string, stateID string) error
	// Name returns the name of the store.
	Name() string
	// Close closes the backend connection.
	Close() error
}

// Mutation is a single change to the state of a key.
type Mutation struct {
	StateID string
	// Value is written unless Delete is set.
	Value  []byte
	Delete bool
}

// BatchCommitter is implemented by stores which can apply all the mutations of a key atomically.
type BatchCommitter interface {
	Commit(ctx context.Context, key string, mutations []Mutation) error
}

// Commit applies the mutations to the state of the key. Stores implementing BatchCommitter apply them atomically,
// other stores apply the record writes, then the index, then the record deletes. Records are never overwritten in
// place, so a failure before the index is written leaves the committed state untouched. Once the index is written
// the commit is complete, failed deletes only leave unreferenced records behind and are logged.
func Commit(ctx context.Context, store Store, key string, mutations []Mutation) error {
	if len(mutations) == 0 {
		return nil
	}
	mutations = sortMutations(mutations)
	if bc, ok := store.(BatchCommitter); ok {
		if err := bc.Commit(ctx, key, mutations); err != nil {
			return fmt.Errorf("failed to commit %d mutation(s) for key %q to %s, %w", len(mutations), key, store.Name(), err)
		}
		return nil
	}
	indexed := false
	for _, m := range mutations {
		var err error
		if m.Delete {
			err = store.Clear(ctx, key, m.StateID)
		} else {
			err = store.Write(ctx, key, m.StateID, m.Value)
		}
		if err != nil && indexed {
			logging.FromContext(ctx).Warnw("Failed to delete a stale record", zap.String("key", key), zap.String("stateID", m.StateID), zap.Error(err))
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to apply mutation of %q for key %q to %s, %w", m.StateID, key, store.Name(), err)
		}
		if m.StateID == IndexStateID {
			indexed = true
		}
	}
	return nil
}

// mutationRank orders the record writes first, the index second and the record deletes last.
func mutationRank(m Mutation) int {
	switch {
	case m.StateID == IndexStateID:
		return 1
	case m.Delete:
		return 2
	default:
		return 0
	}
}

// sortMutations orders the mutations so that every prefix applied by a store without batch commits leaves a
// consistent state behind. Within a rank the mutations are ordered by state id.
func sortMutations(mutations []Mutation) []Mutation {
	sort.SliceStable(mutations, func(i, j int) bool {
		ri, rj := mutationRank(mutations[i]), mutationRank(mutations[j])
		if ri != rj {
			return ri < rj
		}
		return mutations[i].StateID < mutations[j].StateID
	})
	return mutations
}
