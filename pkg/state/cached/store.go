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

// Package cached puts a read cache in front of a state store. Entries are updated after a successful commit and
// evicted when a commit fails. The cache assumes a key is only written through one cached store at a time, which
// holds when keys are sharded to workers.
package cached

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/numaproj/reducefn/pkg/state"
)

type entry struct {
	value []byte
	// missing records that the state does not exist in the store
	missing bool
}

// Store is a state store caching the entries of another store.
type Store struct {
	store state.Store
	cache *lru.Cache[string, entry]
}

var (
	_ state.Store          = (*Store)(nil)
	_ state.BatchCommitter = (*Store)(nil)
)

// NewStore returns a store caching up to size entries of store.
func NewStore(store state.Store, size int) (*Store, error) {
	cache, err := lru.New[string, entry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create state cache, %w", err)
	}
	return &Store{store: store, cache: cache}, nil
}

func cacheKey(key, stateID string) string {
	return key + "\x00" + stateID
}

func (s *Store) Read(ctx context.Context, key string, stateID string) ([]byte, error) {
	ck := cacheKey(key, stateID)
	if e, ok := s.cache.Get(ck); ok {
		if e.missing {
			return nil, fmt.Errorf("%s of key %q, %w", stateID, key, state.ErrNotFound)
		}
		return append([]byte(nil), e.value...), nil
	}
	value, err := s.store.Read(ctx, key, stateID)
	if errors.Is(err, state.ErrNotFound) {
		s.cache.Add(ck, entry{missing: true})
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	s.cache.Add(ck, entry{value: append([]byte(nil), value...)})
	return value, nil
}

func (s *Store) Write(ctx context.Context, key string, stateID string, value []byte) error {
	return s.Commit(ctx, key, []state.Mutation{{StateID: stateID, Value: value}})
}

func (s *Store) Clear(ctx context.Context, key string, stateID string) error {
	return s.Commit(ctx, key, []state.Mutation{{StateID: stateID, Delete: true}})
}

func (s *Store) Commit(ctx context.Context, key string, mutations []state.Mutation) error {
	if err := state.Commit(ctx, s.store, key, mutations); err != nil {
		// the store may hold any prefix of the mutations
		for _, m := range mutations {
			s.cache.Remove(cacheKey(key, m.StateID))
		}
		return err
	}
	for _, m := range mutations {
		if m.Delete {
			s.cache.Add(cacheKey(key, m.StateID), entry{missing: true})
		} else {
			s.cache.Add(cacheKey(key, m.StateID), entry{value: append([]byte(nil), m.Value...)})
		}
	}
	return nil
}

func (s *Store) Name() string {
	return s.store.Name()
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	return s.cache.Len()
}

// IsHealthy checks the cached store, a store without a health check is always healthy.
func (s *Store) IsHealthy(ctx context.Context) error {
	if hc, ok := s.store.(interface{ IsHealthy(context.Context) error }); ok {
		return hc.IsHealthy(ctx)
	}
	return nil
}

func (s *Store) Close() error {
	s.cache.Purge()
	return s.store.Close()
}
