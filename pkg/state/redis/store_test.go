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

package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/reducefn/pkg/apis"
	redisclient "github.com/numaproj/reducefn/pkg/shared/clients/redis"
	"github.com/numaproj/reducefn/pkg/state"
)

// the tests need a running redis, e.g. REDIS_ADDR=localhost:6379
func newTestStore(t *testing.T) state.Store {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR is not set")
	}
	client := redisclient.NewRedisClientFromConfig(&apis.RedisStoreConfig{Addr: addr})
	prefix := fmt.Sprintf("reducefn-test-%d", time.Now().UnixNano())
	store := NewRedisStore(context.Background(), client, prefix)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRedisStoreOperations(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer func() {
		_ = store.Clear(ctx, "user/1", "w.0_60000")
	}()

	_, err := store.Read(ctx, "user/1", state.IndexStateID)
	assert.ErrorIs(t, err, state.ErrNotFound)

	err = state.Commit(ctx, store, "user/1", []state.Mutation{
		{StateID: "w.0_60000", Value: []byte("window")},
		{StateID: state.IndexStateID, Value: []byte("index")},
	})
	require.NoError(t, err)

	value, err := store.Read(ctx, "user/1", "w.0_60000")
	assert.NoError(t, err)
	assert.Equal(t, []byte("window"), value)

	err = state.Commit(ctx, store, "user/1", []state.Mutation{
		{StateID: state.IndexStateID, Delete: true},
	})
	require.NoError(t, err)
	_, err = store.Read(ctx, "user/1", state.IndexStateID)
	assert.ErrorIs(t, err, state.ErrNotFound)

	assert.NoError(t, store.Write(ctx, "user/2", "s", []byte("v")))
	assert.NoError(t, store.Clear(ctx, "user/2", "s"))
	assert.NoError(t, store.Clear(ctx, "user/2", "s"))
}
