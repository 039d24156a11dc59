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

package jetstream

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jsclient "github.com/numaproj/reducefn/pkg/shared/clients/nats"
	natstest "github.com/numaproj/reducefn/pkg/shared/clients/nats/test"
	"github.com/numaproj/reducefn/pkg/state"
)

func TestJetStreamStoreOperations(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	kvName := "testJetStreamStateStore"

	s := natstest.RunJetStreamServer(t)

	testClient := jsclient.NewTestClientWithServer(t, s)
	defer testClient.Close()

	js, err := testClient.JetStreamContext()
	require.NoError(t, err)

	// create a kv bucket for testing
	_, err = js.CreateKeyValue(&nats.KeyValueConfig{
		Bucket: kvName,
	})
	require.NoError(t, err)

	store, err := NewJetStreamStore(ctx, kvName, testClient)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	assert.Equal(t, kvName, store.Name())

	// Test read of a missing state
	_, err = store.Read(ctx, "user/1", state.IndexStateID)
	assert.ErrorIs(t, err, state.ErrNotFound)

	// Test commit
	err = state.Commit(ctx, store, "user/1", []state.Mutation{
		{StateID: "w.0_60000", Value: []byte("window")},
		{StateID: state.IndexStateID, Value: []byte("index")},
	})
	assert.NoError(t, err)

	value, err := store.Read(ctx, "user/1", "w.0_60000")
	assert.NoError(t, err)
	assert.Equal(t, []byte("window"), value)

	// keys are isolated
	_, err = store.Read(ctx, "user/2", "w.0_60000")
	assert.ErrorIs(t, err, state.ErrNotFound)

	// Test write and clear
	assert.NoError(t, store.Write(ctx, "user/1", "w.0_60000", []byte("updated")))
	value, err = store.Read(ctx, "user/1", "w.0_60000")
	assert.NoError(t, err)
	assert.Equal(t, []byte("updated"), value)

	assert.NoError(t, store.Clear(ctx, "user/1", "w.0_60000"))
	assert.NoError(t, store.Clear(ctx, "user/1", state.IndexStateID))
	_, err = store.Read(ctx, "user/1", state.IndexStateID)
	assert.ErrorIs(t, err, state.ErrNotFound)

	// clearing a missing state is not an error
	assert.NoError(t, store.Clear(ctx, "user/3", state.IndexStateID))
}

func TestJetStreamStore_CreateBucket(t *testing.T) {
	ctx := context.Background()
	s := natstest.RunJetStreamServer(t)
	testClient := jsclient.NewTestClientWithServer(t, s)
	defer testClient.Close()

	_, err := NewJetStreamStore(ctx, "missingBucket", testClient)
	assert.Error(t, err)

	store, err := NewJetStreamStore(ctx, "createdBucket", testClient, WithCreateBucket(1))
	require.NoError(t, err)
	assert.NoError(t, store.Write(ctx, "k", "s", []byte("v")))
}

func TestEntryKey(t *testing.T) {
	// bucket keys only allow a limited set of characters
	assert.Equal(t, "k.dXNlci8xIGEqYg", entryKey("user/1 a*b"))
}

func TestJetStreamStore_IsHealthy(t *testing.T) {
	s := natstest.RunJetStreamServer(t)
	testClient := jsclient.NewTestClientWithServer(t, s)
	store, err := NewJetStreamStore(context.Background(), "healthBucket", testClient, WithCreateBucket(1))
	require.NoError(t, err)
	hc, ok := store.(interface{ IsHealthy(context.Context) error })
	require.True(t, ok)
	assert.NoError(t, hc.IsHealthy(context.Background()))
	testClient.Close()
	assert.Error(t, hc.IsHealthy(context.Background()))
}
