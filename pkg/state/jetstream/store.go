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

/*
Package jetstream implements the state store using a Jetstream key value bucket. All the state of a key lives in a
single entry of the bucket, a commit replaces the entry using the revision it was read at, so the mutations of an
invocation are applied atomically and a concurrent writer of the same key is detected.
*/

package jetstream

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	jsclient "github.com/numaproj/reducefn/pkg/shared/clients/nats"
	"github.com/numaproj/reducefn/pkg/shared/logging"
	"github.com/numaproj/reducefn/pkg/state"
)

// jetStreamStore implements the state store backed up by Jetstream.
type jetStreamStore struct {
	kvName string
	client *jsclient.Client
	kv     nats.KeyValue
	log    *zap.SugaredLogger
	opts   *options
}

var (
	_ state.Store          = (*jetStreamStore)(nil)
	_ state.BatchCommitter = (*jetStreamStore)(nil)
)

// NewJetStreamStore returns a state store using the bucket kvName.
func NewJetStreamStore(ctx context.Context, kvName string, client *jsclient.Client, opts ...Option) (state.Store, error) {
	storeOpts := defaultOptions()
	for _, o := range opts {
		o(storeOpts)
	}

	var (
		kv  nats.KeyValue
		err error
	)
	if storeOpts.createBucket {
		kv, err = client.BindOrCreateKVStore(kvName, storeOpts.replicas)
	} else {
		kv, err = client.BindKVStore(kvName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to bind kv store: %w", err)
	}

	return &jetStreamStore{
		kvName: kvName,
		client: client,
		kv:     kv,
		opts:   storeOpts,
		log:    logging.FromContext(ctx).With("kvName", kvName),
	}, nil
}

// entryKey encodes the key into the characters allowed in a bucket key.
func entryKey(key string) string {
	return "k." + base64.RawURLEncoding.EncodeToString([]byte(key))
}

// entry is the state of a key, by state id.
type entry map[string][]byte

func (jss *jetStreamStore) get(key string) (entry, uint64, error) {
	kve, err := jss.kv.Get(entryKey(key))
	if errors.Is(err, nats.ErrKeyNotFound) {
		return entry{}, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	e := entry{}
	if err := json.Unmarshal(kve.Value(), &e); err != nil {
		return nil, 0, fmt.Errorf("failed to decode the entry of key %q, %w", key, err)
	}
	return e, kve.Revision(), nil
}

func (jss *jetStreamStore) Read(_ context.Context, key string, stateID string) ([]byte, error) {
	e, _, err := jss.get(key)
	if err != nil {
		return nil, err
	}
	v, ok := e[stateID]
	if !ok {
		return nil, fmt.Errorf("%s of key %q, %w", stateID, key, state.ErrNotFound)
	}
	return v, nil
}

func (jss *jetStreamStore) Write(ctx context.Context, key string, stateID string, value []byte) error {
	return jss.Commit(ctx, key, []state.Mutation{{StateID: stateID, Value: value}})
}

func (jss *jetStreamStore) Clear(ctx context.Context, key string, stateID string) error {
	return jss.Commit(ctx, key, []state.Mutation{{StateID: stateID, Delete: true}})
}

// Commit applies the mutations to the entry of the key. It fails if the entry was modified since it was read.
func (jss *jetStreamStore) Commit(ctx context.Context, key string, mutations []state.Mutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e, revision, err := jss.get(key)
	if err != nil {
		return err
	}
	for _, m := range mutations {
		if m.Delete {
			delete(e, m.StateID)
		} else {
			e[m.StateID] = m.Value
		}
	}

	k := entryKey(key)
	if len(e) == 0 {
		if revision == 0 {
			return nil
		}
		// will return error if nats connection is closed
		return jss.kv.Delete(k, nats.LastRevision(revision))
	}
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode the entry of key %q, %w", key, err)
	}
	if revision == 0 {
		_, err = jss.kv.Create(k, b)
	} else {
		_, err = jss.kv.Update(k, b, revision)
	}
	if err != nil {
		jss.log.Warnw("Failed to commit state", zap.String("key", key), zap.Uint64("revision", revision), zap.Error(err))
	}
	return err
}

func (jss *jetStreamStore) Name() string {
	return jss.kv.Bucket()
}

// IsHealthy checks the connection to the server.
func (jss *jetStreamStore) IsHealthy(context.Context) error {
	if !jss.client.IsConnected() {
		return fmt.Errorf("not connected to the jetstream server of bucket %s", jss.kvName)
	}
	return nil
}

// Close is a no-op, the client is owned by the caller.
func (jss *jetStreamStore) Close() error {
	return nil
}
