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

package commands

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/numaproj/reducefn/pkg/apis"
	jsclient "github.com/numaproj/reducefn/pkg/shared/clients/nats"
	redisclient "github.com/numaproj/reducefn/pkg/shared/clients/redis"
	"github.com/numaproj/reducefn/pkg/state"
	"github.com/numaproj/reducefn/pkg/state/badger"
	"github.com/numaproj/reducefn/pkg/state/cached"
	"github.com/numaproj/reducefn/pkg/state/inmem"
	"github.com/numaproj/reducefn/pkg/state/jetstream"
	stateredis "github.com/numaproj/reducefn/pkg/state/redis"
)

// newStore builds the state store of the config. The returned function closes the store and its connection.
func newStore(ctx context.Context, cfg apis.StoreConfig) (state.Store, func() error, error) {
	var (
		store   state.Store
		closers []func() error
	)
	switch cfg.Type {
	case apis.StoreTypeInMem:
		store = inmem.NewStore("inmem")
	case apis.StoreTypeBadger:
		bc := cfg.Badger
		if bc == nil {
			bc = &apis.BadgerStoreConfig{}
		}
		s, err := badger.NewBadgerStore(ctx, bc)
		if err != nil {
			return nil, nil, err
		}
		store = s
	case apis.StoreTypeJetStream:
		client, err := jsclient.NewNATSClient(ctx, cfg.JetStream.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to %s, %w", cfg.JetStream.URL, err)
		}
		s, err := jetstream.NewJetStreamStore(ctx, cfg.JetStream.Bucket, client, jetstream.WithCreateBucket(1))
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		store = s
		closers = append(closers, func() error {
			client.Close()
			return nil
		})
	case apis.StoreTypeRedis:
		client := redisclient.NewRedisClientFromConfig(cfg.Redis)
		store = stateredis.NewRedisStore(ctx, client, cfg.Redis.Prefix)
	default:
		return nil, nil, fmt.Errorf("unsupported store type %q", cfg.Type)
	}

	if cfg.CacheSize > 0 {
		c, err := cached.NewStore(store, cfg.CacheSize)
		if err != nil {
			return nil, nil, multierr.Append(err, store.Close())
		}
		store = c
	}
	closers = append([]func() error{store.Close}, closers...)
	return store, func() error {
		var err error
		for _, c := range closers {
			err = multierr.Append(err, c())
		}
		return err
	}, nil
}
