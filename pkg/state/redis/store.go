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

// Package redis implements the state store using redis. The state of a key is a hash, every state id is a field of
// the hash. A commit is applied in a MULTI/EXEC transaction.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	redisclient "github.com/numaproj/reducefn/pkg/shared/clients/redis"
	"github.com/numaproj/reducefn/pkg/shared/logging"
	"github.com/numaproj/reducefn/pkg/state"
)

// redisStore implements the state store backed by redis hashes.
type redisStore struct {
	client *redisclient.RedisClient
	prefix string
	log    *zap.SugaredLogger
}

var (
	_ state.Store          = (*redisStore)(nil)
	_ state.BatchCommitter = (*redisStore)(nil)
)

// NewRedisStore returns a state store keeping the state of every key in the hash "<prefix>:<key>".
func NewRedisStore(ctx context.Context, client *redisclient.RedisClient, prefix string) state.Store {
	return &redisStore{
		client: client,
		prefix: prefix,
		log:    logging.FromContext(ctx).With("prefix", prefix),
	}
}

func (rs *redisStore) hashKey(key string) string {
	return rs.prefix + ":" + key
}

func (rs *redisStore) Read(ctx context.Context, key string, stateID string) ([]byte, error) {
	b, err := rs.client.Client.HGet(ctx, rs.hashKey(key), stateID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%s of key %q, %w", stateID, key, state.ErrNotFound)
	}
	if errors.Is(err, redis.ErrClosed) {
		return nil, state.ErrStoreClosed
	}
	return b, err
}

func (rs *redisStore) Write(ctx context.Context, key string, stateID string, value []byte) error {
	return rs.client.Client.HSet(ctx, rs.hashKey(key), stateID, value).Err()
}

func (rs *redisStore) Clear(ctx context.Context, key string, stateID string) error {
	return rs.client.Client.HDel(ctx, rs.hashKey(key), stateID).Err()
}

func (rs *redisStore) Commit(ctx context.Context, key string, mutations []state.Mutation) error {
	hk := rs.hashKey(key)
	_, err := rs.client.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, m := range mutations {
			if m.Delete {
				pipe.HDel(ctx, hk, m.StateID)
			} else {
				pipe.HSet(ctx, hk, m.StateID, m.Value)
			}
		}
		return nil
	})
	if err != nil {
		rs.log.Warnw("Failed to commit state", zap.String("key", key), zap.Error(err))
	}
	return err
}

func (rs *redisStore) Name() string {
	return "redis:" + rs.prefix
}

// IsHealthy pings the server.
func (rs *redisStore) IsHealthy(ctx context.Context) error {
	return rs.client.Ping(ctx)
}

func (rs *redisStore) Close() error {
	return rs.client.Close()
}
