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
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/reducefn/pkg/apis"
)

func TestNewRedisClientFromConfig(t *testing.T) {
	client := NewRedisClientFromConfig(&apis.RedisStoreConfig{
		Addr:     "localhost:6379",
		Password: "password",
		DB:       2,
	})
	defer func() { _ = client.Close() }()
	c, ok := client.Client.(*redis.Client)
	require.True(t, ok)
	assert.Equal(t, "localhost:6379", c.Options().Addr)
	assert.Equal(t, "password", c.Options().Password)
	assert.Equal(t, 2, c.Options().DB)
}

func TestNewRedisClientFromConfig_Cluster(t *testing.T) {
	client := NewRedisClientFromConfig(&apis.RedisStoreConfig{
		Addr: "redis-0:6379,redis-1:6379",
	})
	defer func() { _ = client.Close() }()
	_, ok := client.Client.(*redis.ClusterClient)
	assert.True(t, ok)
}

func TestRedisClient_Ping(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR is not set")
	}
	client := NewRedisClientFromConfig(&apis.RedisStoreConfig{Addr: addr})
	defer func() { _ = client.Close() }()
	ctx := context.Background()
	assert.NoError(t, client.Ping(ctx))
	assert.NoError(t, client.Client.Set(ctx, "reducefn-test", "v", 0).Err())
	assert.NoError(t, client.DeleteKeys(ctx, "reducefn-test"))
}
