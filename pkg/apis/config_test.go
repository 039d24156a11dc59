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

package apis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultRunnerConfig(t *testing.T) {
	c := DefaultRunnerConfig()
	assert.Equal(t, WindowTypeFixed, c.Window.Type)
	assert.Equal(t, time.Minute, c.Window.Length)
	assert.Equal(t, DefaultTrigger, c.Trigger)
	assert.Equal(t, AccumulationModeDiscarding, c.AccumulationMode)
	assert.Equal(t, ReduceTypeBuffering, c.Reduce)
	assert.Equal(t, StoreTypeInMem, c.Store.Type)
	assert.Greater(t, c.Workers, 0)
	assert.NoError(t, c.Validate())
}

func TestRunnerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *RunnerConfig)
		wantErr string
	}{
		{
			name:    "sliding without slide",
			mutate:  func(c *RunnerConfig) { c.Window.Type = WindowTypeSliding },
			wantErr: "sliding window length and slide must be positive",
		},
		{
			name:   "session with gap",
			mutate: func(c *RunnerConfig) { c.Window = WindowConfig{Type: WindowTypeSession, Gap: time.Minute} },
		},
		{
			name:    "negative lateness",
			mutate:  func(c *RunnerConfig) { c.AllowedLateness = -time.Second },
			wantErr: "allowed lateness must not be negative",
		},
		{
			name:    "unknown mode",
			mutate:  func(c *RunnerConfig) { c.AccumulationMode = "retracting" },
			wantErr: "unsupported accumulation mode",
		},
		{
			name:    "redis without addr",
			mutate:  func(c *RunnerConfig) { c.Store.Type = StoreTypeRedis },
			wantErr: "redis store requires an addr",
		},
		{
			name:    "unknown window",
			mutate:  func(c *RunnerConfig) { c.Window.Type = "calendar" },
			wantErr: "unsupported window type",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultRunnerConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestApplyDefaults_StoreSettings(t *testing.T) {
	c := &RunnerConfig{Store: StoreConfig{Type: StoreTypeRedis, Redis: &RedisStoreConfig{Addr: "localhost:6379"}}}
	c.ApplyDefaults()
	assert.Equal(t, DefaultRedisPrefix, c.Store.Redis.Prefix)
	assert.NoError(t, c.Validate())
}
