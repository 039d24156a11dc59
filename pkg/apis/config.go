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
	"fmt"
	"runtime"
	"time"
)

// RunnerConfig is the configuration of a group-also-by-window step.
type RunnerConfig struct {
	Window WindowConfig `json:"window"`
	// Trigger is the trigger expression, e.g. "Repeatedly(AfterCount(2))".
	Trigger string `json:"trigger"`
	// AllowedLateness is how long after the end of a window late data is still accepted.
	AllowedLateness  time.Duration    `json:"allowedLateness"`
	AccumulationMode AccumulationMode `json:"accumulationMode"`
	Reduce           ReduceType       `json:"reduce"`
	Store            StoreConfig      `json:"store"`
	// Workers is the number of keys processed in parallel.
	Workers int           `json:"workers"`
	Metrics MetricsConfig `json:"metrics"`
}

type WindowConfig struct {
	Type   WindowType    `json:"type"`
	Length time.Duration `json:"length"`
	// Slide is only used by sliding windows.
	Slide time.Duration `json:"slide"`
	// Gap is only used by session windows.
	Gap    time.Duration `json:"gap"`
	Offset time.Duration `json:"offset"`
}

type StoreConfig struct {
	Type StoreType `json:"type"`
	// CacheSize is the number of committed state entries kept in the read cache, 0 disables the cache.
	CacheSize int                   `json:"cacheSize"`
	JetStream *JetStreamStoreConfig `json:"jetstream,omitempty"`
	Redis     *RedisStoreConfig     `json:"redis,omitempty"`
	Badger    *BadgerStoreConfig    `json:"badger,omitempty"`
}

type JetStreamStoreConfig struct {
	URL    string `json:"url"`
	Bucket string `json:"bucket"`
}

type RedisStoreConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
}

type BadgerStoreConfig struct {
	// Dir is the data directory, an empty Dir keeps the data in memory.
	Dir string `json:"dir"`
}

type MetricsConfig struct {
	Port int `json:"port"`
}

// DefaultRunnerConfig returns a config with every field set to its default.
func DefaultRunnerConfig() *RunnerConfig {
	c := &RunnerConfig{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills in the fields that are not set.
func (c *RunnerConfig) ApplyDefaults() {
	if c.Window.Type == "" {
		c.Window.Type = DefaultWindowType
	}
	if c.Window.Length == 0 && (c.Window.Type == WindowTypeFixed || c.Window.Type == WindowTypeSliding) {
		c.Window.Length = DefaultWindowDuration
	}
	if c.Window.Gap == 0 && c.Window.Type == WindowTypeSession {
		c.Window.Gap = DefaultWindowDuration
	}
	if c.Trigger == "" {
		c.Trigger = DefaultTrigger
	}
	if c.AccumulationMode == "" {
		c.AccumulationMode = DefaultAccumulationMode
	}
	if c.Reduce == "" {
		c.Reduce = DefaultReduceType
	}
	if c.Store.Type == "" {
		c.Store.Type = DefaultStoreType
	}
	if c.Store.JetStream != nil && c.Store.JetStream.Bucket == "" {
		c.Store.JetStream.Bucket = DefaultJetStreamBucket
	}
	if c.Store.Redis != nil && c.Store.Redis.Prefix == "" {
		c.Store.Redis.Prefix = DefaultRedisPrefix
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
}

// Validate checks the config after defaults are applied.
func (c *RunnerConfig) Validate() error {
	switch c.Window.Type {
	case WindowTypeFixed:
		if c.Window.Length <= 0 {
			return fmt.Errorf("fixed window length must be positive, got %s", c.Window.Length)
		}
	case WindowTypeSliding:
		if c.Window.Length <= 0 || c.Window.Slide <= 0 {
			return fmt.Errorf("sliding window length and slide must be positive, got %s and %s", c.Window.Length, c.Window.Slide)
		}
	case WindowTypeSession:
		if c.Window.Gap <= 0 {
			return fmt.Errorf("session window gap must be positive, got %s", c.Window.Gap)
		}
	case WindowTypeGlobal:
	default:
		return fmt.Errorf("unsupported window type %q", c.Window.Type)
	}
	if c.AllowedLateness < 0 {
		return fmt.Errorf("allowed lateness must not be negative, got %s", c.AllowedLateness)
	}
	switch c.AccumulationMode {
	case AccumulationModeDiscarding, AccumulationModeAccumulating:
	default:
		return fmt.Errorf("unsupported accumulation mode %q", c.AccumulationMode)
	}
	switch c.Reduce {
	case ReduceTypeBuffering, ReduceTypeCount, ReduceTypeSum:
	default:
		return fmt.Errorf("unsupported reduce type %q", c.Reduce)
	}
	switch c.Store.Type {
	case StoreTypeInMem, StoreTypeBadger:
	case StoreTypeJetStream:
		if c.Store.JetStream == nil || c.Store.JetStream.URL == "" {
			return fmt.Errorf("jetstream store requires a url")
		}
	case StoreTypeRedis:
		if c.Store.Redis == nil || c.Store.Redis.Addr == "" {
			return fmt.Errorf("redis store requires an addr")
		}
	default:
		return fmt.Errorf("unsupported store type %q", c.Store.Type)
	}
	if c.Store.CacheSize < 0 {
		return fmt.Errorf("store cache size must not be negative, got %d", c.Store.CacheSize)
	}
	return nil
}
