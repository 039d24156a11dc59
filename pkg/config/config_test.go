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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/reducefn/pkg/apis"
)

const testConfig = `
window:
  type: session
  gap: 5m
trigger: Repeatedly(AfterCount(2))
allowedLateness: 1m
accumulationMode: accumulating
reduce: count
store:
  type: redis
  cacheSize: 128
  redis:
    addr: localhost:6379
workers: 4
`

func writeConfig(t *testing.T, dir, content string) string {
	path := filepath.Join(dir, "reducefn.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, t.TempDir(), testConfig)
	c, err := LoadConfig(path, nil)
	require.NoError(t, err)
	conf := c.Get()
	assert.Equal(t, apis.WindowTypeSession, conf.Window.Type)
	assert.Equal(t, 5*time.Minute, conf.Window.Gap)
	assert.Equal(t, "Repeatedly(AfterCount(2))", conf.Trigger)
	assert.Equal(t, time.Minute, conf.AllowedLateness)
	assert.Equal(t, apis.AccumulationModeAccumulating, conf.AccumulationMode)
	assert.Equal(t, apis.ReduceTypeCount, conf.Reduce)
	assert.Equal(t, apis.StoreTypeRedis, conf.Store.Type)
	assert.Equal(t, 128, conf.Store.CacheSize)
	require.NotNil(t, conf.Store.Redis)
	assert.Equal(t, "localhost:6379", conf.Store.Redis.Addr)
	assert.Equal(t, apis.DefaultRedisPrefix, conf.Store.Redis.Prefix)
	assert.Equal(t, 4, conf.Workers)
	assert.Equal(t, apis.DefaultMetricsPort, conf.Metrics.Port)
}

func TestLoadConfig_Default(t *testing.T) {
	c, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, *apis.DefaultRunnerConfig(), c.Get())
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.ErrorContains(t, err, "failed to load configuration file")

	path := writeConfig(t, t.TempDir(), "window:\n  type: tumbling\n")
	_, err = LoadConfig(path, nil)
	assert.ErrorContains(t, err, "unsupported window type")
}

func TestLoadConfig_Reload(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, testConfig)
	changes := make(chan *apis.RunnerConfig, 10)
	errs := make(chan error, 10)
	c, err := LoadConfig(path, func(conf *apis.RunnerConfig, err error) {
		if err != nil {
			errs <- err
			return
		}
		changes <- conf
	})
	require.NoError(t, err)

	writeConfig(t, dir, "window:\n  type: fixed\n  length: 30s\n")
	// a rewrite may be observed more than once, e.g. truncated first
	timeout := time.After(5 * time.Second)
	for observed := false; !observed; {
		select {
		case conf := <-changes:
			observed = conf.Window.Length == 30*time.Second
		case <-timeout:
			t.Fatal("configuration change was not observed")
		}
	}
	assert.Eventually(t, func() bool {
		return c.Get().Window.Type == apis.WindowTypeFixed
	}, 5*time.Second, 10*time.Millisecond)

	writeConfig(t, dir, "window:\n  type: tumbling\n")
	select {
	case err := <-errs:
		assert.ErrorContains(t, err, "unsupported window type")
	case <-time.After(5 * time.Second):
		t.Fatal("invalid configuration was not reported")
	}
	assert.Equal(t, apis.WindowTypeFixed, c.Get().Window.Type)
}
