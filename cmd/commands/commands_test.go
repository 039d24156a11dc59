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
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/reducefn/pkg/apis"
	"github.com/numaproj/reducefn/pkg/state/cached"
)

func Test_Commands(t *testing.T) {
	t.Run("root execute", func(t *testing.T) {
		b := bytes.NewBufferString("")
		rootCmd.SetOut(b)
		rootCmd.SetArgs([]string{"help"})
		Execute()
		output, _ := io.ReadAll(b)
		assert.Contains(t, string(output), "Available Commands")
	})

	t.Run("version", func(t *testing.T) {
		cmd := NewVersionCommand()
		assert.Equal(t, "version", cmd.Use)
		b := bytes.NewBufferString("")
		cmd.SetOut(b)
		cmd.SetArgs([]string{"--short"})
		require.NoError(t, cmd.Execute())
		assert.Contains(t, b.String(), "latest")
	})

	t.Run("run flags", func(t *testing.T) {
		cmd := NewRunCommand()
		assert.True(t, cmd.HasLocalFlags())
		assert.Equal(t, "run", cmd.Use)
		assert.Equal(t, "string", cmd.Flag("config").Value.Type())
		assert.Equal(t, "string", cmd.Flag("input").Value.Type())
		assert.Equal(t, "bool", cmd.Flag("no-metrics").Value.Type())
		assert.Equal(t, "int", cmd.Flag("batch-size").Value.Type())
	})

	t.Run("run", func(t *testing.T) {
		dir := t.TempDir()
		configPath := filepath.Join(dir, "reducefn.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("window:\n  type: fixed\n  length: 10m\ntrigger: AfterWatermark()\nreduce: count\nstore:\n  cacheSize: 16\n"), 0o644))
		input := `{"type":"element","key":"k","value":"a","timestamp":60000}
{"type":"element","key":"k","value":"b","timestamp":120000}
{"type":"watermark","timestamp":660000}
`
		cmd := NewRunCommand()
		out := bytes.NewBufferString("")
		cmd.SetOut(out)
		cmd.SetIn(strings.NewReader(input))
		cmd.SetArgs([]string{"--config", configPath, "--metrics-addr", "127.0.0.1:0"})
		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), `"key":"k"`)
		assert.Contains(t, out.String(), `"values":["2"]`)
		assert.Contains(t, out.String(), `"timing":"ON_TIME"`)
	})

	t.Run("run with invalid config", func(t *testing.T) {
		dir := t.TempDir()
		configPath := filepath.Join(dir, "reducefn.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("trigger: AfterCount(\n"), 0o644))
		cmd := NewRunCommand()
		cmd.SetArgs([]string{"--config", configPath, "--no-metrics"})
		cmd.SetIn(strings.NewReader(""))
		assert.Error(t, cmd.Execute())
	})
}

func TestNewStore(t *testing.T) {
	ctx := context.Background()
	store, closeStore, err := newStore(ctx, apis.StoreConfig{Type: apis.StoreTypeInMem})
	require.NoError(t, err)
	assert.Equal(t, "inmem", store.Name())
	assert.NoError(t, closeStore())

	store, closeStore, err = newStore(ctx, apis.StoreConfig{Type: apis.StoreTypeBadger, CacheSize: 8})
	require.NoError(t, err)
	_, ok := store.(*cached.Store)
	assert.True(t, ok)
	assert.Equal(t, "badger", store.Name())
	assert.NoError(t, closeStore())

	_, _, err = newStore(ctx, apis.StoreConfig{Type: "etcd"})
	assert.Error(t, err)
}
