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

// Package config loads the runner configuration file.
package config

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/numaproj/reducefn/pkg/apis"
)

// Config is the loaded runner configuration. It is replaced when the file changes and the new content is valid.
type Config struct {
	lock *sync.RWMutex
	conf *apis.RunnerConfig
}

// Get returns a copy of the current configuration.
func (c *Config) Get() apis.RunnerConfig {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return *c.conf
}

func (c *Config) set(conf *apis.RunnerConfig) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.conf = conf
}

func unmarshal(v *viper.Viper) (*apis.RunnerConfig, error) {
	conf := &apis.RunnerConfig{}
	if err := v.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("failed unmarshal configuration file. %w", err)
	}
	conf.ApplyDefaults()
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration. %w", err)
	}
	return conf, nil
}

// LoadConfig reads the YAML file at path and watches it. onChange is called with the new configuration after every
// change of the file, or with the error if the new content is invalid, in which case the previous configuration
// stays. An empty path returns the default configuration.
func LoadConfig(path string, onChange func(*apis.RunnerConfig, error)) (*Config, error) {
	c := &Config{lock: new(sync.RWMutex)}
	if path == "" {
		c.conf = apis.DefaultRunnerConfig()
		return c, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration file. %w", err)
	}
	conf, err := unmarshal(v)
	if err != nil {
		return nil, err
	}
	c.conf = conf
	v.OnConfigChange(func(e fsnotify.Event) {
		cf, err := unmarshal(v)
		if err != nil {
			if onChange != nil {
				onChange(nil, err)
			}
			return
		}
		c.set(cf)
		if onChange != nil {
			onChange(cf, nil)
		}
	})
	v.WatchConfig()
	return c, nil
}
