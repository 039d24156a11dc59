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

import "time"

type WindowType string

const (
	WindowTypeFixed   WindowType = "fixed"
	WindowTypeSliding WindowType = "sliding"
	WindowTypeSession WindowType = "session"
	WindowTypeGlobal  WindowType = "global"
)

// AccumulationMode decides what happens to the contents of a window after a pane is emitted.
type AccumulationMode string

const (
	// AccumulationModeDiscarding clears the window contents after every pane, panes only carry new data.
	AccumulationModeDiscarding AccumulationMode = "discarding"
	// AccumulationModeAccumulating keeps the window contents, every pane carries everything seen so far.
	AccumulationModeAccumulating AccumulationMode = "accumulating"
)

type ReduceType string

const (
	ReduceTypeBuffering ReduceType = "buffering"
	ReduceTypeCount     ReduceType = "count"
	ReduceTypeSum       ReduceType = "sum"
)

type StoreType string

const (
	StoreTypeInMem     StoreType = "inmem"
	StoreTypeJetStream StoreType = "jetstream"
	StoreTypeRedis     StoreType = "redis"
	StoreTypeBadger    StoreType = "badger"
)

const (
	DefaultWindowType       = WindowTypeFixed
	DefaultWindowDuration   = time.Minute
	DefaultAllowedLateness  = time.Duration(0)
	DefaultAccumulationMode = AccumulationModeDiscarding
	DefaultReduceType       = ReduceTypeBuffering
	DefaultStoreType        = StoreTypeInMem
	DefaultTrigger          = "Default()"
	DefaultStateCacheSize   = 1024
	DefaultMetricsPort      = 2469
	DefaultRedisPrefix      = "reducefn"
	DefaultJetStreamBucket  = "reducefn-state"
)
