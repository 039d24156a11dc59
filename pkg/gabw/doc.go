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

// Package gabw runs the group also by window step. A DoFn binds a reduce.Runner to the work item of one key and
// drives it through processElements, onTimer and persist. A Pool shards keys to a fixed set of workers so the
// invocations of a key never overlap, and a RetryingProcessor retries the invocations that failed transiently.
package gabw
