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

package jetstream

// options for the jetstream state store.
type options struct {
	// createBucket creates the bucket when it does not exist
	createBucket bool
	// replicas of a created bucket
	replicas int
}

func defaultOptions() *options {
	return &options{
		createBucket: false,
		replicas:     1,
	}
}

// Option to apply to the jetstream state store
type Option func(*options)

// WithCreateBucket creates the bucket when it does not exist.
func WithCreateBucket(replicas int) Option {
	return func(o *options) {
		o.createBucket = true
		if replicas > 0 {
			o.replicas = replicas
		}
	}
}
