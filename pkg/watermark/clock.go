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

package watermark

import (
	"time"

	"k8s.io/utils/clock"
)

// ProcessingClock reads processing time at millisecond precision.
type ProcessingClock struct {
	clock clock.PassiveClock
}

// NewProcessingClock returns a processing clock backed by c, nil uses the wall clock.
func NewProcessingClock(c clock.PassiveClock) *ProcessingClock {
	if c == nil {
		c = clock.RealClock{}
	}
	return &ProcessingClock{clock: c}
}

// Now returns the current processing time.
func (p *ProcessingClock) Now() time.Time {
	return time.UnixMilli(p.clock.Now().UnixMilli()).UTC()
}
