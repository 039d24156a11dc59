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

package driver

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// eventClock is the processing time clock of the driver, it only moves on processing_time events.
type eventClock struct {
	lock sync.RWMutex
	now  time.Time
}

var _ clock.PassiveClock = (*eventClock)(nil)

func (c *eventClock) Now() time.Time {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.now
}

func (c *eventClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// advance moves the clock forward, it never goes back.
func (c *eventClock) advance(t time.Time) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	if !t.After(c.now) {
		return false
	}
	c.now = t
	return true
}
