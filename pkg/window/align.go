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

package window

import "time"

// AlignedStart returns the start of the aligned window of the given size that contains eventTime. Boundaries are
// the multiples of size shifted by offset, the arithmetic floors so that negative event times are aligned too.
func AlignedStart(eventTime time.Time, size time.Duration, offset time.Duration) time.Time {
	sizeMs := size.Milliseconds()
	if sizeMs <= 0 {
		return time.UnixMilli(eventTime.UnixMilli()).UTC()
	}
	offsetMs := offset.Milliseconds() % sizeMs
	if offsetMs < 0 {
		offsetMs += sizeMs
	}
	rem := (eventTime.UnixMilli() - offsetMs) % sizeMs
	if rem < 0 {
		rem += sizeMs
	}
	return time.UnixMilli(eventTime.UnixMilli() - rem).UTC()
}
