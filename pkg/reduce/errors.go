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

package reduce

import (
	"errors"

	"github.com/numaproj/reducefn/pkg/trigger"
	"github.com/numaproj/reducefn/pkg/window"
)

var (
	// ErrInvalidStrategy is returned for a malformed windowing strategy.
	ErrInvalidStrategy = errors.New("invalid windowing strategy")
	// ErrMergeConflict is returned when a finished window is merged with windows still in progress.
	ErrMergeConflict = trigger.ErrMergeConflict
	// ErrInvalidElement is returned when the reduce function rejects an element.
	ErrInvalidElement = errors.New("invalid element")
	// ErrAlreadyPersisted is returned when a runner is used after Persist.
	ErrAlreadyPersisted = errors.New("runner already persisted")
)

// IsFatal reports whether retrying the invocation cannot succeed. Everything else, e.g. a failing state store, is
// transient.
func IsFatal(err error) bool {
	return errors.Is(err, ErrInvalidStrategy) ||
		errors.Is(err, ErrMergeConflict) ||
		errors.Is(err, ErrInvalidElement) ||
		errors.Is(err, ErrAlreadyPersisted) ||
		errors.Is(err, window.ErrInvalidWindowing) ||
		errors.Is(err, trigger.ErrInvalidTrigger) ||
		errors.Is(err, trigger.ErrIncompatibleState)
}
