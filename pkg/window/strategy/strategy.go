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

// Package strategy builds the window assigner for a window configuration.
package strategy

import (
	"fmt"

	"github.com/numaproj/reducefn/pkg/apis"
	"github.com/numaproj/reducefn/pkg/window"
	"github.com/numaproj/reducefn/pkg/window/strategy/fixed"
	"github.com/numaproj/reducefn/pkg/window/strategy/global"
	"github.com/numaproj/reducefn/pkg/window/strategy/session"
	"github.com/numaproj/reducefn/pkg/window/strategy/sliding"
)

// NewAssigner returns the assigner for the given options.
func NewAssigner(opts ...window.Option) (window.Assigner, error) {
	o := window.DefaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	switch o.WindowType() {
	case apis.WindowTypeFixed:
		if o.WindowDuration() <= 0 {
			return nil, fmt.Errorf("%w: fixed window length must be positive", window.ErrInvalidWindowing)
		}
		return fixed.NewFixed(o.WindowDuration(), o.Offset()), nil
	case apis.WindowTypeSliding:
		if o.WindowDuration() <= 0 || o.Slide() <= 0 {
			return nil, fmt.Errorf("%w: sliding window length and slide must be positive", window.ErrInvalidWindowing)
		}
		if o.Slide() > o.WindowDuration() {
			return nil, fmt.Errorf("%w: sliding window slide %s is larger than the length %s", window.ErrInvalidWindowing, o.Slide(), o.WindowDuration())
		}
		return sliding.NewSliding(o.WindowDuration(), o.Slide(), o.Offset()), nil
	case apis.WindowTypeSession:
		if o.Gap() <= 0 {
			return nil, fmt.Errorf("%w: session gap must be positive", window.ErrInvalidWindowing)
		}
		return session.NewSession(o.Gap()), nil
	case apis.WindowTypeGlobal:
		return global.NewGlobal(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported window type %q", window.ErrInvalidWindowing, o.WindowType())
	}
}
