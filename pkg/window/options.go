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

import (
	"time"

	"github.com/numaproj/reducefn/pkg/apis"
)

type Options struct {
	// windowType to specify the window type(fixed, sliding, session or global)
	windowType apis.WindowType
	// windowDuration to specify the duration of the window
	windowDuration time.Duration
	// slide is the interval at which sliding windows start
	slide time.Duration
	// gap is the inactivity gap of session windows
	gap time.Duration
	// offset shifts aligned window boundaries
	offset time.Duration
}

func DefaultOptions() *Options {
	return &Options{
		windowType:     apis.DefaultWindowType,
		windowDuration: apis.DefaultWindowDuration,
	}
}

type Option func(options *Options) error

// WithWindowType sets the window type
func WithWindowType(wt apis.WindowType) Option {
	return func(o *Options) error {
		o.windowType = wt
		return nil
	}
}

// WithWindowDuration sets the window duration
func WithWindowDuration(wd time.Duration) Option {
	return func(o *Options) error {
		o.windowDuration = wd
		return nil
	}
}

// WithSlide sets the slide of sliding windows
func WithSlide(slide time.Duration) Option {
	return func(o *Options) error {
		o.slide = slide
		return nil
	}
}

// WithGap sets the gap of session windows
func WithGap(gap time.Duration) Option {
	return func(o *Options) error {
		o.gap = gap
		return nil
	}
}

// WithOffset sets the offset of fixed and sliding windows
func WithOffset(offset time.Duration) Option {
	return func(o *Options) error {
		o.offset = offset
		return nil
	}
}

// WithConfig sets every option from the window config.
func WithConfig(c apis.WindowConfig) Option {
	return func(o *Options) error {
		o.windowType = c.Type
		o.windowDuration = c.Length
		o.slide = c.Slide
		o.gap = c.Gap
		o.offset = c.Offset
		return nil
	}
}

func (o *Options) WindowType() apis.WindowType {
	return o.windowType
}

func (o *Options) WindowDuration() time.Duration {
	return o.windowDuration
}

func (o *Options) Slide() time.Duration {
	return o.slide
}

func (o *Options) Gap() time.Duration {
	return o.gap
}

func (o *Options) Offset() time.Duration {
	return o.offset
}
