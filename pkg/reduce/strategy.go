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
	"fmt"
	"time"

	"github.com/numaproj/reducefn/pkg/apis"
	"github.com/numaproj/reducefn/pkg/trigger"
	"github.com/numaproj/reducefn/pkg/window"
	"github.com/numaproj/reducefn/pkg/window/strategy"
)

// WindowingStrategy bundles how elements are windowed, when panes are emitted and what they contain. It is immutable
// once built and shared by all the keys.
type WindowingStrategy struct {
	assigner        window.Assigner
	merger          window.Merger
	evaluator       *trigger.Evaluator
	allowedLateness time.Duration
	mode            apis.AccumulationMode
	reduceFn        ReduceFn
}

// Option to apply to the windowing strategy.
type Option func(*WindowingStrategy) error

// WithAllowedLateness sets how long after the end of a window elements are still accepted.
func WithAllowedLateness(d time.Duration) Option {
	return func(s *WindowingStrategy) error {
		if d < 0 {
			return fmt.Errorf("%w: allowed lateness must not be negative, got %s", ErrInvalidStrategy, d)
		}
		s.allowedLateness = d
		return nil
	}
}

// WithAccumulationMode sets the accumulation mode.
func WithAccumulationMode(mode apis.AccumulationMode) Option {
	return func(s *WindowingStrategy) error {
		switch mode {
		case apis.AccumulationModeDiscarding, apis.AccumulationModeAccumulating:
			s.mode = mode
			return nil
		default:
			return fmt.Errorf("%w: unsupported accumulation mode %q", ErrInvalidStrategy, mode)
		}
	}
}

// WithReduceFn sets how the contents of a window are kept.
func WithReduceFn(fn ReduceFn) Option {
	return func(s *WindowingStrategy) error {
		if fn == nil {
			return fmt.Errorf("%w: nil reduce function", ErrInvalidStrategy)
		}
		s.reduceFn = fn
		return nil
	}
}

// NewWindowingStrategy returns a strategy windowing with the assigner and firing with the trigger. It defaults to no
// allowed lateness, discarding mode and buffering.
func NewWindowingStrategy(assigner window.Assigner, t trigger.Trigger, opts ...Option) (*WindowingStrategy, error) {
	if assigner == nil {
		return nil, fmt.Errorf("%w: nil window assigner", ErrInvalidStrategy)
	}
	if t == nil {
		return nil, fmt.Errorf("%w: nil trigger", ErrInvalidStrategy)
	}
	evaluator, err := trigger.NewEvaluator(t)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStrategy, err)
	}
	s := &WindowingStrategy{
		assigner:        assigner,
		evaluator:       evaluator,
		allowedLateness: apis.DefaultAllowedLateness,
		mode:            apis.DefaultAccumulationMode,
		reduceFn:        Buffering(),
	}
	if m, ok := assigner.(window.Merger); ok {
		s.merger = m
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// NewWindowingStrategyFromConfig builds the strategy of a runner config.
func NewWindowingStrategyFromConfig(cfg *apis.RunnerConfig) (*WindowingStrategy, error) {
	assigner, err := strategy.NewAssigner(window.WithConfig(cfg.Window))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStrategy, err)
	}
	t, err := trigger.Parse(cfg.Trigger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStrategy, err)
	}
	var fn ReduceFn
	switch cfg.Reduce {
	case apis.ReduceTypeBuffering, "":
		fn = Buffering()
	case apis.ReduceTypeCount:
		fn = Combining(Count())
	case apis.ReduceTypeSum:
		fn = Combining(SumInt64())
	default:
		return nil, fmt.Errorf("%w: unsupported reduce type %q", ErrInvalidStrategy, cfg.Reduce)
	}
	return NewWindowingStrategy(assigner, t,
		WithAllowedLateness(cfg.AllowedLateness),
		WithAccumulationMode(cfg.AccumulationMode),
		WithReduceFn(fn))
}

func (s *WindowingStrategy) Assigner() window.Assigner {
	return s.assigner
}

// IsMerging reports whether windows of a key are merged after assignment.
func (s *WindowingStrategy) IsMerging() bool {
	return s.merger != nil
}

func (s *WindowingStrategy) Trigger() trigger.Trigger {
	return s.evaluator.Root()
}

func (s *WindowingStrategy) AllowedLateness() time.Duration {
	return s.allowedLateness
}

func (s *WindowingStrategy) AccumulationMode() apis.AccumulationMode {
	return s.mode
}

// GarbageCollectionTime returns the instant the window expires at, once the watermark passed it elements are late
// and the window is deleted.
func (s *WindowingStrategy) GarbageCollectionTime(w window.Window) time.Time {
	maxTs := w.MaxTimestamp()
	if window.MaxTimestamp.Sub(maxTs) < s.allowedLateness {
		return window.MaxTimestamp
	}
	return maxTs.Add(s.allowedLateness)
}

func (s *WindowingStrategy) String() string {
	return fmt.Sprintf("%s windows, trigger %s, allowed lateness %s, %s", s.assigner.Strategy(), s.evaluator.Root(), s.allowedLateness, s.mode)
}
