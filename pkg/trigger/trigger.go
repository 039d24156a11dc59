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

// Package trigger decides when the contents of a window are emitted as a pane. A trigger is a tree built from a
// closed set of primitives and composites, it is compiled by an Evaluator which keeps the progress of every node in
// a State. The State is plain data so that it can be persisted along with the window and restored in a later
// invocation.
//
// The evaluation model follows three steps per event, onElement records the event, shouldFire reports whether the
// trigger is ready and onFire commits the firing which may finish a node. A finished node never fires again until one
// of its ancestors resets it.
package trigger

import (
	"fmt"
	"strings"
	"time"
)

// Trigger is a node of a trigger tree. The set of implementations is closed, use the constructors of this package.
type Trigger interface {
	fmt.Stringer
	children() []Trigger
	onElement(c *evalContext, n int)
	shouldFire(c *evalContext, n int) bool
	onFire(c *evalContext, n int)
}

// AfterWatermarkTrigger fires once when the watermark passes the end of the window. Before that the optional Early
// trigger fires speculative panes, after that the optional Late trigger fires for late data. Without a Late trigger
// the node finishes with the on time firing.
type AfterWatermarkTrigger struct {
	Early Trigger
	Late  Trigger
}

// AfterWatermark returns a trigger that fires once at the end of the window.
func AfterWatermark() *AfterWatermarkTrigger {
	return &AfterWatermarkTrigger{}
}

// WithEarlyFirings sets the trigger used before the end of the window.
func (t *AfterWatermarkTrigger) WithEarlyFirings(early Trigger) *AfterWatermarkTrigger {
	t.Early = early
	return t
}

// WithLateFirings sets the trigger used after the end of the window.
func (t *AfterWatermarkTrigger) WithLateFirings(late Trigger) *AfterWatermarkTrigger {
	t.Late = late
	return t
}

func (t *AfterWatermarkTrigger) String() string {
	var opts []string
	if t.Early != nil {
		opts = append(opts, "Early: "+t.Early.String())
	}
	if t.Late != nil {
		opts = append(opts, "Late: "+t.Late.String())
	}
	if len(opts) == 0 {
		return "AfterWatermark()"
	}
	return fmt.Sprintf("AfterWatermark(%s)", strings.Join(opts, ", "))
}

func (t *AfterWatermarkTrigger) children() []Trigger {
	var subs []Trigger
	if t.Early != nil {
		subs = append(subs, t.Early)
	}
	if t.Late != nil {
		subs = append(subs, t.Late)
	}
	return subs
}

// AfterCountTrigger fires once at least Count elements arrived since it was last reset.
type AfterCountTrigger struct {
	Count int64
}

// AfterCount returns a trigger that fires after n elements.
func AfterCount(n int64) *AfterCountTrigger {
	return &AfterCountTrigger{Count: n}
}

func (t *AfterCountTrigger) String() string {
	return fmt.Sprintf("AfterCount(%d)", t.Count)
}

func (t *AfterCountTrigger) children() []Trigger {
	return nil
}

// AfterProcessingTimeTrigger fires once Delay of processing time passed since the first element of the current pane.
// When AlignPeriod is set the deadline is moved up to the next multiple of the period, shifted by AlignOffset.
type AfterProcessingTimeTrigger struct {
	Delay       time.Duration
	AlignPeriod time.Duration
	AlignOffset time.Duration
}

// AfterProcessingTime returns a trigger that fires the delay after the first element.
func AfterProcessingTime(delay time.Duration) *AfterProcessingTimeTrigger {
	return &AfterProcessingTimeTrigger{Delay: delay}
}

// AlignedTo aligns the deadline to the period.
func (t *AfterProcessingTimeTrigger) AlignedTo(period, offset time.Duration) *AfterProcessingTimeTrigger {
	t.AlignPeriod = period
	t.AlignOffset = offset
	return t
}

func (t *AfterProcessingTimeTrigger) String() string {
	if t.AlignPeriod > 0 {
		return fmt.Sprintf("AfterProcessingTime(%s, align: %s+%s)", t.Delay, t.AlignPeriod, t.AlignOffset)
	}
	return fmt.Sprintf("AfterProcessingTime(%s)", t.Delay)
}

func (t *AfterProcessingTimeTrigger) children() []Trigger {
	return nil
}

// deadline computes the firing time for a pane whose first element arrived at start.
func (t *AfterProcessingTimeTrigger) deadline(start time.Time) time.Time {
	ms := start.UnixMilli() + t.Delay.Milliseconds()
	if period := t.AlignPeriod.Milliseconds(); period > 0 {
		offset := t.AlignOffset.Milliseconds()
		adjusted := ms - offset
		rem := adjusted % period
		if rem < 0 {
			rem += period
		}
		ms = adjusted - rem + period + offset
	}
	return time.UnixMilli(ms).UTC()
}

// RepeatedlyTrigger fires whenever Repeated fires and re-arms it afterwards. It never finishes on its own.
type RepeatedlyTrigger struct {
	Repeated Trigger
}

// Repeatedly returns a trigger that repeats sub forever.
func Repeatedly(sub Trigger) *RepeatedlyTrigger {
	return &RepeatedlyTrigger{Repeated: sub}
}

func (t *RepeatedlyTrigger) String() string {
	return fmt.Sprintf("Repeatedly(%v)", t.Repeated)
}

func (t *RepeatedlyTrigger) children() []Trigger {
	return []Trigger{t.Repeated}
}

// OrFinallyTrigger fires whenever Main fires and finishes when Until fires or Main finishes.
type OrFinallyTrigger struct {
	Main  Trigger
	Until Trigger
}

// OrFinally returns a trigger that fires per main until until fires.
func OrFinally(main, until Trigger) *OrFinallyTrigger {
	return &OrFinallyTrigger{Main: main, Until: until}
}

func (t *OrFinallyTrigger) String() string {
	return fmt.Sprintf("OrFinally(%v, %v)", t.Main, t.Until)
}

func (t *OrFinallyTrigger) children() []Trigger {
	return []Trigger{t.Main, t.Until}
}

// AfterAllTrigger fires once all of its unfinished sub triggers are ready, a logical AND.
type AfterAllTrigger struct {
	SubTriggers []Trigger
}

func AfterAll(subs ...Trigger) *AfterAllTrigger {
	return &AfterAllTrigger{SubTriggers: subs}
}

func (t *AfterAllTrigger) String() string {
	return fmt.Sprintf("AfterAll(%s)", join(t.SubTriggers))
}

func (t *AfterAllTrigger) children() []Trigger {
	return t.SubTriggers
}

// AfterAnyTrigger fires and finishes the first time any of its sub triggers is ready, a logical OR.
type AfterAnyTrigger struct {
	SubTriggers []Trigger
}

func AfterAny(subs ...Trigger) *AfterAnyTrigger {
	return &AfterAnyTrigger{SubTriggers: subs}
}

func (t *AfterAnyTrigger) String() string {
	return fmt.Sprintf("AfterAny(%s)", join(t.SubTriggers))
}

func (t *AfterAnyTrigger) children() []Trigger {
	return t.SubTriggers
}

// AfterEachTrigger runs its sub triggers in sequence. It fires whenever the current sub trigger fires and moves on to
// the next one once the current one finishes.
type AfterEachTrigger struct {
	SubTriggers []Trigger
}

func AfterEach(subs ...Trigger) *AfterEachTrigger {
	return &AfterEachTrigger{SubTriggers: subs}
}

func (t *AfterEachTrigger) String() string {
	return fmt.Sprintf("AfterEach(%s)", join(t.SubTriggers))
}

func (t *AfterEachTrigger) children() []Trigger {
	return t.SubTriggers
}

// NeverTrigger never fires. Only the final pane at garbage collection is emitted.
type NeverTrigger struct{}

func Never() *NeverTrigger {
	return &NeverTrigger{}
}

func (t *NeverTrigger) String() string {
	return "Never()"
}

func (t *NeverTrigger) children() []Trigger {
	return nil
}

// Default fires at the end of the window and then for every batch of late data.
func Default() Trigger {
	return Repeatedly(AfterWatermark())
}

// Always fires for every batch of elements.
func Always() Trigger {
	return Repeatedly(AfterCount(1))
}

func join(subs []Trigger) string {
	s := make([]string, 0, len(subs))
	for _, sub := range subs {
		s = append(s, fmt.Sprintf("%v", sub))
	}
	return strings.Join(s, ", ")
}
