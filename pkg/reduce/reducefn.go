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
	"strconv"

	"github.com/numaproj/reducefn/pkg/state"
)

// ReduceFn maintains the contents of a window. Buffering keeps the raw values, combining keeps a partial aggregate.
type ReduceFn interface {
	// Add adds a value to the window.
	Add(ws *state.WindowState, value []byte) error
	// Merge adds the contents of the windows in from to ws.
	Merge(ws *state.WindowState, from []*state.WindowState) error
	// Output returns the values of a pane of the window.
	Output(ws *state.WindowState) ([][]byte, error)
	// Clear empties the window.
	Clear(ws *state.WindowState)
}

// CombineFn incrementally aggregates values. AddInput and MergeAccumulators must be associative and commutative.
type CombineFn interface {
	CreateAccumulator() []byte
	AddInput(accumulator []byte, value []byte) ([]byte, error)
	MergeAccumulators(accumulators ...[]byte) ([]byte, error)
	ExtractOutput(accumulator []byte) ([]byte, error)
}

type buffering struct{}

// Buffering returns a ReduceFn that buffers the values, a pane carries all of them in arrival order.
func Buffering() ReduceFn {
	return buffering{}
}

func (buffering) Add(ws *state.WindowState, value []byte) error {
	ws.Values = append(ws.Values, value)
	return nil
}

func (buffering) Merge(ws *state.WindowState, from []*state.WindowState) error {
	for _, f := range from {
		ws.Values = append(ws.Values, f.Values...)
	}
	return nil
}

func (buffering) Output(ws *state.WindowState) ([][]byte, error) {
	out := make([][]byte, len(ws.Values))
	copy(out, ws.Values)
	return out, nil
}

func (buffering) Clear(ws *state.WindowState) {
	ws.Values = nil
}

type combining struct {
	fn CombineFn
}

// Combining returns a ReduceFn that aggregates the values with fn, a pane carries the extracted output.
func Combining(fn CombineFn) ReduceFn {
	return combining{fn: fn}
}

func (c combining) Add(ws *state.WindowState, value []byte) error {
	acc := ws.Accumulator
	if acc == nil {
		acc = c.fn.CreateAccumulator()
	}
	acc, err := c.fn.AddInput(acc, value)
	if err != nil {
		return err
	}
	ws.Accumulator = acc
	return nil
}

func (c combining) Merge(ws *state.WindowState, from []*state.WindowState) error {
	var accs [][]byte
	if ws.Accumulator != nil {
		accs = append(accs, ws.Accumulator)
	}
	for _, f := range from {
		if f.Accumulator != nil {
			accs = append(accs, f.Accumulator)
		}
	}
	if len(accs) == 0 {
		return nil
	}
	acc, err := c.fn.MergeAccumulators(accs...)
	if err != nil {
		return err
	}
	ws.Accumulator = acc
	return nil
}

func (c combining) Output(ws *state.WindowState) ([][]byte, error) {
	acc := ws.Accumulator
	if acc == nil {
		acc = c.fn.CreateAccumulator()
	}
	out, err := c.fn.ExtractOutput(acc)
	if err != nil {
		return nil, err
	}
	return [][]byte{out}, nil
}

func (c combining) Clear(ws *state.WindowState) {
	ws.Accumulator = nil
}

// int64Fn keeps the accumulator as a decimal integer.
type int64Fn struct {
	add func(acc int64, value []byte) (int64, error)
}

func (f int64Fn) CreateAccumulator() []byte {
	return []byte("0")
}

func (f int64Fn) AddInput(accumulator []byte, value []byte) ([]byte, error) {
	acc, err := parseInt64(accumulator)
	if err != nil {
		return nil, err
	}
	acc, err = f.add(acc, value)
	if err != nil {
		return nil, err
	}
	return strconv.AppendInt(nil, acc, 10), nil
}

func (f int64Fn) MergeAccumulators(accumulators ...[]byte) ([]byte, error) {
	var sum int64
	for _, a := range accumulators {
		v, err := parseInt64(a)
		if err != nil {
			return nil, err
		}
		sum += v
	}
	return strconv.AppendInt(nil, sum, 10), nil
}

func (f int64Fn) ExtractOutput(accumulator []byte) ([]byte, error) {
	return append([]byte(nil), accumulator...), nil
}

func parseInt64(b []byte) (int64, error) {
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not an int64 %q, %w", b, err)
	}
	return v, nil
}

// Count returns a CombineFn counting the values.
func Count() CombineFn {
	return int64Fn{add: func(acc int64, _ []byte) (int64, error) {
		return acc + 1, nil
	}}
}

// SumInt64 returns a CombineFn summing values that are decimal integers.
func SumInt64() CombineFn {
	return int64Fn{add: func(acc int64, value []byte) (int64, error) {
		v, err := parseInt64(value)
		if err != nil {
			return 0, err
		}
		return acc + v, nil
	}}
}
