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

package trigger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		expression string
		want       string
	}{
		{"AfterWatermark()", "AfterWatermark()"},
		{"Default()", "Repeatedly(AfterWatermark())"},
		{"Always()", "Repeatedly(AfterCount(1))"},
		{"Repeatedly(AfterPane(2))", "Repeatedly(AfterCount(2))"},
		{"OrFinally(Repeatedly(AfterCount(100)), AfterWatermark())", "OrFinally(Repeatedly(AfterCount(100)), AfterWatermark())"},
		{`AfterWatermarkWith(AfterProcessingTime("1m"), AfterCount(1))`, "AfterWatermark(Early: AfterProcessingTime(1m0s), Late: AfterCount(1))"},
		{`AfterWatermarkWith(nil, AfterCount(1))`, "AfterWatermark(Late: AfterCount(1))"},
		{`AfterProcessingTimeAligned("10s", "1m", "0s")`, "AfterProcessingTime(10s, align: 1m0s+0s)"},
		{"AfterAll(AfterCount(1), AfterWatermark())", "AfterAll(AfterCount(1), AfterWatermark())"},
		{"AfterAny(AfterCount(1), Never())", "AfterAny(AfterCount(1), Never())"},
		{"AfterEach(AfterCount(1), AfterCount(2))", "AfterEach(AfterCount(1), AfterCount(2))"},
	}
	for _, tt := range tests {
		t.Run(tt.expression, func(t *testing.T) {
			got, err := Parse(tt.expression)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []string{
		"AfterCount(0)",
		`AfterProcessingTime("soon")`,
		"Repeatedly(1)",
		"1 + 1",
		"Unknown()",
	}
	for _, expression := range tests {
		t.Run(expression, func(t *testing.T) {
			_, err := Parse(expression)
			assert.Error(t, err)
		})
	}
}

func TestParse_Durations(t *testing.T) {
	got, err := Parse(`AfterProcessingTime("90s")`)
	assert.NoError(t, err)
	assert.Equal(t, 90*time.Second, got.(*AfterProcessingTimeTrigger).Delay)
}
