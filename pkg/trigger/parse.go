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
	"fmt"
	"strconv"
	"time"

	"github.com/antonmedv/expr"
)

// Parse builds a trigger tree from an expression, for example
//
//	OrFinally(Repeatedly(AfterCount(100)), AfterWatermark())
//	AfterWatermarkWith(AfterProcessingTime("1m"), AfterCount(1))
//
// Durations are given as strings accepted by time.ParseDuration.
func Parse(expression string) (Trigger, error) {
	result, err := expr.Eval(expression, funcMap())
	if err != nil {
		return nil, fmt.Errorf("unable to evaluate trigger expression '%s': %w", expression, err)
	}
	t, ok := result.(Trigger)
	if !ok {
		return nil, fmt.Errorf("%w: expression '%s' evaluates to %T", ErrInvalidTrigger, expression, result)
	}
	if err := Validate(t); err != nil {
		return nil, err
	}
	return t, nil
}

func funcMap() map[string]interface{} {
	return map[string]interface{}{
		"AfterWatermark": func() Trigger {
			return AfterWatermark()
		},
		"AfterWatermarkWith": func(early, late interface{}) Trigger {
			return AfterWatermark().WithEarlyFirings(_optionalTrigger(early)).WithLateFirings(_optionalTrigger(late))
		},
		"AfterCount": func(n interface{}) Trigger {
			return AfterCount(_int64(n))
		},
		"AfterPane": func(n interface{}) Trigger {
			return AfterCount(_int64(n))
		},
		"AfterProcessingTime": func(delay interface{}) Trigger {
			return AfterProcessingTime(_duration(delay))
		},
		"AfterProcessingTimeAligned": func(delay, period, offset interface{}) Trigger {
			return AfterProcessingTime(_duration(delay)).AlignedTo(_duration(period), _duration(offset))
		},
		"Repeatedly": func(sub interface{}) Trigger {
			return Repeatedly(_trigger(sub))
		},
		"OrFinally": func(main, until interface{}) Trigger {
			return OrFinally(_trigger(main), _trigger(until))
		},
		"AfterAll": func(subs ...interface{}) Trigger {
			return AfterAll(_triggers(subs)...)
		},
		"AfterAny": func(subs ...interface{}) Trigger {
			return AfterAny(_triggers(subs)...)
		},
		"AfterEach": func(subs ...interface{}) Trigger {
			return AfterEach(_triggers(subs)...)
		},
		"Never": func() Trigger {
			return Never()
		},
		"Default": func() Trigger {
			return Default()
		},
		"Always": func() Trigger {
			return Always()
		},
	}
}

func _trigger(v interface{}) Trigger {
	t, ok := v.(Trigger)
	if !ok || t == nil {
		panic(fmt.Errorf("%v is not a trigger", v))
	}
	return t
}

func _optionalTrigger(v interface{}) Trigger {
	if v == nil {
		return nil
	}
	return _trigger(v)
}

func _triggers(vs []interface{}) []Trigger {
	ts := make([]Trigger, 0, len(vs))
	for _, v := range vs {
		ts = append(ts, _trigger(v))
	}
	return ts
}

func _int64(v interface{}) int64 {
	switch w := v.(type) {
	case int:
		return int64(w)
	case int64:
		return w
	case float64:
		return int64(w)
	case string:
		i, err := strconv.ParseInt(w, 10, 64)
		if err != nil {
			panic(fmt.Errorf("cannot convert %q to int", v))
		}
		return i
	default:
		panic(fmt.Errorf("cannot convert %v to int", v))
	}
}

func _duration(v interface{}) time.Duration {
	switch w := v.(type) {
	case string:
		d, err := time.ParseDuration(w)
		if err != nil {
			panic(fmt.Errorf("cannot convert %q to duration", w))
		}
		return d
	case int:
		return time.Duration(w) * time.Millisecond
	default:
		panic(fmt.Errorf("cannot convert %v to duration", v))
	}
}
