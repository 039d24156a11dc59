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

package gabw

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/numaproj/reducefn/pkg/reduce"
	"github.com/numaproj/reducefn/pkg/shared/logging"
	"github.com/numaproj/reducefn/pkg/shared/util"
)

// RetryingProcessor retries the invocations that failed with a transient error. Every attempt re-reads the
// committed state, so a retry derives the same panes as the failed attempt would have.
type RetryingProcessor struct {
	processor Processor
	backoff   wait.Backoff
}

var _ Processor = (*RetryingProcessor)(nil)

// NewRetryingProcessor wraps the processor, the backoff defaults to util.DefaultRetryBackoff.
func NewRetryingProcessor(p Processor, backoff ...wait.Backoff) *RetryingProcessor {
	b := util.DefaultRetryBackoff
	if len(backoff) > 0 {
		b = backoff[0]
	}
	return &RetryingProcessor{processor: p, backoff: b}
}

func (r *RetryingProcessor) Process(ctx context.Context, item KeyedWorkItem) ([]reduce.Pane, error) {
	var (
		panes   []reduce.Pane
		lastErr error
		attempt int
	)
	log := logging.FromContext(ctx)
	err := wait.ExponentialBackoff(r.backoff, func() (done bool, err error) {
		attempt++
		panes, lastErr = r.processor.Process(ctx, item)
		if lastErr == nil {
			return true, nil
		}
		if reduce.IsFatal(lastErr) {
			return false, lastErr
		}
		select {
		case <-ctx.Done():
			// no point retrying after we have been asked to stop
			return false, fmt.Errorf("%v, %w", lastErr, ctx.Err())
		default:
			log.Warnw("Invocation failed, retrying", zap.String("key", item.Key), zap.Int("attempt", attempt), zap.Error(lastErr))
			return false, nil
		}
	})
	if err != nil {
		if wait.Interrupted(err) {
			return nil, fmt.Errorf("giving up on key %q after %d attempt(s), %w", item.Key, attempt, lastErr)
		}
		return nil, err
	}
	return panes, nil
}
