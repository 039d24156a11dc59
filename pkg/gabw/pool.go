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
	"sync"

	"github.com/spaolacci/murmur3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/numaproj/reducefn/pkg/reduce"
	"github.com/numaproj/reducefn/pkg/shared/logging"
)

// Pool processes work items on a fixed number of workers. A key always hashes to the same worker and the worker
// holds its lock for the whole batch, so two invocations of a key never run at the same time, even across
// concurrent calls to Process.
type Pool struct {
	processor Processor
	workers   []sync.Mutex
}

// NewPool returns a pool of n workers.
func NewPool(p Processor, n int) (*Pool, error) {
	if p == nil {
		return nil, fmt.Errorf("processor is required")
	}
	if n <= 0 {
		return nil, fmt.Errorf("number of workers must be positive, got %d", n)
	}
	return &Pool{processor: p, workers: make([]sync.Mutex, n)}, nil
}

// Workers returns the number of workers.
func (p *Pool) Workers() int {
	return len(p.workers)
}

func (p *Pool) shard(key string) int {
	return int(murmur3.Sum32([]byte(key)) % uint32(len(p.workers)))
}

// Process runs the items and returns their panes in the order of the items. Items of the same key run in order on
// one worker, different keys run in parallel. The first failure cancels the remaining items of the batch.
func (p *Pool) Process(ctx context.Context, items []KeyedWorkItem) ([]reduce.Pane, error) {
	shards := make(map[int][]int)
	for i, item := range items {
		s := p.shard(item.Key)
		shards[s] = append(shards[s], i)
	}
	results := make([][]reduce.Pane, len(items))

	log := logging.FromContext(ctx)
	g, gCtx := errgroup.WithContext(ctx)
	for s, indexes := range shards {
		s, indexes := s, indexes
		g.Go(func() error {
			p.workers[s].Lock()
			defer p.workers[s].Unlock()
			for _, i := range indexes {
				if err := gCtx.Err(); err != nil {
					return err
				}
				panes, err := p.processor.Process(gCtx, items[i])
				if err != nil {
					log.Errorw("Failed to process work item", zap.String("key", items[i].Key), zap.Int("worker", s), zap.Error(err))
					return err
				}
				results[i] = panes
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var panes []reduce.Pane
	for _, r := range results {
		panes = append(panes, r...)
	}
	return panes, nil
}
