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

package watermark

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/numaproj/reducefn/pkg/shared/logging"
)

// Fetcher fetches the current input watermark of the key partition.
type Fetcher interface {
	// GetWatermark returns the current watermark.
	GetWatermark() Watermark
}

// ManualFetcher is a Fetcher whose watermark is advanced explicitly, it is used by the local driver and tests.
type ManualFetcher struct {
	lock      sync.RWMutex
	watermark Watermark
	log       *zap.SugaredLogger
}

var _ Fetcher = (*ManualFetcher)(nil)

// NewManualFetcher returns a fetcher starting at the initial watermark.
func NewManualFetcher() *ManualFetcher {
	return &ManualFetcher{
		watermark: InitialWatermark,
		log:       logging.NewLogger().Named("watermark"),
	}
}

func (m *ManualFetcher) GetWatermark() Watermark {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.watermark
}

// Advance moves the watermark to t. The watermark never regresses, an older t is ignored and false is returned.
func (m *ManualFetcher) Advance(t time.Time) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	wm := Watermark(time.UnixMilli(t.UnixMilli()).UTC())
	if !wm.AfterWatermark(m.watermark) {
		if wm.BeforeWatermark(m.watermark) {
			m.log.Debugw("Ignoring a watermark older than the current one", zap.String("watermark", wm.String()), zap.String("current", m.watermark.String()))
		}
		return false
	}
	m.watermark = wm
	return true
}
