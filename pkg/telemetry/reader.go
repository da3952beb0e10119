// Copyright 2026 Ant Group Co., Ltd.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package telemetry

import "sync"

// DeltaReader observes one metric of a registry. Delta reports growth since
// the previous Delta call for the same label (the first call counts from the
// reader's creation), so a test can interleave actions and observations
// without re-snapshotting.
type DeltaReader struct {
	reg    *Registry
	metric string

	mu   sync.Mutex
	base map[string]int64
}

// NewDeltaReader creates a reader for one metric, baselined at the current
// cell values.
func NewDeltaReader(reg *Registry, metric string) *DeltaReader {
	dr := &DeltaReader{
		reg:    reg,
		metric: metric,
		base:   make(map[string]int64),
	}
	for _, e := range reg.Entries() {
		if e.Name == metric {
			dr.base[e.Label] = e.Value
		}
	}
	return dr
}

// Delta returns the cell's growth since the last Delta call for label, and
// advances the baseline.
func (dr *DeltaReader) Delta(label string) int64 {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	cur := dr.reg.Read(dr.metric, label)
	d := cur - dr.base[label]
	dr.base[label] = cur
	return d
}

// Read returns the cell's absolute value, ignoring the baseline.
func (dr *DeltaReader) Read(label string) int64 {
	return dr.reg.Read(dr.metric, label)
}
