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

// Package logutil carries the monitor log record emitted once per
// externally visible action.
package logutil

import (
	"fmt"
	"strings"
	"time"
)

// MonitorLogEntry is one action log line. Fields render pipe separated so
// the monitor side can split without a parser.
type MonitorLogEntry struct {
	SessionID  string
	ActionName string
	RawRequest string
	CostTime   time.Duration
	ErrorMsg   string
}

func (e *MonitorLogEntry) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "|SessionID:%v|ActionName:%v|CostTime:%v", e.SessionID, e.ActionName, e.CostTime)
	if e.RawRequest != "" {
		fmt.Fprintf(&sb, "|RawRequest:%v", e.RawRequest)
	}
	if e.ErrorMsg != "" {
		fmt.Fprintf(&sb, "|ErrorMsg:%v", e.ErrorMsg)
	}
	return sb.String()
}
