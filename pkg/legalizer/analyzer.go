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

package legalizer

import (
	"github.com/sirupsen/logrus"

	"github.com/secretflow/hlobridge/pkg/ir"
	"github.com/secretflow/hlobridge/pkg/status"
)

// Analysis is the screening verdict for one module.
type Analysis struct {
	// Unsupported lists operation kinds outside the lowering dialect, in
	// first-use order. Kinds listed here were filtered before any lowering
	// attempt, so they carry no failure telemetry.
	Unsupported []string
}

// Supported reports whether every operation kind can be taken on.
func (a Analysis) Supported() bool {
	return len(a.Unsupported) == 0
}

// Analyzer screens modules before the pass pipeline runs. A screening
// verdict of unsupported routes the module straight to the fallback
// compiler without charging the new path for a failure.
type Analyzer interface {
	// Analyze inspects the module and reports which operation kinds fall
	// outside the lowering dialect. Implementations that cannot analyze in
	// the current build return ErrGraphAnalysisUnsupported.
	Analyze(m *ir.Module) (Analysis, error)
}

// DialectAnalyzer screens against the built-in rule table.
type DialectAnalyzer struct{}

// NewDialectAnalyzer creates a dialect analyzer
func NewDialectAnalyzer() *DialectAnalyzer {
	return &DialectAnalyzer{}
}

func (a *DialectAnalyzer) Analyze(m *ir.Module) (Analysis, error) {
	var out Analysis
	for _, kind := range m.OpKinds() {
		if !HasRule(kind) {
			out.Unsupported = append(out.Unsupported, kind)
		}
	}
	return out, nil
}

// UnavailableAnalyzer stands in for builds where module analysis is not
// compiled in. Every verdict is the benign analysis-unsupported status,
// which callers surface as an expected degraded outcome rather than a
// failure.
type UnavailableAnalyzer struct{}

// NewUnavailableAnalyzer creates an analyzer that always declines
func NewUnavailableAnalyzer() *UnavailableAnalyzer {
	return &UnavailableAnalyzer{}
}

func (a *UnavailableAnalyzer) Analyze(m *ir.Module) (Analysis, error) {
	return Analysis{}, status.ErrGraphAnalysisUnsupported
}

// LoggingAnalyzer implements a decorator pattern for Analyzer. It forwards
// every verdict unchanged and records it on the debug log, which keeps
// screening decisions visible without touching the screening logic itself.
type LoggingAnalyzer struct {
	Inner Analyzer
}

func (a *LoggingAnalyzer) Analyze(m *ir.Module) (Analysis, error) {
	out, err := a.Inner.Analyze(m)
	switch {
	case err != nil:
		logrus.Debugf("analysis of module %s declined: %v", m.Name, err)
	case out.Supported():
		logrus.Debugf("analysis of module %s: supported", m.Name)
	default:
		logrus.Debugf("analysis of module %s: unsupported kinds %v", m.Name, out.Unsupported)
	}
	return out, err
}
