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

// Package legalizer lowers dialect modules to backend programs through a
// pass pipeline. Lowering failures are reported per operation kind so the
// caller can decide whether the module is worth retrying on the fallback
// compiler.
package legalizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/secretflow/hlobridge/pkg/hlo"
	"github.com/secretflow/hlobridge/pkg/ir"
	"github.com/secretflow/hlobridge/pkg/platform"
	"github.com/secretflow/hlobridge/pkg/telemetry"
)

// Metric cells owned by this package. Labels carry the failing operation
// kind and the failing pass name respectively.
const (
	MetricOpFailureCount   = "hlobridge/legalize/op_failure_count"
	MetricPassFailureCount = "hlobridge/legalize/pass_failure_count"
)

// Pass represents a single legalization stage in the pipeline
type Pass interface {
	// Name returns the pass name for logging and debugging
	Name() string
	// Run executes the pass logic, returns error if failed
	Run(c *Context) error
}

// Context contains all state and intermediate representation throughout the
// legalization pipeline lifecycle
type Context struct {
	// --- 1. Input ---
	Ctx          context.Context
	Module       *ir.Module
	Client       *platform.Client
	Metadata     *platform.CompileMetadata
	ArgShapes    []ir.Shape
	UseTupleArgs bool

	// --- 2. Telemetry ---
	Metrics *telemetry.Registry

	// --- 3. Intermediate state ---
	Builder *hlo.Builder
	// values maps lowered module references to builder instruction ids.
	values map[ir.Ref]int
	// FailedKinds lists operation kinds a rule gave up on, in first-failure
	// order without duplicates.
	FailedKinds []string

	// --- 4. Output ---
	Program *hlo.Program
}

// NewContext initializes a legalization context for one module.
func NewContext(ctx context.Context, m *ir.Module, client *platform.Client) *Context {
	return &Context{
		Ctx:     ctx,
		Module:  m,
		Client:  client,
		Metrics: telemetry.Default,
		values:  make(map[ir.Ref]int),
	}
}

// SetValue binds a module reference to the builder instruction holding its
// lowered value. Custom passes use it when they lower operations themselves.
func (c *Context) SetValue(ref ir.Ref, id int) {
	if c.values == nil {
		c.values = make(map[ir.Ref]int)
	}
	c.values[ref] = id
}

// Value returns the builder instruction bound to ref, if lowered.
func (c *Context) Value(ref ir.Ref) (int, bool) {
	id, ok := c.values[ref]
	return id, ok
}

// failKind records a lowering failure for kind and bumps its metric cell.
func (c *Context) failKind(kind string) {
	if c.Metrics != nil {
		c.Metrics.Increment(MetricOpFailureCount, kind)
	}
	for _, k := range c.FailedKinds {
		if k == kind {
			return
		}
	}
	c.FailedKinds = append(c.FailedKinds, kind)
}

// ResolveKind clears the failure record for kind. Custom passes call it
// after emitting replacements for every operation of that kind.
func (c *Context) ResolveKind(kind string) {
	kept := c.FailedKinds[:0]
	for _, k := range c.FailedKinds {
		if k != kind {
			kept = append(kept, k)
		}
	}
	c.FailedKinds = kept
}

// UnsupportedOpsError reports the operation kinds the pipeline could not
// lower. Kinds keeps first-failure order.
type UnsupportedOpsError struct {
	Kinds []string
}

func (e *UnsupportedOpsError) Error() string {
	return fmt.Sprintf("unable to legalize operations: %s", strings.Join(e.Kinds, ", "))
}

// First returns the first failed kind, the one surfaced in coded statuses.
func (e *UnsupportedOpsError) First() string {
	if len(e.Kinds) == 0 {
		return ""
	}
	return e.Kinds[0]
}

// Legalizer is the pipeline-based lowering implementation
type Legalizer struct {
	passes []Pass
}

// NewLegalizer creates a legalizer with the standard pipeline. Custom passes
// run after lowering and before verification, so they may lower operation
// kinds the built-in rule table skipped.
func NewLegalizer(custom ...Pass) *Legalizer {
	var passes []Pass
	passes = append(passes, NewPrepareModulePass())
	passes = append(passes, NewLowerOpsPass())
	passes = append(passes, custom...)
	passes = append(passes, NewVerifyProgramPass())
	return &Legalizer{passes: passes}
}

// Legalize executes the pipeline over c and returns the lowered program.
func (l *Legalizer) Legalize(c *Context) (*hlo.Program, error) {
	for _, pass := range l.passes {
		logrus.Debugf("Legalizing Stage: %s", pass.Name())
		if err := pass.Run(c); err != nil {
			if c.Metrics != nil {
				c.Metrics.Increment(MetricPassFailureCount, pass.Name())
			}
			return nil, fmt.Errorf("[%s] failed: %w", pass.Name(), err)
		}
	}
	if c.Program == nil {
		return nil, fmt.Errorf("pipeline finished without producing a program")
	}
	return c.Program, nil
}
