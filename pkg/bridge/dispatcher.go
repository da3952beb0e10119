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

package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/secretflow/hlobridge/pkg/hlo"
	"github.com/secretflow/hlobridge/pkg/ir"
	"github.com/secretflow/hlobridge/pkg/legacy"
	"github.com/secretflow/hlobridge/pkg/legalizer"
	"github.com/secretflow/hlobridge/pkg/platform"
	"github.com/secretflow/hlobridge/pkg/status"
	"github.com/secretflow/hlobridge/pkg/telemetry"
	"github.com/secretflow/hlobridge/pkg/util/logutil"
	"github.com/secretflow/hlobridge/pkg/util/tracing"
)

// LegacyCompiler is the old-path backend. The production implementation
// walks the untyped graph kernel by kernel; tests substitute their own.
type LegacyCompiler interface {
	Compile(ctx context.Context, client *platform.Client, g *legacy.Graph, opts *legacy.CompileOptions) (*hlo.Program, error)
}

// graphBackend adapts the legacy graph compiler to the per-request client.
type graphBackend struct{}

func (graphBackend) Compile(ctx context.Context, client *platform.Client, g *legacy.Graph, opts *legacy.CompileOptions) (*hlo.Program, error) {
	return legacy.NewGraphCompiler(client).Compile(ctx, g, opts)
}

// Options configures a Dispatcher. The zero value selects the process-wide
// registries, the built-in screening analyzer and the real legacy compiler.
type Options struct {
	Metrics   *telemetry.Registry
	Platforms *platform.Registry
	Analyzer  legalizer.Analyzer
	Legacy    LegacyCompiler
	// CustomPasses extend the legalizer pipeline. The dispatcher passes the
	// list through unchanged and never inspects it.
	CustomPasses []legalizer.Pass
	// DisableFallback surfaces legalization failures instead of invoking
	// the legacy compiler.
	DisableFallback bool
}

// Dispatcher sequences the two compilation paths for one request at a time.
// It is safe for concurrent use; all mutable state lives in the telemetry
// registry, which takes concurrent increments.
type Dispatcher struct {
	metrics         *telemetry.Registry
	platforms       *platform.Registry
	analyzer        legalizer.Analyzer
	fallback        LegacyCompiler
	passes          []legalizer.Pass
	disableFallback bool
}

func NewDispatcher(opts *Options) *Dispatcher {
	if opts == nil {
		opts = &Options{}
	}
	d := &Dispatcher{
		metrics:         opts.Metrics,
		platforms:       opts.Platforms,
		analyzer:        opts.Analyzer,
		fallback:        opts.Legacy,
		passes:          opts.CustomPasses,
		disableFallback: opts.DisableFallback,
	}
	if d.metrics == nil {
		d.metrics = telemetry.Default
	}
	if d.platforms == nil {
		d.platforms = platform.DefaultRegistry()
	}
	if d.analyzer == nil {
		d.analyzer = legalizer.NewDialectAnalyzer()
	}
	if d.fallback == nil {
		d.fallback = graphBackend{}
	}
	return d
}

// Compile runs at most one legalizer attempt and at most one legacy attempt
// and returns the terminal outcome. The call blocks until both attempts, if
// any, complete.
func (d *Dispatcher) Compile(ctx context.Context, req *Request) (*Result, error) {
	timeStart := time.Now()
	logEntry := &logutil.MonitorLogEntry{
		SessionID:  sessionID(req),
		ActionName: fmt.Sprintf("%v@%v", "Dispatcher", "Compile"),
	}
	result, err := d.compileCore(ctx, req)
	logEntry.CostTime = time.Since(timeStart)
	if err != nil {
		logEntry.ErrorMsg = err.Error()
		logrus.Error(logEntry)
	} else {
		logrus.Info(logEntry)
	}
	return result, err
}

func (d *Dispatcher) compileCore(ctx context.Context, req *Request) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, "bridge.compile")
	defer span.End()

	// 1. Validate the request. Requests rejected here never reach a
	// compilation attempt and leave every counter untouched.
	if err := req.validate(); err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("device_type", req.deviceType()),
		attribute.String("rollout", req.Rollout.String()),
	)

	// 2. Resolve the device client; no retry on failure.
	client, err := d.platforms.Client(req.deviceType())
	if err != nil {
		return nil, err
	}

	// 3. Parse the module and cross check it against the metadata.
	m, err := ir.ParseModule(req.ModuleText)
	if err != nil {
		return nil, status.WrapWithMessage(status.CodeInvalidRequest, err, "module text does not parse")
	}
	if err := req.checkModule(m); err != nil {
		return nil, err
	}

	// 4. Pick the path. Screening runs before the legalizer so kinds with no
	// lowering rule are never charged to it.
	attemptLegalizer := req.Rollout != RolloutDisabled
	if attemptLegalizer {
		analysis, err := d.analyzer.Analyze(m)
		if err != nil {
			if IsBenign(err) {
				// Known degraded build: surface the sentinel untouched and
				// leave the phase counters alone.
				span.AddEvent("analysis unsupported")
				return nil, err
			}
			return nil, status.WrapWithMessage(status.CodeInternal, err, "module analysis failed")
		}
		if !analysis.Supported() {
			logrus.Debugf("Dispatch: module %s screened from the legalizer, kinds outside the dialect: %v",
				m.Name, analysis.Unsupported)
			span.AddEvent("screened")
			attemptLegalizer = false
		}
	}

	// 5. New path, at most once.
	if attemptLegalizer {
		program, err := d.legalize(ctx, m, client, req)
		if err == nil {
			d.metrics.Increment(MetricPhaseStatus, PhaseLegalizerSuccess)
			return d.newResult(program, PathLegalizer, req), nil
		}
		d.metrics.Increment(MetricPhaseStatus, PhaseLegalizerFailure)

		var opErr *legalizer.UnsupportedOpsError
		if !errors.As(err, &opErr) {
			return nil, status.WrapWithMessage(status.CodeInternal, err, "legalizer failed")
		}
		failed := status.WrapWithMessage(status.CodeOpLegalizationFailed, err,
			fmt.Sprintf("operation kind %s failed to legalize", opErr.First()))
		if d.disableFallback {
			return nil, failed
		}
		logrus.Infof("Dispatch: module %s falls back to the legacy compiler: %v", m.Name, err)
		span.AddEvent("fallback")
	}

	// 6. Old path, at most once, on the original module form.
	g, err := legacy.BuildGraph(m)
	if err != nil {
		d.metrics.Increment(MetricPhaseStatus, PhaseLegacyFailure)
		return nil, status.WrapWithMessage(status.CodeLegacyCompilationFailed, err, "graph construction failed")
	}
	program, err := d.fallback.Compile(ctx, client, g, &legacy.CompileOptions{UseTupleArgs: req.UseTupleArgs})
	if err != nil {
		d.metrics.Increment(MetricPhaseStatus, PhaseLegacyFailure)
		return nil, status.Wrap(status.CodeLegacyCompilationFailed, err)
	}
	d.metrics.Increment(MetricPhaseStatus, PhaseLegacySuccess)
	return d.newResult(program, PathLegacy, req), nil
}

func (d *Dispatcher) legalize(ctx context.Context, m *ir.Module, client *platform.Client, req *Request) (*hlo.Program, error) {
	ctx, span := tracing.StartSpan(ctx, "bridge.legalize")
	defer span.End()

	c := legalizer.NewContext(ctx, m, client)
	c.Metrics = d.metrics
	c.Metadata = req.Metadata
	c.ArgShapes = req.ArgShapes
	c.UseTupleArgs = req.UseTupleArgs
	return legalizer.NewLegalizer(d.passes...).Legalize(c)
}

func (d *Dispatcher) newResult(program *hlo.Program, path Path, req *Request) *Result {
	meta := req.Metadata
	// Unsharded placement: every arg lands on core 0, the remaining cores
	// receive no arguments.
	mapping := make([]int, len(meta.Args))
	perCore := make([][]ir.Shape, meta.CoreCount())
	perCore[0] = append([]ir.Shape(nil), req.ArgShapes...)
	for core := 1; core < len(perCore); core++ {
		perCore[core] = []ir.Shape{}
	}
	return &Result{
		Program:          program,
		Path:             path,
		ArgCoreMapping:   mapping,
		PerCoreArgShapes: perCore,
		Checksum:         program.Checksum(),
	}
}

func sessionID(req *Request) string {
	if req != nil && req.SessionID != "" {
		return req.SessionID
	}
	return uuid.NewString()
}
