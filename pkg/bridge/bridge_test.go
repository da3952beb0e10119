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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secretflow/hlobridge/pkg/ir"
	"github.com/secretflow/hlobridge/pkg/platform"
	"github.com/secretflow/hlobridge/pkg/status"
	"github.com/secretflow/hlobridge/pkg/telemetry"
	"github.com/secretflow/hlobridge/pkg/util/mock"
)

// newRequest builds a request for one canned module, with metadata derived
// from the module itself so the cross checks pass by construction.
func newRequest(t *testing.T, name string) *Request {
	t.Helper()
	mc, err := mock.MockModule(name)
	require.NoError(t, err)
	m := ir.MustParseModule(mc.Text())
	meta, shapes := mock.MetadataFor(m)
	return &Request{
		SessionID:  "test-" + name,
		ModuleText: mc.Text(),
		DeviceType: mc.DeviceType,
		ArgShapes:  shapes,
		Metadata:   meta,
	}
}

var phaseLabels = []string{
	PhaseLegalizerSuccess, PhaseLegalizerFailure,
	PhaseLegacySuccess, PhaseLegacyFailure,
}

// assertPhaseDeltas checks every phase counter against want. Labels missing
// from want must not have moved since the snapshot.
func assertPhaseDeltas(t *testing.T, reg *telemetry.Registry, since telemetry.Snapshot, want map[string]int64) {
	t.Helper()
	for _, label := range phaseLabels {
		assert.Equal(t, want[label], reg.Delta(MetricPhaseStatus, label, since), "phase %s", label)
	}
}

func TestParseRollout(t *testing.T) {
	cases := []struct {
		in   string
		want Rollout
	}{
		{"", RolloutUnspecified},
		{"unspecified", RolloutUnspecified},
		{"Enabled", RolloutEnabled},
		{" DISABLED ", RolloutDisabled},
	}
	for _, c := range cases {
		got, err := ParseRollout(c.in)
		require.NoError(t, err, "input %q", c.in)
		assert.Equal(t, c.want, got, "input %q", c.in)
	}

	_, err := ParseRollout("bogus")
	assert.ErrorContains(t, err, `unknown rollout mode "bogus"`)
}

func TestRolloutString(t *testing.T) {
	assert.Equal(t, "UNSPECIFIED", RolloutUnspecified.String())
	assert.Equal(t, "ENABLED", RolloutEnabled.String())
	assert.Equal(t, "DISABLED", RolloutDisabled.String())
	assert.Equal(t, "ROLLOUT(9)", Rollout(9).String())
}

func TestSessionIDFallback(t *testing.T) {
	assert.Equal(t, "abc", sessionID(&Request{SessionID: "abc"}))

	generated := sessionID(nil)
	assert.Len(t, generated, 36)
	assert.NotEqual(t, generated, sessionID(&Request{}))
}

func TestCompileRejectsNilAndEmpty(t *testing.T) {
	reg := telemetry.NewRegistry()
	d := NewDispatcher(&Options{Metrics: reg})
	before := reg.Snapshot()

	result, err := d.Compile(context.Background(), nil)
	assert.Nil(t, result)
	assert.Equal(t, status.CodeInvalidRequest, status.CodeOf(err))
	assert.ErrorContains(t, err, "request is nil")

	_, err = d.Compile(context.Background(), &Request{ModuleText: "   "})
	assert.Equal(t, status.CodeInvalidRequest, status.CodeOf(err))
	assert.ErrorContains(t, err, "module text is empty")

	assertPhaseDeltas(t, reg, before, nil)
}

func TestCompileRejectsUnparseableText(t *testing.T) {
	reg := telemetry.NewRegistry()
	d := NewDispatcher(&Options{Metrics: reg})
	before := reg.Snapshot()

	req := &Request{
		ModuleText: "module @broken {",
		Metadata:   &platform.CompileMetadata{},
	}
	result, err := d.Compile(context.Background(), req)
	assert.Nil(t, result)
	assert.Equal(t, status.CodeInvalidRequest, status.CodeOf(err))
	assert.ErrorContains(t, err, "module text does not parse")

	assertPhaseDeltas(t, reg, before, nil)
}

func TestCompileRejectsMetadataMismatch(t *testing.T) {
	reg := telemetry.NewRegistry()
	d := NewDispatcher(&Options{Metrics: reg})
	before := reg.Snapshot()

	cases := []struct {
		name   string
		mutate func(req *Request)
		msg    string
	}{
		{"rollout out of range", func(req *Request) { req.Rollout = Rollout(7) }, "unknown rollout mode 7"},
		{"missing metadata", func(req *Request) { req.Metadata = nil }, "compile metadata is required"},
		{"arg shape count", func(req *Request) { req.ArgShapes = nil }, "request carries 0 arg shapes"},
		{"param count", func(req *Request) {
			req.Metadata.Args = nil
			req.ArgShapes = nil
		}, "metadata declares 0 args"},
		{"arg dtype", func(req *Request) { req.Metadata.Args[0].DType = ir.DTypeI32 }, "argument 0 dtype mismatch"},
		{"arg shape", func(req *Request) { req.ArgShapes[0] = ir.NewShape(3) }, "argument 0 shape mismatch"},
		{"retval count", func(req *Request) { req.Metadata.Retvals = nil }, "metadata declares 0 retvals"},
		{"retval dtype", func(req *Request) { req.Metadata.Retvals[0].DType = ir.DTypeF64 }, "result 0 dtype mismatch"},
	}
	for _, c := range cases {
		req := newRequest(t, "unary_acos")
		c.mutate(req)
		result, err := d.Compile(context.Background(), req)
		assert.Nil(t, result, c.name)
		assert.Equal(t, status.CodeInvalidRequest, status.CodeOf(err), c.name)
		assert.ErrorContains(t, err, c.msg, c.name)
	}

	// Rejected requests never reach a compilation attempt.
	assertPhaseDeltas(t, reg, before, nil)
}
