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

// Package bridge dispatches one compilation request between the pass based
// legalizer and the legacy graph compiler, and records which path produced
// the terminal outcome.
package bridge

import (
	"fmt"
	"strings"

	"github.com/secretflow/hlobridge/pkg/hlo"
	"github.com/secretflow/hlobridge/pkg/ir"
	"github.com/secretflow/hlobridge/pkg/platform"
	"github.com/secretflow/hlobridge/pkg/status"
)

const (
	// MetricPhaseStatus counts terminal phase outcomes. Exactly one of the
	// labels below is incremented per attempted phase.
	MetricPhaseStatus = "hlobridge/compile/phase_status"

	PhaseLegalizerSuccess = "LEGALIZER_SUCCESS"
	PhaseLegalizerFailure = "LEGALIZER_FAILURE"
	PhaseLegacySuccess    = "LEGACY_SUCCESS"
	PhaseLegacyFailure    = "LEGACY_FAILURE"
)

// Rollout gates the pass based path per request.
type Rollout int32

const (
	// RolloutUnspecified leaves the path choice to module screening.
	RolloutUnspecified Rollout = iota
	// RolloutEnabled behaves like RolloutUnspecified and exists so staged
	// configs can state the intent explicitly.
	RolloutEnabled
	// RolloutDisabled routes every request to the legacy compiler.
	RolloutDisabled
)

func (r Rollout) String() string {
	switch r {
	case RolloutUnspecified:
		return "UNSPECIFIED"
	case RolloutEnabled:
		return "ENABLED"
	case RolloutDisabled:
		return "DISABLED"
	default:
		return fmt.Sprintf("ROLLOUT(%d)", int32(r))
	}
}

// ParseRollout maps the configuration spelling to a Rollout value. The empty
// string means unspecified.
func ParseRollout(s string) (Rollout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unspecified":
		return RolloutUnspecified, nil
	case "enabled":
		return RolloutEnabled, nil
	case "disabled":
		return RolloutDisabled, nil
	default:
		return RolloutUnspecified, fmt.Errorf("unknown rollout mode %q", s)
	}
}

// Request is one compilation request. The dispatcher never mutates it; the
// caller owns it for the duration of the Compile call.
type Request struct {
	// SessionID tags monitor log lines, empty is accepted.
	SessionID string
	// ModuleText is the textual module to compile.
	ModuleText string
	Rollout    Rollout
	// DeviceType names the platform registry entry, empty means the host.
	DeviceType string
	// UseTupleArgs packs all entry arguments into one tuple parameter.
	UseTupleArgs bool
	// ArgShapes restates the caller-side argument shapes, one per metadata
	// arg. They must agree with the module's own parameter shapes.
	ArgShapes []ir.Shape
	Metadata  *platform.CompileMetadata
}

// Path names the pipeline that produced a result.
type Path string

const (
	PathLegalizer Path = "legalizer"
	PathLegacy    Path = "legacy"
)

// Result is a successful compilation outcome.
type Result struct {
	Program *hlo.Program
	Path    Path
	// ArgCoreMapping assigns each metadata arg to the core holding it.
	// Without sharding every arg lives on core 0.
	ArgCoreMapping []int
	// PerCoreArgShapes lists, per core, the argument shapes placed there.
	PerCoreArgShapes [][]ir.Shape
	// Checksum fingerprints the emitted program text.
	Checksum string
}

func (req *Request) deviceType() string {
	if req.DeviceType == "" {
		return platform.HostPlatform
	}
	return req.DeviceType
}

func (req *Request) validate() error {
	if req == nil {
		return status.New(status.CodeInvalidRequest, "request is nil")
	}
	if strings.TrimSpace(req.ModuleText) == "" {
		return status.New(status.CodeInvalidRequest, "module text is empty")
	}
	switch req.Rollout {
	case RolloutUnspecified, RolloutEnabled, RolloutDisabled:
	default:
		return status.Newf(status.CodeInvalidRequest, "unknown rollout mode %d", int32(req.Rollout))
	}
	if req.Metadata == nil {
		return status.New(status.CodeInvalidRequest, "compile metadata is required")
	}
	if len(req.ArgShapes) != len(req.Metadata.Args) {
		return status.Newf(status.CodeInvalidRequest,
			"request carries %d arg shapes, metadata declares %d args",
			len(req.ArgShapes), len(req.Metadata.Args))
	}
	return nil
}

// checkModule cross checks the parsed module against the request metadata.
// The module is the source of truth for types; the request restates them and
// must agree.
func (req *Request) checkModule(m *ir.Module) error {
	fn := m.Func
	if len(fn.Params) != len(req.Metadata.Args) {
		return status.Newf(status.CodeInvalidRequest,
			"module %s has %d parameters, metadata declares %d args",
			m.Name, len(fn.Params), len(req.Metadata.Args))
	}
	for i, p := range fn.Params {
		if want := req.Metadata.Args[i].DType; p.Type.DType != want {
			return status.Newf(status.CodeInvalidRequest,
				"argument %d dtype mismatch: module declares %s, metadata %s",
				i, p.Type.DType, want)
		}
		if !p.Type.Shape.Equal(req.ArgShapes[i]) {
			return status.Newf(status.CodeInvalidRequest,
				"argument %d shape mismatch: module declares %s, request %s",
				i, p.Type.Shape, req.ArgShapes[i])
		}
	}
	if len(fn.Results) != len(req.Metadata.Retvals) {
		return status.Newf(status.CodeInvalidRequest,
			"module %s produces %d results, metadata declares %d retvals",
			m.Name, len(fn.Results), len(req.Metadata.Retvals))
	}
	for i, rt := range fn.Results {
		if want := req.Metadata.Retvals[i].DType; rt.DType != want {
			return status.Newf(status.CodeInvalidRequest,
				"result %d dtype mismatch: module declares %s, metadata %s",
				i, rt.DType, want)
		}
	}
	return nil
}
