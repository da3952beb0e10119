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

package platform

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/secretflow/hlobridge/pkg/ir"
)

// Capability profiles describe device families in HCL:
//
//	device "Accelerator" {
//	  ops    = ["parameter", "constant", "add", "multiply", "erf"]
//	  dtypes = ["f32", "f64"]
//	}
//
//	device "HostMirror" {
//	  ops = base_ops
//	}
//
// base_ops and base_dtypes expose the built-in host capability table to
// profile expressions.

type profileFile struct {
	Devices []deviceBlock `hcl:"device,block"`
}

type deviceBlock struct {
	Name   string   `hcl:"name,label"`
	Ops    []string `hcl:"ops"`
	DTypes []string `hcl:"dtypes,optional"`
}

// LoadProfile parses a capability profile file and registers one client per
// device block into reg.
func LoadProfile(reg *Registry, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("LoadProfile: %w", err)
	}
	return ParseProfile(reg, src, path)
}

// ParseProfile decodes capability profile source and registers the declared
// devices into reg.
func ParseProfile(reg *Registry, src []byte, filename string) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return fmt.Errorf("ParseProfile: parse %s: %w", filename, diags)
	}

	var parsed profileFile
	diags = gohcl.DecodeBody(file.Body, profileEvalContext(), &parsed)
	if diags.HasErrors() {
		return fmt.Errorf("ParseProfile: decode %s: %w", filename, diags)
	}

	for _, dev := range parsed.Devices {
		caps := &Capabilities{
			Ops:    make(map[string]bool, len(dev.Ops)),
			DTypes: make(map[ir.DType]bool, len(dev.DTypes)),
		}
		for _, op := range dev.Ops {
			caps.Ops[op] = true
		}
		if len(dev.DTypes) == 0 {
			// Inherit the built-in dtype set when the block leaves it out.
			caps.DTypes = hostCapabilities().clone().DTypes
		}
		for _, dt := range dev.DTypes {
			parsedDT, err := ir.ParseDType(dt)
			if err != nil {
				return fmt.Errorf("ParseProfile: device %q: %w", dev.Name, err)
			}
			caps.DTypes[parsedDT] = true
		}
		reg.Register(NewClient(dev.Name, caps))
	}
	return nil
}

// profileEvalContext exposes the built-in host capability table to profile
// expressions as base_ops and base_dtypes.
func profileEvalContext() *hcl.EvalContext {
	base := hostCapabilities()
	ops := make([]cty.Value, 0, len(base.Ops))
	for _, op := range base.OpList() {
		ops = append(ops, cty.StringVal(op))
	}
	dtypes := []cty.Value{
		cty.StringVal(ir.DTypeI1.String()),
		cty.StringVal(ir.DTypeI32.String()),
		cty.StringVal(ir.DTypeI64.String()),
		cty.StringVal(ir.DTypeF32.String()),
		cty.StringVal(ir.DTypeF64.String()),
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"base_ops":    cty.ListVal(ops),
			"base_dtypes": cty.ListVal(dtypes),
		},
	}
}
