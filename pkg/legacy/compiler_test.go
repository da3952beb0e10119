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

package legacy

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secretflow/hlobridge/pkg/ir"
	"github.com/secretflow/hlobridge/pkg/platform"
)

const unaryChainText = `
module @unary {
  func @main(%arg0: f32[1]) -> f32[1] {
    %0 = acos(%arg0) : f32[1]
    return %0
  }
}
`

func compileText(t *testing.T, client *platform.Client, text string, opts *CompileOptions) (string, error) {
	t.Helper()
	g, err := BuildGraphFromText(text)
	require.NoError(t, err)
	program, err := NewGraphCompiler(client).Compile(context.Background(), g, opts)
	if err != nil {
		return "", err
	}
	return program.DumpText(), nil
}

func TestBuildGraphShape(t *testing.T) {
	r := require.New(t)

	g, err := BuildGraphFromText(`
module @shape {
  func @main(%arg0: f32[2], %arg1: f32[2]) -> f32[2] {
    %0 = add(%arg0, %arg1) : f32[2]
    %1 = relu(%0) : f32[2]
    return %1
  }
}
`)
	r.NoError(err)
	r.Equal(2, g.NumParams)
	r.Len(g.Nodes, 4)
	r.Equal([]int{3}, g.Outputs)

	r.Equal("parameter", g.Node(0).Kind)
	r.Equal(0, g.Node(0).ParamIndex)
	r.Equal("add", g.Node(2).Kind)
	r.Equal([]int{0, 1}, g.Node(2).Inputs)
	r.Equal(-1, g.Node(2).ParamIndex)
	r.Nil(g.Node(99))

	r.Contains(g.String(), "#2 add([0 1]) : f32[2]")
}

func TestBuildGraphRejectsEmptyResults(t *testing.T) {
	_, err := BuildGraphFromText(`
module @noresult {
  func @main(%arg0: f32[1]) {
    %0 = abs(%arg0) : f32[1]
    return
  }
}
`)
	require.ErrorContains(t, err, "produces no results")

	_, err = BuildGraph(nil)
	require.ErrorContains(t, err, "module is empty")
}

func TestCompileUnaryChain(t *testing.T) {
	r := require.New(t)

	dump, err := compileText(t, platform.NewHostClient(), unaryChainText, nil)
	r.NoError(err)
	r.Equal(`HloModule unary

ENTRY main {
  %0 = f32[1] parameter(0)
  ROOT %1 = f32[1] acos(%0)
}
`, dump)
}

func TestCompileReciprocal(t *testing.T) {
	// reciprocal has no lowering rule on the pass path, the kernel set
	// carries it anyway
	dump, err := compileText(t, platform.NewHostClient(), `
module @wide {
  func @main(%arg0: f32[2]) -> f32[2] {
    %0 = reciprocal(%arg0) : f32[2]
    return %0
  }
}
`, nil)
	require.NoError(t, err)
	assert.Contains(t, dump, "reciprocal(%0)")
}

func TestCompileErfSeriesOnHost(t *testing.T) {
	r := require.New(t)

	dump, err := compileText(t, platform.NewHostClient(), `
module @erf_host {
  func @main(%arg0: f32[1]) -> f32[1] {
    %0 = erf(%arg0) : f32[1]
    return %0
  }
}
`, nil)
	r.NoError(err)
	// host has no erf opcode, the series expansion kicks in
	r.NotContains(dump, "erf(")
	r.Contains(dump, "tanh(")
	r.Contains(dump, "constant({1.1283791670955126})")
	r.Contains(dump, "constant({0.1009061568})")
}

func TestCompileErfOpcodeWhenDeviceAccepts(t *testing.T) {
	r := require.New(t)

	reg := platform.NewRegistry()
	err := platform.ParseProfile(reg, []byte(`
device "Accelerator" {
  ops = ["parameter", "constant", "erf"]
}
`), "caps.hcl")
	r.NoError(err)
	client, err := reg.Client("Accelerator")
	r.NoError(err)

	dump, err := compileText(t, client, `
module @erf_accel {
  func @main(%arg0: f32[1]) -> f32[1] {
    %0 = erf(%arg0) : f32[1]
    return %0
  }
}
`, nil)
	r.NoError(err)
	r.Contains(dump, "ROOT %1 = f32[1] erf(%0)")
}

func TestCompileTupleArgs(t *testing.T) {
	r := require.New(t)

	dump, err := compileText(t, platform.NewHostClient(), `
module @packed {
  func @main(%arg0: f32[1], %arg1: f32[1]) -> f32[1] {
    %0 = add(%arg0, %arg1) : f32[1]
    return %0
  }
}
`, &CompileOptions{UseTupleArgs: true})
	r.NoError(err)
	r.Contains(dump, "%0 = (f32[1], f32[1]) parameter(0)")
	r.Contains(dump, "get-tuple-element(%0), index=0")
	r.Contains(dump, "get-tuple-element(%0), index=1")
}

func TestCompileMultiOutput(t *testing.T) {
	r := require.New(t)

	dump, err := compileText(t, platform.NewHostClient(), `
module @pair {
  func @main(%arg0: f32[2]) -> f32[2], f32[2] {
    %0 = relu(%arg0) : f32[2]
    %1 = square(%arg0) : f32[2]
    return %0, %1
  }
}
`, nil)
	r.NoError(err)
	r.Contains(dump, "ROOT %4 = (f32[2], f32[2]) tuple(%2, %3)")
}

func TestCompileClampAttrs(t *testing.T) {
	r := require.New(t)

	dump, err := compileText(t, platform.NewHostClient(), `
module @clamped {
  func @main(%arg0: f32[1]) -> f32[1] {
    %0 = clamp(%arg0) {min = -1.0, max = 1.0} : f32[1]
    return %0
  }
}
`, nil)
	r.NoError(err)
	r.Contains(dump, "clamp(%1, %0, %2)")

	_, err = compileText(t, platform.NewHostClient(), `
module @inverted {
  func @main(%arg0: f32[1]) -> f32[1] {
    %0 = clamp(%arg0) {min = 2.0, max = 1.0} : f32[1]
    return %0
  }
}
`, nil)
	r.ErrorContains(err, "bounds are inverted")
}

func TestCompileConstant(t *testing.T) {
	dump, err := compileText(t, platform.NewHostClient(), `
module @lit {
  func @main(%arg0: f32[3]) -> f32[3] {
    %0 = const() {value = [0.0, 0.5, 1.0]} : f32[3]
    %1 = add(%arg0, %0) : f32[3]
    return %1
  }
}
`, nil)
	require.NoError(t, err)
	assert.Contains(t, dump, "constant({0, 0.5, 1})")

	// a single literal value splats across the shape
	dump, err = compileText(t, platform.NewHostClient(), `
module @splat {
  func @main(%arg0: f32[3]) -> f32[3] {
    %0 = const() {value = 2.0} : f32[3]
    %1 = mul(%arg0, %0) : f32[3]
    return %1
  }
}
`, nil)
	require.NoError(t, err)
	assert.Contains(t, dump, "constant({2, 2, 2})")
}

func TestCompileUnknownKind(t *testing.T) {
	_, err := compileText(t, platform.NewHostClient(), `
module @unknown {
  func @main(%arg0: f32[1]) -> f32[1] {
    %0 = does_not_exist(%arg0) : f32[1]
    return %0
  }
}
`, nil)
	require.ErrorContains(t, err, `Resolve Kernel: unsupported node kind "does_not_exist"`)
}

func TestCompileDeviceRejectsOpcode(t *testing.T) {
	r := require.New(t)

	reg := platform.NewRegistry()
	err := platform.ParseProfile(reg, []byte(`
device "Tiny" {
  ops = ["parameter", "constant", "add"]
}
`), "caps.hcl")
	r.NoError(err)
	client, err := reg.Client("Tiny")
	r.NoError(err)

	_, err = compileText(t, client, unaryChainText, nil)
	r.ErrorContains(err, "device does not accept opcode acos")
}

func TestCompileDeterministic(t *testing.T) {
	r := require.New(t)

	g, err := BuildGraphFromText(`
module @stable {
  func @main(%arg0: f32[2], %arg1: f32[2]) -> f32[2] {
    %0 = mul(%arg0, %arg1) : f32[2]
    %1 = erf(%0) : f32[2]
    %2 = add(%1, %arg0) : f32[2]
    return %2
  }
}
`)
	r.NoError(err)

	compiler := NewGraphCompiler(platform.NewHostClient())
	first, err := compiler.Compile(context.Background(), g, nil)
	r.NoError(err)
	second, err := compiler.Compile(context.Background(), g, nil)
	r.NoError(err)
	r.Equal(first.Checksum(), second.Checksum())
}

func TestCompileRejectsCycle(t *testing.T) {
	f32 := ir.Type{DType: ir.DTypeF32, Shape: ir.NewShape(1)}
	g := &Graph{
		Name:      "loop",
		NumParams: 0,
		Outputs:   []int{0},
		Nodes: []*Node{
			{ID: 0, Kind: "add", Inputs: []int{1, 1}, Output: f32, ParamIndex: -1},
			{ID: 1, Kind: "add", Inputs: []int{0, 0}, Output: f32, ParamIndex: -1},
		},
	}
	_, err := NewGraphCompiler(platform.NewHostClient()).Compile(context.Background(), g, nil)
	require.ErrorContains(t, err, "contains a cycle")
}

func TestCompileValidatesGraph(t *testing.T) {
	compiler := NewGraphCompiler(platform.NewHostClient())
	ctx := context.Background()
	f32 := ir.Type{DType: ir.DTypeF32, Shape: ir.NewShape(1)}

	_, err := compiler.Compile(ctx, nil, nil)
	assert.ErrorContains(t, err, "graph is empty")

	_, err = compiler.Compile(ctx, &Graph{
		Name:  "noout",
		Nodes: []*Node{{ID: 0, Kind: "parameter", Output: f32}},
	}, nil)
	assert.ErrorContains(t, err, "produces no outputs")

	_, err = compiler.Compile(ctx, &Graph{
		Name:      "badref",
		NumParams: 1,
		Outputs:   []int{1},
		Nodes: []*Node{
			{ID: 0, Kind: "parameter", Output: f32, ParamIndex: 0},
			{ID: 1, Kind: "abs", Inputs: []int{7}, Output: f32, ParamIndex: -1},
		},
	}, nil)
	assert.ErrorContains(t, err, "reads unknown node #7")

	_, err = compiler.Compile(ctx, &Graph{
		Name:      "dupbind",
		NumParams: 1,
		Outputs:   []int{1},
		Nodes: []*Node{
			{ID: 0, Kind: "parameter", Output: f32, ParamIndex: 0},
			{ID: 1, Kind: "parameter", Output: f32, ParamIndex: 0},
		},
	}, nil)
	assert.ErrorContains(t, err, "binds argument 0 twice")
}

func TestCompileHonorsContext(t *testing.T) {
	g, err := BuildGraphFromText(unaryChainText)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewGraphCompiler(platform.NewHostClient()).Compile(ctx, g, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestKernelKinds(t *testing.T) {
	kinds := KernelKinds()
	assert.True(t, sort.StringsAreSorted(kinds))
	for _, kind := range []string{"parameter", "const", "erf", "reciprocal", "clamp", "mul"} {
		assert.Contains(t, kinds, kind)
	}
}

func TestResolverPicksErfStrategy(t *testing.T) {
	r := require.New(t)

	host := NewKernelResolver(platform.NewHostClient().Capabilities())
	kernel, err := host.Resolve(&Node{ID: 1, Kind: "erf"})
	r.NoError(err)
	r.Equal("KernelErfSeries", kernel.String())
	r.Greater(kernel.Cost(), 0.0)

	reg := platform.NewRegistry()
	r.NoError(platform.ParseProfile(reg, []byte(`
device "Accelerator" {
  ops = ["parameter", "constant", "erf"]
}
`), "caps.hcl"))
	client, err := reg.Client("Accelerator")
	r.NoError(err)
	kernel, err = NewKernelResolver(client.Capabilities()).Resolve(&Node{ID: 1, Kind: "erf"})
	r.NoError(err)
	r.Equal("KernelUnary(erf)", kernel.String())
	r.Equal(0.0, kernel.Cost())
}

func TestProgramChecksumMatchesDump(t *testing.T) {
	g, err := BuildGraphFromText(unaryChainText)
	require.NoError(t, err)
	program, err := NewGraphCompiler(platform.NewHostClient()).Compile(context.Background(), g, nil)
	require.NoError(t, err)

	sum := program.Checksum()
	assert.Regexp(t, "^[0-9a-f]{64}$", sum)
}
