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

package ir

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const unaryModule = `
module @unary {
  func @main(%arg0: f32[1]) -> f32[1] {
    %0 = acos(%arg0) : f32[1]
    return %0
  }
}
`

func TestParseUnaryModule(t *testing.T) {
	r := require.New(t)

	m, err := ParseModule(unaryModule)
	r.NoError(err)
	r.Equal("unary", m.Name)
	r.Equal("main", m.Func.Name)
	r.Len(m.Func.Params, 1)
	r.Equal("f32[1]", m.Func.Params[0].Type.String())
	r.Len(m.Func.Ops, 1)

	op := m.Func.Ops[0]
	r.Equal("acos", op.Kind)
	r.Equal([]Ref{ArgRef(0)}, op.Operands)
	r.Equal("f32[1]", op.Result.String())
	r.Equal([]Ref{ResultRef(0)}, m.Func.Returns)
	r.Equal([]string{"acos"}, m.OpKinds())
}

func TestParseAttrsAndMultiOp(t *testing.T) {
	r := require.New(t)

	m, err := ParseModule(`
module @mixed {
  func @main(%arg0: f32[2], %arg1: f32[2]) -> f32[2] {
    %0 = const() {value = [0.5, -1.5]} : f32[2]
    %1 = add(%arg0, %0) : f32[2]
    %2 = clamp(%1, %arg1) {min = 0.0, mode = "strict", cells = 2} : f32[2]
    return %2
  }
}
`)
	r.NoError(err)
	r.Len(m.Func.Ops, 3)

	constOp := m.Func.Ops[0]
	r.Equal([]float64{0.5, -1.5}, constOp.FloatsAttr("value"))

	clampOp := m.Func.Ops[2]
	minAttr, ok := clampOp.Attrs["min"].GetFloat()
	r.True(ok)
	r.Equal(0.0, minAttr)
	mode, ok := clampOp.Attrs["mode"].GetString()
	r.True(ok)
	r.Equal("strict", mode)
	cells, ok := clampOp.Attrs["cells"].GetInt()
	r.True(ok)
	r.Equal(int64(2), cells)

	r.Equal([]string{"const", "add", "clamp"}, m.OpKinds())
}

func TestDumpRoundTrip(t *testing.T) {
	r := require.New(t)

	m, err := ParseModule(`
module @round {
  func @main(%arg0: f32[2,2]) -> f32[2,2], f32[2,2] {
    %0 = const() {value = [1.0, 2.0, 3.0, 4.0]} : f32[2,2]
    %1 = mul(%arg0, %0) : f32[2,2]
    %2 = relu(%1) {alpha = 0.0} : f32[2,2]
    return %1, %2
  }
}
`)
	r.NoError(err)

	reparsed, err := ParseModule(m.DumpText())
	r.NoError(err)
	if diff := cmp.Diff(m, reparsed, cmp.AllowUnexported(Attr{})); diff != "" {
		t.Errorf("module changed across dump/parse (-orig +reparsed):\n%s", diff)
	}
	// Canonical form is a fixed point.
	r.Equal(m.DumpText(), reparsed.DumpText())
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name   string
		text   string
		errHas string
	}{
		{"empty", "", "empty module text"},
		{"no module header", "func @main() {", "expected \"module\" header"},
		{"bad numbering", `
module @m {
  func @main(%arg0: f32) -> f32 {
    %1 = abs(%arg0) : f32
    return %1
  }
}
`, "expected %0"},
		{"use before def", `
module @m {
  func @main(%arg0: f32) -> f32 {
    %0 = abs(%1) : f32
    return %0
  }
}
`, "used before definition"},
		{"undefined param", `
module @m {
  func @main(%arg0: f32) -> f32 {
    %0 = abs(%arg3) : f32
    return %0
  }
}
`, "undefined parameter"},
		{"return arity", `
module @m {
  func @main(%arg0: f32) -> f32 {
    %0 = abs(%arg0) : f32
    return
  }
}
`, "returns 0 values"},
		{"return type", `
module @m {
  func @main(%arg0: f32[2]) -> f32[3] {
    %0 = abs(%arg0) : f32[2]
    return %0
  }
}
`, "declared result type"},
		{"bad dtype", `
module @m {
  func @main(%arg0: f16[2]) -> f16[2] {
    %0 = abs(%arg0) : f16[2]
    return %0
  }
}
`, "unknown dtype"},
		{"missing result type", `
module @m {
  func @main(%arg0: f32) -> f32 {
    %0 = abs(%arg0)
    return %0
  }
}
`, "missing result type"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseModule(tc.text)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errHas)
		})
	}
}

func TestTypeParsing(t *testing.T) {
	r := require.New(t)

	tt, err := ParseType("f32")
	r.NoError(err)
	r.Equal(DTypeF32, tt.DType)
	r.Equal(0, tt.Shape.Rank())
	r.Equal(int64(1), tt.Shape.NumElements())

	tt, err = ParseType("i64[3,4]")
	r.NoError(err)
	r.Equal(DTypeI64, tt.DType)
	r.Equal(int64(12), tt.Shape.NumElements())
	r.Equal("i64[3,4]", tt.String())

	_, err = ParseType("f32[x]")
	r.Error(err)
}

func TestWiderType(t *testing.T) {
	wide, ok := WiderType(DTypeF32, DTypeF64)
	assert.True(t, ok)
	assert.Equal(t, DTypeF64, wide)

	wide, ok = WiderType(DTypeI1, DTypeI64)
	assert.True(t, ok)
	assert.Equal(t, DTypeI64, wide)

	_, ok = WiderType(DTypeF32, DTypeI64)
	assert.False(t, ok)

	wide, ok = WiderType(DTypeI32, DTypeI32)
	assert.True(t, ok)
	assert.Equal(t, DTypeI32, wide)
}
