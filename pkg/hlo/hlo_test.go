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

package hlo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secretflow/hlobridge/pkg/ir"
)

func buildUnary(t *testing.T) *Program {
	r := require.New(t)
	b := NewBuilder("unary")
	vec := ir.Type{DType: ir.DTypeF32, Shape: ir.NewShape(1)}

	p0, err := b.Parameter(0, vec)
	r.NoError(err)
	out, err := b.Unary(OpAcos, p0)
	r.NoError(err)
	prog, err := b.Finalize(out)
	r.NoError(err)
	return prog
}

func TestBuilderUnaryProgram(t *testing.T) {
	prog := buildUnary(t)

	want := `HloModule unary

ENTRY main {
  %0 = f32[1] parameter(0)
  ROOT %1 = f32[1] acos(%0)
}
`
	assert.Equal(t, want, prog.DumpText())
	assert.Equal(t, 1, prog.NumParameters())
	assert.Equal(t, "f32[1]", prog.ParameterType(0).String())
	assert.Len(t, prog.ResultTypes(), 1)
}

func TestChecksumStable(t *testing.T) {
	r := require.New(t)
	first := buildUnary(t)
	second := buildUnary(t)
	r.Equal(first.Checksum(), second.Checksum())
	r.Len(first.Checksum(), 64)

	// A different root instruction changes the digest.
	b := NewBuilder("unary")
	vec := ir.Type{DType: ir.DTypeF32, Shape: ir.NewShape(1)}
	p0, err := b.Parameter(0, vec)
	r.NoError(err)
	out, err := b.Unary(OpTanh, p0)
	r.NoError(err)
	other, err := b.Finalize(out)
	r.NoError(err)
	r.NotEqual(first.Checksum(), other.Checksum())
}

func TestBuilderTupleProgram(t *testing.T) {
	r := require.New(t)
	b := NewBuilder("pair")
	vec := ir.Type{DType: ir.DTypeF32, Shape: ir.NewShape(2)}

	p0, err := b.Parameter(0, vec)
	r.NoError(err)
	p1, err := b.Parameter(1, vec)
	r.NoError(err)
	sum, err := b.Binary(OpAdd, p0, p1)
	r.NoError(err)
	root, err := b.Tuple(sum, p1)
	r.NoError(err)
	prog, err := b.Finalize(root)
	r.NoError(err)

	want := `HloModule pair

ENTRY main {
  %0 = f32[2] parameter(0)
  %1 = f32[2] parameter(1)
  %2 = f32[2] add(%0, %1)
  ROOT %3 = (f32[2], f32[2]) tuple(%2, %1)
}
`
	assert.Equal(t, want, prog.DumpText())

	types := prog.ResultTypes()
	r.Len(types, 2)
	assert.Equal(t, "f32[2]", types[0].String())
	assert.Equal(t, "f32[2]", types[1].String())
}

func TestGetTupleElement(t *testing.T) {
	r := require.New(t)
	b := NewBuilder("gte")
	vec := ir.Type{DType: ir.DTypeF64, Shape: ir.NewShape(3)}

	p0, err := b.Parameter(0, vec)
	r.NoError(err)
	tup, err := b.Tuple(p0, p0)
	r.NoError(err)
	elem, err := b.GetTupleElement(tup, 1)
	r.NoError(err)
	r.Equal(vec, b.TypeOf(elem))

	_, err = b.GetTupleElement(p0, 0)
	r.ErrorContains(err, "is not a tuple")
	_, err = b.GetTupleElement(tup, 2)
	r.ErrorContains(err, "index 2 out of range")
}

func TestTupleParameter(t *testing.T) {
	r := require.New(t)
	b := NewBuilder("packed")
	vec1 := ir.Type{DType: ir.DTypeF32, Shape: ir.NewShape(1)}
	vec2 := ir.Type{DType: ir.DTypeF32, Shape: ir.NewShape(2)}

	p, err := b.TupleParameter(0, []ir.Type{vec1, vec2})
	r.NoError(err)
	e0, err := b.GetTupleElement(p, 0)
	r.NoError(err)
	r.Equal(vec1, b.TypeOf(e0))
	e1, err := b.GetTupleElement(p, 1)
	r.NoError(err)
	r.Equal(vec2, b.TypeOf(e1))

	_, err = b.GetTupleElement(p, 5)
	r.ErrorContains(err, "index 5 out of range")

	out, err := b.Unary(OpNegate, e1)
	r.NoError(err)
	prog, err := b.Finalize(out)
	r.NoError(err)
	assert.Contains(t, prog.DumpText(), "%0 = (f32[1], f32[2]) parameter(0)")
	assert.Contains(t, prog.DumpText(), ", index=1")
}

func TestConstantDump(t *testing.T) {
	r := require.New(t)
	b := NewBuilder("consts")
	vec := ir.Type{DType: ir.DTypeF32, Shape: ir.NewShape(2)}

	c, err := b.Constant(vec, []float64{0, 0.5})
	r.NoError(err)
	prog, err := b.Finalize(c)
	r.NoError(err)
	assert.Contains(t, prog.DumpText(), "ROOT %0 = f32[2] constant({0, 0.5})")

	b2 := NewBuilder("splat")
	s, err := b2.Splat(vec, 1.5)
	r.NoError(err)
	prog2, err := b2.Finalize(s)
	r.NoError(err)
	assert.Contains(t, prog2.DumpText(), "constant({1.5, 1.5})")
}

func TestBuilderErrors(t *testing.T) {
	r := require.New(t)
	b := NewBuilder("bad")
	vec := ir.Type{DType: ir.DTypeF32, Shape: ir.NewShape(2)}
	other := ir.Type{DType: ir.DTypeF32, Shape: ir.NewShape(3)}

	p0, err := b.Parameter(0, vec)
	r.NoError(err)
	_, err = b.Parameter(0, vec)
	r.ErrorContains(err, "parameter 0 already declared")

	_, err = b.Constant(vec, []float64{1})
	r.ErrorContains(err, "wants 2 elements, literal has 1")

	_, err = b.Unary(OpAdd, p0)
	r.ErrorContains(err, "opcode add is not unary")
	_, err = b.Binary(OpTanh, p0, p0)
	r.ErrorContains(err, "opcode tanh is not binary")
	_, err = b.Unary(OpAbs, 99)
	r.ErrorContains(err, "%99 is not defined")

	p1, err := b.Parameter(1, other)
	r.NoError(err)
	_, err = b.Binary(OpAdd, p0, p1)
	r.ErrorContains(err, "operands disagree on type")
	_, err = b.Clamp(p0, p1, p0)
	r.ErrorContains(err, "clamp bound type")

	// Sparse parameter numbering is rejected at finalize.
	b2 := NewBuilder("sparse")
	id, err := b2.Parameter(1, vec)
	r.NoError(err)
	_, err = b2.Finalize(id)
	r.ErrorContains(err, "parameter 0 is missing")
}
