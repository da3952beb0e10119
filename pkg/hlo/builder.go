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
	"fmt"

	"github.com/secretflow/hlobridge/pkg/ir"
)

// Builder assembles a Program instruction by instruction. Methods validate
// operand types as they go, so a Program that finalizes is well formed.
type Builder struct {
	name   string
	instrs []*Instruction
	params map[int]int
}

// NewBuilder creates a builder for a program with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{
		name:   name,
		params: make(map[int]int),
	}
}

func (b *Builder) add(in *Instruction) int {
	in.ID = len(b.instrs)
	b.instrs = append(b.instrs, in)
	return in.ID
}

func (b *Builder) checkOperand(id int) error {
	if id < 0 || id >= len(b.instrs) {
		return fmt.Errorf("operand %%%d is not defined", id)
	}
	return nil
}

// TypeOf returns the result type of instruction id. Tuple instructions and
// unknown ids report the zero type.
func (b *Builder) TypeOf(id int) ir.Type {
	if id < 0 || id >= len(b.instrs) {
		return ir.Type{}
	}
	return b.instrs[id].Type
}

// Parameter declares entry parameter number with the given type.
func (b *Builder) Parameter(number int, t ir.Type) (int, error) {
	if number < 0 {
		return 0, fmt.Errorf("parameter number %d is negative", number)
	}
	if prev, ok := b.params[number]; ok {
		return 0, fmt.Errorf("parameter %d already declared as %%%d", number, prev)
	}
	id := b.add(&Instruction{Opcode: OpParameter, Type: t, Index: number})
	b.params[number] = id
	return id, nil
}

// TupleParameter declares entry parameter number as a tuple of the given
// element types, the packed calling convention.
func (b *Builder) TupleParameter(number int, types []ir.Type) (int, error) {
	if number < 0 {
		return 0, fmt.Errorf("parameter number %d is negative", number)
	}
	if prev, ok := b.params[number]; ok {
		return 0, fmt.Errorf("parameter %d already declared as %%%d", number, prev)
	}
	elems := make([]ir.Type, len(types))
	copy(elems, types)
	id := b.add(&Instruction{Opcode: OpParameter, Index: number, TupleTypes: elems})
	b.params[number] = id
	return id, nil
}

// Constant emits a literal of type t. The literal length must match the
// element count of t.
func (b *Builder) Constant(t ir.Type, literal []float64) (int, error) {
	if want := t.Shape.NumElements(); int64(len(literal)) != want {
		return 0, fmt.Errorf("constant of type %s wants %d elements, literal has %d", t, want, len(literal))
	}
	lit := make([]float64, len(literal))
	copy(lit, literal)
	return b.add(&Instruction{Opcode: OpConstant, Type: t, Literal: lit}), nil
}

// Splat emits a constant of type t with every element set to v.
func (b *Builder) Splat(t ir.Type, v float64) (int, error) {
	n := t.Shape.NumElements()
	lit := make([]float64, n)
	for i := range lit {
		lit[i] = v
	}
	return b.Constant(t, lit)
}

// Unary emits a one-operand elementwise instruction. The result inherits the
// operand type.
func (b *Builder) Unary(op Opcode, x int) (int, error) {
	if !IsUnary(op) {
		return 0, fmt.Errorf("opcode %s is not unary", op)
	}
	if err := b.checkOperand(x); err != nil {
		return 0, err
	}
	return b.add(&Instruction{Opcode: op, Operands: []int{x}, Type: b.instrs[x].Type}), nil
}

// Binary emits a two-operand elementwise instruction. Operand types must
// match exactly.
func (b *Builder) Binary(op Opcode, lhs, rhs int) (int, error) {
	if !IsBinary(op) {
		return 0, fmt.Errorf("opcode %s is not binary", op)
	}
	for _, id := range []int{lhs, rhs} {
		if err := b.checkOperand(id); err != nil {
			return 0, err
		}
	}
	lt, rt := b.instrs[lhs].Type, b.instrs[rhs].Type
	if !lt.Equal(rt) {
		return 0, fmt.Errorf("%s operands disagree on type: %s vs %s", op, lt, rt)
	}
	return b.add(&Instruction{Opcode: op, Operands: []int{lhs, rhs}, Type: lt}), nil
}

// Clamp emits clamp(min, x, max). All three operands share one type.
func (b *Builder) Clamp(min, x, max int) (int, error) {
	for _, id := range []int{min, x, max} {
		if err := b.checkOperand(id); err != nil {
			return 0, err
		}
	}
	xt := b.instrs[x].Type
	for _, id := range []int{min, max} {
		if t := b.instrs[id].Type; !t.Equal(xt) {
			return 0, fmt.Errorf("clamp bound type %s does not match operand type %s", t, xt)
		}
	}
	return b.add(&Instruction{Opcode: OpClamp, Operands: []int{min, x, max}, Type: xt}), nil
}

// Tuple packs elements into a tuple value.
func (b *Builder) Tuple(elems ...int) (int, error) {
	ops := make([]int, len(elems))
	for i, id := range elems {
		if err := b.checkOperand(id); err != nil {
			return 0, err
		}
		ops[i] = id
	}
	return b.add(&Instruction{Opcode: OpTuple, Operands: ops}), nil
}

// GetTupleElement extracts element index from a tuple value.
func (b *Builder) GetTupleElement(tuple, index int) (int, error) {
	if err := b.checkOperand(tuple); err != nil {
		return 0, err
	}
	tup := b.instrs[tuple]
	if !tup.IsTuple() {
		return 0, fmt.Errorf("%%%d is not a tuple", tuple)
	}
	var elemType ir.Type
	switch {
	case len(tup.TupleTypes) > 0:
		if index < 0 || index >= len(tup.TupleTypes) {
			return 0, fmt.Errorf("tuple %%%d has %d elements, index %d out of range", tuple, len(tup.TupleTypes), index)
		}
		elemType = tup.TupleTypes[index]
	default:
		if index < 0 || index >= len(tup.Operands) {
			return 0, fmt.Errorf("tuple %%%d has %d elements, index %d out of range", tuple, len(tup.Operands), index)
		}
		elemType = b.instrs[tup.Operands[index]].Type
	}
	return b.add(&Instruction{Opcode: OpGetTupleElement, Operands: []int{tuple}, Type: elemType, Index: index}), nil
}

// Finalize checks parameter numbering, fixes the root and returns the
// finished program. The builder must not be reused afterwards.
func (b *Builder) Finalize(root int) (*Program, error) {
	if err := b.checkOperand(root); err != nil {
		return nil, fmt.Errorf("root: %w", err)
	}
	params := make([]int, len(b.params))
	for i := range params {
		id, ok := b.params[i]
		if !ok {
			return nil, fmt.Errorf("parameter %d is missing, have %d parameters", i, len(b.params))
		}
		params[i] = id
	}
	return &Program{
		Name:         b.name,
		Instructions: b.instrs,
		Params:       params,
		Root:         root,
	}, nil
}
