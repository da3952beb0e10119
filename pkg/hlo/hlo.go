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

// Package hlo holds the backend program form produced by compilation.
//
// A Program is a flat list of instructions in SSA form with a single root.
// Multi-output computations tuple their results. The textual dump is
// deterministic, so its checksum identifies the compiled artifact.
package hlo

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"

	"github.com/secretflow/hlobridge/pkg/ir"
)

// Opcode names a backend instruction.
type Opcode string

const (
	OpParameter       Opcode = "parameter"
	OpConstant        Opcode = "constant"
	OpTuple           Opcode = "tuple"
	OpGetTupleElement Opcode = "get-tuple-element"

	OpAbs         Opcode = "abs"
	OpAcos        Opcode = "acos"
	OpSign        Opcode = "sign"
	OpFloor       Opcode = "floor"
	OpNegate      Opcode = "negate"
	OpExponential Opcode = "exponential"
	OpTanh        Opcode = "tanh"
	OpErf         Opcode = "erf"
	OpReciprocal  Opcode = "reciprocal"

	OpAdd      Opcode = "add"
	OpMultiply Opcode = "multiply"
	OpMaximum  Opcode = "maximum"
	OpMinimum  Opcode = "minimum"

	OpClamp Opcode = "clamp"
)

// IsUnary reports whether op takes exactly one operand.
func IsUnary(op Opcode) bool {
	switch op {
	case OpAbs, OpAcos, OpSign, OpFloor, OpNegate, OpExponential, OpTanh, OpErf, OpReciprocal:
		return true
	}
	return false
}

// IsBinary reports whether op takes exactly two elementwise operands.
func IsBinary(op Opcode) bool {
	switch op {
	case OpAdd, OpMultiply, OpMaximum, OpMinimum:
		return true
	}
	return false
}

// Instruction is one node of a compiled program.
//
// Type is unset for tuple-valued instructions. Index carries the parameter
// number for parameter instructions and the element index for
// get-tuple-element. Literal holds constant payloads in row-major order.
// TupleTypes is set on tuple-shaped parameters, the calling convention that
// packs all entry arguments into a single tuple.
type Instruction struct {
	ID         int
	Opcode     Opcode
	Operands   []int
	Type       ir.Type
	Index      int
	Literal    []float64
	TupleTypes []ir.Type
}

// IsTuple reports whether the instruction produces a tuple value.
func (in *Instruction) IsTuple() bool {
	return in.Opcode == OpTuple || len(in.TupleTypes) > 0
}

func (in *Instruction) typeString(p *Program) string {
	if len(in.TupleTypes) > 0 {
		parts := make([]string, 0, len(in.TupleTypes))
		for _, t := range in.TupleTypes {
			parts = append(parts, t.String())
		}
		return "(" + strings.Join(parts, ", ") + ")"
	}
	if in.Opcode == OpTuple {
		parts := make([]string, 0, len(in.Operands))
		for _, op := range in.Operands {
			parts = append(parts, p.Instructions[op].typeString(p))
		}
		return "(" + strings.Join(parts, ", ") + ")"
	}
	return in.Type.String()
}

// Program is the executable artifact produced by either compilation path.
type Program struct {
	Name string
	// Instructions are stored in SSA order, Instructions[i].ID == i.
	Instructions []*Instruction
	// Params maps parameter number to instruction ID.
	Params []int
	// Root is the instruction producing the program result.
	Root int
}

// NumParameters returns the number of entry parameters.
func (p *Program) NumParameters() int {
	return len(p.Params)
}

// ParameterType returns the declared type of parameter i.
func (p *Program) ParameterType(i int) ir.Type {
	return p.Instructions[p.Params[i]].Type
}

// ResultTypes returns the types produced by the root, unpacking a tuple root
// into its element types.
func (p *Program) ResultTypes() []ir.Type {
	root := p.Instructions[p.Root]
	if root.Opcode == OpTuple {
		types := make([]ir.Type, 0, len(root.Operands))
		for _, op := range root.Operands {
			types = append(types, p.Instructions[op].Type)
		}
		return types
	}
	return []ir.Type{root.Type}
}

// DumpText renders the program in a stable textual form.
func (p *Program) DumpText() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "HloModule %s\n\n", p.Name)
	sb.WriteString("ENTRY main {\n")
	for _, in := range p.Instructions {
		sb.WriteString("  ")
		if in.ID == p.Root {
			sb.WriteString("ROOT ")
		}
		fmt.Fprintf(&sb, "%%%d = %s %s(", in.ID, in.typeString(p), in.Opcode)
		switch in.Opcode {
		case OpParameter:
			fmt.Fprintf(&sb, "%d", in.Index)
		case OpConstant:
			sb.WriteString("{")
			for i, v := range in.Literal {
				if i > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
			}
			sb.WriteString("}")
		default:
			for i, op := range in.Operands {
				if i > 0 {
					sb.WriteString(", ")
				}
				fmt.Fprintf(&sb, "%%%d", op)
			}
		}
		sb.WriteString(")")
		if in.Opcode == OpGetTupleElement {
			fmt.Fprintf(&sb, ", index=%d", in.Index)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n")
	return sb.String()
}

// Checksum returns the sha256 digest of the textual dump.
func (p *Program) Checksum() string {
	crypt := sha256.New()
	crypt.Write([]byte(p.DumpText()))
	return fmt.Sprintf("%x", crypt.Sum(nil))
}
