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

package legalizer

import (
	"fmt"
	"sort"

	"github.com/secretflow/hlobridge/pkg/hlo"
	"github.com/secretflow/hlobridge/pkg/ir"
)

// ruleFunc lowers one operation and returns the builder id of its result.
// Operands are pre-resolved, in the operation's operand order.
type ruleFunc func(c *Context, op *ir.Operation, operands []int) (int, error)

var ruleTable = map[string]ruleFunc{}

var unaryKindOpcodes = map[string]hlo.Opcode{
	"abs":    hlo.OpAbs,
	"acos":   hlo.OpAcos,
	"sign":   hlo.OpSign,
	"floor":  hlo.OpFloor,
	"negate": hlo.OpNegate,
	"exp":    hlo.OpExponential,
	"tanh":   hlo.OpTanh,
	"erf":    hlo.OpErf,
}

var binaryKindOpcodes = map[string]hlo.Opcode{
	"add":     hlo.OpAdd,
	"mul":     hlo.OpMultiply,
	"maximum": hlo.OpMaximum,
	"minimum": hlo.OpMinimum,
}

func init() {
	for kind, opcode := range unaryKindOpcodes {
		ruleTable[kind] = lowerUnary(opcode)
	}
	for kind, opcode := range binaryKindOpcodes {
		ruleTable[kind] = lowerBinary(opcode)
	}
	ruleTable["const"] = lowerConst
	ruleTable["relu"] = lowerRelu
	ruleTable["square"] = lowerSquare
	ruleTable["clamp"] = lowerClamp
}

// HasRule reports whether kind has a built-in lowering rule.
func HasRule(kind string) bool {
	_, ok := ruleTable[kind]
	return ok
}

// DialectKinds returns the operation kinds with built-in lowering rules,
// sorted.
func DialectKinds() []string {
	kinds := make([]string, 0, len(ruleTable))
	for kind := range ruleTable {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// requireOpcodes fails when the target device rejects any opcode the rule is
// about to emit.
func requireOpcodes(c *Context, opcodes ...hlo.Opcode) error {
	caps := c.Client.Capabilities()
	for _, opcode := range opcodes {
		if !caps.SupportsOp(string(opcode)) {
			return fmt.Errorf("device %s does not accept opcode %s", c.Client.Name(), opcode)
		}
	}
	return nil
}

func requireDType(c *Context, dt ir.DType) error {
	if !c.Client.Capabilities().SupportsDType(dt) {
		return fmt.Errorf("device %s does not accept dtype %s", c.Client.Name(), dt)
	}
	return nil
}

func lowerUnary(opcode hlo.Opcode) ruleFunc {
	return func(c *Context, op *ir.Operation, operands []int) (int, error) {
		if len(operands) != 1 {
			return 0, fmt.Errorf("%s wants 1 operand, got %d", op.Kind, len(operands))
		}
		if err := requireDType(c, op.Result.DType); err != nil {
			return 0, err
		}
		if err := requireOpcodes(c, opcode); err != nil {
			return 0, err
		}
		return c.Builder.Unary(opcode, operands[0])
	}
}

func lowerBinary(opcode hlo.Opcode) ruleFunc {
	return func(c *Context, op *ir.Operation, operands []int) (int, error) {
		if len(operands) != 2 {
			return 0, fmt.Errorf("%s wants 2 operands, got %d", op.Kind, len(operands))
		}
		if err := requireDType(c, op.Result.DType); err != nil {
			return 0, err
		}
		if err := requireOpcodes(c, opcode); err != nil {
			return 0, err
		}
		return c.Builder.Binary(opcode, operands[0], operands[1])
	}
}

func lowerConst(c *Context, op *ir.Operation, operands []int) (int, error) {
	if len(operands) != 0 {
		return 0, fmt.Errorf("const wants no operands, got %d", len(operands))
	}
	if err := requireDType(c, op.Result.DType); err != nil {
		return 0, err
	}
	if err := requireOpcodes(c, hlo.OpConstant); err != nil {
		return 0, err
	}
	attr, ok := op.Attrs["value"]
	if !ok {
		return 0, fmt.Errorf("const operation missing value attribute")
	}
	literal, ok := attr.GetFloats()
	if !ok {
		return 0, fmt.Errorf("const value attribute is not numeric")
	}
	// A single value splats across the result shape.
	if len(literal) == 1 && op.Result.Shape.NumElements() > 1 {
		return c.Builder.Splat(op.Result, literal[0])
	}
	return c.Builder.Constant(op.Result, literal)
}

// relu expands to maximum(x, 0) rather than a dedicated opcode.
func lowerRelu(c *Context, op *ir.Operation, operands []int) (int, error) {
	if len(operands) != 1 {
		return 0, fmt.Errorf("relu wants 1 operand, got %d", len(operands))
	}
	if err := requireDType(c, op.Result.DType); err != nil {
		return 0, err
	}
	if err := requireOpcodes(c, hlo.OpMaximum, hlo.OpConstant); err != nil {
		return 0, err
	}
	zero, err := c.Builder.Splat(op.Result, 0)
	if err != nil {
		return 0, err
	}
	return c.Builder.Binary(hlo.OpMaximum, operands[0], zero)
}

// square expands to multiply(x, x).
func lowerSquare(c *Context, op *ir.Operation, operands []int) (int, error) {
	if len(operands) != 1 {
		return 0, fmt.Errorf("square wants 1 operand, got %d", len(operands))
	}
	if err := requireDType(c, op.Result.DType); err != nil {
		return 0, err
	}
	if err := requireOpcodes(c, hlo.OpMultiply); err != nil {
		return 0, err
	}
	return c.Builder.Binary(hlo.OpMultiply, operands[0], operands[0])
}

// clamp reads its bounds from the min and max attributes and emits the
// three-operand clamp form with splatted bounds.
func lowerClamp(c *Context, op *ir.Operation, operands []int) (int, error) {
	if len(operands) != 1 {
		return 0, fmt.Errorf("clamp wants 1 operand, got %d", len(operands))
	}
	if err := requireDType(c, op.Result.DType); err != nil {
		return 0, err
	}
	if err := requireOpcodes(c, hlo.OpClamp, hlo.OpConstant); err != nil {
		return 0, err
	}
	lo, ok := op.Attrs["min"].GetFloat()
	if !ok {
		return 0, fmt.Errorf("clamp operation missing min attribute")
	}
	hi, ok := op.Attrs["max"].GetFloat()
	if !ok {
		return 0, fmt.Errorf("clamp operation missing max attribute")
	}
	if lo > hi {
		return 0, fmt.Errorf("clamp bounds are inverted: min %v > max %v", lo, hi)
	}
	loID, err := c.Builder.Splat(op.Result, lo)
	if err != nil {
		return 0, err
	}
	hiID, err := c.Builder.Splat(op.Result, hi)
	if err != nil {
		return 0, err
	}
	return c.Builder.Clamp(loID, operands[0], hiID)
}
