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
	"fmt"

	"github.com/secretflow/hlobridge/pkg/hlo"
	"github.com/secretflow/hlobridge/pkg/ir"
	"github.com/secretflow/hlobridge/pkg/platform"
)

// Series expansion coefficients for erf on devices without the opcode:
// erf(x) is approximated by tanh(erfAlpha*x + erfBeta*x^3).
const (
	erfAlpha = 1.1283791670955126
	erfBeta  = 0.1009061568
)

type Kernel interface {
	// checkDevice verifies the target device accepts everything the kernel
	// is about to emit
	checkDevice(pb *programBuilder, node *Node) error
	// emitNodes emits backend instructions for the node
	emitNodes(pb *programBuilder, node *Node) error
	// String returns the string representation of the kernel
	String() string
	// Cost returns the cost of the kernel
	// Note that comparing Cost values is only meaningful when the original
	// Node is identical
	// range: [0, 1]
	Cost() float64
}

// programBuilder accumulates emitted instructions and tracks which builder
// value each graph node produced.
type programBuilder struct {
	b    *hlo.Builder
	caps *platform.Capabilities
	// values maps node ids to builder instruction ids.
	values map[int]int

	useTupleArgs bool
	paramTypes   []ir.Type
	// tupleParam caches the packed parameter instruction, -1 until emitted.
	tupleParam int
}

func newProgramBuilder(name string, caps *platform.Capabilities, paramTypes []ir.Type, useTupleArgs bool) *programBuilder {
	return &programBuilder{
		b:            hlo.NewBuilder(name),
		caps:         caps,
		values:       make(map[int]int),
		useTupleArgs: useTupleArgs,
		paramTypes:   paramTypes,
		tupleParam:   -1,
	}
}

func (pb *programBuilder) requireOpcodes(opcodes ...hlo.Opcode) error {
	for _, opcode := range opcodes {
		if !pb.caps.SupportsOp(string(opcode)) {
			return fmt.Errorf("device does not accept opcode %s", opcode)
		}
	}
	return nil
}

func (pb *programBuilder) requireDType(dt ir.DType) error {
	if !pb.caps.SupportsDType(dt) {
		return fmt.Errorf("device does not accept dtype %s", dt)
	}
	return nil
}

func (pb *programBuilder) input(node *Node, i int) (int, error) {
	if i >= len(node.Inputs) {
		return 0, fmt.Errorf("node #%d (%s) wants input %d, has %d", node.ID, node.Kind, i, len(node.Inputs))
	}
	id, ok := pb.values[node.Inputs[i]]
	if !ok {
		return 0, fmt.Errorf("node #%d (%s): input node #%d was not emitted", node.ID, node.Kind, node.Inputs[i])
	}
	return id, nil
}

func (pb *programBuilder) setValue(node *Node, id int) {
	pb.values[node.ID] = id
}

func checkArity(node *Node, want int) error {
	if len(node.Inputs) != want {
		return fmt.Errorf("%s wants %d inputs, got %d", node.Kind, want, len(node.Inputs))
	}
	return nil
}

// KernelParameter binds one entry argument. Under the packed calling
// convention every argument reads from a shared tuple parameter.
type KernelParameter struct{}

func (k *KernelParameter) String() string {
	return "KernelParameter"
}

func (k *KernelParameter) Cost() float64 {
	return 0.0
}

func (k *KernelParameter) checkDevice(pb *programBuilder, node *Node) error {
	if err := pb.requireOpcodes(hlo.OpParameter); err != nil {
		return err
	}
	if pb.useTupleArgs {
		if err := pb.requireOpcodes(hlo.OpGetTupleElement); err != nil {
			return err
		}
	}
	return pb.requireDType(node.Output.DType)
}

func (k *KernelParameter) emitNodes(pb *programBuilder, node *Node) error {
	if node.ParamIndex < 0 {
		return fmt.Errorf("KernelParameter emitNodes: node #%d carries no argument number", node.ID)
	}
	if !pb.useTupleArgs {
		id, err := pb.b.Parameter(node.ParamIndex, node.Output)
		if err != nil {
			return fmt.Errorf("KernelParameter emitNodes: %v", err)
		}
		pb.setValue(node, id)
		return nil
	}
	if pb.tupleParam < 0 {
		tup, err := pb.b.TupleParameter(0, pb.paramTypes)
		if err != nil {
			return fmt.Errorf("KernelParameter emitNodes: %v", err)
		}
		pb.tupleParam = tup
	}
	id, err := pb.b.GetTupleElement(pb.tupleParam, node.ParamIndex)
	if err != nil {
		return fmt.Errorf("KernelParameter emitNodes: %v", err)
	}
	pb.setValue(node, id)
	return nil
}

// KernelConstant materializes a literal from the value attribute. A single
// value splats across the output shape.
type KernelConstant struct{}

func (k *KernelConstant) String() string {
	return "KernelConstant"
}

func (k *KernelConstant) Cost() float64 {
	return 0.0
}

func (k *KernelConstant) checkDevice(pb *programBuilder, node *Node) error {
	if err := pb.requireOpcodes(hlo.OpConstant); err != nil {
		return err
	}
	return pb.requireDType(node.Output.DType)
}

func (k *KernelConstant) emitNodes(pb *programBuilder, node *Node) error {
	if err := checkArity(node, 0); err != nil {
		return fmt.Errorf("KernelConstant emitNodes: %v", err)
	}
	attr, ok := node.Attrs["value"]
	if !ok {
		return fmt.Errorf("KernelConstant emitNodes: node #%d missing value attribute", node.ID)
	}
	literal, ok := attr.GetFloats()
	if !ok {
		return fmt.Errorf("KernelConstant emitNodes: node #%d value attribute is not numeric", node.ID)
	}
	var id int
	var err error
	if len(literal) == 1 && node.Output.Shape.NumElements() > 1 {
		id, err = pb.b.Splat(node.Output, literal[0])
	} else {
		id, err = pb.b.Constant(node.Output, literal)
	}
	if err != nil {
		return fmt.Errorf("KernelConstant emitNodes: %v", err)
	}
	pb.setValue(node, id)
	return nil
}

// KernelUnary emits a single elementwise instruction.
type KernelUnary struct {
	opcode hlo.Opcode
}

func (k *KernelUnary) String() string {
	return fmt.Sprintf("KernelUnary(%s)", k.opcode)
}

func (k *KernelUnary) Cost() float64 {
	return 0.0
}

func (k *KernelUnary) checkDevice(pb *programBuilder, node *Node) error {
	if err := pb.requireOpcodes(k.opcode); err != nil {
		return err
	}
	return pb.requireDType(node.Output.DType)
}

func (k *KernelUnary) emitNodes(pb *programBuilder, node *Node) error {
	if err := checkArity(node, 1); err != nil {
		return fmt.Errorf("KernelUnary emitNodes: %v", err)
	}
	x, err := pb.input(node, 0)
	if err != nil {
		return fmt.Errorf("KernelUnary emitNodes: %v", err)
	}
	id, err := pb.b.Unary(k.opcode, x)
	if err != nil {
		return fmt.Errorf("KernelUnary emitNodes: %v", err)
	}
	pb.setValue(node, id)
	return nil
}

// KernelBinary emits a two-operand elementwise instruction.
type KernelBinary struct {
	opcode hlo.Opcode
}

func (k *KernelBinary) String() string {
	return fmt.Sprintf("KernelBinary(%s)", k.opcode)
}

func (k *KernelBinary) Cost() float64 {
	return 0.0
}

func (k *KernelBinary) checkDevice(pb *programBuilder, node *Node) error {
	if err := pb.requireOpcodes(k.opcode); err != nil {
		return err
	}
	return pb.requireDType(node.Output.DType)
}

func (k *KernelBinary) emitNodes(pb *programBuilder, node *Node) error {
	if err := checkArity(node, 2); err != nil {
		return fmt.Errorf("KernelBinary emitNodes: %v", err)
	}
	lhs, err := pb.input(node, 0)
	if err != nil {
		return fmt.Errorf("KernelBinary emitNodes: %v", err)
	}
	rhs, err := pb.input(node, 1)
	if err != nil {
		return fmt.Errorf("KernelBinary emitNodes: %v", err)
	}
	id, err := pb.b.Binary(k.opcode, lhs, rhs)
	if err != nil {
		return fmt.Errorf("KernelBinary emitNodes: %v", err)
	}
	pb.setValue(node, id)
	return nil
}

// KernelClamp reads the min and max attributes and emits the three-operand
// clamp form with splatted bounds.
type KernelClamp struct{}

func (k *KernelClamp) String() string {
	return "KernelClamp"
}

func (k *KernelClamp) Cost() float64 {
	return 0.0
}

func (k *KernelClamp) checkDevice(pb *programBuilder, node *Node) error {
	if err := pb.requireOpcodes(hlo.OpClamp, hlo.OpConstant); err != nil {
		return err
	}
	return pb.requireDType(node.Output.DType)
}

func (k *KernelClamp) emitNodes(pb *programBuilder, node *Node) error {
	if err := checkArity(node, 1); err != nil {
		return fmt.Errorf("KernelClamp emitNodes: %v", err)
	}
	lo, ok := node.Attrs["min"].GetFloat()
	if !ok {
		return fmt.Errorf("KernelClamp emitNodes: node #%d missing min attribute", node.ID)
	}
	hi, ok := node.Attrs["max"].GetFloat()
	if !ok {
		return fmt.Errorf("KernelClamp emitNodes: node #%d missing max attribute", node.ID)
	}
	if lo > hi {
		return fmt.Errorf("KernelClamp emitNodes: bounds are inverted: min %v > max %v", lo, hi)
	}
	x, err := pb.input(node, 0)
	if err != nil {
		return fmt.Errorf("KernelClamp emitNodes: %v", err)
	}
	loID, err := pb.b.Splat(node.Output, lo)
	if err != nil {
		return fmt.Errorf("KernelClamp emitNodes: %v", err)
	}
	hiID, err := pb.b.Splat(node.Output, hi)
	if err != nil {
		return fmt.Errorf("KernelClamp emitNodes: %v", err)
	}
	id, err := pb.b.Clamp(loID, x, hiID)
	if err != nil {
		return fmt.Errorf("KernelClamp emitNodes: %v", err)
	}
	pb.setValue(node, id)
	return nil
}

// KernelRelu expands relu into maximum(x, 0).
type KernelRelu struct{}

func (k *KernelRelu) String() string {
	return "KernelRelu"
}

func (k *KernelRelu) Cost() float64 {
	return 0.0
}

func (k *KernelRelu) checkDevice(pb *programBuilder, node *Node) error {
	if err := pb.requireOpcodes(hlo.OpMaximum, hlo.OpConstant); err != nil {
		return err
	}
	return pb.requireDType(node.Output.DType)
}

func (k *KernelRelu) emitNodes(pb *programBuilder, node *Node) error {
	if err := checkArity(node, 1); err != nil {
		return fmt.Errorf("KernelRelu emitNodes: %v", err)
	}
	x, err := pb.input(node, 0)
	if err != nil {
		return fmt.Errorf("KernelRelu emitNodes: %v", err)
	}
	zero, err := pb.b.Splat(node.Output, 0)
	if err != nil {
		return fmt.Errorf("KernelRelu emitNodes: %v", err)
	}
	id, err := pb.b.Binary(hlo.OpMaximum, x, zero)
	if err != nil {
		return fmt.Errorf("KernelRelu emitNodes: %v", err)
	}
	pb.setValue(node, id)
	return nil
}

// KernelSquare expands square into multiply(x, x).
type KernelSquare struct{}

func (k *KernelSquare) String() string {
	return "KernelSquare"
}

func (k *KernelSquare) Cost() float64 {
	return 0.0
}

func (k *KernelSquare) checkDevice(pb *programBuilder, node *Node) error {
	if err := pb.requireOpcodes(hlo.OpMultiply); err != nil {
		return err
	}
	return pb.requireDType(node.Output.DType)
}

func (k *KernelSquare) emitNodes(pb *programBuilder, node *Node) error {
	if err := checkArity(node, 1); err != nil {
		return fmt.Errorf("KernelSquare emitNodes: %v", err)
	}
	x, err := pb.input(node, 0)
	if err != nil {
		return fmt.Errorf("KernelSquare emitNodes: %v", err)
	}
	id, err := pb.b.Binary(hlo.OpMultiply, x, x)
	if err != nil {
		return fmt.Errorf("KernelSquare emitNodes: %v", err)
	}
	pb.setValue(node, id)
	return nil
}

// KernelErfSeries approximates erf with tanh(erfAlpha*x + erfBeta*x^3) for
// devices that reject the dedicated opcode.
type KernelErfSeries struct{}

func (k *KernelErfSeries) String() string {
	return "KernelErfSeries"
}

func (k *KernelErfSeries) Cost() float64 {
	// expansion emits eight instructions where one opcode would do
	return 0.3
}

func (k *KernelErfSeries) checkDevice(pb *programBuilder, node *Node) error {
	if err := pb.requireOpcodes(hlo.OpMultiply, hlo.OpAdd, hlo.OpTanh, hlo.OpConstant); err != nil {
		return err
	}
	return pb.requireDType(node.Output.DType)
}

func (k *KernelErfSeries) emitNodes(pb *programBuilder, node *Node) error {
	if err := checkArity(node, 1); err != nil {
		return fmt.Errorf("KernelErfSeries emitNodes: %v", err)
	}
	x, err := pb.input(node, 0)
	if err != nil {
		return fmt.Errorf("KernelErfSeries emitNodes: %v", err)
	}

	emit := func(f func() (int, error)) int {
		if err != nil {
			return 0
		}
		var id int
		id, err = f()
		return id
	}
	t := node.Output
	alpha := emit(func() (int, error) { return pb.b.Splat(t, erfAlpha) })
	beta := emit(func() (int, error) { return pb.b.Splat(t, erfBeta) })
	x2 := emit(func() (int, error) { return pb.b.Binary(hlo.OpMultiply, x, x) })
	x3 := emit(func() (int, error) { return pb.b.Binary(hlo.OpMultiply, x2, x) })
	linear := emit(func() (int, error) { return pb.b.Binary(hlo.OpMultiply, alpha, x) })
	cubic := emit(func() (int, error) { return pb.b.Binary(hlo.OpMultiply, beta, x3) })
	sum := emit(func() (int, error) { return pb.b.Binary(hlo.OpAdd, linear, cubic) })
	out := emit(func() (int, error) { return pb.b.Unary(hlo.OpTanh, sum) })
	if err != nil {
		return fmt.Errorf("KernelErfSeries emitNodes: %v", err)
	}
	pb.setValue(node, out)
	return nil
}
