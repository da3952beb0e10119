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

	"github.com/sirupsen/logrus"

	"github.com/secretflow/hlobridge/pkg/hlo"
	"github.com/secretflow/hlobridge/pkg/ir"
)

// PrepareModulePass seeds the program builder with entry parameters
type PrepareModulePass struct{}

// NewPrepareModulePass creates a new prepare pass
func NewPrepareModulePass() *PrepareModulePass {
	return &PrepareModulePass{}
}

// Name returns the pass name
func (p *PrepareModulePass) Name() string {
	return "PrepareModulePass"
}

// Run creates the builder and declares one parameter per module argument,
// honoring the tuple-args calling convention when requested
func (p *PrepareModulePass) Run(c *Context) error {
	if c.Module == nil {
		return fmt.Errorf("module not set")
	}
	if c.Client == nil {
		return fmt.Errorf("platform client not set")
	}

	// 1. Create the builder
	b := hlo.NewBuilder(c.Module.Name)
	c.Builder = b

	paramTypes := make([]ir.Type, len(c.Module.Func.Params))
	for i, param := range c.Module.Func.Params {
		paramTypes[i] = param.Type
	}

	// 2. Seed parameters
	if c.UseTupleArgs {
		tup, err := b.TupleParameter(0, paramTypes)
		if err != nil {
			return fmt.Errorf("failed to declare tuple parameter: %v", err)
		}
		for i := range paramTypes {
			id, err := b.GetTupleElement(tup, i)
			if err != nil {
				return fmt.Errorf("failed to unpack argument %d: %v", i, err)
			}
			c.SetValue(ir.ArgRef(i), id)
		}
		return nil
	}
	for i, t := range paramTypes {
		id, err := b.Parameter(i, t)
		if err != nil {
			return fmt.Errorf("failed to declare parameter %d: %v", i, err)
		}
		c.SetValue(ir.ArgRef(i), id)
	}
	return nil
}

// LowerOpsPass applies the rule table to every operation in order
type LowerOpsPass struct{}

// NewLowerOpsPass creates a new lowering pass
func NewLowerOpsPass() *LowerOpsPass {
	return &LowerOpsPass{}
}

// Name returns the pass name
func (p *LowerOpsPass) Name() string {
	return "LowerOpsPass"
}

// Run lowers operations one by one. A failing operation records its kind and
// lowering continues, so one run reports every offending kind at once.
// Operations downstream of a failure are skipped without being counted
// against their own kind.
func (p *LowerOpsPass) Run(c *Context) error {
	if c.Builder == nil {
		return fmt.Errorf("builder not initialized - ensure PrepareModulePass runs before LowerOpsPass")
	}

	for _, op := range c.Module.Func.Ops {
		operands, ok := c.operandIDs(op)
		if !ok {
			logrus.Debugf("skipping %%%d (%s): operand producer failed to lower", op.Index, op.Kind)
			continue
		}
		rule, ok := ruleTable[op.Kind]
		if !ok {
			c.failKind(op.Kind)
			continue
		}
		id, err := rule(c, op, operands)
		if err != nil {
			logrus.Debugf("lowering %%%d (%s): %v", op.Index, op.Kind, err)
			c.failKind(op.Kind)
			continue
		}
		c.SetValue(ir.ResultRef(op.Index), id)
	}
	return nil
}

func (c *Context) operandIDs(op *ir.Operation) ([]int, bool) {
	ids := make([]int, len(op.Operands))
	for i, ref := range op.Operands {
		id, ok := c.Value(ref)
		if !ok {
			return nil, false
		}
		ids[i] = id
	}
	return ids, true
}

// VerifyProgramPass finalizes the program and rejects incomplete lowerings
type VerifyProgramPass struct{}

// NewVerifyProgramPass creates a new verification pass
func NewVerifyProgramPass() *VerifyProgramPass {
	return &VerifyProgramPass{}
}

// Name returns the pass name
func (p *VerifyProgramPass) Name() string {
	return "VerifyProgramPass"
}

// Run reports unresolved operation kinds, packs the return values and checks
// the finished program against the device capability table
func (p *VerifyProgramPass) Run(c *Context) error {
	// 1. Any kind still unresolved makes the whole module illegal
	if len(c.FailedKinds) > 0 {
		return &UnsupportedOpsError{Kinds: c.FailedKinds}
	}

	// 2. Resolve return values
	if len(c.Module.Func.Returns) == 0 {
		return fmt.Errorf("module function produces no results")
	}
	rets := make([]int, len(c.Module.Func.Returns))
	for i, ref := range c.Module.Func.Returns {
		id, ok := c.Value(ref)
		if !ok {
			return fmt.Errorf("return value %s was never lowered", ref)
		}
		rets[i] = id
	}

	// 3. Multi-result functions tuple their outputs
	root := rets[0]
	if len(rets) > 1 {
		tup, err := c.Builder.Tuple(rets...)
		if err != nil {
			return fmt.Errorf("failed to pack results: %v", err)
		}
		root = tup
	}

	// 4. Finalize
	prog, err := c.Builder.Finalize(root)
	if err != nil {
		return fmt.Errorf("failed to finalize program: %v", err)
	}

	// 5. Custom passes may emit opcodes the rules never vetted, check the
	// whole program against the device table
	caps := c.Client.Capabilities()
	for _, in := range prog.Instructions {
		if !caps.SupportsOp(string(in.Opcode)) {
			return fmt.Errorf("device %s does not accept opcode %s", c.Client.Name(), in.Opcode)
		}
		if !in.IsTuple() && !caps.SupportsDType(in.Type.DType) {
			return fmt.Errorf("device %s does not accept dtype %s", c.Client.Name(), in.Type.DType)
		}
	}

	c.Program = prog
	return nil
}
