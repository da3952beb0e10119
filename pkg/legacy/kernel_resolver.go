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
	"sort"

	"github.com/secretflow/hlobridge/pkg/hlo"
	"github.com/secretflow/hlobridge/pkg/platform"
)

// KernelResolver picks an emission strategy per node kind. Resolution is
// capability-aware: erf resolves to the dedicated opcode when the device
// accepts it and to the series expansion otherwise.
type KernelResolver struct {
	caps *platform.Capabilities
}

func NewKernelResolver(caps *platform.Capabilities) *KernelResolver {
	return &KernelResolver{caps: caps}
}

var unaryNodeOpcodes = map[string]hlo.Opcode{
	"abs":    hlo.OpAbs,
	"acos":   hlo.OpAcos,
	"sign":   hlo.OpSign,
	"floor":  hlo.OpFloor,
	"negate": hlo.OpNegate,
	"exp":    hlo.OpExponential,
	"tanh":   hlo.OpTanh,
	// reciprocal is carried by the wide kernel set only, the narrow
	// lowering dialect has no rule for it
	"reciprocal": hlo.OpReciprocal,
}

var binaryNodeOpcodes = map[string]hlo.Opcode{
	"add":     hlo.OpAdd,
	"mul":     hlo.OpMultiply,
	"maximum": hlo.OpMaximum,
	"minimum": hlo.OpMinimum,
}

func (r *KernelResolver) Resolve(node *Node) (Kernel, error) {
	if opcode, ok := unaryNodeOpcodes[node.Kind]; ok {
		return &KernelUnary{opcode: opcode}, nil
	}
	if opcode, ok := binaryNodeOpcodes[node.Kind]; ok {
		return &KernelBinary{opcode: opcode}, nil
	}
	switch node.Kind {
	case "parameter":
		return &KernelParameter{}, nil
	case "const":
		return &KernelConstant{}, nil
	case "clamp":
		return &KernelClamp{}, nil
	case "relu":
		return &KernelRelu{}, nil
	case "square":
		return &KernelSquare{}, nil
	case "erf":
		if r.caps.SupportsOp(string(hlo.OpErf)) {
			return &KernelUnary{opcode: hlo.OpErf}, nil
		}
		return &KernelErfSeries{}, nil
	default:
		return nil, fmt.Errorf("Resolve Kernel: unsupported node kind %q", node.Kind)
	}
}

// KernelKinds lists every node kind the resolver handles, sorted.
func KernelKinds() []string {
	kinds := []string{"parameter", "const", "clamp", "relu", "square", "erf"}
	for kind := range unaryNodeOpcodes {
		kinds = append(kinds, kind)
	}
	for kind := range binaryNodeOpcodes {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
