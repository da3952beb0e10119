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

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/secretflow/hlobridge/pkg/hlo"
	"github.com/secretflow/hlobridge/pkg/ir"
	"github.com/secretflow/hlobridge/pkg/platform"
	"github.com/secretflow/hlobridge/pkg/util/priorityqueue"
)

// CompileOptions tunes how the compiler emits the program.
type CompileOptions struct {
	// UseTupleArgs packs all entry arguments into a single tuple parameter.
	UseTupleArgs bool
}

// GraphCompiler lowers a Graph node by node through resolved kernels. It
// predates the pass based lowering and accepts a wider kernel set, which is
// what makes it the fallback of choice.
type GraphCompiler struct {
	client *platform.Client
}

func NewGraphCompiler(client *platform.Client) *GraphCompiler {
	return &GraphCompiler{client: client}
}

func (gc *GraphCompiler) Compile(ctx context.Context, g *Graph, opts *CompileOptions) (*hlo.Program, error) {
	if opts == nil {
		opts = &CompileOptions{}
	}
	// Step 1: validate graph shape and collect parameter types.
	paramTypes, err := gc.validate(g)
	if err != nil {
		return nil, err
	}
	// Step 2: schedule nodes producer first. Ties break toward lower ids so
	// emission order is reproducible run to run.
	order, err := gc.schedule(g)
	if err != nil {
		return nil, err
	}
	// Step 3: resolve one kernel per node.
	kernels := make(map[int]Kernel, len(order))
	for _, node := range order {
		kernel, err := gc.resolver().Resolve(node)
		if err != nil {
			return nil, errors.Wrapf(err, "Compile: node #%d", node.ID)
		}
		logrus.Debugf("Graph Compile: node #%d (%s) -> %s, cost %.1f", node.ID, node.Kind, kernel, kernel.Cost())
		kernels[node.ID] = kernel
	}
	// Step 4: check device acceptance, then emit instructions in order.
	pb := newProgramBuilder(g.Name, gc.client.Capabilities(), paramTypes, opts.UseTupleArgs)
	for _, node := range order {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "Compile")
		}
		kernel := kernels[node.ID]
		if err := kernel.checkDevice(pb, node); err != nil {
			return nil, errors.Wrapf(err, "Compile: node #%d (%s)", node.ID, node.Kind)
		}
		if err := kernel.emitNodes(pb, node); err != nil {
			return nil, errors.Wrapf(err, "Compile: node #%d (%s)", node.ID, node.Kind)
		}
	}
	// Step 5: pack outputs and finalize. Multiple outputs become a tuple root.
	outputs := make([]int, 0, len(g.Outputs))
	for _, out := range g.Outputs {
		id, ok := pb.values[out]
		if !ok {
			return nil, errors.Errorf("Compile: output node #%d was never emitted", out)
		}
		outputs = append(outputs, id)
	}
	root := outputs[0]
	if len(outputs) > 1 {
		if err := pb.requireOpcodes(hlo.OpTuple); err != nil {
			return nil, errors.Wrap(err, "Compile")
		}
		root, err = pb.b.Tuple(outputs...)
		if err != nil {
			return nil, errors.Wrap(err, "Compile")
		}
	}
	program, err := pb.b.Finalize(root)
	if err != nil {
		return nil, errors.Wrap(err, "Compile")
	}
	return program, nil
}

func (gc *GraphCompiler) resolver() *KernelResolver {
	return NewKernelResolver(gc.client.Capabilities())
}

func (gc *GraphCompiler) validate(g *Graph) ([]ir.Type, error) {
	if g == nil || len(g.Nodes) == 0 {
		return nil, errors.New("Compile: graph is empty")
	}
	if len(g.Outputs) == 0 {
		return nil, errors.Errorf("Compile: graph %s produces no outputs", g.Name)
	}
	paramTypes := make([]ir.Type, g.NumParams)
	seen := make(map[int]bool, g.NumParams)
	for _, node := range g.Nodes {
		for _, in := range node.Inputs {
			if g.Node(in) == nil {
				return nil, errors.Errorf("Compile: node #%d (%s) reads unknown node #%d", node.ID, node.Kind, in)
			}
		}
		if node.ParamIndex < 0 {
			continue
		}
		if node.ParamIndex >= g.NumParams {
			return nil, errors.Errorf("Compile: graph %s declares %d parameters, node #%d claims argument %d",
				g.Name, g.NumParams, node.ID, node.ParamIndex)
		}
		if seen[node.ParamIndex] {
			return nil, errors.Errorf("Compile: graph %s binds argument %d twice", g.Name, node.ParamIndex)
		}
		seen[node.ParamIndex] = true
		paramTypes[node.ParamIndex] = node.Output
	}
	if len(seen) != g.NumParams {
		return nil, errors.Errorf("Compile: graph %s declares %d parameters, found %d", g.Name, g.NumParams, len(seen))
	}
	return paramTypes, nil
}

func (gc *GraphCompiler) schedule(g *Graph) ([]*Node, error) {
	indegree := make(map[int]int, len(g.Nodes))
	consumers := make(map[int][]int, len(g.Nodes))
	for _, node := range g.Nodes {
		for _, in := range node.Inputs {
			indegree[node.ID]++
			consumers[in] = append(consumers[in], node.ID)
		}
	}
	// max-heap, so negate ids to pop the lowest first
	ready := priorityqueue.New(func(id int) int { return -id })
	for _, node := range g.Nodes {
		if indegree[node.ID] == 0 {
			ready.Enqueue(node.ID)
		}
	}
	order := make([]*Node, 0, len(g.Nodes))
	for ready.Len() > 0 {
		id, _ := ready.Dequeue()
		order = append(order, g.Node(id))
		for _, consumer := range consumers[id] {
			indegree[consumer]--
			if indegree[consumer] == 0 {
				ready.Enqueue(consumer)
			}
		}
	}
	if len(order) != len(g.Nodes) {
		return nil, errors.Errorf("Compile: graph %s contains a cycle", g.Name)
	}
	return order, nil
}
