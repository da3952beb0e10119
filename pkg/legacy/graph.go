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

// Package legacy is the graph compiler behind the fallback path. It consumes
// modules in their untyped node-graph form, resolves a kernel per node and
// emits the same backend program form the pass legalizer produces. Its
// kernel set is wider than the legalizer dialect, which is what makes
// falling back worthwhile.
package legacy

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/secretflow/hlobridge/pkg/ir"
)

// Node is one vertex of the untyped compiler graph.
type Node struct {
	ID   int
	Kind string
	// Inputs are producer node ids in operand order.
	Inputs []int
	Attrs  map[string]ir.Attr
	// Output is the value type the node produces.
	Output ir.Type
	// ParamIndex is the argument number for parameter nodes, -1 otherwise.
	ParamIndex int
}

// Graph is the flattened module form the fallback compiler works on.
// Parameter nodes occupy ids 0..NumParams-1, operation nodes follow in
// module order.
type Graph struct {
	Name      string
	Nodes     []*Node
	NumParams int
	// Outputs are the node ids whose values the caller receives, in
	// declaration order.
	Outputs []int
}

// Node returns the node with the given id, nil when out of range.
func (g *Graph) Node(id int) *Node {
	if id < 0 || id >= len(g.Nodes) {
		return nil
	}
	return g.Nodes[id]
}

// String returns a string representation of the Graph
func (g *Graph) String() string {
	var sb strings.Builder
	sb.WriteString("Graph{\n")
	sb.WriteString(fmt.Sprintf("  Name: %s,\n", g.Name))
	sb.WriteString(fmt.Sprintf("  Nodes: %d,\n", len(g.Nodes)))
	sb.WriteString(fmt.Sprintf("  Params: %d,\n", g.NumParams))
	sb.WriteString(fmt.Sprintf("  Outputs: %v,\n", g.Outputs))
	sb.WriteString("  NodeList: [\n")
	for _, n := range g.Nodes {
		fmt.Fprintf(&sb, "    #%d %s(%v) : %s,\n", n.ID, n.Kind, n.Inputs, n.Output)
	}
	sb.WriteString("  ]\n}")
	return sb.String()
}

// BuildGraph flattens a module into the untyped graph form. Structural
// problems such as a missing result list are reported here, before any
// kernel work starts.
func BuildGraph(m *ir.Module) (*Graph, error) {
	if m == nil || m.Func == nil {
		return nil, errors.New("BuildGraph: module is empty")
	}
	fn := m.Func
	if len(fn.Returns) == 0 {
		return nil, errors.Errorf("BuildGraph: function %s produces no results", fn.Name)
	}

	g := &Graph{
		Name:      m.Name,
		NumParams: len(fn.Params),
	}

	// Parameters come first so references translate positionally.
	for i, param := range fn.Params {
		g.Nodes = append(g.Nodes, &Node{
			ID:         i,
			Kind:       "parameter",
			Output:     param.Type,
			ParamIndex: i,
		})
	}

	nodeID := func(ref ir.Ref) int {
		if ref.Arg {
			return ref.Index
		}
		return g.NumParams + ref.Index
	}

	for _, op := range fn.Ops {
		n := &Node{
			ID:         g.NumParams + op.Index,
			Kind:       op.Kind,
			Output:     op.Result,
			ParamIndex: -1,
		}
		for _, ref := range op.Operands {
			n.Inputs = append(n.Inputs, nodeID(ref))
		}
		if len(op.Attrs) > 0 {
			n.Attrs = make(map[string]ir.Attr, len(op.Attrs))
			for k, v := range op.Attrs {
				n.Attrs[k] = v
			}
		}
		g.Nodes = append(g.Nodes, n)
	}

	for _, ref := range fn.Returns {
		g.Outputs = append(g.Outputs, nodeID(ref))
	}
	return g, nil
}

// BuildGraphFromText parses module text and flattens it in one step.
func BuildGraphFromText(text string) (*Graph, error) {
	m, err := ir.ParseModule(text)
	if err != nil {
		return nil, errors.Wrap(err, "BuildGraphFromText")
	}
	return BuildGraph(m)
}
