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

// Package ir models the typed module form the legalizer consumes.
//
// A module is a single entry function over tensor values in SSA form:
//
//	module @demo {
//	  func @main(%arg0: f32[1]) -> f32[1] {
//	    %0 = acos(%arg0) : f32[1]
//	    return %0
//	  }
//	}
//
// Operand references are %argN for function parameters and %N for the result
// of the N-th operation. Operations carry an optional attribute block, e.g.
// {value = [1.5], mode = "fast"}.
package ir

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Ref identifies an SSA value: a function parameter or an operation result.
type Ref struct {
	Arg   bool
	Index int
}

// ArgRef references function parameter i.
func ArgRef(i int) Ref {
	return Ref{Arg: true, Index: i}
}

// ResultRef references the result of operation i.
func ResultRef(i int) Ref {
	return Ref{Index: i}
}

func (r Ref) String() string {
	if r.Arg {
		return "%arg" + strconv.Itoa(r.Index)
	}
	return "%" + strconv.Itoa(r.Index)
}

// ParseRef parses "%argN" or "%N".
func ParseRef(s string) (Ref, error) {
	if !strings.HasPrefix(s, "%") {
		return Ref{}, fmt.Errorf("ParseRef: %q is not a value reference", s)
	}
	body := s[1:]
	arg := strings.HasPrefix(body, "arg")
	if arg {
		body = body[3:]
	}
	idx, err := strconv.Atoi(body)
	if err != nil || idx < 0 {
		return Ref{}, fmt.Errorf("ParseRef: bad value reference %q", s)
	}
	return Ref{Arg: arg, Index: idx}, nil
}

type attrKind int

const (
	attrString attrKind = iota
	attrFloat
	attrInt
	attrBool
	attrFloats
)

// Attr is one operation attribute value.
type Attr struct {
	kind attrKind
	s    string
	f    float64
	i    int64
	b    bool
	fs   []float64
}

// NewStringAttr creates a string attribute.
func NewStringAttr(s string) Attr { return Attr{kind: attrString, s: s} }

// NewFloatAttr creates a float attribute.
func NewFloatAttr(f float64) Attr { return Attr{kind: attrFloat, f: f} }

// NewIntAttr creates an integer attribute.
func NewIntAttr(i int64) Attr { return Attr{kind: attrInt, i: i} }

// NewBoolAttr creates a bool attribute.
func NewBoolAttr(b bool) Attr { return Attr{kind: attrBool, b: b} }

// NewFloatsAttr creates a float list attribute.
func NewFloatsAttr(fs []float64) Attr { return Attr{kind: attrFloats, fs: fs} }

// GetString returns the string value and whether the attribute holds one.
func (a Attr) GetString() (string, bool) { return a.s, a.kind == attrString }

// GetFloat returns the numeric value for float or int attributes.
func (a Attr) GetFloat() (float64, bool) {
	switch a.kind {
	case attrFloat:
		return a.f, true
	case attrInt:
		return float64(a.i), true
	default:
		return 0, false
	}
}

// GetInt returns the integer value and whether the attribute holds one.
func (a Attr) GetInt() (int64, bool) { return a.i, a.kind == attrInt }

// GetBool returns the bool value and whether the attribute holds one.
func (a Attr) GetBool() (bool, bool) { return a.b, a.kind == attrBool }

// GetFloats returns the float list; single floats and ints are promoted to a
// one-element list.
func (a Attr) GetFloats() ([]float64, bool) {
	switch a.kind {
	case attrFloats:
		return a.fs, true
	case attrFloat:
		return []float64{a.f}, true
	case attrInt:
		return []float64{float64(a.i)}, true
	default:
		return nil, false
	}
}

func (a Attr) String() string {
	switch a.kind {
	case attrString:
		return strconv.Quote(a.s)
	case attrFloat:
		return formatFloat(a.f)
	case attrInt:
		return strconv.FormatInt(a.i, 10)
	case attrBool:
		return strconv.FormatBool(a.b)
	case attrFloats:
		parts := make([]string, len(a.fs))
		for i, f := range a.fs {
			parts[i] = formatFloat(f)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return "<invalid>"
	}
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	// Keep a decimal marker so dumped attrs re-parse as floats.
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// Operation is one SSA operation. Index is its result number: the operation
// written "%3 = ..." has Index 3.
type Operation struct {
	Index    int
	Kind     string
	Operands []Ref
	Attrs    map[string]Attr
	Result   Type
}

// FloatsAttr returns the float list attribute under key, or nil.
func (op *Operation) FloatsAttr(key string) []float64 {
	a, ok := op.Attrs[key]
	if !ok {
		return nil
	}
	fs, ok := a.GetFloats()
	if !ok {
		return nil
	}
	return fs
}

func (op *Operation) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%%%d = %s(", op.Index, op.Kind)
	for i, operand := range op.Operands {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(operand.String())
	}
	sb.WriteString(")")
	if len(op.Attrs) > 0 {
		keys := make([]string, 0, len(op.Attrs))
		for k := range op.Attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString(" {")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s = %s", k, op.Attrs[k])
		}
		sb.WriteString("}")
	}
	fmt.Fprintf(&sb, " : %s", op.Result)
	return sb.String()
}

// Param is one function parameter.
type Param struct {
	Index int
	Type  Type
}

// Func is the module's entry function.
type Func struct {
	Name    string
	Params  []Param
	Results []Type
	Ops     []*Operation
	Returns []Ref
}

// Module is a parsed IR module with a single entry function.
type Module struct {
	Name string
	Func *Func
}

// OpKinds returns the distinct operation kinds in the module, in first-use
// order.
func (m *Module) OpKinds() []string {
	seen := make(map[string]bool)
	var kinds []string
	for _, op := range m.Func.Ops {
		if !seen[op.Kind] {
			seen[op.Kind] = true
			kinds = append(kinds, op.Kind)
		}
	}
	return kinds
}

// TypeOf resolves the type of a value reference.
func (m *Module) TypeOf(r Ref) (Type, error) {
	if r.Arg {
		if r.Index >= len(m.Func.Params) {
			return Type{}, fmt.Errorf("TypeOf: %s out of range", r)
		}
		return m.Func.Params[r.Index].Type, nil
	}
	if r.Index >= len(m.Func.Ops) {
		return Type{}, fmt.Errorf("TypeOf: %s out of range", r)
	}
	return m.Func.Ops[r.Index].Result, nil
}

// DumpText re-serializes the module in canonical form. Parsing the dump of a
// module yields an equal module.
func (m *Module) DumpText() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "module @%s {\n", m.Name)
	fn := m.Func
	sb.WriteString("  func @" + fn.Name + "(")
	for i, p := range fn.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%%arg%d: %s", p.Index, p.Type)
	}
	sb.WriteString(")")
	if len(fn.Results) > 0 {
		sb.WriteString(" -> ")
		for i, rt := range fn.Results {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(rt.String())
		}
	}
	sb.WriteString(" {\n")
	for _, op := range fn.Ops {
		sb.WriteString("    " + op.String() + "\n")
	}
	sb.WriteString("    return")
	for i, r := range fn.Returns {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(" " + r.String())
	}
	sb.WriteString("\n  }\n}\n")
	return sb.String()
}
