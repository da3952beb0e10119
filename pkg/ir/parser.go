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

package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseModule parses module text into its typed form. The grammar is line
// oriented; // comments and blank lines are ignored. Value numbering is
// checked (%N must be the N-th operation), operand references must be
// defined before use, and the returned values must match the declared
// result types.
func ParseModule(text string) (*Module, error) {
	p := &parser{}
	for _, raw := range strings.Split(text, "\n") {
		p.lines = append(p.lines, raw)
	}
	m, err := p.parse()
	if err != nil {
		return nil, fmt.Errorf("ParseModule: %w", err)
	}
	return m, nil
}

// MustParseModule is ParseModule for static module text in tests and demos.
func MustParseModule(text string) *Module {
	m, err := ParseModule(text)
	if err != nil {
		panic(err)
	}
	return m
}

type parser struct {
	lines []string
	pos   int
}

func (p *parser) next() (string, int, bool) {
	for p.pos < len(p.lines) {
		line := strings.TrimSpace(p.lines[p.pos])
		p.pos++
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		return line, p.pos, true
	}
	return "", p.pos, false
}

func (p *parser) parse() (*Module, error) {
	line, ln, ok := p.next()
	if !ok {
		return nil, fmt.Errorf("empty module text")
	}
	name, err := parseHeader(line, "module")
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", ln, err)
	}
	m := &Module{Name: name}

	line, ln, ok = p.next()
	if !ok {
		return nil, fmt.Errorf("line %d: expected func", ln)
	}
	fn, err := parseFuncHeader(line)
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", ln, err)
	}
	m.Func = fn

	for {
		line, ln, ok = p.next()
		if !ok {
			return nil, fmt.Errorf("line %d: unexpected end of module", ln)
		}
		if strings.HasPrefix(line, "return") {
			if err := p.parseReturn(m, line); err != nil {
				return nil, fmt.Errorf("line %d: %w", ln, err)
			}
			break
		}
		op, err := parseOperation(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", ln, err)
		}
		if op.Index != len(fn.Ops) {
			return nil, fmt.Errorf("line %d: operation numbered %%%d, expected %%%d", ln, op.Index, len(fn.Ops))
		}
		for _, operand := range op.Operands {
			if err := checkRef(fn, operand, len(fn.Ops)); err != nil {
				return nil, fmt.Errorf("line %d: %w", ln, err)
			}
		}
		fn.Ops = append(fn.Ops, op)
	}

	for i := 0; i < 2; i++ {
		line, ln, ok = p.next()
		if !ok || line != "}" {
			return nil, fmt.Errorf("line %d: expected closing brace", ln)
		}
	}
	if line, ln, ok = p.next(); ok {
		return nil, fmt.Errorf("line %d: trailing content %q", ln, line)
	}
	return m, nil
}

func (p *parser) parseReturn(m *Module, line string) error {
	fn := m.Func
	rest := strings.TrimSpace(strings.TrimPrefix(line, "return"))
	if rest != "" {
		for _, part := range strings.Split(rest, ",") {
			r, err := ParseRef(strings.TrimSpace(part))
			if err != nil {
				return err
			}
			if err := checkRef(fn, r, len(fn.Ops)); err != nil {
				return err
			}
			fn.Returns = append(fn.Returns, r)
		}
	}
	if len(fn.Returns) != len(fn.Results) {
		return fmt.Errorf("func %s declares %d results but returns %d values",
			fn.Name, len(fn.Results), len(fn.Returns))
	}
	for i, r := range fn.Returns {
		rt, err := m.TypeOf(r)
		if err != nil {
			return err
		}
		if !rt.Equal(fn.Results[i]) {
			return fmt.Errorf("returned value %s has type %s, declared result type is %s",
				r, rt, fn.Results[i])
		}
	}
	return nil
}

func checkRef(fn *Func, r Ref, opCount int) error {
	if r.Arg {
		if r.Index >= len(fn.Params) {
			return fmt.Errorf("undefined parameter %s", r)
		}
		return nil
	}
	if r.Index >= opCount {
		return fmt.Errorf("value %s used before definition", r)
	}
	return nil
}

// parseHeader parses `<keyword> @name {`.
func parseHeader(line, keyword string) (string, error) {
	rest, ok := strings.CutPrefix(line, keyword+" @")
	if !ok {
		return "", fmt.Errorf("expected %q header, got %q", keyword, line)
	}
	name, ok := strings.CutSuffix(rest, " {")
	if !ok || name == "" || strings.ContainsAny(name, " (){") {
		return "", fmt.Errorf("malformed %s header %q", keyword, line)
	}
	return name, nil
}

// parseFuncHeader parses `func @name(%arg0: T, ...) -> T, ... {`.
func parseFuncHeader(line string) (*Func, error) {
	rest, ok := strings.CutPrefix(line, "func @")
	if !ok {
		return nil, fmt.Errorf("expected func header, got %q", line)
	}
	rest, ok = strings.CutSuffix(rest, " {")
	if !ok {
		return nil, fmt.Errorf("malformed func header %q", line)
	}
	open := strings.IndexByte(rest, '(')
	end := strings.LastIndexByte(rest, ')')
	if open <= 0 || end < open {
		return nil, fmt.Errorf("malformed func signature %q", line)
	}
	fn := &Func{Name: rest[:open]}

	if body := strings.TrimSpace(rest[open+1 : end]); body != "" {
		for i, part := range splitTop(body, ',') {
			nameStr, typeStr, found := strings.Cut(part, ":")
			if !found {
				return nil, fmt.Errorf("malformed parameter %q", part)
			}
			r, err := ParseRef(strings.TrimSpace(nameStr))
			if err != nil {
				return nil, err
			}
			if !r.Arg || r.Index != i {
				return nil, fmt.Errorf("parameter %d must be named %%arg%d", i, i)
			}
			pt, err := ParseType(strings.TrimSpace(typeStr))
			if err != nil {
				return nil, err
			}
			fn.Params = append(fn.Params, Param{Index: i, Type: pt})
		}
	}

	if tail := strings.TrimSpace(rest[end+1:]); tail != "" {
		results, ok := strings.CutPrefix(tail, "-> ")
		if !ok {
			return nil, fmt.Errorf("malformed result list %q", tail)
		}
		for _, part := range splitTop(results, ',') {
			rt, err := ParseType(strings.TrimSpace(part))
			if err != nil {
				return nil, err
			}
			fn.Results = append(fn.Results, rt)
		}
	}
	return fn, nil
}

// parseOperation parses `%N = kind(operands) {attrs} : type`.
func parseOperation(line string) (*Operation, error) {
	lhs, rhs, found := strings.Cut(line, " = ")
	if !found {
		return nil, fmt.Errorf("malformed operation %q", line)
	}
	res, err := ParseRef(strings.TrimSpace(lhs))
	if err != nil {
		return nil, err
	}
	if res.Arg {
		return nil, fmt.Errorf("operation result cannot be a parameter reference %q", lhs)
	}
	op := &Operation{Index: res.Index}

	open := strings.IndexByte(rhs, '(')
	if open <= 0 {
		return nil, fmt.Errorf("malformed operation body %q", rhs)
	}
	op.Kind = strings.TrimSpace(rhs[:open])
	closeIdx := strings.IndexByte(rhs, ')')
	if closeIdx < open {
		return nil, fmt.Errorf("unclosed operand list in %q", rhs)
	}
	if operands := strings.TrimSpace(rhs[open+1 : closeIdx]); operands != "" {
		for _, part := range strings.Split(operands, ",") {
			r, err := ParseRef(strings.TrimSpace(part))
			if err != nil {
				return nil, err
			}
			op.Operands = append(op.Operands, r)
		}
	}

	tail := strings.TrimSpace(rhs[closeIdx+1:])
	if strings.HasPrefix(tail, "{") {
		end := findAttrEnd(tail)
		if end < 0 {
			return nil, fmt.Errorf("unclosed attribute block in %q", rhs)
		}
		attrs, err := parseAttrs(tail[1:end])
		if err != nil {
			return nil, err
		}
		op.Attrs = attrs
		tail = strings.TrimSpace(tail[end+1:])
	}

	typeStr, ok := strings.CutPrefix(tail, ": ")
	if !ok {
		return nil, fmt.Errorf("operation %q missing result type", line)
	}
	op.Result, err = ParseType(strings.TrimSpace(typeStr))
	if err != nil {
		return nil, err
	}
	return op, nil
}

// findAttrEnd locates the closing brace of an attribute block starting at
// byte 0, skipping quoted strings.
func findAttrEnd(s string) int {
	inString := false
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '"':
			if i > 0 && s[i-1] == '\\' {
				continue
			}
			inString = !inString
		case '}':
			if !inString {
				return i
			}
		}
	}
	return -1
}

func parseAttrs(body string) (map[string]Attr, error) {
	attrs := make(map[string]Attr)
	for _, part := range splitTop(body, ',') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, valueStr, found := strings.Cut(part, "=")
		if !found {
			return nil, fmt.Errorf("malformed attribute %q", part)
		}
		key = strings.TrimSpace(key)
		a, err := parseAttrValue(strings.TrimSpace(valueStr))
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", key, err)
		}
		attrs[key] = a
	}
	return attrs, nil
}

func parseAttrValue(s string) (Attr, error) {
	switch {
	case s == "":
		return Attr{}, fmt.Errorf("empty value")
	case s == "true":
		return NewBoolAttr(true), nil
	case s == "false":
		return NewBoolAttr(false), nil
	case s[0] == '"':
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return Attr{}, fmt.Errorf("bad string value %s", s)
		}
		return NewStringAttr(unquoted), nil
	case s[0] == '[':
		if !strings.HasSuffix(s, "]") {
			return Attr{}, fmt.Errorf("unclosed list value %s", s)
		}
		var fs []float64
		if body := strings.TrimSpace(s[1 : len(s)-1]); body != "" {
			for _, part := range strings.Split(body, ",") {
				f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
				if err != nil {
					return Attr{}, fmt.Errorf("bad list element %q", part)
				}
				fs = append(fs, f)
			}
		}
		return NewFloatsAttr(fs), nil
	default:
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return NewIntAttr(i), nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Attr{}, fmt.Errorf("bad value %q", s)
		}
		return NewFloatAttr(f), nil
	}
}

// splitTop splits s on sep at bracket depth zero, skipping quoted strings.
func splitTop(s string, sep byte) []string {
	var parts []string
	depth := 0
	inString := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			if i > 0 && s[i-1] == '\\' {
				continue
			}
			inString = !inString
		case '[', '{', '(':
			if !inString {
				depth++
			}
		case ']', '}', ')':
			if !inString {
				depth--
			}
		case sep:
			if !inString && depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}
