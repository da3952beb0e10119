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

// DType is the element type of a tensor value.
type DType int32

const (
	DTypeInvalid DType = iota
	DTypeI1
	DTypeI32
	DTypeI64
	DTypeF32
	DTypeF64
)

func (d DType) String() string {
	switch d {
	case DTypeI1:
		return "i1"
	case DTypeI32:
		return "i32"
	case DTypeI64:
		return "i64"
	case DTypeF32:
		return "f32"
	case DTypeF64:
		return "f64"
	default:
		return "invalid"
	}
}

// ParseDType parses the textual form used in module text ("f32", "i64", ...).
func ParseDType(s string) (DType, error) {
	switch s {
	case "i1":
		return DTypeI1, nil
	case "i32":
		return DTypeI32, nil
	case "i64":
		return DTypeI64, nil
	case "f32":
		return DTypeF32, nil
	case "f64":
		return DTypeF64, nil
	default:
		return DTypeInvalid, fmt.Errorf("ParseDType: unknown dtype %q", s)
	}
}

// IsFloat returns true for floating point dtypes.
func (d DType) IsFloat() bool {
	return d == DTypeF32 || d == DTypeF64
}

// IsInteger returns true for integer dtypes, i1 included.
func (d DType) IsInteger() bool {
	return d == DTypeI1 || d == DTypeI32 || d == DTypeI64
}

// WiderType returns the dtype that can represent values of both a and b,
// and false when the two families do not mix.
func WiderType(a, b DType) (DType, bool) {
	if a == b {
		return a, true
	}
	if a.IsFloat() != b.IsFloat() {
		return DTypeInvalid, false
	}
	if a > b {
		return a, true
	}
	return b, true
}

// Shape is an ordered dimension list. An empty Dims slice is a scalar.
type Shape struct {
	Dims []int64
}

// NewShape creates a shape from its dimensions.
func NewShape(dims ...int64) Shape {
	return Shape{Dims: dims}
}

// ScalarShape is the rank-zero shape.
func ScalarShape() Shape {
	return Shape{}
}

// Rank returns the number of dimensions.
func (s Shape) Rank() int {
	return len(s.Dims)
}

// NumElements returns the product of all dimensions; 1 for scalars.
func (s Shape) NumElements() int64 {
	n := int64(1)
	for _, d := range s.Dims {
		n *= d
	}
	return n
}

// Equal compares two shapes dimension-wise.
func (s Shape) Equal(o Shape) bool {
	if len(s.Dims) != len(o.Dims) {
		return false
	}
	for i, d := range s.Dims {
		if o.Dims[i] != d {
			return false
		}
	}
	return true
}

func (s Shape) String() string {
	if len(s.Dims) == 0 {
		return "[]"
	}
	parts := make([]string, len(s.Dims))
	for i, d := range s.Dims {
		parts[i] = strconv.FormatInt(d, 10)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Type pairs an element dtype with a shape. Its textual form is
// "f32[2,3]", or bare "f32" for scalars.
type Type struct {
	DType DType
	Shape Shape
}

func (t Type) String() string {
	if t.Shape.Rank() == 0 {
		return t.DType.String()
	}
	return t.DType.String() + t.Shape.String()
}

// Equal compares dtype and shape.
func (t Type) Equal(o Type) bool {
	return t.DType == o.DType && t.Shape.Equal(o.Shape)
}

// ParseType parses "f32", "f32[1]" or "i64[2,3]".
func ParseType(s string) (Type, error) {
	open := strings.IndexByte(s, '[')
	if open < 0 {
		dt, err := ParseDType(s)
		if err != nil {
			return Type{}, err
		}
		return Type{DType: dt}, nil
	}
	if !strings.HasSuffix(s, "]") {
		return Type{}, fmt.Errorf("ParseType: malformed type %q", s)
	}
	dt, err := ParseDType(s[:open])
	if err != nil {
		return Type{}, err
	}
	body := s[open+1 : len(s)-1]
	if body == "" {
		return Type{DType: dt}, nil
	}
	var dims []int64
	for _, part := range strings.Split(body, ",") {
		d, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || d < 0 {
			return Type{}, fmt.Errorf("ParseType: bad dimension %q in %q", part, s)
		}
		dims = append(dims, d)
	}
	return Type{DType: dt, Shape: NewShape(dims...)}, nil
}
