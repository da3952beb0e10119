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

package platform

import (
	"fmt"

	"github.com/secretflow/hlobridge/pkg/ir"
)

// ArgKind classifies one entry-function argument for the target compiler.
type ArgKind int32

const (
	// ArgKindParameter is a runtime-supplied tensor argument.
	ArgKindParameter ArgKind = iota
	// ArgKindConstant is an argument folded into the program at compile time.
	ArgKindConstant
	// ArgKindResource is a stateful resource handle argument.
	ArgKindResource
)

func (k ArgKind) String() string {
	switch k {
	case ArgKindParameter:
		return "PARAMETER"
	case ArgKindConstant:
		return "CONSTANT"
	case ArgKindResource:
		return "RESOURCE"
	default:
		return fmt.Sprintf("ARG_KIND(%d)", int32(k))
	}
}

// ArgSpec describes one argument of the compiled program.
type ArgSpec struct {
	DType ir.DType
	Kind  ArgKind
}

// RetvalSpec describes one result of the compiled program.
type RetvalSpec struct {
	DType ir.DType
}

// CompileMetadata is the target-side description of the program interface:
// one ArgSpec per argument, one RetvalSpec per expected output. The caller
// populates it fully before compilation.
type CompileMetadata struct {
	Args    []ArgSpec
	Retvals []RetvalSpec
	// NumCores is the number of device cores the program is compiled for.
	// Zero means one.
	NumCores int
}

// CoreCount returns NumCores with the zero default applied.
func (m *CompileMetadata) CoreCount() int {
	if m.NumCores <= 0 {
		return 1
	}
	return m.NumCores
}
