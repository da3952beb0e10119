// Copyright 2023 Ant Group Co., Ltd.
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

package executor

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/sirupsen/logrus"

	"github.com/secretflow/hlobridge/pkg/hlo"
	"github.com/secretflow/hlobridge/pkg/ir"
	"github.com/secretflow/hlobridge/pkg/util/logutil"
)

// Executor evaluates one compiled program on the host. It is the reference
// backend used to validate compiled artifacts and to serve demo traffic.
type Executor struct {
	Program   *hlo.Program
	SessionID string
	alloc     memory.Allocator
}

// ResultInfo carries one batch entry through the collection channel.
type ResultInfo struct {
	Index   int
	Columns []arrow.Array
	Err     error
}

func NewExecutor(program *hlo.Program, sessionID string, alloc memory.Allocator) (*Executor, error) {
	if program == nil {
		return nil, fmt.Errorf("NewExecutor: program is nil")
	}
	if alloc == nil {
		alloc = memory.DefaultAllocator
	}
	return &Executor{
		Program:   program,
		SessionID: sessionID,
		alloc:     alloc,
	}, nil
}

// Run evaluates the program over one input set, one row-major vector per
// entry argument, and returns one arrow array per program result.
func (exec *Executor) Run(ctx context.Context, inputs [][]float64) ([]arrow.Array, error) {
	timeStart := time.Now()
	logEntry := &logutil.MonitorLogEntry{
		SessionID:  exec.SessionID,
		ActionName: fmt.Sprintf("%v@%v", "Executor", "Run"),
	}
	result, err := exec.RunCore(ctx, inputs)
	logEntry.CostTime = time.Since(timeStart)
	if err != nil {
		logEntry.ErrorMsg = err.Error()
		logrus.Error(logEntry)
	} else {
		logrus.Info(logEntry)
	}

	return result, err
}

func (exec *Executor) RunCore(ctx context.Context, inputs [][]float64) ([]arrow.Array, error) {
	p := exec.Program
	if err := exec.checkInputs(inputs); err != nil {
		return nil, err
	}

	values := make([]value, len(p.Instructions))
	for _, in := range p.Instructions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := eval(in, values, inputs)
		if err != nil {
			return nil, fmt.Errorf("evaluate %%%d %s: %w", in.ID, in.Opcode, err)
		}
		values[in.ID] = v
	}

	root := p.Instructions[p.Root]
	types := p.ResultTypes()
	var vecs [][]float64
	if root.Opcode == hlo.OpTuple {
		vecs = values[p.Root].tuple
	} else {
		vecs = [][]float64{values[p.Root].vec}
	}

	columns := make([]arrow.Array, 0, len(vecs))
	for i, vec := range vecs {
		col, err := exec.buildArray(types[i], vec)
		if err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}
	return columns, nil
}

// RunBatch evaluates the program over several input sets concurrently and
// returns the per-set arrays in input order. The first failing entry aborts
// the batch.
func (exec *Executor) RunBatch(ctx context.Context, batch [][][]float64) ([][]arrow.Array, error) {
	c := make(chan ResultInfo, len(batch))
	for i, inputs := range batch {
		go func(index int, inputs [][]float64) {
			timeStart := time.Now()
			logEntry := &logutil.MonitorLogEntry{
				SessionID:  exec.SessionID,
				ActionName: fmt.Sprintf("%v@%v", "Executor", "RunBatch"),
			}
			columns, err := exec.RunCore(ctx, inputs)
			logEntry.CostTime = time.Since(timeStart)
			if err != nil {
				logEntry.ErrorMsg = err.Error()
				logrus.Errorf("%v|Entry:%v", logEntry, index)
			} else {
				logrus.Infof("%v|Entry:%v", logEntry, index)
			}
			c <- ResultInfo{
				Index:   index,
				Columns: columns,
				Err:     err,
			}
		}(i, inputs)
	}

	out := make([][]arrow.Array, len(batch))
	for i := 0; i < len(batch); i++ {
		info := <-c
		if info.Err != nil {
			return nil, fmt.Errorf("batch entry %d: %w", info.Index, info.Err)
		}
		out[info.Index] = info.Columns
	}
	return out, nil
}

// checkInputs validates one input set against the program's entry signature.
func (exec *Executor) checkInputs(inputs [][]float64) error {
	p := exec.Program
	// The tuple calling convention packs every argument into parameter 0.
	if p.NumParameters() == 1 {
		if tt := p.Instructions[p.Params[0]].TupleTypes; len(tt) > 0 {
			if len(inputs) != len(tt) {
				return fmt.Errorf("program %s wants %d inputs, got %d", p.Name, len(tt), len(inputs))
			}
			for i, t := range tt {
				if want := t.Shape.NumElements(); int64(len(inputs[i])) != want {
					return fmt.Errorf("input %d wants %d elements, got %d", i, want, len(inputs[i]))
				}
			}
			return nil
		}
	}
	if len(inputs) != p.NumParameters() {
		return fmt.Errorf("program %s wants %d inputs, got %d", p.Name, p.NumParameters(), len(inputs))
	}
	for i := range inputs {
		if want := p.ParameterType(i).Shape.NumElements(); int64(len(inputs[i])) != want {
			return fmt.Errorf("input %d wants %d elements, got %d", i, want, len(inputs[i]))
		}
	}
	return nil
}

// value is one evaluated instruction, a vector or a tuple of vectors.
type value struct {
	vec   []float64
	tuple [][]float64
}

var unaryFuncs = map[hlo.Opcode]func(float64) float64{
	hlo.OpAbs:         math.Abs,
	hlo.OpAcos:        math.Acos,
	hlo.OpFloor:       math.Floor,
	hlo.OpNegate:      func(v float64) float64 { return -v },
	hlo.OpExponential: math.Exp,
	hlo.OpTanh:        math.Tanh,
	hlo.OpErf:         math.Erf,
	hlo.OpReciprocal:  func(v float64) float64 { return 1 / v },
	hlo.OpSign: func(v float64) float64 {
		switch {
		case v > 0:
			return 1
		case v < 0:
			return -1
		}
		// Zero and NaN pass through.
		return v
	},
}

var binaryFuncs = map[hlo.Opcode]func(x, y float64) float64{
	hlo.OpAdd:      func(x, y float64) float64 { return x + y },
	hlo.OpMultiply: func(x, y float64) float64 { return x * y },
	hlo.OpMaximum:  math.Max,
	hlo.OpMinimum:  math.Min,
}

func eval(in *hlo.Instruction, values []value, inputs [][]float64) (value, error) {
	switch in.Opcode {
	case hlo.OpParameter:
		if len(in.TupleTypes) > 0 {
			return value{tuple: inputs}, nil
		}
		return value{vec: inputs[in.Index]}, nil
	case hlo.OpConstant:
		return value{vec: in.Literal}, nil
	case hlo.OpTuple:
		elems := make([][]float64, 0, len(in.Operands))
		for _, op := range in.Operands {
			elems = append(elems, values[op].vec)
		}
		return value{tuple: elems}, nil
	case hlo.OpGetTupleElement:
		src := values[in.Operands[0]].tuple
		if in.Index < 0 || in.Index >= len(src) {
			return value{}, fmt.Errorf("tuple index %d out of range [0, %d)", in.Index, len(src))
		}
		return value{vec: src[in.Index]}, nil
	case hlo.OpClamp:
		lo, x, hi := values[in.Operands[0]].vec, values[in.Operands[1]].vec, values[in.Operands[2]].vec
		if len(lo) != len(x) || len(hi) != len(x) {
			return value{}, fmt.Errorf("clamp operand lengths differ: %d, %d, %d", len(lo), len(x), len(hi))
		}
		out := make([]float64, len(x))
		for i := range x {
			out[i] = math.Min(math.Max(x[i], lo[i]), hi[i])
		}
		return value{vec: out}, nil
	}
	if f, ok := unaryFuncs[in.Opcode]; ok {
		src := values[in.Operands[0]].vec
		out := make([]float64, len(src))
		for i, v := range src {
			out[i] = f(v)
		}
		return value{vec: out}, nil
	}
	if f, ok := binaryFuncs[in.Opcode]; ok {
		a, b := values[in.Operands[0]].vec, values[in.Operands[1]].vec
		if len(a) != len(b) {
			return value{}, fmt.Errorf("operand lengths differ: %d vs %d", len(a), len(b))
		}
		out := make([]float64, len(a))
		for i := range a {
			out[i] = f(a[i], b[i])
		}
		return value{vec: out}, nil
	}
	return value{}, fmt.Errorf("no host evaluation for opcode %s", in.Opcode)
}

// buildArray copies one evaluated vector into an arrow array of the declared
// result dtype.
func (exec *Executor) buildArray(t ir.Type, vec []float64) (arrow.Array, error) {
	switch t.DType {
	case ir.DTypeF32:
		b := array.NewFloat32Builder(exec.alloc)
		defer b.Release()
		for _, v := range vec {
			b.Append(float32(v))
		}
		return b.NewArray(), nil
	case ir.DTypeF64:
		b := array.NewFloat64Builder(exec.alloc)
		defer b.Release()
		b.AppendValues(vec, nil)
		return b.NewArray(), nil
	case ir.DTypeI32:
		b := array.NewInt32Builder(exec.alloc)
		defer b.Release()
		for _, v := range vec {
			b.Append(int32(v))
		}
		return b.NewArray(), nil
	case ir.DTypeI64:
		b := array.NewInt64Builder(exec.alloc)
		defer b.Release()
		for _, v := range vec {
			b.Append(int64(v))
		}
		return b.NewArray(), nil
	case ir.DTypeI1:
		b := array.NewBooleanBuilder(exec.alloc)
		defer b.Release()
		for _, v := range vec {
			b.Append(v != 0)
		}
		return b.NewArray(), nil
	}
	return nil, fmt.Errorf("no arrow mapping for dtype %s", t.DType)
}

// CheckResultTypes verifies the produced arrays agree with the declared
// result types.
func CheckResultTypes(columns []arrow.Array, types []ir.Type) error {
	if len(columns) != len(types) {
		return fmt.Errorf("the size of output columns expected to be %d, but got %d", len(types), len(columns))
	}

	for i, col := range columns {
		want, err := arrowType(types[i].DType)
		if err != nil {
			return err
		}
		if !arrow.TypeEqual(col.DataType(), want) {
			return fmt.Errorf("output column %d type not match, expect=%s, got=%s", i, want, col.DataType())
		}
		if n := types[i].Shape.NumElements(); int64(col.Len()) != n {
			return fmt.Errorf("output column %d length not match, expect=%d, got=%d", i, n, col.Len())
		}
	}
	return nil
}

func arrowType(dt ir.DType) (arrow.DataType, error) {
	switch dt {
	case ir.DTypeF32:
		return arrow.PrimitiveTypes.Float32, nil
	case ir.DTypeF64:
		return arrow.PrimitiveTypes.Float64, nil
	case ir.DTypeI32:
		return arrow.PrimitiveTypes.Int32, nil
	case ir.DTypeI64:
		return arrow.PrimitiveTypes.Int64, nil
	case ir.DTypeI1:
		return arrow.FixedWidthTypes.Boolean, nil
	}
	return nil, fmt.Errorf("no arrow mapping for dtype %s", dt)
}
