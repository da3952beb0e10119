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

package tableview

import (
	"bytes"
	"testing"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/olekukonko/tablewriter"
	"github.com/stretchr/testify/require"

	"github.com/secretflow/hlobridge/pkg/telemetry"
)

// Helper to build a float32 column
func float32Column(t *testing.T, values []float32) arrow.Array {
	t.Helper()
	b := array.NewFloat32Builder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(values, nil)
	return b.NewArray()
}

// Helper to build an int64 column
func int64Column(t *testing.T, values []int64) arrow.Array {
	t.Helper()
	b := array.NewInt64Builder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(values, nil)
	return b.NewArray()
}

func newTestTable(buf *bytes.Buffer) *tablewriter.Table {
	table := tablewriter.NewWriter(buf)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	return table
}

func TestConvertToTable(t *testing.T) {
	a := require.New(t)

	col0 := float32Column(t, []float32{0, 0.5, 1})
	defer col0.Release()
	col1 := int64Column(t, []int64{-7, 7, 42})
	defer col1.Release()

	var buf bytes.Buffer
	table := newTestTable(&buf)
	a.NoError(ConvertToTable([]arrow.Array{col0, col1}, table))
	a.Equal(3, table.NumLines())
	table.Render()

	out := buf.String()
	a.Contains(out, "result_0 (float32)")
	a.Contains(out, "result_1 (int64)")
	a.Contains(out, "0.5")
	a.Contains(out, "42")
}

func TestConvertToTablePadsShortColumns(t *testing.T) {
	a := require.New(t)

	long := float32Column(t, []float32{1, 2, 3, 4})
	defer long.Release()
	short := float32Column(t, []float32{9})
	defer short.Release()

	var buf bytes.Buffer
	table := newTestTable(&buf)
	a.NoError(ConvertToTable([]arrow.Array{long, short}, table))
	a.Equal(4, table.NumLines())
}

func TestConvertToTableRejectsUnknownColumnType(t *testing.T) {
	a := require.New(t)

	b := array.NewStringBuilder(memory.DefaultAllocator)
	defer b.Release()
	b.Append("not numeric")
	col := b.NewArray()
	defer col.Release()

	var buf bytes.Buffer
	err := ConvertToTable([]arrow.Array{col}, newTestTable(&buf))
	a.ErrorContains(err, "unsupported column type")
}

func TestConvertCountersToTable(t *testing.T) {
	a := require.New(t)

	reg := telemetry.NewRegistry()
	reg.Increment("demo/metric", "OK")
	reg.IncrementBy("demo/metric", "FAILED", 3)

	var buf bytes.Buffer
	table := newTestTable(&buf)
	ConvertCountersToTable(reg.Entries(), table)
	a.Equal(2, table.NumLines())
	table.Render()

	out := buf.String()
	a.Contains(out, "demo/metric")
	a.Contains(out, "FAILED")
	a.Contains(out, "3")
}
