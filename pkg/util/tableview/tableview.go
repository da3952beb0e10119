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

// Package tableview renders evaluation columns and counter reports as ASCII
// tables.
package tableview

import (
	"fmt"
	"strconv"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/olekukonko/tablewriter"

	"github.com/secretflow/hlobridge/pkg/telemetry"
)

// ConvertToTable fills table with one row per element index and one cell per
// column. Columns of different lengths are padded with empty cells.
func ConvertToTable(columns []arrow.Array, table *tablewriter.Table) error {
	header := make([]string, 0, len(columns))
	rows := 0
	for i, col := range columns {
		header = append(header, fmt.Sprintf("result_%d (%s)", i, col.DataType().Name()))
		if col.Len() > rows {
			rows = col.Len()
		}
	}
	table.SetHeader(header)

	for row := 0; row < rows; row++ {
		cells := make([]string, 0, len(columns))
		for _, col := range columns {
			if row >= col.Len() {
				cells = append(cells, "")
				continue
			}
			cell, err := formatCell(col, row)
			if err != nil {
				return err
			}
			cells = append(cells, cell)
		}
		table.Append(cells)
	}
	return nil
}

func formatCell(col arrow.Array, row int) (string, error) {
	switch c := col.(type) {
	case *array.Float32:
		return strconv.FormatFloat(float64(c.Value(row)), 'g', -1, 32), nil
	case *array.Float64:
		return strconv.FormatFloat(c.Value(row), 'g', -1, 64), nil
	case *array.Int32:
		return strconv.FormatInt(int64(c.Value(row)), 10), nil
	case *array.Int64:
		return strconv.FormatInt(c.Value(row), 10), nil
	case *array.Boolean:
		return strconv.FormatBool(c.Value(row)), nil
	default:
		return "", fmt.Errorf("unsupported column type %s", col.DataType().Name())
	}
}

// ConvertCountersToTable fills table with one row per counter cell, in the
// order Registry.Entries returns them.
func ConvertCountersToTable(entries []telemetry.Entry, table *tablewriter.Table) {
	table.SetHeader([]string{"metric", "label", "value"})
	for _, e := range entries {
		table.Append([]string{e.Name, e.Label, strconv.FormatInt(e.Value, 10)})
	}
}
