// Package frame provides the in-memory tabular value store produced by
// ingestion and consumed by profiling.
//
// A Table is column-oriented: every cell keeps its canonical string form
// plus a missing flag. Columns carry a storage dtype inferred from the
// observed values ("what the data physically looks like"), which the
// profiler later maps onto a semantic type.
//
// Design constraints:
//   - Construction is best-effort and never fails: ragged input must be
//     rejected or padded by the caller before NewTable.
//   - A Table is immutable by convention after ingestion completes;
//     nothing downstream mutates it.
package frame

import (
	"strconv"
	"strings"
)

// Dtype is the diagnostic storage representation of a column.
type Dtype string

const (
	DtypeText      Dtype = "text"
	DtypeInt       Dtype = "int64"
	DtypeFloat     Dtype = "float64"
	DtypeBool      Dtype = "bool"
	DtypeTimestamp Dtype = "timestamp"
)

// Column holds one ingested column. Values and Missing are index-aligned;
// Values[i] is meaningless when Missing[i] is true.
type Column struct {
	Name    string
	Dtype   Dtype
	Values  []string
	Missing []bool
}

// Table is an ordered collection of equally long columns.
type Table struct {
	Cols []Column
}

// NewTable builds a table from header names and row-major string data.
//
// The missing matrix must be index-aligned with rows. Column dtypes are
// inferred from the non-missing values (int64, then bool, then float64,
// falling back to text). Timestamp dtypes are never inferred here; they
// are assigned by the loader's datetime reparse step.
func NewTable(names []string, rows [][]string, missing [][]bool) *Table {
	t := &Table{Cols: make([]Column, len(names))}
	for i, name := range names {
		col := Column{
			Name:    name,
			Values:  make([]string, len(rows)),
			Missing: make([]bool, len(rows)),
		}
		for r := range rows {
			col.Values[r] = rows[r][i]
			col.Missing[r] = missing[r][i]
		}
		col.Dtype = detectDtype(col)
		t.Cols[i] = col
	}
	return t
}

// NumRows returns the row count (0 for an empty table).
func (t *Table) NumRows() int {
	if t == nil || len(t.Cols) == 0 {
		return 0
	}
	return len(t.Cols[0].Values)
}

// NumCols returns the column count.
func (t *Table) NumCols() int {
	if t == nil {
		return 0
	}
	return len(t.Cols)
}

// ColumnNames returns the column names in table order.
func (t *Table) ColumnNames() []string {
	out := make([]string, 0, t.NumCols())
	for _, c := range t.Cols {
		out = append(out, c.Name)
	}
	return out
}

// Column returns a pointer to the named column, or nil if absent.
func (t *Table) Column(name string) *Column {
	for i := range t.Cols {
		if t.Cols[i].Name == name {
			return &t.Cols[i]
		}
	}
	return nil
}

// NonMissing returns the non-missing values of a column in row order.
func (c *Column) NonMissing() []string {
	out := make([]string, 0, len(c.Values))
	for i, v := range c.Values {
		if c.Missing[i] {
			continue
		}
		out = append(out, v)
	}
	return out
}

// detectDtype classifies a column's physical representation from its
// non-missing values. An entirely missing column stays text.
func detectDtype(c Column) Dtype {
	var seen bool
	allInt := true
	allFloat := true
	allBool := true

	for i, v := range c.Values {
		if c.Missing[i] {
			continue
		}
		seen = true

		if allInt {
			if _, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err != nil {
				allInt = false
			}
		}
		if allFloat {
			if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
				allFloat = false
			}
		}
		if allBool {
			if !isBoolToken(v) {
				allBool = false
			}
		}
		if !allInt && !allFloat && !allBool {
			break
		}
	}

	if !seen {
		return DtypeText
	}
	switch {
	case allInt:
		return DtypeInt
	case allBool:
		return DtypeBool
	case allFloat:
		return DtypeFloat
	default:
		return DtypeText
	}
}

// isBoolToken matches only literal true/false spellings. Numeric 0/1 and
// yes/no deliberately stay int64/text so that binary indicator columns
// keep their numeric representation.
func isBoolToken(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "false":
		return true
	default:
		return false
	}
}
