// Copyright 2024 KR Labs, Inc.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

package kdc

import (
	"strconv"
	"strings"
)

// Value is a single table cell: nil, int64, float64, or string.
type Value interface{}

// Table is an ordered set of columns plus zero or more rows. Every row has
// exactly len(Columns) cells. A Table with zero rows is valid and distinct
// from an error condition.
type Table struct {
	Columns []string
	Rows    [][]Value
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Record returns row i as an ordered column->value map. The map is a copy;
// mutating it does not affect the table.
func (t *Table) Record(i int) map[string]Value {
	rec := make(map[string]Value, len(t.Columns))
	for j, c := range t.Columns {
		rec[c] = t.Rows[i][j]
	}
	return rec
}

// AddColumn appends a column with the given cells. The number of cells must
// match the number of rows.
func (t *Table) AddColumn(name string, cells []Value) error {
	if len(cells) != len(t.Rows) {
		return &ValidationError{Msg: "column " + name + " has " + strconv.Itoa(len(cells)) + " cells for " + strconv.Itoa(len(t.Rows)) + " rows"}
	}
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], cells[i])
	}
	return nil
}

// NormalizeColumn converts a raw column name to lower snake-case: trimmed,
// lower-cased, with each run of non-alphanumeric characters collapsed to a
// single underscore.
func NormalizeColumn(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	var b strings.Builder
	lastUnder := true // suppress leading underscores
	for _, r := range name {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if alnum {
			b.WriteRune(r)
			lastUnder = false
		} else if !lastUnder {
			b.WriteByte('_')
			lastUnder = true
		}
	}
	return strings.TrimRight(b.String(), "_")
}

// CoerceValue converts a raw text cell to a typed Value using a best-effort
// ladder: integer, then float, then string. Whitespace is trimmed first and
// an empty cell becomes nil. Numeric-looking strings that fail to parse stay
// strings rather than erroring.
func CoerceValue(s string) Value {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// FormatValue renders a Value for text output. nil renders as the empty
// string.
func FormatValue(v Value) string {
	switch vt := v.(type) {
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(vt, 10)
	case float64:
		return strconv.FormatFloat(vt, 'g', -1, 64)
	case string:
		return vt
	default:
		return ""
	}
}
