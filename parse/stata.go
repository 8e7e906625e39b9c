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

package parse

import (
	"bytes"
	"fmt"

	"github.com/kshedden/datareader"

	kdc "github.com/KR-Labs/krl-data-connectors-sub001"
)

// parseStata reads a binary Stata .dta payload. Columns come from the file's
// variable names; cells flagged missing by the file become nil.
func parseStata(payload []byte) (*kdc.Table, error) {
	rdr, err := datareader.NewStataReader(bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Kind: Stata, Msg: err.Error()}
	}
	series, err := rdr.Read(-1)
	if err != nil {
		return nil, &Error{Kind: Stata, Msg: err.Error()}
	}
	names := rdr.ColumnNames()
	if len(names) != len(series) {
		return nil, &Error{Kind: Stata, Msg: fmt.Sprintf("%d column names for %d series", len(names), len(series))}
	}

	t := &kdc.Table{Columns: make([]string, len(names))}
	for i, n := range names {
		t.Columns[i] = kdc.NormalizeColumn(n)
	}
	if len(series) == 0 {
		return t, nil
	}

	cols := make([][]kdc.Value, len(series))
	nrows := 0
	for i, ser := range series {
		vals, err := stataColumn(ser)
		if err != nil {
			return nil, &Error{Kind: Stata, Msg: fmt.Sprintf("column %v: %v", names[i], err)}
		}
		cols[i] = vals
		if len(vals) > nrows {
			nrows = len(vals)
		}
	}
	for r := 0; r < nrows; r++ {
		row := make([]kdc.Value, len(cols))
		for i := range cols {
			if r < len(cols[i]) {
				row[i] = cols[i][r]
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func stataColumn(ser *datareader.Series) ([]kdc.Value, error) {
	if vals, missing, err := ser.AsFloat64Slice(); err == nil {
		out := make([]kdc.Value, len(vals))
		for i, v := range vals {
			if missing != nil && missing[i] {
				continue
			}
			out[i] = v
		}
		return out, nil
	}
	vals, missing, err := ser.AsStringSlice()
	if err != nil {
		return nil, err
	}
	out := make([]kdc.Value, len(vals))
	for i, v := range vals {
		if missing != nil && missing[i] {
			continue
		}
		out[i] = kdc.CoerceValue(v)
	}
	return out, nil
}
