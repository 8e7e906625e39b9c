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
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	kdc "github.com/KR-Labs/krl-data-connectors-sub001"
)

// parseJSON accepts the two envelope shapes public data APIs actually use:
// a bare array of rows (census API style: first row is the header), or an
// object with a "data" key holding the rows. An object with an "error" key
// is an error envelope.
func parseJSON(payload []byte) (*kdc.Table, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, &Error{Kind: JSON, Msg: err.Error()}
	}

	var rows []interface{}
	switch d := doc.(type) {
	case []interface{}:
		rows = d
	case map[string]interface{}:
		if msg, ok := d["error"]; ok {
			return nil, &Error{Kind: JSON, Msg: fmt.Sprintf("error envelope: %v", msg)}
		}
		data, ok := d["data"]
		if !ok {
			return nil, &Error{Kind: JSON, Msg: `object payload has neither "data" nor "error"`}
		}
		rows, ok = data.([]interface{})
		if !ok {
			return nil, &Error{Kind: JSON, Msg: fmt.Sprintf(`"data" is %T, not an array`, data)}
		}
	default:
		return nil, &Error{Kind: JSON, Msg: fmt.Sprintf("top-level %T is not a row container", doc)}
	}

	if len(rows) == 0 {
		return &kdc.Table{}, nil
	}
	switch rows[0].(type) {
	case []interface{}:
		return jsonArrayRows(rows)
	case map[string]interface{}:
		return jsonObjectRows(rows)
	}
	return nil, &Error{Kind: JSON, Msg: fmt.Sprintf("row 0 is %T, want array or object", rows[0])}
}

// jsonArrayRows handles header-first array-of-arrays rows.
func jsonArrayRows(rows []interface{}) (*kdc.Table, error) {
	header, ok := rows[0].([]interface{})
	if !ok {
		return nil, &Error{Kind: JSON, Msg: "mixed row shapes"}
	}
	t := &kdc.Table{Columns: make([]string, len(header))}
	for i, h := range header {
		hs, ok := h.(string)
		if !ok {
			return nil, &Error{Kind: JSON, Msg: fmt.Sprintf("header cell %d is %T, want string", i, h)}
		}
		t.Columns[i] = kdc.NormalizeColumn(hs)
	}
	for n, r := range rows[1:] {
		cells, ok := r.([]interface{})
		if !ok {
			return nil, &Error{Kind: JSON, Msg: fmt.Sprintf("row %d is %T, want array", n+1, r)}
		}
		if len(cells) != len(t.Columns) {
			return nil, &Error{Kind: JSON, Msg: fmt.Sprintf("row %d has %d cells for %d columns", n+1, len(cells), len(t.Columns))}
		}
		row := make([]kdc.Value, len(cells))
		for i, c := range cells {
			row[i] = jsonCell(c)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// jsonObjectRows handles array-of-objects rows. Column order is the sorted
// union of keys, which keeps output deterministic since decoded maps carry
// no order.
func jsonObjectRows(rows []interface{}) (*kdc.Table, error) {
	colSet := map[string]bool{}
	for n, r := range rows {
		obj, ok := r.(map[string]interface{})
		if !ok {
			return nil, &Error{Kind: JSON, Msg: fmt.Sprintf("row %d is %T, want object", n, r)}
		}
		for k := range obj {
			colSet[kdc.NormalizeColumn(k)] = true
		}
	}
	cols := make([]string, 0, len(colSet))
	for c := range colSet {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	t := &kdc.Table{Columns: cols}
	for _, r := range rows {
		obj := r.(map[string]interface{})
		norm := make(map[string]kdc.Value, len(obj))
		for k, v := range obj {
			norm[kdc.NormalizeColumn(k)] = jsonCell(v)
		}
		row := make([]kdc.Value, len(cols))
		for i, c := range cols {
			row[i] = norm[c]
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func jsonCell(v interface{}) kdc.Value {
	switch vt := v.(type) {
	case nil:
		return nil
	case json.Number:
		if i, err := strconv.ParseInt(string(vt), 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(string(vt), 64); err == nil {
			return f
		}
		return string(vt)
	case string:
		return kdc.CoerceValue(vt)
	case bool:
		return strconv.FormatBool(vt)
	default:
		// Nested containers flatten to their JSON text.
		raw, err := json.Marshal(vt)
		if err != nil {
			return fmt.Sprintf("%v", vt)
		}
		return string(raw)
	}
}
