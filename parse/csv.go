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
	"encoding/csv"

	kdc "github.com/KR-Labs/krl-data-connectors-sub001"
)

// parseCSV reads a header-first CSV payload. An empty payload is a zero-row,
// zero-column table, not an error - some sources legitimately return nothing
// for an empty result set.
func parseCSV(payload []byte) (*kdc.Table, error) {
	r := csv.NewReader(bytes.NewReader(payload))
	records, err := r.ReadAll()
	if err != nil {
		return nil, &Error{Kind: CSV, Msg: err.Error()}
	}
	if len(records) == 0 {
		return &kdc.Table{}, nil
	}
	t := &kdc.Table{Columns: make([]string, len(records[0]))}
	for i, h := range records[0] {
		t.Columns[i] = kdc.NormalizeColumn(h)
	}
	for _, rec := range records[1:] {
		row := make([]kdc.Value, len(rec))
		for i, cell := range rec {
			row[i] = kdc.CoerceValue(cell)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
