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

package agg

import (
	"fmt"

	kdc "github.com/KR-Labs/krl-data-connectors-sub001"
	"github.com/KR-Labs/krl-data-connectors-sub001/geomap"
)

// AttachNames appends a "name" column with the display name of each row's
// geographic code, looked up in store. Unmapped codes get a nil cell.
func AttachNames(table *kdc.Table, geoColumn string, store geomap.Store) error {
	geoIdx := table.ColumnIndex(geoColumn)
	if geoIdx < 0 {
		return &kdc.ValidationError{Msg: fmt.Sprintf("no geographic column %q", geoColumn)}
	}
	cells := make([]kdc.Value, len(table.Rows))
	for i, row := range table.Rows {
		code, ok := row[geoIdx].(string)
		if !ok {
			continue
		}
		name, ok, err := store.Name(code)
		if err != nil {
			return err
		}
		if ok {
			cells[i] = name
		}
	}
	return table.AddColumn("name", cells)
}
