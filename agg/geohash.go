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

	"github.com/mmcloughlin/geohash"

	kdc "github.com/KR-Labs/krl-data-connectors-sub001"
)

// AttachGeohash appends a "geohash" column computed from the latitude and
// longitude columns, for point datasets (facility locations, incident
// coordinates) that carry no FIPS code. Rows with a missing or non-numeric
// coordinate get a nil cell.
func AttachGeohash(table *kdc.Table, latCol, lonCol string, precision uint) error {
	latIdx := table.ColumnIndex(latCol)
	if latIdx < 0 {
		return &kdc.ValidationError{Msg: fmt.Sprintf("no latitude column %q", latCol)}
	}
	lonIdx := table.ColumnIndex(lonCol)
	if lonIdx < 0 {
		return &kdc.ValidationError{Msg: fmt.Sprintf("no longitude column %q", lonCol)}
	}
	cells := make([]kdc.Value, len(table.Rows))
	for i, row := range table.Rows {
		lat, latOK := asFloat(row[latIdx])
		lon, lonOK := asFloat(row[lonIdx])
		if !latOK || !lonOK {
			continue
		}
		cells[i] = geohash.EncodeWithPrecision(lat, lon, precision)
	}
	return table.AddColumn("geohash", cells)
}

func asFloat(v kdc.Value) (float64, bool) {
	switch vt := v.(type) {
	case int64:
		return float64(vt), true
	case float64:
		return vt, true
	}
	return 0, false
}
