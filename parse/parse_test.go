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
	"encoding/binary"
	"math"
	"strings"
	"testing"
)

func TestKindFromString(t *testing.T) {
	for s, want := range map[string]Kind{"json": JSON, " XML ": XML, "csv": CSV, "dta": Stata} {
		k, err := KindFromString(s)
		if err != nil {
			t.Fatalf("KindFromString(%q): %v", s, err)
		}
		if k != want {
			t.Fatalf("KindFromString(%q) = %v", s, k)
		}
	}
	if _, err := KindFromString("yaml"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestJSONErrorEnvelope(t *testing.T) {
	_, err := Parse([]byte(`{"error": "Invalid request"}`), JSON)
	if err == nil {
		t.Fatalf("error envelope should not parse")
	}
	pe, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if pe.Kind != JSON {
		t.Fatalf("error kind %v", pe.Kind)
	}
	if !strings.Contains(pe.Msg, "Invalid request") {
		t.Fatalf("error should carry the source message: %v", pe)
	}
}

func TestJSONEmptyData(t *testing.T) {
	tbl, err := Parse([]byte(`{"data": []}`), JSON)
	if err != nil {
		t.Fatalf("empty data envelope: %v", err)
	}
	if len(tbl.Rows) != 0 {
		t.Fatalf("expected zero rows, got %d", len(tbl.Rows))
	}
}

func TestJSONArrayRows(t *testing.T) {
	payload := `[["NAME","B01001_001E","state"],["Alameda County",1682353,"06"],["Los Angeles County",10014009,"06"]]`
	tbl, err := Parse([]byte(payload), JSON)
	if err != nil {
		t.Fatalf("parsing: %v", err)
	}
	wantCols := []string{"name", "b01001_001e", "state"}
	for i, c := range wantCols {
		if tbl.Columns[i] != c {
			t.Fatalf("columns %v", tbl.Columns)
		}
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("rows %d", len(tbl.Rows))
	}
	if tbl.Rows[0][0] != "Alameda County" {
		t.Fatalf("row 0: %#v", tbl.Rows[0])
	}
	if tbl.Rows[1][1] != int64(10014009) {
		t.Fatalf("numeric cell: %#v", tbl.Rows[1][1])
	}
	if tbl.Rows[0][2] != int64(6) {
		// JSON string "06" goes through the same coercion ladder as any
		// other text cell.
		t.Fatalf("state cell: %#v", tbl.Rows[0][2])
	}
}

func TestJSONObjectRows(t *testing.T) {
	payload := `{"data": [{"State": "06", "Pop": 100}, {"State": "48", "Median Income": 61874.5}]}`
	tbl, err := Parse([]byte(payload), JSON)
	if err != nil {
		t.Fatalf("parsing: %v", err)
	}
	// Sorted union of normalized keys.
	want := []string{"median_income", "pop", "state"}
	if len(tbl.Columns) != len(want) {
		t.Fatalf("columns %v", tbl.Columns)
	}
	for i := range want {
		if tbl.Columns[i] != want[i] {
			t.Fatalf("columns %v", tbl.Columns)
		}
	}
	if tbl.Rows[0][0] != nil {
		t.Fatalf("absent key should be nil, got %#v", tbl.Rows[0][0])
	}
	if tbl.Rows[0][1] != int64(100) {
		t.Fatalf("pop cell %#v", tbl.Rows[0][1])
	}
	if tbl.Rows[1][0] != float64(61874.5) {
		t.Fatalf("income cell %#v", tbl.Rows[1][0])
	}
}

func TestJSONMalformed(t *testing.T) {
	if _, err := Parse([]byte(`{"data": 5}`), JSON); err == nil {
		t.Fatalf("non-array data should error")
	}
	if _, err := Parse([]byte(`{not json`), JSON); err == nil {
		t.Fatalf("junk should error")
	}
	if _, err := Parse([]byte(`"scalar"`), JSON); err == nil {
		t.Fatalf("scalar payload should error")
	}
	if _, err := Parse([]byte(`{"rows": []}`), JSON); err == nil {
		t.Fatalf("object without data key should error")
	}
}

func TestXMLRows(t *testing.T) {
	payload := `<response>
		<row fips="06001"><name>Alameda</name><pop>1682353</pop></row>
		<row fips="06037"><name>Los Angeles</name><pop>10014009</pop></row>
	</response>`
	tbl, err := Parse([]byte(payload), XML)
	if err != nil {
		t.Fatalf("parsing: %v", err)
	}
	want := []string{"fips", "name", "pop"}
	for i := range want {
		if tbl.Columns[i] != want[i] {
			t.Fatalf("columns %v", tbl.Columns)
		}
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("rows %d", len(tbl.Rows))
	}
	if tbl.Rows[1][1] != "Los Angeles" {
		t.Fatalf("row 1: %#v", tbl.Rows[1])
	}
	if tbl.Rows[0][2] != int64(1682353) {
		t.Fatalf("pop cell: %#v", tbl.Rows[0][2])
	}
}

func TestXMLErrorEnvelope(t *testing.T) {
	for _, payload := range []string{
		`<error>Invalid request</error>`,
		`<response><error>bad query</error></response>`,
	} {
		_, err := Parse([]byte(payload), XML)
		pe, ok := err.(*Error)
		if !ok {
			t.Fatalf("expected *Error for %q, got %v", payload, err)
		}
		if pe.Kind != XML {
			t.Fatalf("error kind %v", pe.Kind)
		}
	}
}

func TestXMLEmpty(t *testing.T) {
	tbl, err := Parse([]byte(`<response></response>`), XML)
	if err != nil {
		t.Fatalf("empty response: %v", err)
	}
	if len(tbl.Rows) != 0 {
		t.Fatalf("rows %d", len(tbl.Rows))
	}
}

func TestXMLRaggedRows(t *testing.T) {
	payload := `<r><row><a>1</a></row><row><a>2</a><b>3</b></row></r>`
	tbl, err := Parse([]byte(payload), XML)
	if err != nil {
		t.Fatalf("parsing: %v", err)
	}
	if len(tbl.Columns) != 2 {
		t.Fatalf("columns %v", tbl.Columns)
	}
	if tbl.Rows[0][1] != nil {
		t.Fatalf("backfilled cell should be nil: %#v", tbl.Rows[0])
	}
	if tbl.Rows[1][1] != int64(3) {
		t.Fatalf("row 1: %#v", tbl.Rows[1])
	}
}

func TestCSVRows(t *testing.T) {
	payload := "Geo ID,Total Pop,Rate\n06001,1682353,0.5\n06037,10014009,\n"
	tbl, err := Parse([]byte(payload), CSV)
	if err != nil {
		t.Fatalf("parsing: %v", err)
	}
	want := []string{"geo_id", "total_pop", "rate"}
	for i := range want {
		if tbl.Columns[i] != want[i] {
			t.Fatalf("columns %v", tbl.Columns)
		}
	}
	if tbl.Rows[0][2] != float64(0.5) {
		t.Fatalf("rate cell %#v", tbl.Rows[0][2])
	}
	if tbl.Rows[1][2] != nil {
		t.Fatalf("empty cell should be nil, got %#v", tbl.Rows[1][2])
	}
}

func TestCSVEmpty(t *testing.T) {
	tbl, err := Parse(nil, CSV)
	if err != nil {
		t.Fatalf("empty payload: %v", err)
	}
	if len(tbl.Rows) != 0 || len(tbl.Columns) != 0 {
		t.Fatalf("expected empty table, got %+v", tbl)
	}
}

func TestCSVMalformed(t *testing.T) {
	if _, err := Parse([]byte("a,b\n\"unclosed\n"), CSV); err == nil {
		t.Fatalf("bad quoting should error")
	}
}

// stataFixture builds a minimal dta-115 payload by hand: a str7 name column
// and a double population column whose last cell carries the Stata missing
// value (2^1023).
func stataFixture() []byte {
	var b bytes.Buffer
	b.Write([]byte{115, 2, 1, 0}) // format, LSF byte order, filetype, unused
	binary.Write(&b, binary.LittleEndian, int16(2))
	binary.Write(&b, binary.LittleEndian, int32(3))
	b.Write(make([]byte, 81)) // dataset label
	b.Write(make([]byte, 18)) // timestamp

	b.Write([]byte{7, 255}) // str7, double
	for _, name := range []string{"name", "pop"} {
		v := make([]byte, 33)
		copy(v, name)
		b.Write(v)
	}
	b.Write(make([]byte, 6)) // sort order
	for _, f := range []string{"%7s", "%10.0g"} {
		v := make([]byte, 49)
		copy(v, f)
		b.Write(v)
	}
	b.Write(make([]byte, 2*33)) // value-label names
	b.Write(make([]byte, 2*81)) // variable labels
	b.Write(make([]byte, 5))    // expansion-field terminator

	for _, r := range []struct {
		name string
		pop  uint64
	}{
		{"alameda", math.Float64bits(100)},
		{"orange", math.Float64bits(250.5)},
		{"tulare", 0x7fe0000000000000},
	} {
		v := make([]byte, 7)
		copy(v, r.name)
		b.Write(v)
		binary.Write(&b, binary.LittleEndian, r.pop)
	}
	return b.Bytes()
}

func TestStataRows(t *testing.T) {
	tbl, err := Parse(stataFixture(), Stata)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(tbl.Columns) != 2 || tbl.Columns[0] != "name" || tbl.Columns[1] != "pop" {
		t.Fatalf("columns %v", tbl.Columns)
	}
	if len(tbl.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(tbl.Rows))
	}
	if tbl.Rows[0][0] != "alameda" || tbl.Rows[0][1] != float64(100) {
		t.Fatalf("row 0: %#v", tbl.Rows[0])
	}
	if tbl.Rows[1][0] != "orange" || tbl.Rows[1][1] != 250.5 {
		t.Fatalf("row 1: %#v", tbl.Rows[1])
	}
	if tbl.Rows[2][0] != "tulare" {
		t.Fatalf("row 2: %#v", tbl.Rows[2])
	}
	if tbl.Rows[2][1] != nil {
		t.Fatalf("missing cell should be nil, got %#v", tbl.Rows[2][1])
	}
}

func TestStataMalformed(t *testing.T) {
	_, err := Parse([]byte("definitely not a dta file"), Stata)
	pe, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %v", err)
	}
	if pe.Kind != Stata {
		t.Fatalf("error kind %v", pe.Kind)
	}
}
