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
	"math"
	"path/filepath"
	"testing"

	kdc "github.com/KR-Labs/krl-data-connectors-sub001"
	"github.com/KR-Labs/krl-data-connectors-sub001/geomap"
)

// tractTable builds a small two-county, one-state tract table.
func tractTable() *kdc.Table {
	return &kdc.Table{
		Columns: []string{"geo_id", "pop", "income", "employed", "labor_force"},
		Rows: [][]kdc.Value{
			{"06037100001", int64(10), float64(50000), int64(4), int64(5)},
			{"06037100002", int64(20), float64(70000), int64(9), int64(10)},
			{"06001200001", int64(15), float64(60000), int64(6), int64(8)},
		},
	}
}

func cellFloat(t *testing.T, tbl *kdc.Table, row int, col string) float64 {
	t.Helper()
	i := tbl.ColumnIndex(col)
	if i < 0 {
		t.Fatalf("no column %q in %v", col, tbl.Columns)
	}
	f, ok := tbl.Rows[row][i].(float64)
	if !ok {
		t.Fatalf("cell %v[%d] = %#v, want float64", col, row, tbl.Rows[row][i])
	}
	return f
}

func TestSumCountyThenState(t *testing.T) {
	specs := []kdc.MetricSpec{kdc.Sum("pop")}

	county, err := Aggregate(tractTable(), Tract, County, specs, nil)
	if err != nil {
		t.Fatalf("tract->county: %v", err)
	}
	if len(county.Table.Rows) != 2 {
		t.Fatalf("county rows: %d", len(county.Table.Rows))
	}
	// Groups come out in sorted key order: 06001 before 06037.
	if county.Table.Rows[0][0] != "06001" || county.Table.Rows[1][0] != "06037" {
		t.Fatalf("county keys: %v %v", county.Table.Rows[0][0], county.Table.Rows[1][0])
	}
	if got := cellFloat(t, county.Table, 0, "pop"); got != 15 {
		t.Fatalf("06001 pop = %v", got)
	}
	if got := cellFloat(t, county.Table, 1, "pop"); got != 30 {
		t.Fatalf("06037 pop = %v", got)
	}

	state, err := Aggregate(county.Table, County, State, specs, nil)
	if err != nil {
		t.Fatalf("county->state: %v", err)
	}
	if len(state.Table.Rows) != 1 {
		t.Fatalf("state rows: %d", len(state.Table.Rows))
	}
	if got := cellFloat(t, state.Table, 0, "pop"); got != 45 {
		t.Fatalf("state pop = %v", got)
	}
}

func TestSumAssociativity(t *testing.T) {
	specs := []kdc.MetricSpec{kdc.Sum("pop")}

	direct, err := Aggregate(tractTable(), Tract, State, specs, nil)
	if err != nil {
		t.Fatalf("tract->state: %v", err)
	}
	county, err := Aggregate(tractTable(), Tract, County, specs, nil)
	if err != nil {
		t.Fatalf("tract->county: %v", err)
	}
	twoStep, err := Aggregate(county.Table, County, State, specs, nil)
	if err != nil {
		t.Fatalf("county->state: %v", err)
	}

	d := cellFloat(t, direct.Table, 0, "pop")
	s := cellFloat(t, twoStep.Table, 0, "pop")
	if math.Abs(d-s) > 1e-9 {
		t.Fatalf("direct %v vs two-step %v", d, s)
	}
}

func TestMean(t *testing.T) {
	res, err := Aggregate(tractTable(), Tract, State, []kdc.MetricSpec{kdc.Mean("income")}, nil)
	if err != nil {
		t.Fatalf("aggregating: %v", err)
	}
	want := (50000.0 + 70000.0 + 60000.0) / 3
	if got := cellFloat(t, res.Table, 0, "income"); math.Abs(got-want) > 1e-9 {
		t.Fatalf("mean income = %v, want %v", got, want)
	}
}

func TestWeightedMean(t *testing.T) {
	res, err := Aggregate(tractTable(), Tract, County, []kdc.MetricSpec{kdc.WeightedMean("income", "pop")}, nil)
	if err != nil {
		t.Fatalf("aggregating: %v", err)
	}
	// 06037: (50000*10 + 70000*20) / 30
	want := (50000.0*10 + 70000.0*20) / 30
	if got := cellFloat(t, res.Table, 1, "income"); math.Abs(got-want) > 1e-9 {
		t.Fatalf("weighted income = %v, want %v", got, want)
	}
}

func TestWeightedMeanZeroWeight(t *testing.T) {
	tbl := &kdc.Table{
		Columns: []string{"geo_id", "income", "pop"},
		Rows: [][]kdc.Value{
			{"06037100001", float64(50000), int64(0)},
			{"06037100002", float64(70000), int64(0)},
		},
	}
	res, err := Aggregate(tbl, Tract, County, []kdc.MetricSpec{kdc.WeightedMean("income", "pop")}, nil)
	if err != nil {
		t.Fatalf("aggregating: %v", err)
	}
	if got := res.Table.Rows[0][1]; got != nil {
		t.Fatalf("zero total weight should yield nil, got %#v", got)
	}
}

func TestRatio(t *testing.T) {
	res, err := Aggregate(tractTable(), Tract, State, []kdc.MetricSpec{kdc.Ratio("employment_rate", "employed", "labor_force")}, nil)
	if err != nil {
		t.Fatalf("aggregating: %v", err)
	}
	want := (4.0 + 9 + 6) / (5.0 + 10 + 8)
	if got := cellFloat(t, res.Table, 0, "employment_rate"); math.Abs(got-want) > 1e-9 {
		t.Fatalf("rate = %v, want %v", got, want)
	}
}

func TestRatioZeroDenominator(t *testing.T) {
	tbl := &kdc.Table{
		Columns: []string{"geo_id", "num", "den"},
		Rows: [][]kdc.Value{
			{"06037100001", int64(3), int64(0)},
		},
	}
	res, err := Aggregate(tbl, Tract, County, []kdc.MetricSpec{kdc.Ratio("r", "num", "den")}, nil)
	if err != nil {
		t.Fatalf("aggregating: %v", err)
	}
	if got := res.Table.Rows[0][1]; got != nil {
		t.Fatalf("zero denominator should yield nil, got %#v", got)
	}
}

func TestSkippedRowsCounted(t *testing.T) {
	tbl := tractTable()
	tbl.Rows = append(tbl.Rows,
		[]kdc.Value{"123", int64(99), float64(1), int64(1), int64(1)},        // wrong width
		[]kdc.Value{"0603710000X", int64(99), float64(1), int64(1), int64(1)}, // non-digit
		[]kdc.Value{nil, int64(99), float64(1), int64(1), int64(1)},          // missing key
	)
	res, err := Aggregate(tbl, Tract, State, []kdc.MetricSpec{kdc.Sum("pop")}, nil)
	if err != nil {
		t.Fatalf("aggregating: %v", err)
	}
	if res.Skipped != 3 {
		t.Fatalf("skipped = %d", res.Skipped)
	}
	if got := cellFloat(t, res.Table, 0, "pop"); got != 45 {
		t.Fatalf("pop after skips = %v", got)
	}
}

func TestSkipThreshold(t *testing.T) {
	tbl := tractTable()
	tbl.Rows = append(tbl.Rows, []kdc.Value{"bad", int64(1), float64(1), int64(1), int64(1)})

	if _, err := Aggregate(tbl, Tract, State, []kdc.MetricSpec{kdc.Sum("pop")}, &Options{Strict: true}); err == nil {
		t.Fatalf("strict mode should fail on any skip")
	}
	if _, err := Aggregate(tbl, Tract, State, []kdc.MetricSpec{kdc.Sum("pop")}, &Options{MaxSkipFraction: 0.1}); err == nil {
		t.Fatalf("1 of 4 rows skipped should exceed a 0.1 tolerance")
	}
	if _, err := Aggregate(tbl, Tract, State, []kdc.MetricSpec{kdc.Sum("pop")}, &Options{MaxSkipFraction: 0.5}); err != nil {
		t.Fatalf("1 of 4 rows skipped within 0.5 tolerance: %v", err)
	}
}

func TestZeroPaddedIntegerCodes(t *testing.T) {
	// The parse type ladder turns "06037" into the integer 6037; the
	// aggregator has to pad it back before prefix grouping.
	tbl := &kdc.Table{
		Columns: []string{"geo_id", "pop"},
		Rows: [][]kdc.Value{
			{int64(6037), int64(30)},
			{int64(48001), int64(12)},
		},
	}
	res, err := Aggregate(tbl, County, State, []kdc.MetricSpec{kdc.Sum("pop")}, nil)
	if err != nil {
		t.Fatalf("aggregating: %v", err)
	}
	if len(res.Table.Rows) != 2 {
		t.Fatalf("rows: %d", len(res.Table.Rows))
	}
	if res.Table.Rows[0][0] != "06" || res.Table.Rows[1][0] != "48" {
		t.Fatalf("state keys: %v %v", res.Table.Rows[0][0], res.Table.Rows[1][0])
	}
}

func TestLevelValidation(t *testing.T) {
	if _, err := Aggregate(tractTable(), County, Tract, []kdc.MetricSpec{kdc.Sum("pop")}, nil); err == nil {
		t.Fatalf("finer target should fail")
	}
	if _, err := Aggregate(tractTable(), State, State, []kdc.MetricSpec{kdc.Sum("pop")}, nil); err == nil {
		t.Fatalf("same-level target should fail")
	}
	if _, err := Aggregate(tractTable(), Tract, State, []kdc.MetricSpec{kdc.Sum("nope")}, nil); err == nil {
		t.Fatalf("unknown metric column should fail")
	}
	if _, err := Aggregate(tractTable(), Tract, State, []kdc.MetricSpec{kdc.Sum("pop")}, &Options{GeoColumn: "nope"}); err == nil {
		t.Fatalf("unknown geo column should fail")
	}
}

func TestMissingMetricCellsSkipValue(t *testing.T) {
	tbl := &kdc.Table{
		Columns: []string{"geo_id", "pop"},
		Rows: [][]kdc.Value{
			{"06037100001", int64(10)},
			{"06037100002", nil},
		},
	}
	res, err := Aggregate(tbl, Tract, County, []kdc.MetricSpec{kdc.Mean("pop")}, nil)
	if err != nil {
		t.Fatalf("aggregating: %v", err)
	}
	// Mean over the single present value, not over two rows.
	if got := cellFloat(t, res.Table, 0, "pop"); got != 10 {
		t.Fatalf("mean with missing cell = %v", got)
	}
}

func TestAttachGeohash(t *testing.T) {
	tbl := &kdc.Table{
		Columns: []string{"site", "lat", "lon"},
		Rows: [][]kdc.Value{
			{"a", float64(34.05), float64(-118.24)},
			{"b", nil, float64(-118.24)},
		},
	}
	if err := AttachGeohash(tbl, "lat", "lon", 7); err != nil {
		t.Fatalf("attaching: %v", err)
	}
	gh, ok := tbl.Rows[0][3].(string)
	if !ok || len(gh) != 7 {
		t.Fatalf("geohash cell %#v", tbl.Rows[0][3])
	}
	if tbl.Rows[1][3] != nil {
		t.Fatalf("missing coordinate should yield nil, got %#v", tbl.Rows[1][3])
	}
	if err := AttachGeohash(tbl, "missing", "lon", 7); err == nil {
		t.Fatalf("unknown column should fail")
	}
}

func TestAttachNames(t *testing.T) {
	store, err := geomap.NewBoltStore(filepath.Join(t.TempDir(), "names.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer store.Close()
	if err := store.SetName("06", "California"); err != nil {
		t.Fatalf("seeding store: %v", err)
	}

	tbl := &kdc.Table{
		Columns: []string{"geo_id", "pop"},
		Rows: [][]kdc.Value{
			{"06", float64(45)},
			{"48", float64(12)},
		},
	}
	if err := AttachNames(tbl, "geo_id", store); err != nil {
		t.Fatalf("attaching: %v", err)
	}
	if tbl.Rows[0][2] != "California" {
		t.Fatalf("name cell %#v", tbl.Rows[0][2])
	}
	if tbl.Rows[1][2] != nil {
		t.Fatalf("unmapped code should yield nil, got %#v", tbl.Rows[1][2])
	}
}
