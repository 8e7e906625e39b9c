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

// Package agg rolls tabular records up the FIPS geographic hierarchy.
// A 2-digit state code prefixes a 5-digit county code, which prefixes an
// 11-digit tract code; grouping rows by the target level's prefix and
// combining each declared metric per its rule is the whole algorithm.
package agg

import (
	"fmt"
	"sort"
	"strconv"

	kdc "github.com/KR-Labs/krl-data-connectors-sub001"
)

// Level is a rung of the geographic hierarchy.
type Level int

const (
	Tract Level = iota
	County
	State
)

// Digits returns the FIPS code width at this level.
func (l Level) Digits() int {
	switch l {
	case Tract:
		return 11
	case County:
		return 5
	case State:
		return 2
	}
	return 0
}

func (l Level) String() string {
	switch l {
	case Tract:
		return "tract"
	case County:
		return "county"
	case State:
		return "state"
	}
	return "unknown"
}

// LevelFromString maps a level name to its tag.
func LevelFromString(s string) (Level, error) {
	switch s {
	case "tract":
		return Tract, nil
	case "county":
		return County, nil
	case "state":
		return State, nil
	}
	return 0, &kdc.ValidationError{Msg: fmt.Sprintf("unknown geography level %q", s)}
}

// Coarser reports whether l is strictly coarser than other.
func (l Level) Coarser(other Level) bool {
	return l.Digits() < other.Digits()
}

// Error reports an aggregation failure: a target level that is not coarser
// than the source, or hierarchy violations beyond the configured tolerance.
type Error struct {
	Msg string
}

func (e *Error) Error() string {
	return "aggregating: " + e.Msg
}

// Options tune Aggregate.
type Options struct {
	// GeoColumn holds the FIPS code; default "geo_id".
	GeoColumn string
	// MaxSkipFraction bounds the fraction of rows whose geographic key may
	// violate the hierarchy (wrong width, non-digit). Violators are always
	// excluded and counted; if their fraction exceeds the bound the whole
	// aggregation fails instead. Zero means no bound.
	MaxSkipFraction float64
	// Strict fails the aggregation on any violating row at all.
	Strict bool
}

// Result is an aggregated table plus the count of rows excluded for
// violating the geographic key invariant. Skips are never silent.
type Result struct {
	Table   *kdc.Table
	Skipped int
}

type group struct {
	key  string
	accs []*accum
}

type accum struct {
	sum    float64
	count  int64
	wsum   float64
	wxsum  float64
	numsum float64
	densum float64
}

// Aggregate groups table rows by the to-level prefix of their geographic key
// and combines each metric per its spec. to must be strictly coarser than
// from. The output carries the geo column first, then one column per spec,
// with groups in sorted key order.
//
// Summed metrics aggregate associatively: rolling tract->county->state
// equals rolling tract->state directly, within floating point tolerance.
func Aggregate(table *kdc.Table, from, to Level, specs []kdc.MetricSpec, opts *Options) (*Result, error) {
	var o Options
	if opts != nil {
		o = *opts
	}
	if o.GeoColumn == "" {
		o.GeoColumn = "geo_id"
	}
	if !to.Coarser(from) {
		return nil, &Error{Msg: fmt.Sprintf("%v is not coarser than %v", to, from)}
	}
	geoIdx := table.ColumnIndex(o.GeoColumn)
	if geoIdx < 0 {
		return nil, &kdc.ValidationError{Msg: fmt.Sprintf("no geographic column %q", o.GeoColumn)}
	}
	cols, err := specColumns(table, specs)
	if err != nil {
		return nil, err
	}

	groups := map[string]*group{}
	skipped := 0
	for _, row := range table.Rows {
		code, ok := geoCode(row[geoIdx], from.Digits())
		if !ok {
			skipped++
			continue
		}
		key := code[:to.Digits()]
		g, ok := groups[key]
		if !ok {
			g = &group{key: key, accs: make([]*accum, len(specs))}
			for i := range g.accs {
				g.accs[i] = &accum{}
			}
			groups[key] = g
		}
		for i, spec := range specs {
			g.accs[i].add(spec, cols[i], row)
		}
	}
	if skipped > 0 {
		if o.Strict {
			return nil, &Error{Msg: fmt.Sprintf("%d of %d rows violate the %v key invariant", skipped, len(table.Rows), from)}
		}
		if o.MaxSkipFraction > 0 {
			if frac := float64(skipped) / float64(len(table.Rows)); frac > o.MaxSkipFraction {
				return nil, &Error{Msg: fmt.Sprintf("%d of %d rows violate the %v key invariant (tolerance %v)",
					skipped, len(table.Rows), from, o.MaxSkipFraction)}
			}
		}
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := &kdc.Table{Columns: make([]string, 0, len(specs)+1)}
	out.Columns = append(out.Columns, o.GeoColumn)
	for _, spec := range specs {
		out.Columns = append(out.Columns, spec.Name)
	}
	for _, k := range keys {
		g := groups[k]
		row := make([]kdc.Value, 0, len(specs)+1)
		row = append(row, k)
		for i, spec := range specs {
			row = append(row, g.accs[i].result(spec.Rule))
		}
		out.Rows = append(out.Rows, row)
	}
	return &Result{Table: out, Skipped: skipped}, nil
}

// specColumns resolves each spec's input column indexes:
// [metric, weight, numerator, denominator], -1 where unused.
func specColumns(table *kdc.Table, specs []kdc.MetricSpec) ([][4]int, error) {
	resolve := func(name string) (int, error) {
		i := table.ColumnIndex(name)
		if i < 0 {
			return 0, &kdc.ValidationError{Msg: fmt.Sprintf("no metric column %q", name)}
		}
		return i, nil
	}
	cols := make([][4]int, len(specs))
	for i, spec := range specs {
		cols[i] = [4]int{-1, -1, -1, -1}
		var err error
		switch spec.Rule {
		case kdc.RuleSum, kdc.RuleMean:
			cols[i][0], err = resolve(spec.Column)
		case kdc.RuleWeightedMean:
			if cols[i][0], err = resolve(spec.Column); err == nil {
				cols[i][1], err = resolve(spec.Weight)
			}
		case kdc.RuleRatio:
			if cols[i][2], err = resolve(spec.Numerator); err == nil {
				cols[i][3], err = resolve(spec.Denominator)
			}
		default:
			err = &kdc.ValidationError{Msg: fmt.Sprintf("unknown aggregation rule for metric %q", spec.Name)}
		}
		if err != nil {
			return nil, err
		}
	}
	return cols, nil
}

func (a *accum) add(spec kdc.MetricSpec, cols [4]int, row []kdc.Value) {
	switch spec.Rule {
	case kdc.RuleSum, kdc.RuleMean:
		if v, ok := asFloat(row[cols[0]]); ok {
			a.sum += v
			a.count++
		}
	case kdc.RuleWeightedMean:
		v, vok := asFloat(row[cols[0]])
		w, wok := asFloat(row[cols[1]])
		if vok && wok {
			a.wsum += w
			a.wxsum += v * w
		}
	case kdc.RuleRatio:
		if n, ok := asFloat(row[cols[2]]); ok {
			a.numsum += n
		}
		if d, ok := asFloat(row[cols[3]]); ok {
			a.densum += d
		}
	}
}

func (a *accum) result(rule kdc.AggRule) kdc.Value {
	switch rule {
	case kdc.RuleSum:
		if a.count == 0 {
			return nil
		}
		return a.sum
	case kdc.RuleMean:
		if a.count == 0 {
			return nil
		}
		return a.sum / float64(a.count)
	case kdc.RuleWeightedMean:
		if a.wsum == 0 {
			return nil
		}
		return a.wxsum / a.wsum
	case kdc.RuleRatio:
		if a.densum == 0 {
			return nil
		}
		return a.numsum / a.densum
	}
	return nil
}

// geoCode renders a cell as a FIPS code of the given width. Integer cells
// are zero-padded back to width: the parse type ladder turns "06037" into
// the integer 6037, and the leading zero has to come back before prefix
// grouping means anything.
func geoCode(v kdc.Value, width int) (string, bool) {
	var code string
	switch vt := v.(type) {
	case string:
		code = vt
	case int64:
		if vt < 0 {
			return "", false
		}
		code = fmt.Sprintf("%0*d", width, vt)
	default:
		return "", false
	}
	if len(code) != width {
		return "", false
	}
	if _, err := strconv.ParseUint(code, 10, 64); err != nil {
		return "", false
	}
	return code, true
}
