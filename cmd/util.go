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

package cmd

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/pkg/errors"

	kdc "github.com/KR-Labs/krl-data-connectors-sub001"
)

// parseParams converts repeated key=value flags into a parameter map.
// Comma-separated values become a list so they fingerprint order-free.
func parseParams(pairs []string) (map[string]interface{}, error) {
	params := make(map[string]interface{}, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return nil, errors.Errorf("parameter %q is not key=value", p)
		}
		if strings.Contains(v, ",") {
			params[k] = strings.Split(v, ",")
		} else {
			params[k] = v
		}
	}
	return params, nil
}

// parseMetricSpec reads one metric declaration:
//
//	sum:<col>  mean:<col>  wmean:<col>:<weight>  ratio:<name>:<num>:<den>
func parseMetricSpec(s string) (kdc.MetricSpec, error) {
	parts := strings.Split(s, ":")
	switch {
	case parts[0] == "sum" && len(parts) == 2:
		return kdc.Sum(parts[1]), nil
	case parts[0] == "mean" && len(parts) == 2:
		return kdc.Mean(parts[1]), nil
	case parts[0] == "wmean" && len(parts) == 3:
		return kdc.WeightedMean(parts[1], parts[2]), nil
	case parts[0] == "ratio" && len(parts) == 4:
		return kdc.Ratio(parts[1], parts[2], parts[3]), nil
	}
	return kdc.MetricSpec{}, errors.Errorf("bad metric spec %q", s)
}

func parseMetricSpecs(specs []string) ([]kdc.MetricSpec, error) {
	out := make([]kdc.MetricSpec, len(specs))
	for i, s := range specs {
		var err error
		if out[i], err = parseMetricSpec(s); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// writeTable renders a table as CSV, header first.
func writeTable(w io.Writer, t *kdc.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return errors.Wrap(err, "writing header")
	}
	rec := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, cell := range row {
			rec[i] = kdc.FormatValue(cell)
		}
		if err := cw.Write(rec); err != nil {
			return errors.Wrap(err, "writing row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing output")
}
