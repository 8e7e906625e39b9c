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

// AggRule selects how a metric combines when rows roll up to a coarser
// geography.
type AggRule int

const (
	// RuleSum adds the metric across the group.
	RuleSum AggRule = iota
	// RuleMean takes the unweighted arithmetic mean across the group.
	RuleMean
	// RuleWeightedMean takes sum(metric*weight)/sum(weight); a group whose
	// total weight is zero yields a nil cell.
	RuleWeightedMean
	// RuleRatio takes sum(numerator)/sum(denominator); a group whose
	// denominator sums to zero yields a nil cell.
	RuleRatio
)

func (r AggRule) String() string {
	switch r {
	case RuleSum:
		return "sum"
	case RuleMean:
		return "mean"
	case RuleWeightedMean:
		return "weighted_mean"
	case RuleRatio:
		return "ratio"
	}
	return "unknown"
}

// MetricSpec declares one output metric and the rule producing it. Specs are
// declared once per connector; aggregation behavior is never inferred from
// the data.
type MetricSpec struct {
	// Name of the output column.
	Name string
	Rule AggRule
	// Column is the input metric column for sum, mean and weighted mean.
	Column string
	// Weight is the weight column for weighted mean.
	Weight string
	// Numerator and Denominator are the input columns for ratio.
	Numerator   string
	Denominator string
}

// Sum declares a summed metric over col.
func Sum(col string) MetricSpec {
	return MetricSpec{Name: col, Rule: RuleSum, Column: col}
}

// Mean declares an unweighted mean over col.
func Mean(col string) MetricSpec {
	return MetricSpec{Name: col, Rule: RuleMean, Column: col}
}

// WeightedMean declares a mean over col weighted by the weight column.
func WeightedMean(col, weight string) MetricSpec {
	return MetricSpec{Name: col, Rule: RuleWeightedMean, Column: col, Weight: weight}
}

// Ratio declares a metric named name computed as sum(num)/sum(den).
func Ratio(name, num, den string) MetricSpec {
	return MetricSpec{Name: name, Rule: RuleRatio, Numerator: num, Denominator: den}
}
