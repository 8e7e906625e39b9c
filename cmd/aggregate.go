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
	"io"
	"log"
	"os"

	"github.com/jaffee/commandeer"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/KR-Labs/krl-data-connectors-sub001/agg"
	"github.com/KR-Labs/krl-data-connectors-sub001/geomap"
	"github.com/KR-Labs/krl-data-connectors-sub001/parse"
)

// AggregateMain is the configuration for the aggregate subcommand.
type AggregateMain struct {
	File      string   `help:"CSV file of records to aggregate."`
	From      string   `help:"Source geography level: tract, county, or state."`
	To        string   `help:"Target geography level; must be coarser than from."`
	GeoColumn string   `help:"Column carrying the FIPS code."`
	Metrics   []string `help:"Metric specs: sum:<col>, mean:<col>, wmean:<col>:<weight>, ratio:<name>:<num>:<den>."`
	MaxSkip   float64  `help:"Max tolerated fraction of rows with bad geographic keys. 0 means unbounded."`
	Strict    bool     `help:"Fail if any row has a bad geographic key."`
	Names     string   `help:"Optional BoltDB file of FIPS display names to attach."`
	Config    string   `help:"Path to toml config file."`

	stdout io.Writer
}

// NewAggregateMain gets an AggregateMain with default configuration.
func NewAggregateMain() *AggregateMain {
	return &AggregateMain{
		From:      "tract",
		To:        "county",
		GeoColumn: "geo_id",
	}
}

// Run reads the file, rolls it up, and writes the result as CSV.
func (m *AggregateMain) Run() error {
	payload, err := os.ReadFile(m.File)
	if err != nil {
		return errors.Wrap(err, "reading input")
	}
	table, err := parse.Parse(payload, parse.CSV)
	if err != nil {
		return err
	}
	from, err := agg.LevelFromString(m.From)
	if err != nil {
		return err
	}
	to, err := agg.LevelFromString(m.To)
	if err != nil {
		return err
	}
	specs, err := parseMetricSpecs(m.Metrics)
	if err != nil {
		return err
	}
	res, err := agg.Aggregate(table, from, to, specs, &agg.Options{
		GeoColumn:       m.GeoColumn,
		MaxSkipFraction: m.MaxSkip,
		Strict:          m.Strict,
	})
	if err != nil {
		return err
	}
	if res.Skipped > 0 {
		log.Printf("aggregate: skipped %d rows with bad geographic keys", res.Skipped)
	}
	if m.Names != "" {
		store, err := geomap.NewBoltStore(m.Names)
		if err != nil {
			return errors.Wrap(err, "opening names store")
		}
		defer store.Close()
		if err := agg.AttachNames(res.Table, m.GeoColumn, store); err != nil {
			return err
		}
	}
	return writeTable(m.stdout, res.Table)
}

// NewAggregateCommand returns a cobra command wrapping AggregateMain.
func NewAggregateCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	main := NewAggregateMain()
	main.stdout = stdout
	aggCommand := &cobra.Command{
		Use:   "aggregate",
		Short: "roll a CSV of records up the geographic hierarchy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return main.Run()
		},
	}
	if err := commandeer.Flags(aggCommand.Flags(), main); err != nil {
		panic(err)
	}
	return aggCommand
}

func init() {
	subcommandFns["aggregate"] = NewAggregateCommand
}
