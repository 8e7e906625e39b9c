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
	"context"
	"io"
	"time"

	"github.com/jaffee/commandeer"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/KR-Labs/krl-data-connectors-sub001/cache"
	"github.com/KR-Labs/krl-data-connectors-sub001/connector"
	"github.com/KR-Labs/krl-data-connectors-sub001/fetch"
	"github.com/KR-Labs/krl-data-connectors-sub001/parse"
)

// FetchMain is the configuration for the fetch subcommand.
type FetchMain struct {
	URL         string        `help:"URL to fetch. Treated as opaque; build query strings yourself."`
	Source      string        `help:"Source ID used for cache fingerprinting."`
	Kind        string        `help:"Payload kind: json, xml, csv, or stata."`
	Params      []string      `help:"Request parameters as key=value, used for fingerprinting. Comma-separate list values."`
	CacheDir    string        `help:"Directory for cached payloads."`
	TTL         time.Duration `help:"Cache TTL for this entry. 0 caches forever."`
	MaxAttempts int           `help:"Max fetch attempts before giving up."`
	BackoffBase time.Duration `help:"First retry delay; doubles each retry."`
	Config      string        `help:"Path to toml config file."`

	stdout io.Writer
}

// NewFetchMain gets a FetchMain with default configuration.
func NewFetchMain() *FetchMain {
	return &FetchMain{
		Source:      "adhoc",
		Kind:        "json",
		CacheDir:    ".kdc-cache",
		MaxAttempts: 4,
		BackoffBase: 500 * time.Millisecond,
	}
}

// Run fetches (through the cache), parses, and writes the table as CSV.
func (m *FetchMain) Run() error {
	if m.URL == "" {
		return errors.New("url is required")
	}
	kind, err := parse.KindFromString(m.Kind)
	if err != nil {
		return err
	}
	params, err := parseParams(m.Params)
	if err != nil {
		return err
	}
	c, err := cache.New(m.CacheDir)
	if err != nil {
		return errors.Wrap(err, "opening cache")
	}
	cn := connector.New(m.Source,
		connector.OptCache(c),
		connector.OptKind(kind),
		connector.OptTTL(m.TTL),
		connector.OptClient(fetch.NewClient(
			fetch.OptMaxAttempts(m.MaxAttempts),
			fetch.OptBackoffBase(m.BackoffBase),
		)),
	)
	table, err := cn.Get(context.Background(), params, &fetch.Request{URL: m.URL})
	if err != nil {
		return err
	}
	return writeTable(m.stdout, table)
}

// NewFetchCommand returns a cobra command wrapping FetchMain.
func NewFetchCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	main := NewFetchMain()
	main.stdout = stdout
	fetchCommand := &cobra.Command{
		Use:   "fetch",
		Short: "fetch a dataset through the cache and print it as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return main.Run()
		},
	}
	if err := commandeer.Flags(fetchCommand.Flags(), main); err != nil {
		panic(err)
	}
	return fetchCommand
}

func init() {
	subcommandFns["fetch"] = NewFetchCommand
}
