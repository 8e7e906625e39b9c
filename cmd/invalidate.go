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
	"fmt"
	"io"
	"os"

	"github.com/jaffee/commandeer"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	kdc "github.com/KR-Labs/krl-data-connectors-sub001"
	"github.com/KR-Labs/krl-data-connectors-sub001/cache"
)

// InvalidateMain is the configuration for the invalidate subcommand.
type InvalidateMain struct {
	Source   string   `help:"Source ID the entry was cached under."`
	Params   []string `help:"Request parameters as key=value, matching the original request."`
	CacheDir string   `help:"Directory for cached payloads."`
	Config   string   `help:"Path to toml config file."`

	stdout io.Writer
}

// NewInvalidateMain gets an InvalidateMain with default configuration.
func NewInvalidateMain() *InvalidateMain {
	return &InvalidateMain{
		CacheDir: ".kdc-cache",
	}
}

// Run recomputes the fingerprint and drops its cache entry.
func (m *InvalidateMain) Run() error {
	params, err := parseParams(m.Params)
	if err != nil {
		return err
	}
	fp, err := kdc.ComputeFingerprint(m.Source, params)
	if err != nil {
		return err
	}
	c, err := cache.New(m.CacheDir)
	if err != nil {
		return errors.Wrap(err, "opening cache")
	}
	if meta, err := c.Stat(fp); err == nil {
		fmt.Fprintf(m.stdout, "dropping %v entry %v from %v\n", meta.SourceID, fp, meta.CreatedAt)
	} else if os.IsNotExist(err) {
		fmt.Fprintf(m.stdout, "no entry for %v\n", fp)
	}
	return c.Invalidate(fp)
}

// NewInvalidateCommand returns a cobra command wrapping InvalidateMain.
func NewInvalidateCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	main := NewInvalidateMain()
	main.stdout = stdout
	invCommand := &cobra.Command{
		Use:   "invalidate",
		Short: "drop one cached entry by source and parameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return main.Run()
		},
	}
	if err := commandeer.Flags(invCommand.Flags(), main); err != nil {
		panic(err)
	}
	return invCommand
}

func init() {
	subcommandFns["invalidate"] = NewInvalidateCommand
}
