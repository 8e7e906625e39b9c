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

// Package parse converts raw API payloads into tables. The payload kind is
// declared by the connector - a given endpoint always returns one kind - and
// Parse dispatches on that tag rather than sniffing bytes.
//
// A structured error envelope (a JSON object carrying an "error" key, an XML
// <error> element) raises an Error: the source answered, but with a
// complaint, which is a different condition from a valid envelope carrying
// zero rows. The latter parses to a zero-row Table.
package parse

import (
	"fmt"
	"strings"

	kdc "github.com/KR-Labs/krl-data-connectors-sub001"
)

// Kind tags the format of a raw payload.
type Kind int

const (
	JSON Kind = iota
	XML
	CSV
	Stata
)

func (k Kind) String() string {
	switch k {
	case JSON:
		return "json"
	case XML:
		return "xml"
	case CSV:
		return "csv"
	case Stata:
		return "stata"
	}
	return "unknown"
}

// KindFromString maps a kind name to its tag.
func KindFromString(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return JSON, nil
	case "xml":
		return XML, nil
	case "csv":
		return CSV, nil
	case "stata", "dta":
		return Stata, nil
	}
	return 0, &kdc.ValidationError{Msg: fmt.Sprintf("unknown payload kind %q", s)}
}

// Error reports a malformed payload or an explicit error envelope. It is
// never worth retrying the fetch: a structurally bad response stays bad.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("parsing %v payload: %v", e.Kind, e.Msg)
}

// Parse converts payload to a Table according to the declared kind.
func Parse(payload []byte, kind Kind) (*kdc.Table, error) {
	switch kind {
	case JSON:
		return parseJSON(payload)
	case XML:
		return parseXML(payload)
	case CSV:
		return parseCSV(payload)
	case Stata:
		return parseStata(payload)
	}
	return nil, &kdc.ValidationError{Msg: fmt.Sprintf("unknown payload kind %d", kind)}
}
