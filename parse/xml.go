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
	"encoding/xml"
	"fmt"
	"strings"

	kdc "github.com/KR-Labs/krl-data-connectors-sub001"
)

type xmlNode struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Nodes   []xmlNode  `xml:",any"`
	Text    string     `xml:",chardata"`
}

type xmlCell struct {
	col string
	val kdc.Value
}

// parseXML treats the repeated direct children of the document root as rows.
// Each row's columns come from its attributes and leaf child elements in
// document order; later rows may add columns, which backfill as nil for
// earlier rows. A root named <error>, or an <error> child of the root, is an
// error envelope.
func parseXML(payload []byte) (*kdc.Table, error) {
	var root xmlNode
	if err := xml.Unmarshal(payload, &root); err != nil {
		return nil, &Error{Kind: XML, Msg: err.Error()}
	}
	if strings.EqualFold(root.XMLName.Local, "error") {
		return nil, &Error{Kind: XML, Msg: fmt.Sprintf("error envelope: %v", strings.TrimSpace(root.Text))}
	}
	for _, n := range root.Nodes {
		if strings.EqualFold(n.XMLName.Local, "error") {
			return nil, &Error{Kind: XML, Msg: fmt.Sprintf("error envelope: %v", strings.TrimSpace(n.Text))}
		}
	}

	t := &kdc.Table{}
	colIdx := map[string]int{}
	for _, n := range root.Nodes {
		var cells []xmlCell
		for _, a := range n.Attrs {
			cells = append(cells, xmlCell{kdc.NormalizeColumn(a.Name.Local), kdc.CoerceValue(a.Value)})
		}
		for _, child := range n.Nodes {
			if len(child.Nodes) > 0 {
				// Only leaf elements become cells.
				continue
			}
			cells = append(cells, xmlCell{kdc.NormalizeColumn(child.XMLName.Local), kdc.CoerceValue(child.Text)})
		}
		for _, c := range cells {
			if _, ok := colIdx[c.col]; !ok {
				colIdx[c.col] = len(t.Columns)
				t.Columns = append(t.Columns, c.col)
				// Backfill the new column on earlier rows.
				for i := range t.Rows {
					t.Rows[i] = append(t.Rows[i], nil)
				}
			}
		}
		row := make([]kdc.Value, len(t.Columns))
		for _, c := range cells {
			row[colIdx[c.col]] = c.val
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
