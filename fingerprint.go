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

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Fingerprint is a deterministic key derived from a source ID plus
// normalized request parameters. Cache entries are addressed by it.
type Fingerprint string

// ComputeFingerprint derives the fingerprint for a request. Parameter keys
// and string values are trimmed and case-folded, keys are sorted, and list
// values are sorted element-wise, so any two calls carrying the same
// semantic filters hash identically regardless of map or slice ordering.
//
// A nil parameter value is rejected with a ValidationError: callers must
// omit absent filters entirely, otherwise "absent" and "null" would collide
// under the same fingerprint.
func ComputeFingerprint(sourceID string, params map[string]interface{}) (Fingerprint, error) {
	keys := make([]string, 0, len(params))
	seen := make(map[string]string, len(params))
	for k := range params {
		nk := strings.ToLower(strings.TrimSpace(k))
		if prev, ok := seen[nk]; ok {
			return "", &ValidationError{Msg: fmt.Sprintf("parameters %q and %q collide after normalization", prev, k)}
		}
		seen[nk] = k
		keys = append(keys, nk)
	}
	sort.Strings(keys)

	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(sourceID))))
	h.Write([]byte{0})
	for _, nk := range keys {
		v := params[seen[nk]]
		nv, err := normalizeParam(v)
		if err != nil {
			return "", errors.Wrapf(err, "parameter %q", seen[nk])
		}
		h.Write([]byte(nk))
		h.Write([]byte{'='})
		h.Write([]byte(nv))
		h.Write([]byte{0})
	}
	return Fingerprint(hex.EncodeToString(h.Sum(nil))), nil
}

func normalizeParam(v interface{}) (string, error) {
	switch vt := v.(type) {
	case nil:
		return "", &ValidationError{Msg: "nil value; omit absent parameters instead of passing nil"}
	case string:
		return strings.ToLower(strings.TrimSpace(vt)), nil
	case bool:
		return strconv.FormatBool(vt), nil
	case int:
		return strconv.Itoa(vt), nil
	case int64:
		return strconv.FormatInt(vt, 10), nil
	case float64:
		return strconv.FormatFloat(vt, 'g', -1, 64), nil
	case []string:
		parts := make([]string, len(vt))
		for i, s := range vt {
			parts[i] = strings.ToLower(strings.TrimSpace(s))
		}
		return joinList(parts), nil
	case []interface{}:
		parts := make([]string, len(vt))
		for i, e := range vt {
			p, err := normalizeParam(e)
			if err != nil {
				return "", err
			}
			parts[i] = p
		}
		return joinList(parts), nil
	default:
		return "", &ValidationError{Msg: fmt.Sprintf("unsupported parameter type %T", v)}
	}
}

// joinList encodes sorted list elements with a length prefix per element so
// the boundary between elements can never be forged by a scalar containing
// the separator (["a","b"] must not hash like "a,b").
func joinList(parts []string) string {
	sort.Strings(parts)
	var b strings.Builder
	b.WriteByte('[')
	for _, p := range parts {
		b.WriteString(strconv.Itoa(len(p)))
		b.WriteByte(':')
		b.WriteString(p)
	}
	return b.String()
}
