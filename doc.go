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

// Package kdc is a toolkit for building dataset connectors - programs which
// pull public data (census, health, economic, political) out of heterogeneous
// remote APIs and expose it as uniform tabular records.
//
// Connectors built with kdc are decomposed into a few pieces:
//
// 1. Fingerprint
//
//    Every request a connector makes is identified by a fingerprint computed
//    from the source ID and the normalized request parameters. Two requests
//    which mean the same thing always produce the same fingerprint no matter
//    how the caller ordered its parameters, which is what makes the cache
//    layer safe to key on.
//
// 2. Cache (package cache)
//
//    A disk-backed store mapping fingerprints to raw payloads plus a metadata
//    sidecar. Its GetOrFetch operation deduplicates concurrent fetches for
//    the same fingerprint within a process, and its write path is
//    temp-then-rename so readers in other processes never see a torn file.
//
// 3. Fetch (packages fetch and s3)
//
//    Transports. The fetch package has a retrying HTTP client which honors
//    rate limit hints; the s3 package pulls flat files (bulk CSV, Stata
//    extracts) through the same Fetcher interface so they flow through the
//    same cache.
//
// 4. Parse (package parse)
//
//    Converts a raw payload plus a declared kind (json, xml, csv, stata)
//    into a Table. The kind is always declared by the connector, never
//    sniffed from the bytes - a given endpoint returns one kind, forever.
//
// 5. Aggregate (package agg)
//
//    Rolls tables up the FIPS geographic hierarchy (tract -> county ->
//    state) applying per-metric rules: sum, mean, weighted mean, ratio.
//
// The connector package ties these together into a facade, and cmd/kdc is a
// small CLI over the same pieces. This root package holds only the leaf
// types (Table, Value, Fingerprint, MetricSpec) and the shared error types
// so the subpackages can agree on a record shape without importing each
// other.
package kdc
