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

// Package connector ties the core pieces together: fingerprint the request,
// ask the cache, fetch on a miss, parse the payload, optionally aggregate.
// One Connector per data source; the connector is the only place that knows
// the source ID, payload kind, and cache policy - endpoint URLs and auth
// stay with the caller, carried opaquely in the fetch.Request.
package connector

import (
	"context"
	"log"
	"time"

	"github.com/pkg/errors"

	kdc "github.com/KR-Labs/krl-data-connectors-sub001"
	"github.com/KR-Labs/krl-data-connectors-sub001/agg"
	"github.com/KR-Labs/krl-data-connectors-sub001/cache"
	"github.com/KR-Labs/krl-data-connectors-sub001/fetch"
	"github.com/KR-Labs/krl-data-connectors-sub001/parse"
)

// Connector retrieves one source's data through the cache.
type Connector struct {
	sourceID string
	kind     parse.Kind
	cache    *cache.Cache
	client   *fetch.Client
	ttl      time.Duration
}

// Option is a functional option for New.
type Option func(*Connector)

// OptCache sets the response cache. Without one, every Get fetches.
func OptCache(c *cache.Cache) Option {
	return func(cn *Connector) {
		cn.cache = c
	}
}

// OptClient sets the fetch client. Default is fetch.NewClient's default
// retrying HTTP client.
func OptClient(c *fetch.Client) Option {
	return func(cn *Connector) {
		cn.client = c
	}
}

// OptKind declares the payload kind this source returns. Default JSON.
func OptKind(k parse.Kind) Option {
	return func(cn *Connector) {
		cn.kind = k
	}
}

// OptTTL sets the cache TTL for this source's entries. Default is the
// cache's own default.
func OptTTL(ttl time.Duration) Option {
	return func(cn *Connector) {
		cn.ttl = ttl
	}
}

// New returns a Connector for the given source ID with the options applied.
func New(sourceID string, opts ...Option) *Connector {
	cn := &Connector{
		sourceID: sourceID,
		kind:     parse.JSON,
		client:   fetch.NewClient(),
		ttl:      cache.DefaultTTL,
	}
	for _, opt := range opts {
		opt(cn)
	}
	return cn
}

// Get retrieves the table for the given parameters, going to the source
// only on a cache miss. params drive the fingerprint; req carries the
// actual fetch instruction the caller built from them.
func (cn *Connector) Get(ctx context.Context, params map[string]interface{}, req *fetch.Request) (*kdc.Table, error) {
	payload, err := cn.payload(ctx, params, req)
	if err != nil {
		return nil, err
	}
	table, err := parse.Parse(payload, cn.kind)
	return table, errors.Wrapf(err, "source %v", cn.sourceID)
}

// GetAggregated is Get followed by a geographic rollup.
func (cn *Connector) GetAggregated(ctx context.Context, params map[string]interface{}, req *fetch.Request, from, to agg.Level, specs []kdc.MetricSpec, opts *agg.Options) (*agg.Result, error) {
	table, err := cn.Get(ctx, params, req)
	if err != nil {
		return nil, err
	}
	res, err := agg.Aggregate(table, from, to, specs, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "source %v", cn.sourceID)
	}
	if res.Skipped > 0 {
		log.Printf("connector %v: %d rows skipped in %v->%v rollup", cn.sourceID, res.Skipped, from, to)
	}
	return res, nil
}

// Invalidate drops the cache entry for the given parameters.
func (cn *Connector) Invalidate(params map[string]interface{}) error {
	if cn.cache == nil {
		return nil
	}
	fp, err := kdc.ComputeFingerprint(cn.sourceID, params)
	if err != nil {
		return err
	}
	return cn.cache.Invalidate(fp)
}

func (cn *Connector) payload(ctx context.Context, params map[string]interface{}, req *fetch.Request) ([]byte, error) {
	if cn.cache == nil {
		return cn.client.Fetch(ctx, req)
	}
	fp, err := kdc.ComputeFingerprint(cn.sourceID, params)
	if err != nil {
		return nil, err
	}
	payload, err := cn.cache.GetOrFetch(fp, cn.sourceID, cn.ttl, func() ([]byte, error) {
		return cn.client.Fetch(ctx, req)
	})
	if err != nil && payload != nil && errors.Cause(err) == cache.ErrStore {
		// The fetch succeeded; the cache just couldn't keep it. Use the
		// data and say so.
		log.Printf("connector %v: %v", cn.sourceID, err)
		return payload, nil
	}
	return payload, err
}
