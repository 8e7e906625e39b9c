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

// Package fetch retrieves raw payloads from remote sources with retry and
// backoff. It only ever runs on a cache miss; the cache package owns
// deciding when a fetch happens at all.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Request describes one retrieval. The core treats URL as an opaque fetch
// instruction - connectors own endpoint construction and auth headers.
type Request struct {
	URL    string
	Header http.Header
}

// Fetcher executes a single retrieval attempt. Implementations signal
// retryable conditions with StatusError (5xx) or RateLimitError; any other
// error from the transport itself is treated as retryable too.
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) ([]byte, error)
}

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetching %v: status %d", e.URL, e.Code)
}

// RateLimitError reports an explicit rate-limit signal from the source.
// RetryAfter is the minimum wait the source asked for; zero if it gave no
// hint.
type RateLimitError struct {
	URL        string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("fetching %v: rate limited, retry after %v", e.URL, e.RetryAfter)
}

// Error is the terminal fetch failure returned once retries are exhausted.
type Error struct {
	URL      string
	Attempts int
	Last     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetching %v: giving up after %d attempts: %v", e.URL, e.Attempts, e.Last)
}

// Client wraps a Fetcher with retry and exponential backoff. The zero
// number of attempts and backoff base get sane defaults from NewClient.
type Client struct {
	fetcher     Fetcher
	maxAttempts int
	backoffBase time.Duration
}

// Option is a functional option for NewClient.
type Option func(*Client)

// OptFetcher sets the underlying Fetcher. Default is an HTTPFetcher over
// http.DefaultClient.
func OptFetcher(f Fetcher) Option {
	return func(c *Client) {
		c.fetcher = f
	}
}

// OptMaxAttempts caps the total number of attempts (first try included).
func OptMaxAttempts(n int) Option {
	return func(c *Client) {
		c.maxAttempts = n
	}
}

// OptBackoffBase sets the first retry delay; each further retry doubles it.
func OptBackoffBase(d time.Duration) Option {
	return func(c *Client) {
		c.backoffBase = d
	}
}

// NewClient returns a Client with the options applied.
func NewClient(opts ...Option) *Client {
	c := &Client{
		fetcher:     &HTTPFetcher{},
		maxAttempts: 4,
		backoffBase: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch runs the request until it succeeds, fails a non-retryable way, or
// exhausts the attempt budget. Rate-limit hints stretch the backoff wait
// when they exceed it. Context cancellation aborts the wait.
func (c *Client) Fetch(ctx context.Context, req *Request) ([]byte, error) {
	var last error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			wait := c.backoffBase << uint(attempt-1)
			if rl, ok := errors.Cause(last).(*RateLimitError); ok && rl.RetryAfter > wait {
				wait = rl.RetryAfter
			}
			log.Printf("fetch: attempt %d for %v in %v after: %v", attempt+1, req.URL, wait, last)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		payload, err := c.fetcher.Fetch(ctx, req)
		if err == nil {
			return payload, nil
		}
		if !retryable(err) {
			return nil, err
		}
		last = err
	}
	return nil, &Error{URL: req.URL, Attempts: c.maxAttempts, Last: last}
}

func retryable(err error) bool {
	switch cause := errors.Cause(err).(type) {
	case *RateLimitError:
		return true
	case *StatusError:
		return cause.Code >= 500
	}
	if cause := errors.Cause(err); cause == context.Canceled || cause == context.DeadlineExceeded {
		return false
	}
	// Transport-level failures (timeouts, refused connections) are worth
	// another try.
	return true
}

// HTTPFetcher is the default Fetcher; a GET over a plain *http.Client.
type HTTPFetcher struct {
	// Client to use; nil means http.DefaultClient.
	Client *http.Client
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *Request) ([]byte, error) {
	hc := f.Client
	if hc == nil {
		hc = http.DefaultClient
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}
	resp, err := hc.Do(hreq)
	if err != nil {
		return nil, errors.Wrapf(err, "getting %v", req.URL)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		payload, err := io.ReadAll(resp.Body)
		return payload, errors.Wrapf(err, "reading body from %v", req.URL)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitError{URL: req.URL, RetryAfter: retryAfter(resp.Header)}
	case resp.StatusCode == http.StatusServiceUnavailable && resp.Header.Get("Retry-After") != "":
		return nil, &RateLimitError{URL: req.URL, RetryAfter: retryAfter(resp.Header)}
	default:
		return nil, &StatusError{Code: resp.StatusCode, URL: req.URL}
	}
}

// retryAfter parses a Retry-After header, either delta-seconds or an HTTP
// date. Unparseable or absent values come back as zero.
func retryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		d := time.Until(at)
		if d < 0 {
			return 0
		}
		return d
	}
	return 0
}
