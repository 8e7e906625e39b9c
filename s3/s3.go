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

// Package s3 fetches flat-file payloads (bulk CSV extracts, Stata files)
// from S3 through the same Fetcher interface the HTTP transport uses, so
// they land in the same cache.
package s3

import (
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"

	"github.com/KR-Labs/krl-data-connectors-sub001/fetch"
)

// Fetcher implements fetch.Fetcher for s3://bucket/key URLs.
type Fetcher struct {
	region string

	sess *session.Session
	svc  *s3.S3
}

// Option is a functional option for NewFetcher.
type Option func(*Fetcher)

// OptRegion sets the AWS region.
func OptRegion(region string) Option {
	return func(f *Fetcher) {
		f.region = region
	}
}

// NewFetcher returns a Fetcher with the options applied.
func NewFetcher(opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		region: "us-east-1",
	}
	for _, opt := range opts {
		opt(f)
	}
	var err error
	f.sess, err = session.NewSession(&aws.Config{Region: aws.String(f.region)})
	if err != nil {
		return nil, errors.Wrap(err, "creating AWS session")
	}
	f.svc = s3.New(f.sess)
	return f, nil
}

// Fetch implements fetch.Fetcher. The request URL must be of the form
// s3://bucket/key.
func (f *Fetcher) Fetch(ctx context.Context, req *fetch.Request) ([]byte, error) {
	bucket, key, err := splitURL(req.URL)
	if err != nil {
		return nil, err
	}
	out, err := f.svc.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "getting s3://%v/%v", bucket, key)
	}
	defer out.Body.Close()
	payload, err := io.ReadAll(out.Body)
	return payload, errors.Wrapf(err, "reading s3://%v/%v", bucket, key)
}

func splitURL(url string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(url, "s3://")
	if !ok {
		return "", "", errors.Errorf("not an s3 URL: %v", url)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", errors.Errorf("s3 URL missing bucket or key: %v", url)
	}
	return bucket, key, nil
}
