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

// Package cache is a disk-backed store for raw connector payloads, keyed by
// request fingerprint. Each entry is a payload file plus a JSON metadata
// sidecar; both are written to a temp path and renamed into place so a
// concurrent reader (even in another process sharing the cache directory)
// sees either the old complete entry or the new one, never a torn file.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	kdc "github.com/KR-Labs/krl-data-connectors-sub001"
)

// DefaultTTL may be passed to GetOrFetch to use the TTL the Cache was
// configured with.
const DefaultTTL = time.Duration(-1)

// ErrStore marks a failure to persist a freshly fetched payload. GetOrFetch
// returns the payload alongside an error wrapping ErrStore in that case -
// the data is good, the cache just couldn't keep it.
var ErrStore = errors.New("storing cache entry")

// Meta is the sidecar metadata stored next to each payload.
type Meta struct {
	SourceID   string    `json:"source_id"`
	CreatedAt  time.Time `json:"created_at"`
	TTLSeconds int64     `json:"ttl_seconds"`
	Checksum   string    `json:"checksum"`
}

// Cache maps fingerprints to payload files under a single directory.
// It is safe for concurrent use.
type Cache struct {
	dir        string
	defaultTTL time.Duration
	now        func() time.Time

	group singleflight.Group
}

// Option is a functional option for New.
type Option func(*Cache)

// OptDefaultTTL sets the TTL used when GetOrFetch is called with DefaultTTL.
// Zero means entries never expire.
func OptDefaultTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.defaultTTL = ttl
	}
}

// OptClock overrides the wall clock, for tests.
func OptClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates the cache directory if needed and returns a Cache over it.
func New(dir string, opts ...Option) (*Cache, error) {
	c := &Cache{
		dir: dir,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Wrap(err, "making cache directory")
	}
	return c, nil
}

// GetOrFetch returns the cached payload for fp if a valid unexpired entry
// exists, otherwise calls fetchFn, persists the result, and returns it.
// Concurrent callers for the same fingerprint share a single fetchFn
// invocation. A ttl of zero caches indefinitely; DefaultTTL uses the
// configured default. A fetchFn failure is returned as-is and nothing is
// written. If the fetch succeeds but persisting fails, the payload is
// returned together with an error wrapping ErrStore.
func (c *Cache) GetOrFetch(fp kdc.Fingerprint, sourceID string, ttl time.Duration, fetchFn func() ([]byte, error)) ([]byte, error) {
	if ttl == DefaultTTL {
		ttl = c.defaultTTL
	}
	if payload, ok := c.read(fp); ok {
		return payload, nil
	}
	type fetched struct {
		payload  []byte
		storeErr error
	}
	v, err, _ := c.group.Do(string(fp), func() (interface{}, error) {
		// A waiter that piled up behind an earlier miss may find the
		// entry already written.
		if payload, ok := c.read(fp); ok {
			return fetched{payload: payload}, nil
		}
		payload, err := fetchFn()
		if err != nil {
			return nil, err
		}
		return fetched{payload: payload, storeErr: c.store(fp, sourceID, ttl, payload)}, nil
	})
	if err != nil {
		return nil, err
	}
	f := v.(fetched)
	if f.storeErr != nil {
		return f.payload, errors.Wrap(ErrStore, f.storeErr.Error())
	}
	return f.payload, nil
}

// Invalidate removes the entry for fp. Removing an absent entry is a no-op.
func (c *Cache) Invalidate(fp kdc.Fingerprint) error {
	var errs kdc.Errors
	for _, path := range []string{c.payloadPath(fp), c.metaPath(fp)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, errors.Wrapf(err, "removing %v", path))
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Stat returns the sidecar metadata for fp, or an error satisfying
// os.IsNotExist if there is no entry.
func (c *Cache) Stat(fp kdc.Fingerprint) (*Meta, error) {
	raw, err := os.ReadFile(c.metaPath(fp))
	if err != nil {
		return nil, err
	}
	var m Meta
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errors.Wrap(err, "decoding cache metadata")
	}
	return &m, nil
}

// read returns the payload for fp if the entry is present, unexpired, and
// passes its checksum. Any corruption is logged, the entry is dropped, and
// the read reports a miss.
func (c *Cache) read(fp kdc.Fingerprint) ([]byte, bool) {
	m, err := c.Stat(fp)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("cache: dropping unreadable entry %v: %v", fp, err)
			c.Invalidate(fp)
		}
		return nil, false
	}
	if m.TTLSeconds > 0 && c.now().After(m.CreatedAt.Add(time.Duration(m.TTLSeconds)*time.Second)) {
		c.Invalidate(fp)
		return nil, false
	}
	payload, err := os.ReadFile(c.payloadPath(fp))
	if err != nil {
		log.Printf("cache: dropping entry with unreadable payload %v: %v", fp, err)
		c.Invalidate(fp)
		return nil, false
	}
	if checksum(payload) != m.Checksum {
		log.Printf("cache: checksum mismatch for %v, refetching", fp)
		c.Invalidate(fp)
		return nil, false
	}
	return payload, true
}

// store persists payload and its sidecar. The payload is renamed into place
// before the sidecar: a reader pairing a new sidecar with an old payload is
// impossible, and the reverse pairing fails the checksum and reads as a
// miss.
func (c *Cache) store(fp kdc.Fingerprint, sourceID string, ttl time.Duration, payload []byte) error {
	ttlSec := int64(ttl / time.Second)
	if ttl > 0 && ttl%time.Second != 0 {
		// Round a fractional TTL up; truncating a sub-second TTL to zero
		// would flip it to cache-forever.
		ttlSec++
	}
	m := Meta{
		SourceID:   sourceID,
		CreatedAt:  c.now().UTC(),
		TTLSeconds: ttlSec,
		Checksum:   checksum(payload),
	}
	raw, err := json.Marshal(&m)
	if err != nil {
		return errors.Wrap(err, "encoding cache metadata")
	}
	if err := writeAtomic(c.payloadPath(fp), payload); err != nil {
		return errors.Wrap(err, "writing payload")
	}
	if err := writeAtomic(c.metaPath(fp), raw); err != nil {
		return errors.Wrap(err, "writing metadata")
	}
	return nil
}

// writeAtomic writes to a uniquely named temp file in the target directory
// and renames it over path. Unique temp names keep two processes racing on
// the same entry from interleaving writes; whichever rename lands last wins
// with a complete file.
func writeAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0600); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func checksum(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func (c *Cache) payloadPath(fp kdc.Fingerprint) string {
	return filepath.Join(c.dir, string(fp)+".payload")
}

func (c *Cache) metaPath(fp kdc.Fingerprint) string {
	return filepath.Join(c.dir, string(fp)+".meta.json")
}
