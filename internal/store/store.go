// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/staranto/docsite/internal/fetch"
)

// ErrNotFound is returned by read-only lookups of a generation that does
// not exist.
var ErrNotFound = errors.New("generation not found")

// NotFound wraps ErrNotFound with the generation name.
func NotFound(name string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Storage is the set of cache generations. Implementations are safe for
// concurrent use.
type Storage interface {
	// Open returns the named generation, creating it if needed.
	Open(ctx context.Context, name string) (Generation, error)
	// Lookup returns the named generation without creating it, or an error
	// wrapping ErrNotFound.
	Lookup(ctx context.Context, name string) (Generation, error)
	// Has reports whether the named generation exists.
	Has(ctx context.Context, name string) (bool, error)
	// Delete removes the named generation and all its entries. It reports
	// whether anything was removed.
	Delete(ctx context.Context, name string) (bool, error)
	// Keys lists generation names in creation order.
	Keys(ctx context.Context) ([]string, error)
}

// Generation is one named cache.
type Generation interface {
	Name() string
	// Match returns the stored response for the request identity. The
	// returned response is a fresh copy the caller may consume.
	Match(ctx context.Context, req *fetch.Request) (*fetch.Response, bool, error)
	// Put stores resp under the request identity, replacing any previous
	// entry. The response body is consumed.
	Put(ctx context.Context, req *fetch.Request, resp *fetch.Response) error
	// Delete removes the entry for the request identity.
	Delete(ctx context.Context, req *fetch.Request) (bool, error)
	// Entries lists entry metadata ordered by key.
	Entries(ctx context.Context) ([]Entry, error)
}

// Entry describes a stored response.
type Entry struct {
	Key         string      `json:"key" yaml:"key"`
	Method      string      `json:"method" yaml:"method"`
	URL         string      `json:"url" yaml:"url"`
	Status      int         `json:"status" yaml:"status"`
	Header      http.Header `json:"header,omitempty" yaml:"header,omitempty"`
	ContentType string      `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	Size        int64       `json:"size" yaml:"size"`
	Digest      string      `json:"digest" yaml:"digest"`
	StoredAt    time.Time   `json:"stored_at" yaml:"stored_at"`
}

// NewEntry builds entry metadata for a response body about to be stored.
func NewEntry(req *fetch.Request, resp *fetch.Response, body []byte, now time.Time) Entry {
	return Entry{
		Key:         req.Key(),
		Method:      req.Method,
		URL:         req.URL.String(),
		Status:      resp.Status,
		Header:      resp.Header.Clone(),
		ContentType: resp.Header.Get("Content-Type"),
		Size:        int64(len(body)),
		Digest:      Digest(body),
		StoredAt:    now.UTC(),
	}
}

// Response rebuilds a response for the entry around body.
func (e Entry) Response(body []byte) *fetch.Response {
	return fetch.NewResponse(e.Status, e.Header.Clone(), body)
}

// Digest returns the hex BLAKE2b-256 of body.
func Digest(body []byte) string {
	sum := blake2b.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Size sums entry sizes.
func Size(entries []Entry) int64 {
	var n int64
	for _, e := range entries {
		n += e.Size
	}
	return n
}
