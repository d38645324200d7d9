// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Mode distinguishes full document loads from subresource loads.
type Mode int

const (
	// ModeResource is any request that is not a document load.
	ModeResource Mode = iota
	// ModeNavigate is a full document load.
	ModeNavigate
)

func (m Mode) String() string {
	if m == ModeNavigate {
		return "navigate"
	}
	return "resource"
}

// Request is an outgoing request from a page. Its identity within a cache
// generation is the method plus the absolute URL without fragment.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
	Mode   Mode
	// ClientID names the page that issued the request, if known.
	ClientID string
}

// NewRequest builds a request for rawURL resolved against base. A nil base
// requires rawURL to be absolute.
func NewRequest(method string, base *url.URL, rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse url %q: %w", rawURL, err)
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("url %q is not absolute", u)
	}
	if method == "" {
		method = http.MethodGet
	}
	return &Request{
		Method: strings.ToUpper(method),
		URL:    u,
		Header: http.Header{},
	}, nil
}

// MustRequest is NewRequest for literals known to be valid.
func MustRequest(method string, base *url.URL, rawURL string) *Request {
	r, err := NewRequest(method, base, rawURL)
	if err != nil {
		panic(err)
	}
	return r
}

// Key returns the request identity.
func (r *Request) Key() string {
	return r.Method + " " + r.normalizedURL()
}

// IsNavigation reports whether the request is a full document load.
func (r *Request) IsNavigation() bool {
	return r.Mode == ModeNavigate
}

// WithURL returns a copy of r aimed at u, keeping method, mode and client.
func (r *Request) WithURL(u *url.URL) *Request {
	c := *r
	c.URL = u
	c.Header = r.Header.Clone()
	return &c
}

func (r *Request) normalizedURL() string {
	u := *r.URL
	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

func (r *Request) String() string {
	return fmt.Sprintf("%s (%s)", r.Key(), r.Mode)
}
