// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/apex/log"
)

// ErrNetwork marks a request that could not be completed by the network.
// HTTP error statuses are not network errors.
var ErrNetwork = errors.New("network error")

// Fetcher performs a request against the origin.
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*Response, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, req *Request) (*Response, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Network fetches over HTTP.
type Network struct {
	client    *http.Client
	userAgent string
}

// NetworkOption customizes a Network.
type NetworkOption func(*Network)

// WithTimeout bounds every request. The default of zero means no timeout.
func WithTimeout(d time.Duration) NetworkOption {
	return func(n *Network) { n.client.Timeout = d }
}

// WithTransport replaces the HTTP transport, e.g. with a file transport
// rooted at a local site directory.
func WithTransport(rt http.RoundTripper) NetworkOption {
	return func(n *Network) { n.client.Transport = rt }
}

// WithUserAgent sets the User-Agent header on outgoing requests.
func WithUserAgent(ua string) NetworkOption {
	return func(n *Network) { n.userAgent = ua }
}

// NewNetwork returns a Network using its own http.Client.
func NewNetwork(opts ...NetworkOption) *Network {
	n := &Network{client: &http.Client{}}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Fetch implements Fetcher. The whole body is read before returning so the
// response can be cloned.
func (n *Network) Fetch(ctx context.Context, req *Request) (*Response, error) {
	hreq, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vv := range req.Header {
		for _, v := range vv {
			hreq.Header.Add(k, v)
		}
	}
	if n.userAgent != "" && hreq.Header.Get("User-Agent") == "" {
		hreq.Header.Set("User-Agent", n.userAgent)
	}

	resp, err := n.client.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNetwork, req.URL, err)
	}
	defer resp.Body.Close()

	var body bytes.Buffer
	if _, err := body.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrNetwork, req.URL, err)
	}
	log.Debugf("network %s -> %d (%d bytes)", req.Key(), resp.StatusCode, body.Len())

	return NewResponse(resp.StatusCode, resp.Header.Clone(), body.Bytes()), nil
}

// Unreachable is a Fetcher for a network that is down.
type Unreachable struct{}

// Fetch implements Fetcher and always fails with ErrNetwork.
func (Unreachable) Fetch(_ context.Context, req *Request) (*Response, error) {
	return nil, fmt.Errorf("%w: %s: offline", ErrNetwork, req.URL)
}
