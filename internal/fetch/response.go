// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
)

// ErrBodyUsed is returned when a response body is read or cloned after it
// has already been consumed.
var ErrBodyUsed = errors.New("response body already used")

// Response is a response whose body can be consumed exactly once. Returning
// a response to a page and persisting it requires an explicit Clone.
type Response struct {
	Status int
	Header http.Header

	mu   sync.Mutex
	body []byte
	used bool
}

// NewResponse wraps body in a single-use response.
func NewResponse(status int, header http.Header, body []byte) *Response {
	if header == nil {
		header = http.Header{}
	}
	return &Response{Status: status, Header: header, body: body}
}

// Offline builds the synthetic response returned when neither the cache nor
// the network can answer.
func Offline(text string) *Response {
	h := http.Header{}
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Content-Length", strconv.Itoa(len(text)))
	return NewResponse(http.StatusServiceUnavailable, h, []byte(text))
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// BodyUsed reports whether the body has been consumed.
func (r *Response) BodyUsed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.used
}

// Bytes consumes the body and returns it.
func (r *Response) Bytes() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.used {
		return nil, ErrBodyUsed
	}
	r.used = true
	b := r.body
	r.body = nil
	return b, nil
}

// Body consumes the body and returns it as a reader.
func (r *Response) Body() (io.ReadCloser, error) {
	b, err := r.Bytes()
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

// Clone duplicates the response, body included. The two copies share no
// state.
func (r *Response) Clone() (*Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.used {
		return nil, ErrBodyUsed
	}
	body := make([]byte, len(r.body))
	copy(body, r.body)
	return &Response{
		Status: r.Status,
		Header: r.Header.Clone(),
		body:   body,
	}, nil
}

// Len returns the body length, or -1 once consumed.
func (r *Response) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.used {
		return -1
	}
	return len(r.body)
}
