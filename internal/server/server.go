// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"

	"github.com/staranto/docsite/internal/fetch"
)

// CookieName holds the page (client) id.
const CookieName = "docsite_client"

// Server adapts a container to net/http. A navigation carrying the page
// cookie attaches that page to the active worker.
type Server struct {
	host  fetch.Fetcher
	scope *url.URL
}

// New returns a Server resolving request paths against scope. host is
// normally a *container.Container.
func New(host fetch.Fetcher, scope *url.URL) *Server {
	return &Server{host: host, scope: scope}
}

// IsNavigation reports whether r is a full document load.
func IsNavigation(r *http.Request) bool {
	if mode := r.Header.Get("Sec-Fetch-Mode"); mode != "" {
		return mode == "navigate"
	}
	return r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/html")
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	req := s.request(r)
	if req.IsNavigation() {
		req.ClientID = s.client(w, r)
	}

	resp, err := s.host.Fetch(r.Context(), req)
	if err != nil {
		log.WithError(err).WithField("request", req.Key()).Error("fetch failed")
		http.Error(w, fmt.Sprintf("docsite: %v", err), http.StatusBadGateway)
		return
	}

	body, err := resp.Bytes()
	if err != nil {
		log.WithError(err).WithField("request", req.Key()).Error("response body unavailable")
		http.Error(w, "docsite: response body unavailable", http.StatusBadGateway)
		return
	}

	for k, vv := range resp.Header {
		if strings.EqualFold(k, "Content-Length") {
			continue
		}
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(resp.Status)
	if r.Method != http.MethodHead {
		if _, err := w.Write(body); err != nil {
			log.WithError(err).Debug("client went away")
		}
	}

	log.WithFields(log.Fields{
		"status":  resp.Status,
		"source":  resp.Header.Get("X-Docsite-Cache"),
		"elapsed": time.Since(start).Round(time.Millisecond),
	}).Debug(req.String())
}

func (s *Server) request(r *http.Request) *fetch.Request {
	ref := &url.URL{Path: r.URL.Path, RawQuery: r.URL.RawQuery}
	u := s.scope.ResolveReference(ref)

	header := r.Header.Clone()
	header.Del("Cookie")

	req := &fetch.Request{Method: r.Method, URL: u, Header: header}
	if IsNavigation(r) {
		req.Mode = fetch.ModeNavigate
	}
	if id, ok := cookieID(r); ok {
		req.ClientID = id
	}
	return req
}

// cookieID returns the page id carried by r when it is one this server
// could have minted.
func cookieID(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return "", false
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return "", false
	}
	return c.Value, true
}

// client returns the id of the page behind a navigation, minting one when
// the browser has none.
func (s *Server) client(w http.ResponseWriter, r *http.Request) string {
	id, ok := cookieID(r)
	if !ok {
		id = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     CookieName,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return id
}

// ListenAndServe serves h on addr until ctx is cancelled, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second, //nolint:mnd
	}

	errc := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second) //nolint:mnd
		defer cancel()
		return srv.Shutdown(shutdown)
	}
}
