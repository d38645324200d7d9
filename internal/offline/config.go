// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package offline

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	// DefaultVersion names the cache generation when none is configured.
	DefaultVersion = "v1.8"
	// DefaultFallbackBody is the text of the synthetic offline response.
	DefaultFallbackBody = "Offline page goes here"
	// DefaultFallbackNavigation is served to navigations the network and
	// the cache cannot answer.
	DefaultFallbackNavigation = "/"
	// DefaultConcurrency bounds install fetches.
	DefaultConcurrency = 4
)

// DefaultResources is the resource list of the site shell.
var DefaultResources = []string{
	"/",
	"/index.html",
	"/assets/css/main.css",
	"/assets/js/main.js",
	"/assets/images/goofy72x72.png",
	"/assets/images/goofy128x128.png",
	"/assets/images/goofy144x144.png",
	"/assets/images/goofy192x192.png",
	"/assets/images/goofy512x512.png",
}

// Config drives a Manager.
type Config struct {
	// Version names the current generation. Changing it is how a new
	// release invalidates the cache.
	Version string
	// Scope resolves relative resource URLs.
	Scope *url.URL
	// Resources is precached at install, in order.
	Resources []string
	// FallbackBody is the body of the offline response.
	FallbackBody string
	// FallbackNavigation is the cached document offered to navigations
	// when offline.
	FallbackNavigation string
	// Concurrency bounds install fetches. Zero means DefaultConcurrency.
	Concurrency int
}

func (c Config) withDefaults() Config {
	if c.Version == "" {
		c.Version = DefaultVersion
	}
	if c.Resources == nil {
		c.Resources = DefaultResources
	}
	if c.FallbackBody == "" {
		c.FallbackBody = DefaultFallbackBody
	}
	if c.FallbackNavigation == "" {
		c.FallbackNavigation = DefaultFallbackNavigation
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	return c
}

// resolve turns the resource list into absolute URLs against the scope,
// dropping duplicates and keeping the first occurrence.
func (c Config) resolve() ([]*url.URL, error) {
	seen := map[string]bool{}
	var out []*url.URL
	for _, raw := range c.Resources {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid resource %q: %w", raw, err)
		}
		if c.Scope != nil {
			u = c.Scope.ResolveReference(u)
		}
		if !u.IsAbs() {
			return nil, fmt.Errorf("resource %q is relative and no scope is set", raw)
		}
		u.Fragment = ""
		if seen[u.String()] {
			continue
		}
		seen[u.String()] = true
		out = append(out, u)
	}
	return out, nil
}

// ManifestResources reads a web app manifest and returns its start_url and
// icon sources.
func ManifestResources(raw []byte) ([]string, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("manifest is not valid json")
	}
	var out []string
	doc := gjson.ParseBytes(raw)
	if start := doc.Get("start_url"); start.Exists() && start.String() != "" {
		out = append(out, start.String())
	}
	for _, src := range doc.Get("icons.#.src").Array() {
		if src.String() != "" {
			out = append(out, src.String())
		}
	}
	return out, nil
}

// LoadManifest is ManifestResources for a file.
func LoadManifest(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	res, err := ManifestResources(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}
