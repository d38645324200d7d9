// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package file is a store.Storage on the local filesystem. Each generation
// is a directory named by the hash of its name; each entry is a metadata
// file plus a body file named by the hash of its request identity.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/staranto/docsite/internal/cacheutil"
	"github.com/staranto/docsite/internal/fetch"
	"github.com/staranto/docsite/internal/store"
)

const (
	generationFile = "generation.yaml"
	metaExt        = ".json"
	bodyExt        = ".body"
)

// generationMeta is the content of generation.yaml.
type generationMeta struct {
	Name    string    `yaml:"name"`
	Created time.Time `yaml:"created"`
}

// Storage keeps generations under Root.
type Storage struct {
	Root string

	mu   sync.Mutex
	gens map[string]*generation
	last time.Time
}

// New returns a Storage rooted at root, creating the directory.
func New(root string) (*Storage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil { //nolint:mnd
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Storage{Root: root, gens: map[string]*generation{}}, nil
}

func (s *Storage) dir(name string) string {
	return filepath.Join(s.Root, cacheutil.EncodeKey(name))
}

// stamp returns a strictly increasing creation time so Keys order is stable
// within a process.
func (s *Storage) stamp() time.Time {
	now := time.Now().UTC()
	if !now.After(s.last) {
		now = s.last.Add(time.Nanosecond)
	}
	s.last = now
	return now
}

// Open implements store.Storage.
func (s *Storage) Open(_ context.Context, name string) (store.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g, ok := s.gens[name]; ok {
		if _, err := os.Stat(g.dir); err == nil {
			return g, nil
		}
	}

	dir := s.dir(name)
	g := &generation{name: name, dir: dir}
	if _, err := os.Stat(filepath.Join(dir, generationFile)); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:mnd
			return nil, fmt.Errorf("failed to create generation %s: %w", name, err)
		}
		raw, err := yaml.Marshal(generationMeta{Name: name, Created: s.stamp()})
		if err != nil {
			return nil, err
		}
		if err := atomic.WriteFile(filepath.Join(dir, generationFile), bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("failed to write generation %s: %w", name, err)
		}
		log.Debugf("created generation %s in %s", name, dir)
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat generation %s: %w", name, err)
	}

	s.gens[name] = g
	return g, nil
}

// Lookup implements store.Storage.
func (s *Storage) Lookup(ctx context.Context, name string) (store.Generation, error) {
	ok, err := s.Has(ctx, name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !ok {
		delete(s.gens, name)
		return nil, store.NotFound(name)
	}
	if g, ok := s.gens[name]; ok {
		return g, nil
	}
	g := &generation{name: name, dir: s.dir(name)}
	s.gens[name] = g
	return g, nil
}

// Has implements store.Storage.
func (s *Storage) Has(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.dir(name), generationFile))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat generation %s: %w", name, err)
	}
	return true, nil
}

// Delete implements store.Storage.
func (s *Storage) Delete(ctx context.Context, name string) (bool, error) {
	ok, err := s.Has(ctx, name)
	if err != nil || !ok {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.RemoveAll(s.dir(name)); err != nil {
		return false, fmt.Errorf("failed to delete generation %s: %w", name, err)
	}
	delete(s.gens, name)
	return true, nil
}

// Keys implements store.Storage.
func (s *Storage) Keys(_ context.Context) ([]string, error) {
	dirs, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	var metas []generationMeta
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(s.Root, d.Name(), generationFile))
		if err != nil {
			log.Debugf("skipping %s: %v", d.Name(), err)
			continue
		}
		var m generationMeta
		if err := yaml.Unmarshal(raw, &m); err != nil {
			log.WithError(err).Warnf("corrupt generation metadata in %s", d.Name())
			continue
		}
		metas = append(metas, m)
	}

	sort.SliceStable(metas, func(i, j int) bool {
		if metas[i].Created.Equal(metas[j].Created) {
			return metas[i].Name < metas[j].Name
		}
		return metas[i].Created.Before(metas[j].Created)
	})

	keys := make([]string, 0, len(metas))
	for _, m := range metas {
		keys = append(keys, m.Name)
	}
	return keys, nil
}

type generation struct {
	name string
	dir  string
	mu   sync.RWMutex
}

func (g *generation) Name() string { return g.name }

func (g *generation) paths(req *fetch.Request) (meta, body string) {
	base := filepath.Join(g.dir, cacheutil.EncodeKey(req.Key()))
	return base + metaExt, base + bodyExt
}

func (g *generation) Match(_ context.Context, req *fetch.Request) (*fetch.Response, bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	metaPath, bodyPath := g.paths(req)
	raw, err := os.ReadFile(metaPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var e store.Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false, fmt.Errorf("failed to decode cache entry %s: %w", metaPath, err)
	}
	// Hash collisions are not expected, but the stored key is authoritative.
	if e.Key != req.Key() {
		return nil, false, nil
	}

	body, err := os.ReadFile(bodyPath)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry body: %w", err)
	}
	return e.Response(body), true, nil
}

func (g *generation) Put(_ context.Context, req *fetch.Request, resp *fetch.Response) error {
	body, err := resp.Bytes()
	if err != nil {
		return err
	}
	e := store.NewEntry(req, resp, body, time.Now())
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	metaPath, bodyPath := g.paths(req)
	if err := atomic.WriteFile(bodyPath, bytes.NewReader(body)); err != nil {
		return fmt.Errorf("failed to write to cache: %w", err)
	}
	if err := atomic.WriteFile(metaPath, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("failed to write to cache: %w", err)
	}
	return nil
}

func (g *generation) Delete(_ context.Context, req *fetch.Request) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	metaPath, bodyPath := g.paths(req)
	if err := os.Remove(metaPath); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("failed to delete cache entry: %w", err)
	}
	if err := os.Remove(bodyPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return true, fmt.Errorf("failed to delete cache entry body: %w", err)
	}
	return true, nil
}

func (g *generation) Entries(_ context.Context) ([]store.Entry, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	files, err := os.ReadDir(g.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read generation %s: %w", g.name, err)
	}

	var out []store.Entry
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), metaExt) {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(g.dir, f.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read cache entry: %w", err)
		}
		var e store.Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			log.WithError(err).Warnf("skipping corrupt cache entry %s", f.Name())
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
