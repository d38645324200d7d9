// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/staranto/docsite/internal/fetch"
)

// Memory is a Storage that lives for the process lifetime.
type Memory struct {
	mu    sync.RWMutex
	order []string
	gens  map[string]*memoryGeneration
	now   func() time.Time
}

// NewMemory returns an empty in-memory storage.
func NewMemory() *Memory {
	return &Memory{gens: map[string]*memoryGeneration{}, now: time.Now}
}

// Open implements Storage.
func (m *Memory) Open(_ context.Context, name string) (Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.gens[name]; ok {
		return g, nil
	}
	g := &memoryGeneration{name: name, entries: map[string]memoryEntry{}, now: m.now}
	m.gens[name] = g
	m.order = append(m.order, name)
	return g, nil
}

// Lookup implements Storage.
func (m *Memory) Lookup(_ context.Context, name string) (Generation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.gens[name]
	if !ok {
		return nil, NotFound(name)
	}
	return g, nil
}

// Has implements Storage.
func (m *Memory) Has(_ context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.gens[name]
	return ok, nil
}

// Delete implements Storage.
func (m *Memory) Delete(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.gens[name]; !ok {
		return false, nil
	}
	delete(m.gens, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// Keys implements Storage.
func (m *Memory) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...), nil
}

type memoryEntry struct {
	meta Entry
	body []byte
}

type memoryGeneration struct {
	name    string
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func (g *memoryGeneration) Name() string { return g.name }

func (g *memoryGeneration) Match(_ context.Context, req *fetch.Request) (*fetch.Response, bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.entries[req.Key()]
	if !ok {
		return nil, false, nil
	}
	body := make([]byte, len(e.body))
	copy(body, e.body)
	return e.meta.Response(body), true, nil
}

func (g *memoryGeneration) Put(_ context.Context, req *fetch.Request, resp *fetch.Response) error {
	body, err := resp.Bytes()
	if err != nil {
		return err
	}
	e := memoryEntry{meta: NewEntry(req, resp, body, g.now()), body: body}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries[e.meta.Key] = e
	return nil
}

func (g *memoryGeneration) Delete(_ context.Context, req *fetch.Request) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.entries[req.Key()]; !ok {
		return false, nil
	}
	delete(g.entries, req.Key())
	return true, nil
}

func (g *memoryGeneration) Entries(_ context.Context) ([]Entry, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Entry, 0, len(g.entries))
	for _, e := range g.entries {
		out = append(out, e.meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
