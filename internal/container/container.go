// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/staranto/docsite/internal/fetch"
)

// ErrInstall is returned by Register when the install handler failed. The
// previously active instance, if any, keeps serving.
var ErrInstall = errors.New("installation failed")

// Instance is one registered copy of a Script.
type Instance struct {
	ID      string
	Version string

	script Script

	mu          sync.Mutex
	state       State
	installedAt time.Time
	activatedAt time.Time
}

// State returns the current lifecycle state.
func (i *Instance) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

func (i *Instance) setState(s State, now time.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.state = s
	switch s {
	case StateInstalled:
		i.installedAt = now
	case StateActivated:
		i.activatedAt = now
	}
}

func (i *Instance) record() *InstanceRecord {
	if i == nil {
		return nil
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	return &InstanceRecord{
		ID:          i.ID,
		Version:     i.Version,
		State:       i.state,
		InstalledAt: i.installedAt,
		ActivatedAt: i.activatedAt,
	}
}

func (i *Instance) String() string {
	return fmt.Sprintf("%s@%s (%s)", i.Version, i.ID, i.State())
}

// Client is an open page.
type Client struct {
	ID          string
	Controller  string // version of the controlling instance, empty if none
	ConnectedAt time.Time
}

type client struct {
	id          string
	controller  *Instance
	connectedAt time.Time
}

// Container hosts worker instances.
type Container struct {
	network       fetch.Fetcher
	registrations RegistrationStore
	now           func() time.Time

	// lifecycle serializes install and activation.
	lifecycle sync.Mutex

	mu      sync.RWMutex
	active  *Instance
	waiting *Instance
	clients map[string]*client

	inflight *conc.WaitGroup
}

// Option customizes a Container.
type Option func(*Container)

// WithRegistrations persists the registration. The default keeps it in
// memory.
func WithRegistrations(r RegistrationStore) Option {
	return func(c *Container) { c.registrations = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Container) { c.now = now }
}

// New returns a Container that sends unhandled requests to network.
func New(network fetch.Fetcher, opts ...Option) *Container {
	c := &Container{
		network:       network,
		registrations: &MemoryRegistrations{},
		now:           time.Now,
		clients:       map[string]*client{},
		inflight:      conc.NewWaitGroup(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Active returns the active instance, or nil.
func (c *Container) Active() *Instance {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// Waiting returns the installed instance waiting to activate, or nil.
func (c *Container) Waiting() *Instance {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.waiting
}

// Clients returns a snapshot of open pages ordered by id.
func (c *Container) Clients() []Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Client, 0, len(c.clients))
	for _, cl := range c.clients {
		out = append(out, cl.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (cl *client) snapshot() Client {
	s := Client{ID: cl.id, ConnectedAt: cl.connectedAt}
	if cl.controller != nil {
		s.Controller = cl.controller.Version
	}
	return s
}

// Registration returns the persisted registration.
func (c *Container) Registration(ctx context.Context) (Registration, error) {
	return c.registrations.Load(ctx)
}

// Register installs script unless the active instance already runs the same
// version. It returns the instance now responsible for the version, which is
// either active or waiting.
func (c *Container) Register(ctx context.Context, script Script) (*Instance, error) {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if inst, err := c.restore(ctx, script); err != nil || inst != nil {
		return inst, err
	}

	if active := c.Active(); active != nil && active.Version == script.Version() {
		log.Debugf("version %s already active", script.Version())
		return active, nil
	}
	if waiting := c.Waiting(); waiting != nil && waiting.Version == script.Version() {
		log.Debugf("version %s already waiting", script.Version())
		return waiting, nil
	}

	inst := &Instance{ID: uuid.NewString(), Version: script.Version(), script: script, state: StateInstalling}
	log.WithField("instance", inst.ID).Infof("installing %s", inst.Version)

	ev := &InstallEvent{ExtendableEvent: newExtendableEvent(ctx)}
	err := dispatch("install", func() { script.Install(ev) })
	err = errors.Join(err, ev.wait())
	if err != nil {
		inst.setState(StateRedundant, c.now())
		log.WithError(err).Errorf("install of %s failed", inst.Version)
		return nil, fmt.Errorf("%w: %s: %w", ErrInstall, inst.Version, err)
	}
	inst.setState(StateInstalled, c.now())

	c.mu.Lock()
	active := c.active
	activateNow := ev.skipped() || active == nil || c.controlledLocked(active) == 0
	if !activateNow {
		if c.waiting != nil {
			c.waiting.setState(StateRedundant, c.now())
		}
		c.waiting = inst
	}
	c.mu.Unlock()

	if activateNow {
		c.activate(ctx, inst)
	} else {
		log.Infof("%s installed; waiting for %d page(s) of %s to close", inst.Version, c.controlled(active), active.Version)
	}

	return inst, c.save(ctx)
}

// restore rebuilds the in-memory state from the persisted registration the
// first time a script registers in this process.
func (c *Container) restore(ctx context.Context, script Script) (*Instance, error) {
	if c.Active() != nil || c.Waiting() != nil {
		return nil, nil
	}
	reg, err := c.registrations.Load(ctx)
	if err != nil {
		return nil, err
	}

	var rec *InstanceRecord
	switch {
	case reg.Active != nil && reg.Active.Version == script.Version():
		rec = reg.Active
	case reg.Waiting != nil && reg.Waiting.Version == script.Version():
		rec = reg.Waiting
	default:
		return nil, nil
	}

	if r, ok := script.(Restorable); ok {
		installed, err := r.Installed(ctx)
		if err != nil {
			return nil, err
		}
		if !installed {
			log.Warnf("registered version %s lost its cache; reinstalling", rec.Version)
			return nil, nil
		}
	}

	inst := &Instance{
		ID:          rec.ID,
		Version:     rec.Version,
		script:      script,
		state:       StateInstalled,
		installedAt: rec.InstalledAt,
		activatedAt: rec.ActivatedAt,
	}

	if rec == reg.Active {
		inst.state = StateActivated
		c.mu.Lock()
		c.active = inst
		c.mu.Unlock()
		log.Debugf("restored active %s", inst)
		return inst, nil
	}

	// A waiting instance from an earlier run has no pages holding it back.
	log.Debugf("restored waiting %s; activating", inst)
	c.activate(ctx, inst)
	return inst, c.save(ctx)
}

// activate makes inst the active instance. Failures of the activate handler
// are logged; activation still completes.
func (c *Container) activate(ctx context.Context, inst *Instance) {
	inst.setState(StateActivating, c.now())
	log.WithField("instance", inst.ID).Infof("activating %s", inst.Version)

	ev := &ActivateEvent{ExtendableEvent: newExtendableEvent(ctx)}
	err := dispatch("activate", func() { inst.script.Activate(ev) })
	if err = errors.Join(err, ev.wait()); err != nil {
		log.WithError(err).Errorf("activate handler of %s failed", inst.Version)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.active
	if prev != nil && prev != inst {
		prev.setState(StateRedundant, c.now())
	}
	if c.waiting == inst {
		c.waiting = nil
	}
	inst.setState(StateActivated, c.now())
	c.active = inst

	claim := ev.claimed()
	for _, cl := range c.clients {
		if (prev != nil && cl.controller == prev) || (claim && cl.controller == nil) {
			cl.controller = inst
		}
	}
}

// Unregister drops every instance. Open pages become uncontrolled.
func (c *Container) Unregister(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	for _, inst := range []*Instance{c.active, c.waiting} {
		if inst != nil {
			inst.setState(StateRedundant, c.now())
		}
	}
	c.active, c.waiting = nil, nil
	for _, cl := range c.clients {
		cl.controller = nil
	}
	c.mu.Unlock()

	return c.registrations.Save(ctx, Registration{UpdatedAt: c.now().UTC()})
}

// Connect opens a page. A new page is controlled by the active instance.
func (c *Container) Connect(id string) Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(id).snapshot()
}

func (c *Container) connectLocked(id string) *client {
	cl, ok := c.clients[id]
	if !ok {
		cl = &client{id: id, connectedAt: c.now()}
		c.clients[id] = cl
	}
	cl.controller = c.active
	return cl
}

// Disconnect closes a page. Closing the last page of the active instance
// lets a waiting instance activate.
func (c *Container) Disconnect(ctx context.Context, id string) error {
	c.mu.Lock()
	delete(c.clients, id)
	promote := c.waiting != nil && (c.active == nil || c.controlledLocked(c.active) == 0)
	c.mu.Unlock()

	if !promote {
		return nil
	}

	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	waiting := c.Waiting()
	if waiting == nil {
		return nil
	}
	c.activate(ctx, waiting)
	return c.save(ctx)
}

func (c *Container) controlled(inst *Instance) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.controlledLocked(inst)
}

func (c *Container) controlledLocked(inst *Instance) int {
	n := 0
	for _, cl := range c.clients {
		if cl.controller == inst {
			n++
		}
	}
	return n
}

// Fetch answers a page request. Navigations are handled by the active
// instance and (re)attach the page to it; other requests go to the page's
// controller. A page id the container has never seen, such as one opened
// before a restart, is attached to the active instance. Without a
// controller, or when the controller does not respond, the network answers.
func (c *Container) Fetch(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
	c.mu.Lock()
	var ctrl *Instance
	if req.IsNavigation() {
		ctrl = c.active
		if req.ClientID != "" {
			c.connectLocked(req.ClientID)
		}
	} else if cl, ok := c.clients[req.ClientID]; ok {
		ctrl = cl.controller
	} else if req.ClientID != "" && c.active != nil {
		ctrl = c.connectLocked(req.ClientID).controller
	}
	c.mu.Unlock()

	if ctrl == nil {
		return c.network.Fetch(ctx, req)
	}

	ev := &FetchEvent{ExtendableEvent: newExtendableEvent(ctx), Request: req}
	if err := dispatch("fetch", func() { ctrl.script.Fetch(ev) }); err != nil {
		log.WithError(err).Errorf("fetch handler of %s failed for %s", ctrl.Version, req.Key())
	}
	c.inflight.Go(func() {
		if err := ev.wait(); err != nil {
			log.WithError(err).Errorf("fetch extension of %s failed for %s", ctrl.Version, req.Key())
		}
	})

	respond := ev.responder()
	if respond == nil {
		return c.network.Fetch(ctx, req)
	}
	return respond(ctx)
}

// Close waits for outstanding fetch event extensions.
func (c *Container) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Container) save(ctx context.Context) error {
	c.mu.RLock()
	reg := Registration{
		Active:    c.active.record(),
		Waiting:   c.waiting.record(),
		UpdatedAt: c.now().UTC(),
	}
	c.mu.RUnlock()
	if err := c.registrations.Save(ctx, reg); err != nil {
		return fmt.Errorf("failed to save registration: %w", err)
	}
	return nil
}
