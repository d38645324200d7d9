// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/apex/log"
	"github.com/sourcegraph/conc"

	"github.com/staranto/docsite/internal/fetch"
)

// Script is the code of a worker instance. A container reinstalls only when
// Version changes.
type Script interface {
	Version() string
	Install(e *InstallEvent)
	Activate(e *ActivateEvent)
	Fetch(e *FetchEvent)
}

// Restorable is implemented by scripts that can tell whether the state a
// previous run installed is still present.
type Restorable interface {
	Installed(ctx context.Context) (bool, error)
}

// Responder produces the response for a fetch event.
type Responder func(ctx context.Context) (*fetch.Response, error)

// ExtendableEvent is the part of every lifecycle event that lets a handler
// extend the event until asynchronous work completes.
type ExtendableEvent struct {
	ctx context.Context

	mu   sync.Mutex
	wg   *conc.WaitGroup
	errs []error
	done bool
}

func newExtendableEvent(ctx context.Context) *ExtendableEvent {
	return &ExtendableEvent{ctx: ctx, wg: conc.NewWaitGroup()}
}

// Context is the context the event was dispatched with.
func (e *ExtendableEvent) Context() context.Context {
	return e.ctx
}

// WaitUntil runs fn and keeps the event open until it returns. It may be
// called again from within fn. An error from any fn fails the event.
func (e *ExtendableEvent) WaitUntil(fn func(ctx context.Context) error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		log.Warn("WaitUntil called after the event was handled; ignoring")
		return
	}
	e.wg.Go(func() {
		if err := fn(e.ctx); err != nil {
			e.mu.Lock()
			e.errs = append(e.errs, err)
			e.mu.Unlock()
		}
	})
}

// wait blocks until every extension finished and returns their joined
// errors. A panicking extension is reported as an error.
func (e *ExtendableEvent) wait() error {
	recovered := e.wg.WaitAndRecover()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.done = true
	errs := e.errs
	if recovered != nil {
		errs = append(errs, recovered.AsError())
	}
	return errors.Join(errs...)
}

// InstallEvent is dispatched once to a newly registered instance.
type InstallEvent struct {
	*ExtendableEvent
	skipWaiting bool
}

// SkipWaiting lets the instance activate as soon as it is installed, even
// while an older instance still controls pages.
func (e *InstallEvent) SkipWaiting() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.skipWaiting = true
}

func (e *InstallEvent) skipped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.skipWaiting
}

// ActivateEvent is dispatched when an instance becomes the active one.
type ActivateEvent struct {
	*ExtendableEvent
	claim bool
}

// Claim makes the instance the controller of every open page once
// activation completes, including pages no worker controlled.
func (e *ActivateEvent) Claim() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.claim = true
}

func (e *ActivateEvent) claimed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.claim
}

// FetchEvent is dispatched for every request from a controlled page.
type FetchEvent struct {
	*ExtendableEvent
	Request *fetch.Request

	respond Responder
}

// RespondWith supplies the response. Without it the request goes to the
// network as if no worker were installed. Only the first call counts.
func (e *FetchEvent) RespondWith(r Responder) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.respond != nil {
		log.Warnf("RespondWith called twice for %s; ignoring", e.Request.Key())
		return
	}
	e.respond = r
}

func (e *FetchEvent) responder() Responder {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.respond
}

// dispatch runs a handler, turning a panic into an error.
func dispatch(name string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s handler panicked: %v", name, r)
		}
	}()
	fn()
	return nil
}
