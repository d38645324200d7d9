// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package container hosts worker instances: it registers them, drives them
// through install and activation, routes page requests to the instance
// controlling each page, and persists the registration between runs.
//
// Worker code only sees events. Work a handler starts asynchronously must be
// handed to WaitUntil; the container does not consider an event handled
// until that work has finished.
package container
