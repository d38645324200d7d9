// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"
)

// InstanceRecord is the persisted form of an instance.
type InstanceRecord struct {
	ID          string    `yaml:"id" json:"id"`
	Version     string    `yaml:"version" json:"version"`
	State       State     `yaml:"state" json:"state"`
	InstalledAt time.Time `yaml:"installed_at,omitempty" json:"installed_at,omitempty"`
	ActivatedAt time.Time `yaml:"activated_at,omitempty" json:"activated_at,omitempty"`
}

// Registration is what survives between runs: the active instance and the
// one waiting to replace it.
type Registration struct {
	Active    *InstanceRecord `yaml:"active,omitempty" json:"active,omitempty"`
	Waiting   *InstanceRecord `yaml:"waiting,omitempty" json:"waiting,omitempty"`
	UpdatedAt time.Time       `yaml:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// RegistrationStore persists a Registration.
type RegistrationStore interface {
	// Load returns the zero Registration when nothing was saved.
	Load(ctx context.Context) (Registration, error)
	Save(ctx context.Context, r Registration) error
}

// MemoryRegistrations keeps the registration in memory.
type MemoryRegistrations struct {
	mu  sync.Mutex
	reg Registration
}

// Load implements RegistrationStore.
func (m *MemoryRegistrations) Load(_ context.Context) (Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reg, nil
}

// Save implements RegistrationStore.
func (m *MemoryRegistrations) Save(_ context.Context, r Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reg = r
	return nil
}

// FileRegistrations keeps the registration in a YAML file.
type FileRegistrations struct {
	Path string
}

// Load implements RegistrationStore.
func (f FileRegistrations) Load(_ context.Context) (Registration, error) {
	raw, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return Registration{}, nil
	}
	if err != nil {
		return Registration{}, fmt.Errorf("failed to read registration: %w", err)
	}
	var r Registration
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return Registration{}, fmt.Errorf("failed to parse registration %s: %w", f.Path, err)
	}
	return r, nil
}

// Save implements RegistrationStore.
func (f FileRegistrations) Save(_ context.Context, r Registration) error {
	raw, err := yaml.Marshal(r)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil { //nolint:mnd
		return fmt.Errorf("failed to create registration directory: %w", err)
	}
	if err := atomic.WriteFile(f.Path, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("failed to write registration: %w", err)
	}
	return nil
}
