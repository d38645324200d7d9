// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/apex/log"
	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/urfave/cli/v3"

	"github.com/staranto/docsite/internal/aws"
	"github.com/staranto/docsite/internal/cacheutil"
	"github.com/staranto/docsite/internal/config"
	"github.com/staranto/docsite/internal/container"
	"github.com/staranto/docsite/internal/fetch"
	"github.com/staranto/docsite/internal/offline"
	"github.com/staranto/docsite/internal/store"
	"github.com/staranto/docsite/internal/store/file"
	s3store "github.com/staranto/docsite/internal/store/s3"
	"github.com/staranto/docsite/internal/version"
)

const (
	generationsDir   = "generations"
	registrationFile = "registration.yaml"
	s3MaxAttempts    = 5
)

// Runtime is everything a command needs to run the worker: the storage, the
// network, the worker script and the container hosting it.
type Runtime struct {
	Scope     *url.URL
	Storage   store.Storage
	Network   fetch.Fetcher
	Manager   *offline.Manager
	Container *container.Container
}

// NewRuntime assembles a Runtime from the command's flags and the config
// file. Nothing is installed yet.
func NewRuntime(ctx context.Context, cmd *cli.Command) (*Runtime, error) {
	scope, err := url.Parse(cmd.String("scope"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse scope: %w", err)
	}

	storage, err := NewStorage(ctx, cmd)
	if err != nil {
		return nil, err
	}

	network := NewNetwork(cmd)

	resources, err := resourceList(cmd)
	if err != nil {
		return nil, err
	}

	body, _ := config.GetString("fallback.body", offline.DefaultFallbackBody)
	nav, _ := config.GetString("fallback.navigation", offline.DefaultFallbackNavigation)

	mgr, err := offline.New(offline.Config{
		Version:            cmd.String("cache-version"),
		Scope:              scope,
		Resources:          resources,
		FallbackBody:       body,
		FallbackNavigation: nav,
		Concurrency:        int(cmd.Int("concurrency")),
	}, storage, network)
	if err != nil {
		return nil, err
	}

	host := container.New(network, container.WithRegistrations(registrations(cmd)))

	return &Runtime{
		Scope:     scope,
		Storage:   storage,
		Network:   network,
		Manager:   mgr,
		Container: host,
	}, nil
}

// Start registers the worker, which restores a previous install or installs
// and activates the configured version.
func (rt *Runtime) Start(ctx context.Context) (*container.Instance, error) {
	return rt.Container.Register(ctx, rt.Manager)
}

// Close waits for outstanding fetch work.
func (rt *Runtime) Close(ctx context.Context) error {
	return rt.Container.Close(ctx)
}

// NewStorage opens the storage backend selected by --storage. The file
// backend falls back to memory when the on-disk cache is disabled.
func NewStorage(ctx context.Context, cmd *cli.Command) (store.Storage, error) {
	switch cmd.String("storage") {
	case "memory":
		return store.NewMemory(), nil
	case "s3":
		var opts []aws.Option
		if p := cmd.String("profile"); p != "" {
			opts = append(opts, aws.WithProfile(p))
		}
		if r := cmd.String("region"); r != "" {
			opts = append(opts, aws.WithRegion(r))
		}
		opts = append(opts, aws.WithRetryer(func() awsv2.Retryer {
			return retry.AddWithMaxAttempts(retry.NewStandard(), s3MaxAttempts)
		}))
		awsCfg, err := aws.LoadAWSConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load aws config: %w", err)
		}
		endpoint := cmd.String("endpoint")
		client := aws.NewS3(awsCfg, aws.WithS3Endpoint(endpoint, endpoint != ""))
		return s3store.New(client, cmd.String("bucket"), cmd.String("prefix"))
	default:
		dir := cacheDir(cmd)
		if dir == "" {
			log.Warn("on-disk cache disabled; generations are kept in memory")
			return store.NewMemory(), nil
		}
		return file.New(filepath.Join(dir, generationsDir))
	}
}

// NewNetwork returns the fetcher misses go to: the local --root directory,
// the real network, or nothing at all with --offline.
func NewNetwork(cmd *cli.Command) fetch.Fetcher {
	if cmd.Bool("offline") {
		return fetch.Unreachable{}
	}
	opts := []fetch.NetworkOption{
		fetch.WithUserAgent(version.UserAgent()),
		fetch.WithTimeout(cmd.Duration("timeout")),
	}
	if root := cmd.String("root"); root != "" {
		opts = append(opts, fetch.WithTransport(http.NewFileTransport(http.Dir(root))))
	}
	return fetch.NewNetwork(opts...)
}

// resourceList is the configured resource list plus whatever the manifest
// adds. An empty result selects offline.DefaultResources.
func resourceList(cmd *cli.Command) ([]string, error) {
	resources, _ := config.GetStringSlice("resources")
	if path := cmd.String("manifest"); path != "" {
		extra, err := offline.LoadManifest(path)
		if err != nil {
			return nil, err
		}
		if len(resources) == 0 {
			resources = append(resources, offline.DefaultResources...)
		}
		resources = append(resources, extra...)
	}
	return resources, nil
}

// registrations keeps the registration next to the file storage. Memory
// storage does not survive the process, so neither does its registration.
func registrations(cmd *cli.Command) container.RegistrationStore {
	dir := cacheDir(cmd)
	if dir == "" || cmd.String("storage") == "memory" {
		return &container.MemoryRegistrations{}
	}
	if cmd.String("storage") == "s3" {
		return container.FileRegistrations{Path: filepath.Join(dir, "s3", cacheutil.EncodeKey(cmd.String("bucket")+"/"+cmd.String("prefix")), registrationFile)}
	}
	return container.FileRegistrations{Path: filepath.Join(dir, registrationFile)}
}

func cacheDir(cmd *cli.Command) string {
	if !cacheutil.Persistent() {
		return ""
	}
	return GetMeta(cmd).CacheDir
}
