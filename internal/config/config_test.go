// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// no-cloc
package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestConfig points DOCSITE_CFG at a testdata file and resets the
// global Config.
func setupTestConfig(t *testing.T, testdataFile string) {
	t.Helper()

	absPath, err := filepath.Abs(filepath.Join("testdata", testdataFile))
	require.NoError(t, err, "failed to get absolute path for test config")

	t.Setenv(EnvPath, absPath)
	Config = Type{}
	t.Cleanup(func() { Config = Type{} })
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		testFile  string
		checkFunc func(*testing.T, Type)
	}{
		{
			name:     "simple string values",
			testFile: "simple.yaml",
			checkFunc: func(t *testing.T, cfg Type) {
				assert.NotEmpty(t, cfg.Source)
				assert.Equal(t, "v1.8", cfg.Data["version"])
				assert.Equal(t, "https://docs.example.com/", cfg.Data["scope"])
			},
		},
		{
			name:     "nested structure",
			testFile: "nested.yaml",
			checkFunc: func(t *testing.T, cfg Type) {
				storage, ok := cfg.Data["storage"].(map[string]interface{})
				require.True(t, ok, "storage should be a map")
				s3, ok := storage["s3"].(map[string]interface{})
				require.True(t, ok, "s3 should be a map")
				assert.Equal(t, "docsite-cache", s3["bucket"])
			},
		},
		{
			name:     "empty file",
			testFile: "empty.yaml",
			checkFunc: func(t *testing.T, cfg Type) {
				assert.NotEmpty(t, cfg.Source, "should have a source path")
				assert.Empty(t, cfg.Data)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupTestConfig(t, tt.testFile)

			cfg, err := Load()
			require.NoError(t, err)
			tt.checkFunc(t, cfg)
		})
	}
}

func TestLoad_ExplicitPath(t *testing.T) {
	t.Setenv(EnvPath, "/nonexistent/docsite.yaml")
	Config = Type{}
	t.Cleanup(func() { Config = Type{} })

	cfg, err := Load(filepath.Join("testdata", "simple.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "v1.8", cfg.Data["version"])
}

func TestLoad_NoConfigFile(t *testing.T) {
	t.Setenv(EnvPath, "/nonexistent/path/docsite.yaml")
	Config = Type{}

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoad_StandardLocations(t *testing.T) {
	t.Setenv(EnvPath, "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("APPDATA", "")
	t.Setenv("HOME", filepath.Join("testdata", "home"))
	t.Chdir(t.TempDir())
	Config = Type{}

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "standard locations")
}

func TestLoad_CfgIsDirectory(t *testing.T) {
	t.Setenv(EnvPath, "testdata")
	Config = Type{}

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "points to a directory")
}

func TestGetString(t *testing.T) {
	tests := []struct {
		name         string
		testFile     string
		key          string
		defaultValue []string
		want         string
		wantErr      bool
	}{
		{name: "simple string value", testFile: "simple.yaml", key: "version", want: "v1.8"},
		{name: "nested string value", testFile: "nested.yaml", key: "storage.s3.region", want: "us-west-2"},
		{name: "missing key with default", testFile: "simple.yaml", key: "missing", defaultValue: []string{"dflt"}, want: "dflt"},
		{name: "missing key without default", testFile: "simple.yaml", key: "missing", wantErr: true},
		{name: "non-string value", testFile: "mixed-types.yaml", key: "concurrency", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupTestConfig(t, tt.testFile)
			_, _ = Load()

			got, err := GetString(tt.key, tt.defaultValue...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue []int
		want         int
		wantErr      bool
	}{
		{name: "int value", key: "concurrency", want: 4},
		{name: "float value converted to int", key: "timeout", want: 30},
		{name: "missing key with default", key: "missing", defaultValue: []int{60}, want: 60},
		{name: "missing key without default", key: "missing", wantErr: true},
		{name: "non-int value", key: "name", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupTestConfig(t, "mixed-types.yaml")

			got, err := GetInt(tt.key, tt.defaultValue...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetBool(t *testing.T) {
	setupTestConfig(t, "mixed-types.yaml")

	got, err := GetBool("offline")
	require.NoError(t, err)
	assert.True(t, got)

	got, err = GetBool("missing", true)
	require.NoError(t, err)
	assert.True(t, got)

	_, err = GetBool("name")
	assert.Error(t, err)
}

func TestGetStringSlice(t *testing.T) {
	setupTestConfig(t, "mixed-types.yaml")

	got, err := GetStringSlice("resources")
	require.NoError(t, err)
	assert.Equal(t, []string{"/", "/index.html"}, got)

	got, err = GetStringSlice("icons")
	require.NoError(t, err)
	assert.Equal(t, []string{"/a.png", "/b.png"}, got)

	got, err = GetStringSlice("missing", []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, got)

	_, err = GetStringSlice("nested")
	assert.Error(t, err)
	_, err = GetStringSlice("concurrency")
	assert.Error(t, err)
}

func TestConfig_GetWithNamespace(t *testing.T) {
	setupTestConfig(t, "nested.yaml")
	_, err := Load()
	require.NoError(t, err)

	Config.Namespace = "storage.s3"
	val, err := Config.get("region")
	require.NoError(t, err)
	assert.Equal(t, "us-west-2", val)

	Config.Namespace = "storage.file"
	val, err = Config.get("region")
	require.NoError(t, err)
	assert.Equal(t, "local", val)

	val, err = Config.get("root")
	require.NoError(t, err)
	assert.Equal(t, "/var/cache/docsite", val)
}

func TestConfig_LazyLoad(t *testing.T) {
	setupTestConfig(t, "simple.yaml")

	val, err := GetString("version")
	require.NoError(t, err)
	assert.Equal(t, "v1.8", val)
	assert.NotEmpty(t, Config.Source, "Config should be loaded")
}

func TestGetString_NamespaceFallback(t *testing.T) {
	setupTestConfig(t, "namespace.yaml")
	_, err := Load()
	require.NoError(t, err)

	Config.Namespace = "fetch"

	val, err := GetString("output")
	require.NoError(t, err)
	assert.Equal(t, "raw", val)

	Config.Namespace = "ls"
	val, err = GetString("output")
	require.NoError(t, err)
	assert.Equal(t, "text", val)

	_, err = GetString("nonexistent")
	assert.Error(t, err)
}
