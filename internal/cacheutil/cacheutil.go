// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package cacheutil

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// Dir resolves the base cache directory.
// Precedence:
//  1. DOCSITE_CACHE_DIR, if set and non-empty
//  2. os.UserCacheDir()/docsite
//
// Returns ("", false) if a base cannot be resolved (treat as disabled).
func Dir() (string, bool) {
	if c, ok := os.LookupEnv("DOCSITE_CACHE_DIR"); ok && c != "" {
		return c, true
	}
	if dir, err := os.UserCacheDir(); err == nil && dir != "" {
		return filepath.Join(dir, "docsite"), true
	}
	return "", false
}

// Persistent returns true unless DOCSITE_CACHE explicitly disables the
// on-disk cache ("0"/"false"), in which case callers fall back to memory.
func Persistent() bool {
	enabled, _ := os.LookupEnv("DOCSITE_CACHE")
	return enabled == "" || (enabled != "0" && enabled != "false")
}

// EnsureBaseDir creates the base cache directory if the on-disk cache is
// enabled and a base path can be resolved. Returns the path, whether it is
// usable, and an error if creation failed.
func EnsureBaseDir() (string, bool, error) {
	if !Persistent() {
		return "", false, nil
	}
	base, ok := Dir()
	if !ok {
		return "", false, nil
	}
	if err := os.MkdirAll(base, 0o755); err != nil { //nolint:mnd
		return base, false, fmt.Errorf("failed to create cache base directory: %w", err)
	}
	return base, true, nil
}

// EncodeKey hashes k with MD5 and returns the hex string. It is used to turn
// cache keys and generation names into safe file and object names.
func EncodeKey(k string) string {
	h := md5.New()
	_, _ = h.Write([]byte(k))
	return hex.EncodeToString(h.Sum(nil))
}
