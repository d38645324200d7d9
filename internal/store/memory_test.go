// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/staranto/docsite/internal/store"
	"github.com/staranto/docsite/internal/store/storetest"
)

func TestMemory(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Storage {
		return store.NewMemory()
	})
}

func TestDigest(t *testing.T) {
	a := store.Digest([]byte("a"))
	assert.Len(t, a, 64)
	assert.Equal(t, a, store.Digest([]byte("a")))
	assert.NotEqual(t, a, store.Digest([]byte("b")))
}

func TestSize(t *testing.T) {
	assert.Equal(t, int64(0), store.Size(nil))
	assert.Equal(t, int64(7), store.Size([]store.Entry{{Size: 3}, {Size: 4}}))
}
