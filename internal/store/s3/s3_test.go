// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package s3

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/docsite/internal/store"
	"github.com/staranto/docsite/internal/store/storetest"
)

// fakeS3 is an in-memory bucket. Listing pages hold two items to exercise
// continuation.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	lists   int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("no such key")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(append([]byte(nil), b...)))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range in.Delete.Objects {
		delete(f.objects, aws.ToString(o.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++

	prefix := aws.ToString(in.Prefix)
	delim := aws.ToString(in.Delimiter)

	seen := map[string]bool{}
	var items []string // keys, or common prefixes suffixed with delim
	for k := range f.objects {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := k[len(prefix):]
		if delim != "" {
			if i := strings.Index(rest, delim); i >= 0 {
				cp := prefix + rest[:i+len(delim)]
				if !seen[cp] {
					seen[cp] = true
					items = append(items, cp)
				}
				continue
			}
		}
		items = append(items, k)
	}
	sort.Strings(items)

	start := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		start = sort.SearchStrings(items, tok) + 1
	}
	end := min(start+2, len(items))

	out := &s3.ListObjectsV2Output{}
	for _, it := range items[start:end] {
		if seen[it] {
			out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(it)})
		} else {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(it)})
		}
	}
	if end < len(items) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(items[end-1])
	}
	return out, nil
}

func TestStorage(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Storage {
		s, err := New(newFakeS3(), "docs-cache", "/sites/docs/")
		require.NoError(t, err)
		return s
	})
}

func TestStorage_NoPrefix(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Storage {
		s, err := New(newFakeS3(), "docs-cache", "")
		require.NoError(t, err)
		return s
	})
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(newFakeS3(), "", "x")
	assert.Error(t, err)
}

func TestStorage_ObjectLayout(t *testing.T) {
	api := newFakeS3()
	s, err := New(api, "b", "docs")
	require.NoError(t, err)

	_, err = s.Open(context.Background(), "v1.8")
	require.NoError(t, err)

	var keys []string
	for k := range api.objects {
		keys = append(keys, k)
	}
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "docs/"))
	assert.True(t, strings.HasSuffix(keys[0], "/generation.yaml"))
}
