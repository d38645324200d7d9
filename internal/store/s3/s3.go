// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package s3 is a store.Storage in an S3 bucket, so that several hosts
// can share cache generations. Each generation is a key prefix named by the
// hash of its name.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"gopkg.in/yaml.v3"

	"github.com/staranto/docsite/internal/cacheutil"
	"github.com/staranto/docsite/internal/fetch"
	"github.com/staranto/docsite/internal/store"
)

const (
	generationObject = "generation.yaml"
	metaExt          = ".json"
	bodyExt          = ".body"
	// deleteBatch is the DeleteObjects per-request maximum.
	deleteBatch = 1000
)

// API is the subset of the S3 client used by Storage.
type API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type generationMeta struct {
	Name    string    `yaml:"name"`
	Created time.Time `yaml:"created"`
}

// Storage keeps generations in Bucket under Prefix.
type Storage struct {
	Client API
	Bucket string
	Prefix string

	mu   sync.Mutex
	last time.Time
}

// New returns a Storage. prefix may be empty.
func New(client API, bucket, prefix string) (*Storage, error) {
	if bucket == "" {
		return nil, errors.New("s3 storage requires a bucket")
	}
	return &Storage{Client: client, Bucket: bucket, Prefix: strings.Trim(prefix, "/")}, nil
}

func (s *Storage) root() string {
	if s.Prefix == "" {
		return ""
	}
	return s.Prefix + "/"
}

func (s *Storage) genPrefix(name string) string {
	return s.root() + cacheutil.EncodeKey(name) + "/"
}

func (s *Storage) stamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if !now.After(s.last) {
		now = s.last.Add(time.Nanosecond)
	}
	s.last = now
	return now
}

// Open implements store.Storage.
func (s *Storage) Open(ctx context.Context, name string) (store.Generation, error) {
	g := &generation{s: s, name: name, prefix: s.genPrefix(name)}
	ok, err := s.Has(ctx, name)
	if err != nil {
		return nil, err
	}
	if ok {
		return g, nil
	}

	raw, err := yaml.Marshal(generationMeta{Name: name, Created: s.stamp()})
	if err != nil {
		return nil, err
	}
	if err := s.put(ctx, g.prefix+generationObject, raw, "application/yaml"); err != nil {
		return nil, fmt.Errorf("failed to create generation %s: %w", name, err)
	}
	log.Debugf("created generation %s at s3://%s/%s", name, s.Bucket, g.prefix)
	return g, nil
}

// Lookup implements store.Storage.
func (s *Storage) Lookup(ctx context.Context, name string) (store.Generation, error) {
	ok, err := s.Has(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, store.NotFound(name)
	}
	return &generation{s: s, name: name, prefix: s.genPrefix(name)}, nil
}

// Has implements store.Storage.
func (s *Storage) Has(ctx context.Context, name string) (bool, error) {
	_, ok, err := s.get(ctx, s.genPrefix(name)+generationObject)
	return ok, err
}

// Delete implements store.Storage.
func (s *Storage) Delete(ctx context.Context, name string) (bool, error) {
	prefix := s.genPrefix(name)
	keys, _, err := s.list(ctx, prefix, "")
	if err != nil {
		return false, err
	}
	if len(keys) == 0 {
		return false, nil
	}

	for start := 0; start < len(keys); start += deleteBatch {
		end := min(start+deleteBatch, len(keys))
		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(k)})
		}
		out, err := s.Client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.Bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return false, fmt.Errorf("failed to delete generation %s: %w", name, err)
		}
		if len(out.Errors) > 0 {
			e := out.Errors[0]
			return false, fmt.Errorf("failed to delete %s: %s", aws.ToString(e.Key), aws.ToString(e.Message))
		}
	}
	return true, nil
}

// Keys implements store.Storage.
func (s *Storage) Keys(ctx context.Context) ([]string, error) {
	_, prefixes, err := s.list(ctx, s.root(), "/")
	if err != nil {
		return nil, err
	}

	var metas []generationMeta
	for _, p := range prefixes {
		raw, ok, err := s.get(ctx, p+generationObject)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		var m generationMeta
		if err := yaml.Unmarshal(raw, &m); err != nil {
			log.WithError(err).Warnf("corrupt generation metadata at %s", p)
			continue
		}
		metas = append(metas, m)
	}

	sort.SliceStable(metas, func(i, j int) bool {
		if metas[i].Created.Equal(metas[j].Created) {
			return metas[i].Name < metas[j].Name
		}
		return metas[i].Created.Before(metas[j].Created)
	})
	keys := make([]string, 0, len(metas))
	for _, m := range metas {
		keys = append(keys, m.Name)
	}
	return keys, nil
}

func (s *Storage) put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	return err
}

// get returns the object body, or ok=false when it does not exist.
func (s *Storage) get(ctx context.Context, key string) ([]byte, bool, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get s3://%s/%s: %w", s.Bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read s3://%s/%s: %w", s.Bucket, key, err)
	}
	return data, true, nil
}

// list returns object keys and, when delimiter is set, common prefixes.
func (s *Storage) list(ctx context.Context, prefix, delimiter string) (keys, prefixes []string, err error) {
	in := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.Bucket),
		Prefix: aws.String(prefix),
	}
	if delimiter != "" {
		in.Delimiter = aws.String(delimiter)
	}

	for {
		out, err := s.Client.ListObjectsV2(ctx, in)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list s3://%s/%s: %w", s.Bucket, prefix, err)
		}
		for _, o := range out.Contents {
			keys = append(keys, aws.ToString(o.Key))
		}
		for _, p := range out.CommonPrefixes {
			prefixes = append(prefixes, aws.ToString(p.Prefix))
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		in.ContinuationToken = out.NextContinuationToken
	}
	return keys, prefixes, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

type generation struct {
	s      *Storage
	name   string
	prefix string
}

func (g *generation) Name() string { return g.name }

func (g *generation) keys(req *fetch.Request) (meta, body string) {
	base := g.prefix + cacheutil.EncodeKey(req.Key())
	return base + metaExt, base + bodyExt
}

func (g *generation) Match(ctx context.Context, req *fetch.Request) (*fetch.Response, bool, error) {
	metaKey, bodyKey := g.keys(req)
	raw, ok, err := g.s.get(ctx, metaKey)
	if err != nil || !ok {
		return nil, false, err
	}
	var e store.Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false, fmt.Errorf("failed to decode cache entry %s: %w", metaKey, err)
	}
	if e.Key != req.Key() {
		return nil, false, nil
	}
	body, ok, err := g.s.get(ctx, bodyKey)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		log.Warnf("cache entry %s has no body", metaKey)
		return nil, false, nil
	}
	return e.Response(body), true, nil
}

func (g *generation) Put(ctx context.Context, req *fetch.Request, resp *fetch.Response) error {
	body, err := resp.Bytes()
	if err != nil {
		return err
	}
	e := store.NewEntry(req, resp, body, time.Now())
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	metaKey, bodyKey := g.keys(req)
	contentType := e.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := g.s.put(ctx, bodyKey, body, contentType); err != nil {
		return fmt.Errorf("failed to write to cache: %w", err)
	}
	if err := g.s.put(ctx, metaKey, raw, "application/json"); err != nil {
		return fmt.Errorf("failed to write to cache: %w", err)
	}
	return nil
}

func (g *generation) Delete(ctx context.Context, req *fetch.Request) (bool, error) {
	metaKey, bodyKey := g.keys(req)
	_, ok, err := g.s.get(ctx, metaKey)
	if err != nil || !ok {
		return false, err
	}
	for _, k := range []string{metaKey, bodyKey} {
		if _, err := g.s.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(g.s.Bucket),
			Key:    aws.String(k),
		}); err != nil {
			return false, fmt.Errorf("failed to delete %s: %w", k, err)
		}
	}
	return true, nil
}

func (g *generation) Entries(ctx context.Context) ([]store.Entry, error) {
	keys, _, err := g.s.list(ctx, g.prefix, "")
	if err != nil {
		return nil, err
	}

	var out []store.Entry
	for _, k := range keys {
		if path.Ext(k) != metaExt {
			continue
		}
		raw, ok, err := g.s.get(ctx, k)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		var e store.Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			log.WithError(err).Warnf("skipping corrupt cache entry %s", k)
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
