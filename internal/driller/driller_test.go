// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// no-cloc
package driller

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const entry = `{
	"id": "GET https://docs.example.com/",
	"attributes": {
		"url": "https://docs.example.com/",
		"status": 200,
		"cached": true,
		"etag": null,
		"header": {"content-type": ["text/html"], "vary": ["Accept", "Accept-Encoding"]},
		"generations": [{"name": "v1.7"}, {"name": "v1.8"}]
	}
}`

func TestDriller(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		path    string
		want    string
		isNil   bool
		isArray bool
	}{
		{name: "root key", json: entry, path: "id", want: "GET https://docs.example.com/"},
		{name: "nested string", json: entry, path: "attributes.url", want: "https://docs.example.com/"},
		{name: "number", json: entry, path: "attributes.status", want: "200"},
		{name: "bool", json: entry, path: "attributes.cached", want: "true"},
		{name: "null", json: entry, path: "attributes.etag", isNil: true},
		{name: "hyphenated key", json: entry, path: "attributes.header.content-type", want: "text/html"},
		{name: "multi element array", json: entry, path: "attributes.header.vary", isArray: true},
		{name: "explicit index", json: entry, path: "attributes.header.vary[1]", want: "Accept-Encoding"},
		{name: "index then key", json: entry, path: "attributes.generations[0].name", want: "v1.7"},
		{name: "single element array drills through", json: `{"items": [{"id": "first"}]}`, path: "items.id", want: "first"},
		{name: "single element array returns element", json: `{"items": ["only"]}`, path: "items", want: "only"},
		{name: "chained indexes", json: `{"m": [[1, 2], [3, 4]]}`, path: "m[1][0]", want: "3"},
		{name: "missing key", json: entry, path: "attributes.missing", isNil: true},
		{name: "index out of range", json: entry, path: "attributes.header.vary[10]", isNil: true},
		{name: "key on scalar", json: entry, path: "id.more", isNil: true},
		{name: "empty array with index", json: `{"items": []}`, path: "items[0]", isNil: true},
		{name: "malformed segment", json: entry, path: "attributes.header[x]", isNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Driller(tt.json, tt.path)

			if tt.isNil {
				assert.True(t, !result.Exists() || result.Type.String() == "Null", "got %v", result.Value())
				return
			}
			if !assert.True(t, result.Exists(), "expected a result") {
				return
			}
			if tt.isArray {
				assert.True(t, result.IsArray(), "got %v", result.Value())
				return
			}
			assert.Equal(t, tt.want, result.String())
		})
	}
}

func BenchmarkDriller(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Driller(entry, "attributes.generations[1].name")
	}
}
