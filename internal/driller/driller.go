// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package driller

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// segmentRe splits one path segment into its key and trailing [n] indexes.
var segmentRe = regexp.MustCompile(`^([^\[\]]*)((?:\[\d+\])*)$`)

var indexRe = regexp.MustCompile(`\[(\d+)\]`)

// Driller returns the value at path in doc. Segments are separated by '.'
// and may carry explicit indexes (items[1]). A single element array is
// drilled through transparently; a longer one is returned as is unless
// indexed. Keys are matched literally, so header names such as
// content-type need no escaping.
func Driller(doc string, path string) gjson.Result {
	current := gjson.Parse(doc)

	for _, segment := range strings.Split(path, ".") {
		parts := segmentRe.FindStringSubmatch(segment)
		if parts == nil {
			return gjson.Result{}
		}

		if key := parts[1]; key != "" {
			current = unwrap(current)
			if !current.IsObject() {
				return gjson.Result{}
			}
			next, ok := current.Map()[key]
			if !ok {
				return gjson.Result{}
			}
			current = next
		}

		for _, idx := range indexRe.FindAllStringSubmatch(parts[2], -1) {
			n, _ := strconv.Atoi(idx[1])
			items := current.Array()
			if !current.IsArray() || n >= len(items) {
				return gjson.Result{}
			}
			current = items[n]
		}
	}

	return unwrap(current)
}

func unwrap(r gjson.Result) gjson.Result {
	if r.IsArray() {
		if items := r.Array(); len(items) == 1 {
			return items[0]
		}
	}
	return r
}
