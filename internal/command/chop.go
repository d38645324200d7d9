// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import "strings"

// chopMarker replaces a chopped prefix.
const chopMarker = "..."

// chopPrefix finds common leading "/"-delimited segments of the given URLs.
// If at least 50% of them share the scheme, the host and one more segment,
// those segments are replaced with chopMarker in the URLs that have them.
// Values are changed in place.
func chopPrefix(values []string) {
	if len(values) == 0 {
		return
	}

	threshold := (len(values) + 1) / 2

	segmented := make([][]string, len(values))
	maxSegments := 0
	for i, v := range values {
		segmented[i] = strings.Split(v, "/")
		if len(segmented[i]) > maxSegments {
			maxSegments = len(segmented[i])
		}
	}

	// Find the longest common prefix of segments that appears in at least 50%.
	// Only values that agreed on every earlier segment are counted.
	alive := make([]bool, len(values))
	for i := range alive {
		alive[i] = true
	}
	var common []string
	for segIdx := 0; segIdx < maxSegments-1; segIdx++ {
		counts := make(map[string]int)
		for i, segs := range segmented {
			// The last segment is never part of the prefix.
			if alive[i] && segIdx < len(segs)-1 {
				counts[segs[segIdx]]++
			}
		}

		var best string
		var bestCount int
		for seg, count := range counts {
			if count > bestCount || (count == bestCount && seg < best) {
				best, bestCount = seg, count
			}
		}
		if bestCount < threshold {
			break
		}
		common = append(common, best)
		for i, segs := range segmented {
			alive[i] = alive[i] && segIdx < len(segs)-1 && segs[segIdx] == best
		}
	}

	// "https:", "", host and at least one path segment.
	if len(common) < 4 { //nolint:mnd
		return
	}

	prefix := strings.Join(common, "/") + "/"
	for i, v := range values {
		if strings.HasPrefix(v, prefix) {
			values[i] = chopMarker + "/" + v[len(prefix):]
		}
	}
}
