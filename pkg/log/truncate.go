// Copyright 2026 hello project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package log

import (
	"fmt"
	"strings"
)

// Truncate leaves up to `begin` bytes at the beginning of s and
// up to `end` bytes at the end of it, replacing the middle with a marker.
// The result stays on a single line, so it's safe to use for request data.
func Truncate(s string, begin, end int) string {
	if begin+end >= len(s) {
		return s
	}
	var b strings.Builder
	b.WriteString(s[:begin])
	fmt.Fprintf(&b, "<<cut %d bytes>>", len(s)-begin-end)
	b.WriteString(s[len(s)-end:])
	return b.String()
}
