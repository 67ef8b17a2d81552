// Package utils holds small text helpers shared by the tools and the prompt builder.
package utils

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ContentWithLineNumber prefixes each line with its number, right-aligned
// to the widest number in the block.
func ContentWithLineNumber(lines []string, offset int) string {
	if len(lines) == 0 {
		return ""
	}
	width := len(strconv.Itoa(offset + len(lines) - 1))

	var b strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&b, "%*d: %s\n", width, offset+i, line)
	}
	return b.String()
}

// IsBinary reports whether content looks like binary data: a NUL byte or
// invalid UTF-8 within the first 512 bytes.
func IsBinary(content string) bool {
	head := content
	if len(head) > 512 {
		head = head[:512]
		// do not split a rune at the cut
		for len(head) > 0 && !utf8.RuneStart(content[len(head)]) {
			head = head[:len(head)-1]
		}
	}
	if strings.IndexByte(head, 0) >= 0 {
		return true
	}
	return !utf8.ValidString(head)
}

// Truncate cuts s to at most max bytes on a rune boundary and reports whether it did.
func Truncate(s string, max int) (string, bool) {
	if max <= 0 || len(s) <= max {
		return s, false
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut], true
}
