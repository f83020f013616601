package oracle

import (
	"errors"
	"strings"
)

var errNoSpan = errors.New("no balanced json span in response")

// firstBalanced returns the first span of s that starts at an open delimiter and
// ends at its matching close delimiter. Delimiters inside JSON string literals
// are ignored. An open delimiter that is never closed does not hide a balanced
// span after it: the scan resumes at the next open delimiter. ok is false when
// no open delimiter in s is ever closed.
func firstBalanced(s string, opening, closing byte) (span string, ok bool) {
	for from := 0; from < len(s); {
		i := strings.IndexByte(s[from:], opening)
		if i < 0 {
			return "", false
		}
		start := from + i
		if end, closed := matchClose(s, start, opening, closing); closed {
			return s[start : end+1], true
		}
		from = start + 1
	}
	return "", false
}

// matchClose scans from the open delimiter at start and returns the index of
// its matching close delimiter.
func matchClose(s string, start int, opening, closing byte) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case opening:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
