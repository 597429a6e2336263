package i3dex

import (
	"strings"
	"unicode"
)

// naturalLess orders names the way an outliner does: digit runs compare by
// numeric value, everything else case-insensitively, so "node2" sorts
// before "node10".
func naturalLess(a, b string) bool {
	ai, bi := 0, 0
	for ai < len(a) && bi < len(b) {
		ar, br := rune(a[ai]), rune(b[bi])
		if unicode.IsDigit(ar) && unicode.IsDigit(br) {
			an, alen := digitRun(a[ai:])
			bn, blen := digitRun(b[bi:])
			if an != bn {
				return an < bn
			}
			ai += alen
			bi += blen
			continue
		}
		al, bl := unicode.ToLower(ar), unicode.ToLower(br)
		if al != bl {
			return al < bl
		}
		ai++
		bi++
	}
	if len(a)-ai != len(b)-bi {
		return len(a)-ai < len(b)-bi
	}
	// Equal ignoring case; fall back to a stable byte comparison.
	return strings.Compare(a, b) < 0
}

// digitRun parses the leading digit run, ignoring leading zeros for the
// value while reporting the full consumed length.
func digitRun(s string) (value uint64, length int) {
	for length < len(s) && s[length] >= '0' && s[length] <= '9' {
		value = value*10 + uint64(s[length]-'0')
		length++
	}
	return value, length
}
