package tokenizer

import "unicode"

// FoldRunes lower-cases s rune by rune. The result has exactly one rune
// per rune of s, so offsets found in the folded text are valid offsets
// into []rune(s).
func FoldRunes(s string) []rune {
	runes := []rune(s)
	for i, r := range runes {
		runes[i] = unicode.ToLower(r)
	}
	return runes
}

// IndexFold returns the rune offset of the first occurrence of needle in
// haystack at or after from, or -1. Both arguments must already be folded.
func IndexFold(haystack, needle []rune, from int) int {
	if len(needle) == 0 || from < 0 {
		return -1
	}
	last := len(haystack) - len(needle)
	for i := from; i <= last; i++ {
		if runesEqual(haystack[i:i+len(needle)], needle) {
			return i
		}
	}
	return -1
}

// CountFold counts non-overlapping occurrences of needle in haystack and
// reports the offset of the first one (-1 when there is none).
func CountFold(haystack, needle []rune) (count int, first int) {
	first = -1
	pos := 0
	for {
		idx := IndexFold(haystack, needle, pos)
		if idx < 0 {
			return count, first
		}
		if first < 0 {
			first = idx
		}
		count++
		pos = idx + len(needle)
	}
}

func runesEqual(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
