package tokenize

import (
	"unicode"
	"unicode/utf8"
)

// SplitChars splits s into one string per UTF-8 character. Invalid bytes
// come through as single-byte strings so nothing is silently dropped.
func SplitChars(s string) []string {
	chars := make([]string, 0, utf8.RuneCountInString(s))
	for i := 0; i < len(s); {
		_, size := utf8.DecodeRuneInString(s[i:])
		chars = append(chars, s[i:i+size])
		i += size
	}
	return chars
}

// UpperChars upper-cases every single-rune character in place. Characters
// without an upper-case form (CJK, digits, punctuation) are left untouched.
func UpperChars(chars []string) {
	for i, c := range chars {
		r, size := utf8.DecodeRuneInString(c)
		if r == utf8.RuneError || size != len(c) {
			continue
		}
		if u := unicode.ToUpper(r); u != r {
			chars[i] = string(u)
		}
	}
}
