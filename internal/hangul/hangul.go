// Package hangul implements the party search used by the list view: a plain
// case-insensitive substring match with a fallback on initial consonants
// (choseong), so "ㅁㅍ" finds "메이플".
package hangul

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const (
	syllableFirst = 0xAC00
	syllableLast  = 0xD7A3
	// vowels * finals (including "no final") per initial consonant
	syllablesPerInitial = 21 * 28
)

var choseong = [...]rune{
	'ㄱ', 'ㄲ', 'ㄴ', 'ㄷ', 'ㄸ', 'ㄹ', 'ㅁ', 'ㅂ', 'ㅃ', 'ㅅ',
	'ㅆ', 'ㅇ', 'ㅈ', 'ㅉ', 'ㅊ', 'ㅋ', 'ㅌ', 'ㅍ', 'ㅎ',
}

var folder = cases.Fold()

// ExtractChoseong replaces every precomposed Hangul syllable with its initial
// consonant. Everything else is copied unchanged.
func ExtractChoseong(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= syllableFirst && r <= syllableLast {
			b.WriteRune(choseong[(r-syllableFirst)/syllablesPerInitial])
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// MatchesByChoseong reports whether the initial consonants of query occur in
// those of text. An empty query matches everything.
func MatchesByChoseong(text, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(ExtractChoseong(normalize(text)), ExtractChoseong(normalize(query)))
}

// Search matches query against text as a substring first and by initial
// consonants second. An empty query matches everything.
func Search(text, query string) bool {
	if query == "" {
		return true
	}
	t, q := normalize(text), normalize(query)
	if strings.Contains(t, q) {
		return true
	}
	return strings.Contains(ExtractChoseong(t), ExtractChoseong(q))
}

// normalize composes decomposed jamo into syllables and folds case.
func normalize(s string) string {
	return folder.String(norm.NFC.String(s))
}
