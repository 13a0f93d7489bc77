// Package normalize cleans user supplied song metadata before it is compared
// or stored, and orders titles the way Korean users expect.
package normalize

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/contiapp/conti-server/internal/domain"
)

// Text returns s in NFC form with control characters dropped, surrounding space
// trimmed and inner whitespace runs collapsed to one space. Decomposed Hangul
// typed on macOS compares equal to the composed form after Text.
func Text(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFC.String(sanitizeString(s))
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// languageAliases maps common spellings onto the stored language values.
//
//nolint:gochecknoglobals // Static lookup table for language normalization
var languageAliases = map[string]domain.Language{
	"한국어":     domain.LanguageKorean,
	"한글":      domain.LanguageKorean,
	"ko":      domain.LanguageKorean,
	"kor":     domain.LanguageKorean,
	"korean":  domain.LanguageKorean,
	"영어":      domain.LanguageEnglish,
	"en":      domain.LanguageEnglish,
	"eng":     domain.LanguageEnglish,
	"english": domain.LanguageEnglish,
}

// Language maps a language name or code onto a stored value.
// "ko-KR", "Korean" and "한국어" all become 한국어. Unrecognized input is
// returned cleaned but otherwise unchanged so validation can report it.
func Language(raw string) string {
	s := Text(raw)
	if s == "" {
		return ""
	}
	key := strings.ToLower(s)
	if idx := strings.IndexAny(key, "-_"); idx > 0 {
		key = key[:idx]
	}
	if l, ok := languageAliases[key]; ok {
		return string(l)
	}
	return s
}

// sanitizeString removes control characters other than whitespace. Clients
// leave null bytes at the end of pasted form values.
func sanitizeString(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// collator is not safe for concurrent use.
var (
	collatorMu sync.Mutex
	collator   = collate.New(language.Korean, collate.Loose, collate.Numeric)
)

// Compare orders a and b by Korean collation: Hangul in 가나다 order, Latin
// letters case-insensitively, numbers by value.
func Compare(a, b string) int {
	collatorMu.Lock()
	defer collatorMu.Unlock()
	return collator.CompareString(a, b)
}
