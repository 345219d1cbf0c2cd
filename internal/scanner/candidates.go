package scanner

import (
	"sort"
	"strings"
	"unicode"

	"github.com/zhengda-lu/zerotrace/internal/catalog"
)

// MinKeyLength is the shortest normalized token that may identify an app.
const MinKeyLength = 4

const separators = "-|()[]:,"

// NormalizeName keeps only letters and digits and lowercases the result.
func NormalizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// CandidateKeys is the set of normalized tokens that identify an app.
type CandidateKeys map[string]struct{}

// CandidateKeysFor builds the key set from the display name and publisher,
// whole and split on separator characters. Tokens shorter than MinKeyLength
// are dropped.
func CandidateKeysFor(app catalog.App) CandidateKeys {
	keys := make(CandidateKeys)
	for _, name := range []string{app.DisplayName, app.Publisher} {
		if strings.TrimSpace(name) == "" {
			continue
		}
		keys.add(name)
		for _, part := range strings.FieldsFunc(name, func(r rune) bool { return strings.ContainsRune(separators, r) }) {
			keys.add(part)
		}
	}
	return keys
}

func (k CandidateKeys) add(s string) {
	if n := NormalizeName(s); len(n) >= MinKeyLength {
		k[n] = struct{}{}
	}
}

func (k CandidateKeys) Len() int { return len(k) }

// Matches reports whether name normalizes to one of the keys.
func (k CandidateKeys) Matches(name string) bool {
	n := NormalizeName(name)
	if len(n) < MinKeyLength {
		return false
	}
	_, ok := k[n]
	return ok
}

// ContainedIn reports whether any key occurs inside the normalized form of s.
func (k CandidateKeys) ContainedIn(s string) bool {
	n := NormalizeName(s)
	if len(n) < MinKeyLength {
		return false
	}
	for key := range k {
		if strings.Contains(n, key) {
			return true
		}
	}
	return false
}

// Sorted returns the keys in lexical order.
func (k CandidateKeys) Sorted() []string {
	out := make([]string, 0, len(k))
	for key := range k {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
