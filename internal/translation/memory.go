package translation

import (
	"regexp"
	"strings"

	"github.com/Abrechen2/sublarr/internal/domain"
)

// MemoryStore is the subset of *store.TranslationMemoryRepo the Manager
// needs; narrowed so this package doesn't import internal/store directly.
type MemoryStore interface {
	Put(entry domain.TranslationMemoryEntry) error
	Exact(sourceLang, targetLang, normalizedSource string) (string, bool, error)
	FuzzyMatch(sourceLang, targetLang, normalizedSource string, maxDistance int) (string, bool, error)
}

var assOverrideTag = regexp.MustCompile(`\{[^}]*\}`)

// NormalizeSource reduces a source line to the key translation memory
// compares against (§4.4): lowercase, collapsed whitespace, stripped ASS
// override tags, so two lines differing only by formatting still hit.
func NormalizeSource(text string) string {
	stripped := assOverrideTag.ReplaceAllString(text, "")
	lower := strings.ToLower(stripped)
	return strings.Join(strings.Fields(lower), " ")
}

// similarityToMaxDistance converts the spec's similarity threshold (S,
// default 0.9) into a Levenshtein edit budget relative to a line's length,
// since TranslationMemoryRepo.FuzzyMatch compares by edit count, not ratio.
func similarityToMaxDistance(normalizedSource string, similarityThreshold float64) int {
	if similarityThreshold <= 0 || similarityThreshold >= 1 {
		return 0
	}
	return int(float64(len(normalizedSource)) * (1 - similarityThreshold))
}

// lookupMemory checks exact then fuzzy match for one already-normalized
// source line, per P7: a fuzzy hit is never farther than
// (1 - similarityThreshold) of the query's own length.
func lookupMemory(mem MemoryStore, sourceLang, targetLang, normalized string, similarityThreshold float64) (string, bool) {
	if mem == nil {
		return "", false
	}
	if text, ok, err := mem.Exact(sourceLang, targetLang, normalized); err == nil && ok {
		return text, true
	}
	maxDistance := similarityToMaxDistance(normalized, similarityThreshold)
	if text, ok, err := mem.FuzzyMatch(sourceLang, targetLang, normalized, maxDistance); err == nil && ok {
		return text, true
	}
	return "", false
}

func storeMemory(mem MemoryStore, sourceLang, targetLang, normalized, translated string) {
	if mem == nil {
		return
	}
	_ = mem.Put(domain.TranslationMemoryEntry{
		SourceLang:       sourceLang,
		TargetLang:       targetLang,
		NormalizedSource: normalized,
		TranslatedText:   translated,
	})
}
