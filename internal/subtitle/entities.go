package subtitle

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Entity is a named entity detected in source-language dialogue: a
// character name, place, attack/technique name, or title, surfaced as a
// candidate addition to the translation glossary.
type Entity struct {
	Text       string
	Kind       EntityKind
	Confidence float64 // 0.0-1.0
	Count      int
}

type EntityKind string

const (
	EntityName   EntityKind = "name"
	EntityAttack EntityKind = "attack"
)

// entityScanner detects recurring capitalized terms, Japanese-honorific
// names, and anime-style attack/technique names, so a translation run can
// flag candidate glossary entries an operator hasn't added yet. Heuristic
// and deliberately conservative: it requires repetition or a strong signal
// (honorific, attack-pattern match) before surfacing anything.
type entityScanner struct {
	stopWords      map[string]bool
	honorifics     []string
	attackPatterns []*regexp.Regexp
}

func newEntityScanner() *entityScanner {
	s := &entityScanner{
		stopWords: make(map[string]bool),
		honorifics: []string{
			"-san", "-kun", "-chan", "-sama", "-sensei", "-senpai", "-dono",
		},
		attackPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)((?:[A-Z][a-z]+ )+(?:no|style|technique|attack|strike|wave|blade|beam|cannon))`),
		},
	}
	for _, w := range strings.Fields(
		"the a an and or but in on at to for of with by from as is was are " +
			"were been be have has had do does did will would could should " +
			"this that these those it its he she they we you i my your his her",
	) {
		s.stopWords[w] = true
	}
	return s
}

// ScanEntities scans dialogue lines for recurring names and attack/technique
// terms, returning candidates that appear at least twice or match a
// high-confidence pattern (an honorific-suffixed name, an attack phrase).
func ScanEntities(lines []Line) []Entity {
	return newEntityScanner().scan(lines)
}

func (s *entityScanner) scan(lines []Line) []Entity {
	byKey := make(map[string]*Entity)
	for _, line := range lines {
		s.scanText(line.Text, byKey)
	}

	out := make([]Entity, 0, len(byKey))
	for _, e := range byKey {
		if e.Count >= 2 || e.Confidence >= 0.85 {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

func (s *entityScanner) scanText(text string, byKey map[string]*Entity) {
	clean := stripASSTags(text)
	s.scanCapitalized(clean, byKey)
	s.scanAttacks(clean, byKey)
	s.scanHonorifics(clean, byKey)
}

var assTagPattern = regexp.MustCompile(`\{[^}]*\}`)

func stripASSTags(text string) string {
	return assTagPattern.ReplaceAllString(text, "")
}

func (s *entityScanner) scanCapitalized(text string, byKey map[string]*Entity) {
	words := strings.Fields(text)
	for i, word := range words {
		clean := trimPunctuation(word)
		runes := []rune(clean)
		if len(runes) < 2 || !unicode.IsUpper(runes[0]) {
			continue
		}
		if s.stopWords[strings.ToLower(clean)] {
			continue
		}
		if i == 0 && !looksLikeProperNoun(clean) {
			continue
		}
		confidence := 0.5
		if len(clean) >= 6 {
			confidence += 0.1
		}
		if i > 0 {
			confidence += 0.2
		}
		merge(byKey, clean, EntityName, confidence)
	}
}

func (s *entityScanner) scanAttacks(text string, byKey map[string]*Entity) {
	for _, pattern := range s.attackPatterns {
		for _, match := range pattern.FindAllString(text, -1) {
			match = strings.TrimSpace(match)
			if len(match) >= 3 {
				merge(byKey, match, EntityAttack, 0.9)
			}
		}
	}
}

func (s *entityScanner) scanHonorifics(text string, byKey map[string]*Entity) {
	for _, hon := range s.honorifics {
		pattern := regexp.MustCompile(`([A-Z][a-z]+)` + regexp.QuoteMeta(hon))
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			if len(match) >= 2 {
				merge(byKey, match[1], EntityName, 0.95)
			}
		}
	}
}

func merge(byKey map[string]*Entity, text string, kind EntityKind, confidence float64) {
	key := strings.ToLower(text)
	if existing, ok := byKey[key]; ok {
		existing.Count++
		if confidence > existing.Confidence {
			existing.Confidence = confidence
		}
		if kind == EntityAttack {
			existing.Kind = kind
		}
		return
	}
	byKey[key] = &Entity{Text: text, Kind: kind, Confidence: confidence, Count: 1}
}

func trimPunctuation(word string) string {
	runes := []rune(word)
	start, end := 0, len(runes)
	for start < end && !unicode.IsLetter(runes[start]) && !unicode.IsNumber(runes[start]) {
		start++
	}
	for end > start && !unicode.IsLetter(runes[end-1]) && !unicode.IsNumber(runes[end-1]) {
		end--
	}
	if start >= end {
		return ""
	}
	return string(runes[start:end])
}

func looksLikeProperNoun(word string) bool {
	lower := strings.ToLower(word)
	if strings.Contains(lower, "ou") || strings.Contains(lower, "uu") || strings.Contains(lower, "ii") {
		return true
	}
	for _, suffix := range []string{"ro", "ko", "mi", "ki", "shi", "ta", "da", "na", "ru", "ya"} {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	vowels := 0
	for _, r := range lower {
		switch r {
		case 'a', 'e', 'i', 'o', 'u':
			vowels++
		}
	}
	return vowels >= 2
}
