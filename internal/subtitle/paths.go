package subtitle

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/language"

	"github.com/Abrechen2/sublarr/internal/domain"
)

// CanonicalLanguageTag normalizes a user- or provider-supplied language
// string (e.g. "PT_br", "por") to a BCP-47 tag string such as "pt-BR",
// so two spellings of the same language never produce two WantedItems.
func CanonicalLanguageTag(raw string) string {
	tag, err := language.Parse(raw)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	return tag.String()
}

// OutputPath derives the on-disk path for an acquired subtitle, following
// the {stem}.{lang}.{ext} / {stem}.{lang}.forced.{ext} convention (§4.6).
func OutputPath(videoPath, lang string, kind domain.SubtitleKind, format domain.SubtitleFormat) string {
	dir := filepath.Dir(videoPath)
	stem := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	lang = CanonicalLanguageTag(lang)

	ext := string(format)
	if kind == domain.SubtitleForced {
		return filepath.Join(dir, stem+"."+lang+".forced."+ext)
	}
	return filepath.Join(dir, stem+"."+lang+"."+ext)
}

// DetectExisting inspects the directory next to videoPath for a subtitle
// already matching lang/kind, recognizing both the plain and .forced.
// naming conventions and both container formats.
func DetectExisting(videoPath, lang string, kind domain.SubtitleKind, statFn func(string) bool) domain.ExistingSubtitle {
	lang = CanonicalLanguageTag(lang)
	dir := filepath.Dir(videoPath)
	stem := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))

	suffix := ""
	if kind == domain.SubtitleForced {
		suffix = ".forced"
	}

	assPath := filepath.Join(dir, stem+"."+lang+suffix+".ass")
	srtPath := filepath.Join(dir, stem+"."+lang+suffix+".srt")

	switch {
	case statFn(assPath):
		return domain.ExistingExternalASS
	case statFn(srtPath):
		return domain.ExistingExternalSRT
	default:
		return domain.ExistingNone
	}
}
