package store

import (
	"database/sql"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/Abrechen2/sublarr/internal/domain"
)

// TranslationMemoryRepo caches prior translations keyed on normalized source
// text, with an approximate-match lookup for near-duplicate lines (I6).
// Grounded on the teacher's internal/core/db/cache.go fuzzy-match query,
// which loads candidates and scores them with the same library client-side
// rather than pushing edit-distance into SQL.
type TranslationMemoryRepo struct{ s *Store }

func (s *Store) TranslationMemory() *TranslationMemoryRepo { return &TranslationMemoryRepo{s} }

func (r *TranslationMemoryRepo) Put(entry domain.TranslationMemoryEntry) error {
	_, err := r.s.db.Exec(`
		INSERT INTO translation_memory (source_lang, target_lang, normalized_source, translated_text, updated_ts)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source_lang, target_lang, normalized_source)
		DO UPDATE SET translated_text = excluded.translated_text, updated_ts = excluded.updated_ts
	`, entry.SourceLang, entry.TargetLang, entry.NormalizedSource, entry.TranslatedText, time.Now())
	return wrapDBErr("translation_memory.put", err)
}

// Exact returns the cached translation for a byte-identical normalized key.
func (r *TranslationMemoryRepo) Exact(sourceLang, targetLang, normalizedSource string) (string, bool, error) {
	var text string
	err := r.s.db.QueryRow(`
		SELECT translated_text FROM translation_memory
		WHERE source_lang = ? AND target_lang = ? AND normalized_source = ?
	`, sourceLang, targetLang, normalizedSource).Scan(&text)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapDBErr("translation_memory.exact", err)
	}
	return text, true, nil
}

// FuzzyMatch scans entries for the same language pair and returns the
// translated text of the closest normalized source within maxDistance
// Levenshtein edits, or found=false if none qualifies (I6).
func (r *TranslationMemoryRepo) FuzzyMatch(sourceLang, targetLang, normalizedSource string, maxDistance int) (text string, found bool, err error) {
	rows, err := r.s.db.Query(`
		SELECT normalized_source, translated_text FROM translation_memory
		WHERE source_lang = ? AND target_lang = ?
	`, sourceLang, targetLang)
	if err != nil {
		return "", false, wrapDBErr("translation_memory.fuzzy", err)
	}
	defer rows.Close()

	best := maxDistance + 1
	for rows.Next() {
		var candidateSrc, candidateText string
		if scanErr := rows.Scan(&candidateSrc, &candidateText); scanErr != nil {
			return "", false, wrapDBErr("translation_memory.fuzzy.scan", scanErr)
		}
		d := levenshtein.ComputeDistance(normalizedSource, candidateSrc)
		if d <= maxDistance && d < best {
			best = d
			text = candidateText
			found = true
		}
	}
	return text, found, nil
}
