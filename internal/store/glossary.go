package store

import (
	"github.com/Abrechen2/sublarr/internal/domain"
)

// GlossaryRepo stores fixed source-to-target term substitutions injected
// into translation prompts (§4.4).
type GlossaryRepo struct{ s *Store }

func (s *Store) Glossary() *GlossaryRepo { return &GlossaryRepo{s} }

func (r *GlossaryRepo) Create(entry domain.GlossaryEntry) (int64, error) {
	res, err := r.s.db.Exec(`
		INSERT INTO glossary_entries (source_term, target_term, scope) VALUES (?, ?, ?)
	`, entry.SourceTerm, entry.TargetTerm, entry.Scope)
	if err != nil {
		return 0, wrapDBErr("glossary.create", err)
	}
	id, _ := res.LastInsertId()
	return id, nil
}

func (r *GlossaryRepo) Delete(id int64) error {
	_, err := r.s.db.Exec(`DELETE FROM glossary_entries WHERE id = ?`, id)
	return wrapDBErr("glossary.delete", err)
}

// ForScope returns every entry visible to the given scope plus the global
// scope, since series-scoped glossaries supplement rather than replace the
// global one.
func (r *GlossaryRepo) ForScope(scope string) ([]domain.GlossaryEntry, error) {
	rows, err := r.s.db.Query(`
		SELECT id, source_term, target_term, scope FROM glossary_entries
		WHERE scope = ? OR scope = ?
		ORDER BY scope = ? DESC
	`, scope, string(domain.ScopeGlobal), string(domain.ScopeGlobal))
	if err != nil {
		return nil, wrapDBErr("glossary.for_scope", err)
	}
	defer rows.Close()

	var out []domain.GlossaryEntry
	for rows.Next() {
		var e domain.GlossaryEntry
		if err := rows.Scan(&e.ID, &e.SourceTerm, &e.TargetTerm, &e.Scope); err != nil {
			return nil, wrapDBErr("glossary.for_scope.scan", err)
		}
		out = append(out, e)
	}
	return out, nil
}
