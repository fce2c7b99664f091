package store

import (
	"database/sql"

	"github.com/Abrechen2/sublarr/internal/domain"
)

// BlacklistRepo excludes specific provider results (by content hash) from
// all future searches, per the client-side filtering stage of the Provider
// Manager (§4.3).
type BlacklistRepo struct{ s *Store }

func (s *Store) Blacklist() *BlacklistRepo { return &BlacklistRepo{s} }

func (r *BlacklistRepo) Add(entry domain.BlacklistEntry) error {
	_, err := r.s.db.Exec(`
		INSERT INTO blacklist_entries (provider, content_hash, reason) VALUES (?, ?, ?)
		ON CONFLICT(provider, content_hash) DO UPDATE SET reason = excluded.reason
	`, entry.Provider, entry.ContentHash, entry.Reason)
	return wrapDBErr("blacklist.add", err)
}

func (r *BlacklistRepo) Remove(provider, contentHash string) error {
	_, err := r.s.db.Exec(`DELETE FROM blacklist_entries WHERE provider = ? AND content_hash = ?`, provider, contentHash)
	return wrapDBErr("blacklist.remove", err)
}

func (r *BlacklistRepo) IsBlacklisted(provider, contentHash string) (bool, error) {
	var id int64
	err := r.s.db.QueryRow(`
		SELECT id FROM blacklist_entries WHERE provider = ? AND content_hash = ?
	`, provider, contentHash).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, wrapDBErr("blacklist.check", err)
	}
	return true, nil
}
