package store

import (
	"database/sql"
	"time"
)

// ProviderCacheRepo stores raw provider-search responses keyed by a caller
// supplied cache key (typically provider name + normalized query), honoring
// a per-entry TTL (§4.3, default 1h).
type ProviderCacheRepo struct{ s *Store }

func (s *Store) ProviderCache() *ProviderCacheRepo { return &ProviderCacheRepo{s} }

func (r *ProviderCacheRepo) Put(key string, value []byte, ttl time.Duration) error {
	_, err := r.s.db.Exec(`
		INSERT INTO provider_cache (cache_key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
	`, key, value, time.Now().Add(ttl))
	return wrapDBErr("provider_cache.put", err)
}

// Get returns the cached value and true if present and not expired. An
// expired or missing entry returns (nil, false, nil) — not an error.
func (r *ProviderCacheRepo) Get(key string) ([]byte, bool, error) {
	var value []byte
	var expires time.Time
	err := r.s.db.QueryRow(`SELECT value, expires_at FROM provider_cache WHERE cache_key = ?`, key).
		Scan(&value, &expires)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapDBErr("provider_cache.get", err)
	}
	if time.Now().After(expires) {
		return nil, false, nil
	}
	return value, true, nil
}

// PurgeExpired deletes every entry whose TTL has elapsed; run daily by the
// scheduler (§4.8).
func (r *ProviderCacheRepo) PurgeExpired() (int64, error) {
	res, err := r.s.db.Exec(`DELETE FROM provider_cache WHERE expires_at <= ?`, time.Now())
	if err != nil {
		return 0, wrapDBErr("provider_cache.purge", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
