package store

import "fmt"

// migration is one ordered schema step. migrate runs each step in one
// transaction together with its schema_migrations row, so a recorded step
// is never run again; the CREATE statements also use "IF NOT EXISTS", while
// the ALTER TABLE step relies on that record alone.
type migration struct {
	id  int
	sql string
}

var migrations = []migration{
	{1, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS series (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			path TEXT NOT NULL,
			tags TEXT NOT NULL DEFAULT '[]',
			profile_id INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS episodes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			series_id INTEGER NOT NULL REFERENCES series(id),
			season INTEGER NOT NULL,
			episode INTEGER NOT NULL,
			file_path TEXT NOT NULL UNIQUE,
			last_seen_ts DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS movies (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			file_path TEXT NOT NULL UNIQUE,
			tags TEXT NOT NULL DEFAULT '[]',
			profile_id INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS language_profiles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			source_language TEXT NOT NULL,
			target_languages TEXT NOT NULL DEFAULT '[]',
			forced_preference TEXT NOT NULL DEFAULT 'disabled',
			backend_chain TEXT NOT NULL DEFAULT '[]',
			is_default INTEGER NOT NULL DEFAULT 0
		);
	`},
	{2, `
		CREATE TABLE IF NOT EXISTS wanted_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			file_path TEXT NOT NULL,
			target_language TEXT NOT NULL,
			subtitle_type TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			existing_sub TEXT NOT NULL DEFAULT 'none',
			attempts INTEGER NOT NULL DEFAULT 0,
			last_search_ts DATETIME,
			created_ts DATETIME NOT NULL,
			result_path TEXT NOT NULL DEFAULT '',
			result_hash TEXT NOT NULL DEFAULT '',
			failure_reason TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			UNIQUE(file_path, target_language, subtitle_type)
		);

		CREATE INDEX IF NOT EXISTS idx_wanted_status ON wanted_items(status);
	`},
	{3, `
		CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			file_path TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			stats_json TEXT NOT NULL DEFAULT '{}',
			created_ts DATETIME NOT NULL,
			completed_ts DATETIME,
			error TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
	`},
	{4, `
		CREATE TABLE IF NOT EXISTS provider_cache (
			cache_key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			expires_at DATETIME NOT NULL
		);
	`},
	{5, `
		CREATE TABLE IF NOT EXISTS translation_memory (
			source_lang TEXT NOT NULL,
			target_lang TEXT NOT NULL,
			normalized_source TEXT NOT NULL,
			translated_text TEXT NOT NULL,
			updated_ts DATETIME NOT NULL,
			PRIMARY KEY (source_lang, target_lang, normalized_source)
		);

		CREATE TABLE IF NOT EXISTS glossary_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_term TEXT NOT NULL,
			target_term TEXT NOT NULL,
			scope TEXT NOT NULL DEFAULT 'global',
			UNIQUE(source_term, scope)
		);

		CREATE TABLE IF NOT EXISTS blacklist_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			provider TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			UNIQUE(provider, content_hash)
		);
	`},
	{6, `
		CREATE TABLE IF NOT EXISTS hook_configs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_name TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			script_path TEXT NOT NULL,
			timeout_seconds INTEGER NOT NULL DEFAULT 10,
			consecutive_failures INTEGER NOT NULL DEFAULT 0,
			auto_disabled INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS webhook_configs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_name TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			url TEXT NOT NULL,
			secret TEXT NOT NULL DEFAULT '',
			retry_count INTEGER NOT NULL DEFAULT 3,
			consecutive_failures INTEGER NOT NULL DEFAULT 0,
			auto_disabled INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS hook_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			hook_id INTEGER NOT NULL,
			ran_ts DATETIME NOT NULL,
			exit_ok INTEGER NOT NULL,
			stdout TEXT NOT NULL DEFAULT '',
			stderr TEXT NOT NULL DEFAULT ''
		);
	`},
	{7, `
		CREATE TABLE IF NOT EXISTS scoring_weights (
			score_type TEXT NOT NULL,
			weight_key TEXT NOT NULL,
			weight_value REAL NOT NULL,
			PRIMARY KEY (score_type, weight_key)
		);

		CREATE TABLE IF NOT EXISTS scoring_provider_modifiers (
			provider_name TEXT PRIMARY KEY,
			modifier INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS config_entries (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`},
	{8, `
		ALTER TABLE jobs ADD COLUMN target_language TEXT NOT NULL DEFAULT '';
		ALTER TABLE jobs ADD COLUMN subtitle_type TEXT NOT NULL DEFAULT '';
	`},
}

// migrate applies any migration not yet recorded in schema_migrations, in
// ascending id order, inside the writer lock.
func (s *Store) migrate() error {
	// Bootstrap the tracking table itself outside the loop so migration 1
	// can reference it.
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (id INTEGER PRIMARY KEY)`); err != nil {
		return wrapDBErr("migrate.bootstrap", err)
	}

	return s.withWriteLock(func() error {
		applied := map[int]bool{}
		rows, err := s.db.Query(`SELECT id FROM schema_migrations`)
		if err != nil {
			return wrapDBErr("migrate.query", err)
		}
		for rows.Next() {
			var id int
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return wrapDBErr("migrate.scan", err)
			}
			applied[id] = true
		}
		rows.Close()

		for _, m := range migrations {
			if applied[m.id] {
				continue
			}
			tx, err := s.db.Begin()
			if err != nil {
				return wrapDBErr("migrate.begin", err)
			}
			if _, err := tx.Exec(m.sql); err != nil {
				tx.Rollback()
				return wrapDBErr(fmt.Sprintf("migrate.apply[%d]", m.id), err)
			}
			if _, err := tx.Exec(`INSERT INTO schema_migrations(id) VALUES (?)`, m.id); err != nil {
				tx.Rollback()
				return wrapDBErr(fmt.Sprintf("migrate.record[%d]", m.id), err)
			}
			if err := tx.Commit(); err != nil {
				return wrapDBErr(fmt.Sprintf("migrate.commit[%d]", m.id), err)
			}
			s.log.Info().Int("migration", m.id).Msg("applied schema migration")
		}
		return nil
	})
}
