package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/Abrechen2/sublarr/internal/domain"
)

// InventoryRepo mirrors the media-manager's view of the library: series,
// episodes, movies and the language profiles bound to them (§4.9/C9). This
// is a local cache refreshed by the sync job, not the source of truth.
type InventoryRepo struct{ s *Store }

func (s *Store) Inventory() *InventoryRepo { return &InventoryRepo{s} }

func (r *InventoryRepo) UpsertSeries(series domain.Series) (int64, error) {
	tags, err := json.Marshal(series.Tags)
	if err != nil {
		return 0, wrapDBErr("inventory.upsert_series.marshal", err)
	}
	var id int64
	err = r.s.withTx(func(tx *sql.Tx) error {
		row := tx.QueryRow(`SELECT id FROM series WHERE path = ?`, series.Path)
		scanErr := row.Scan(&id)
		switch {
		case scanErr == sql.ErrNoRows:
			res, insErr := tx.Exec(`
				INSERT INTO series (title, path, tags, profile_id) VALUES (?, ?, ?, ?)
			`, series.Title, series.Path, string(tags), series.ProfileID)
			if insErr != nil {
				return insErr
			}
			id, _ = res.LastInsertId()
			return nil
		case scanErr != nil:
			return scanErr
		default:
			_, updErr := tx.Exec(`
				UPDATE series SET title = ?, tags = ?, profile_id = ? WHERE id = ?
			`, series.Title, string(tags), series.ProfileID, id)
			return updErr
		}
	})
	if err != nil {
		return 0, wrapDBErr("inventory.upsert_series", err)
	}
	return id, nil
}

func (r *InventoryRepo) UpsertEpisode(ep domain.Episode) error {
	_, err := r.s.db.Exec(`
		INSERT INTO episodes (series_id, season, episode, file_path, last_seen_ts)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			series_id = excluded.series_id, season = excluded.season,
			episode = excluded.episode, last_seen_ts = excluded.last_seen_ts
	`, ep.SeriesID, ep.Season, ep.Episode, ep.FilePath, time.Now())
	return wrapDBErr("inventory.upsert_episode", err)
}

func (r *InventoryRepo) UpsertMovie(m domain.Movie) error {
	tags, err := json.Marshal(m.Tags)
	if err != nil {
		return wrapDBErr("inventory.upsert_movie.marshal", err)
	}
	_, err = r.s.db.Exec(`
		INSERT INTO movies (title, file_path, tags, profile_id) VALUES (?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET title = excluded.title, tags = excluded.tags, profile_id = excluded.profile_id
	`, m.Title, m.FilePath, string(tags), m.ProfileID)
	return wrapDBErr("inventory.upsert_movie", err)
}

// ListAllVideoPaths returns every known episode and movie file path, used by
// the full-scan stale-item cleanup (§4.7).
func (r *InventoryRepo) ListAllVideoPaths() (map[string]bool, error) {
	out := map[string]bool{}
	epRows, err := r.s.db.Query(`SELECT file_path FROM episodes`)
	if err != nil {
		return nil, wrapDBErr("inventory.list_paths.episodes", err)
	}
	for epRows.Next() {
		var p string
		if err := epRows.Scan(&p); err != nil {
			epRows.Close()
			return nil, wrapDBErr("inventory.list_paths.episodes.scan", err)
		}
		out[p] = true
	}
	epRows.Close()

	movieRows, err := r.s.db.Query(`SELECT file_path FROM movies`)
	if err != nil {
		return nil, wrapDBErr("inventory.list_paths.movies", err)
	}
	for movieRows.Next() {
		var p string
		if err := movieRows.Scan(&p); err != nil {
			movieRows.Close()
			return nil, wrapDBErr("inventory.list_paths.movies.scan", err)
		}
		out[p] = true
	}
	movieRows.Close()
	return out, nil
}

// ListScanTargets returns every episode and movie file known to the
// inventory with its resolved profile ID, for the Wanted Scanner (§4.7) to
// probe. Episodes inherit their series' profile_id; movies carry their own.
func (r *InventoryRepo) ListScanTargets() ([]domain.ScanTarget, error) {
	var out []domain.ScanTarget

	epRows, err := r.s.db.Query(`
		SELECT e.file_path, s.title, e.season, e.episode, e.last_seen_ts, s.profile_id
		FROM episodes e JOIN series s ON s.id = e.series_id
	`)
	if err != nil {
		return nil, wrapDBErr("inventory.list_scan_targets.episodes", err)
	}
	for epRows.Next() {
		var t domain.ScanTarget
		if err := epRows.Scan(&t.FilePath, &t.Title, &t.Season, &t.Episode, &t.LastSeenTS, &t.ProfileID); err != nil {
			epRows.Close()
			return nil, wrapDBErr("inventory.list_scan_targets.episodes.scan", err)
		}
		t.IsEpisode = true
		out = append(out, t)
	}
	epRows.Close()

	movieRows, err := r.s.db.Query(`SELECT file_path, title, profile_id FROM movies`)
	if err != nil {
		return nil, wrapDBErr("inventory.list_scan_targets.movies", err)
	}
	for movieRows.Next() {
		var t domain.ScanTarget
		if err := movieRows.Scan(&t.FilePath, &t.Title, &t.ProfileID); err != nil {
			movieRows.Close()
			return nil, wrapDBErr("inventory.list_scan_targets.movies.scan", err)
		}
		out = append(out, t)
	}
	movieRows.Close()
	return out, nil
}

// GetScanTargetByPath resolves a single file's scan target by its path, for
// a job handler that only has a WantedItem's file_path to work from (it
// needs the owning series/movie's title and profile to build a VideoQuery).
func (r *InventoryRepo) GetScanTargetByPath(filePath string) (domain.ScanTarget, error) {
	var t domain.ScanTarget
	row := r.s.db.QueryRow(`
		SELECT e.file_path, s.title, e.season, e.episode, e.last_seen_ts, s.profile_id, 1
		FROM episodes e JOIN series s ON s.id = e.series_id
		WHERE e.file_path = ?
	`, filePath)
	var isEpisode int
	err := row.Scan(&t.FilePath, &t.Title, &t.Season, &t.Episode, &t.LastSeenTS, &t.ProfileID, &isEpisode)
	if err == nil {
		t.IsEpisode = true
		return t, nil
	}
	if err != sql.ErrNoRows {
		return domain.ScanTarget{}, wrapDBErr("inventory.get_scan_target.episode", err)
	}

	row = r.s.db.QueryRow(`SELECT file_path, title, profile_id FROM movies WHERE file_path = ?`, filePath)
	if err := row.Scan(&t.FilePath, &t.Title, &t.ProfileID); err != nil {
		if err == sql.ErrNoRows {
			return domain.ScanTarget{}, ErrNotFound()
		}
		return domain.ScanTarget{}, wrapDBErr("inventory.get_scan_target.movie", err)
	}
	return t, nil
}

func (r *InventoryRepo) CreateProfile(p domain.LanguageProfile) (int64, error) {
	targets, err := json.Marshal(p.TargetLanguages)
	if err != nil {
		return 0, wrapDBErr("inventory.create_profile.marshal_targets", err)
	}
	chain, err := json.Marshal(p.BackendChain)
	if err != nil {
		return 0, wrapDBErr("inventory.create_profile.marshal_chain", err)
	}
	res, err := r.s.db.Exec(`
		INSERT INTO language_profiles (name, source_language, target_languages, forced_preference, backend_chain, is_default)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.Name, p.SourceLanguage, string(targets), string(p.ForcedPreference), string(chain), boolToInt(p.Default))
	if err != nil {
		return 0, wrapDBErr("inventory.create_profile", err)
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// DefaultProfile returns the profile marked is_default, or ErrNotFound if
// none has been configured yet.
func (r *InventoryRepo) DefaultProfile() (domain.LanguageProfile, error) {
	row := r.s.db.QueryRow(`
		SELECT id, name, source_language, target_languages, forced_preference, backend_chain, is_default
		FROM language_profiles WHERE is_default = 1 LIMIT 1
	`)
	return scanProfile(row)
}

func (r *InventoryRepo) ProfileByID(id int64) (domain.LanguageProfile, error) {
	row := r.s.db.QueryRow(`
		SELECT id, name, source_language, target_languages, forced_preference, backend_chain, is_default
		FROM language_profiles WHERE id = ?
	`, id)
	return scanProfile(row)
}

func scanProfile(row *sql.Row) (domain.LanguageProfile, error) {
	var p domain.LanguageProfile
	var targetsJSON, chainJSON, forced string
	var isDefault int
	err := row.Scan(&p.ID, &p.Name, &p.SourceLanguage, &targetsJSON, &forced, &chainJSON, &isDefault)
	if err == sql.ErrNoRows {
		return domain.LanguageProfile{}, ErrNotFound()
	}
	if err != nil {
		return domain.LanguageProfile{}, wrapDBErr("inventory.scan_profile", err)
	}
	p.ForcedPreference = domain.ForcedPreference(forced)
	p.Default = isDefault != 0
	_ = json.Unmarshal([]byte(targetsJSON), &p.TargetLanguages)
	_ = json.Unmarshal([]byte(chainJSON), &p.BackendChain)
	return p, nil
}
