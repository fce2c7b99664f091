package store

import (
	"database/sql"
	"time"

	"github.com/Abrechen2/sublarr/internal/domain"
)

// WantedRepo provides CRUD and the row-level claim primitive for WantedItem.
type WantedRepo struct{ s *Store }

func (s *Store) Wanted() *WantedRepo { return &WantedRepo{s} }

// Upsert creates the item if absent, or refreshes ExistingSub if the
// identity tuple (I1) already exists; LastSearchTS is left untouched. Returns true if a new row was
// created.
func (r *WantedRepo) Upsert(item domain.WantedItem) (bool, error) {
	created := false
	err := r.s.withTx(func(tx *sql.Tx) error {
		var id int64
		err := tx.QueryRow(`
			SELECT id FROM wanted_items
			WHERE file_path = ? AND target_language = ? AND subtitle_type = ?
		`, item.FilePath, item.TargetLanguage, string(item.SubtitleType)).Scan(&id)

		switch {
		case err == sql.ErrNoRows:
			now := time.Now()
			_, err := tx.Exec(`
				INSERT INTO wanted_items
					(file_path, target_language, subtitle_type, status, existing_sub, created_ts)
				VALUES (?, ?, ?, ?, ?, ?)
			`, item.FilePath, item.TargetLanguage, string(item.SubtitleType),
				string(domain.StatusPending), string(item.ExistingSub), now)
			if err != nil {
				return err
			}
			created = true
			return nil
		case err != nil:
			return err
		default:
			_, err := tx.Exec(`UPDATE wanted_items SET existing_sub = ? WHERE id = ?`, string(item.ExistingSub), id)
			return err
		}
	})
	if err != nil {
		return false, wrapDBErr("wanted.upsert", err)
	}
	return created, nil
}

// Claim atomically transitions a WantedItem from fromStatus to toStatus,
// enforcing that at most one worker owns the item at a time (§5). It
// returns false, nil if another worker already claimed it (affected rows
// == 0), distinguishing that from a real error.
func (r *WantedRepo) Claim(id int64, fromStatus, toStatus domain.WantedStatus) (bool, error) {
	res, err := r.s.db.Exec(`
		UPDATE wanted_items SET status = ?, last_search_ts = ?
		WHERE id = ? AND status = ?
	`, string(toStatus), time.Now(), id, string(fromStatus))
	if err != nil {
		return false, wrapDBErr("wanted.claim", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapDBErr("wanted.claim.rows", err)
	}
	return n == 1, nil
}

// Complete marks an item completed with its resulting subtitle path and
// hash, satisfying I2.
func (r *WantedRepo) Complete(id int64, resultPath, resultHash string) error {
	_, err := r.s.db.Exec(`
		UPDATE wanted_items SET status = ?, result_path = ?, result_hash = ?, failure_reason = '', error_message = ''
		WHERE id = ?
	`, string(domain.StatusCompleted), resultPath, resultHash, id)
	return wrapDBErr("wanted.complete", err)
}

// Fail marks an item failed with a structured reason, satisfying I2.
func (r *WantedRepo) Fail(id int64, reason domain.FailureReason, message string) error {
	_, err := r.s.db.Exec(`
		UPDATE wanted_items SET status = ?, failure_reason = ?, error_message = ?, attempts = attempts + 1
		WHERE id = ?
	`, string(domain.StatusFailed), string(reason), message, id)
	return wrapDBErr("wanted.fail", err)
}

// ResetForRetry moves a failed item back to pending, for manual retry or
// the next scan cycle to re-probe it.
func (r *WantedRepo) ResetForRetry(id int64) error {
	_, err := r.s.db.Exec(`UPDATE wanted_items SET status = ? WHERE id = ?`, string(domain.StatusPending), id)
	return wrapDBErr("wanted.reset", err)
}

// Get loads one item by id.
func (r *WantedRepo) Get(id int64) (domain.WantedItem, error) {
	return scanWantedRow(r.s.db.QueryRow(`
		SELECT id, file_path, target_language, subtitle_type, status, existing_sub,
		       attempts, last_search_ts, created_ts, result_path, result_hash,
		       failure_reason, error_message
		FROM wanted_items WHERE id = ?
	`, id))
}

// GetByKey loads one item by its identity tuple (I1), for a scheduler
// Handler that only has a job's file_path/target_language/subtitle_type to
// go on.
func (r *WantedRepo) GetByKey(key domain.WantedItemKey) (domain.WantedItem, error) {
	return scanWantedRow(r.s.db.QueryRow(`
		SELECT id, file_path, target_language, subtitle_type, status, existing_sub,
		       attempts, last_search_ts, created_ts, result_path, result_hash,
		       failure_reason, error_message
		FROM wanted_items WHERE file_path = ? AND target_language = ? AND subtitle_type = ?
	`, key.FilePath, key.TargetLanguage, string(key.SubtitleType)))
}

// ListPending returns up to limit items in pending status, oldest first,
// for the scheduler to dispatch.
func (r *WantedRepo) ListPending(limit int) ([]domain.WantedItem, error) {
	rows, err := r.s.db.Query(`
		SELECT id, file_path, target_language, subtitle_type, status, existing_sub,
		       attempts, last_search_ts, created_ts, result_path, result_hash,
		       failure_reason, error_message
		FROM wanted_items WHERE status = ? ORDER BY created_ts ASC LIMIT ?
	`, string(domain.StatusPending), limit)
	if err != nil {
		return nil, wrapDBErr("wanted.list_pending", err)
	}
	defer rows.Close()

	var out []domain.WantedItem
	for rows.Next() {
		item, err := scanWantedRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// DeleteMissing removes wanted items whose source file is not in the given
// set of currently-known paths. Only the full scan mode calls this (§4.7).
func (r *WantedRepo) DeleteMissing(knownPaths map[string]bool) (int64, error) {
	rows, err := r.s.db.Query(`SELECT id, file_path FROM wanted_items`)
	if err != nil {
		return 0, wrapDBErr("wanted.delete_missing.scan", err)
	}
	var stale []int64
	for rows.Next() {
		var id int64
		var path string
		if err := rows.Scan(&id, &path); err != nil {
			rows.Close()
			return 0, wrapDBErr("wanted.delete_missing.row", err)
		}
		if !knownPaths[path] {
			stale = append(stale, id)
		}
	}
	rows.Close()

	var deleted int64
	err = r.s.withTx(func(tx *sql.Tx) error {
		for _, id := range stale {
			res, err := tx.Exec(`DELETE FROM wanted_items WHERE id = ?`, id)
			if err != nil {
				return err
			}
			n, _ := res.RowsAffected()
			deleted += n
		}
		return nil
	})
	if err != nil {
		return 0, wrapDBErr("wanted.delete_missing", err)
	}
	return deleted, nil
}

func scanWantedRow(row *sql.Row) (domain.WantedItem, error) {
	var w domain.WantedItem
	var subType, status, existing, reason string
	var lastSearch sql.NullTime
	err := row.Scan(&w.ID, &w.FilePath, &w.TargetLanguage, &subType, &status, &existing,
		&w.Attempts, &lastSearch, &w.CreatedTS, &w.ResultPath, &w.ResultHash,
		&reason, &w.ErrorMessage)
	if err == sql.ErrNoRows {
		return domain.WantedItem{}, ErrNotFound()
	}
	if err != nil {
		return domain.WantedItem{}, wrapDBErr("wanted.scan", err)
	}
	w.SubtitleType = domain.SubtitleKind(subType)
	w.Status = domain.WantedStatus(status)
	w.ExistingSub = domain.ExistingSubtitle(existing)
	w.FailureReason = domain.FailureReason(reason)
	if lastSearch.Valid {
		w.LastSearchTS = lastSearch.Time
	}
	return w, nil
}

func scanWantedRows(rows *sql.Rows) (domain.WantedItem, error) {
	var w domain.WantedItem
	var subType, status, existing, reason string
	var lastSearch sql.NullTime
	err := rows.Scan(&w.ID, &w.FilePath, &w.TargetLanguage, &subType, &status, &existing,
		&w.Attempts, &lastSearch, &w.CreatedTS, &w.ResultPath, &w.ResultHash,
		&reason, &w.ErrorMessage)
	if err != nil {
		return domain.WantedItem{}, wrapDBErr("wanted.scan_rows", err)
	}
	w.SubtitleType = domain.SubtitleKind(subType)
	w.Status = domain.WantedStatus(status)
	w.ExistingSub = domain.ExistingSubtitle(existing)
	w.FailureReason = domain.FailureReason(reason)
	if lastSearch.Valid {
		w.LastSearchTS = lastSearch.Time
	}
	return w, nil
}
