package store

import (
	"database/sql"
	"time"

	"github.com/Abrechen2/sublarr/internal/domain"
)

// HookRepo persists shell-script event subscribers and their recent
// execution history (§4.2). hook_log rows are append-only and capped by
// the caller trimming stdout/stderr before writing, not by this repo.
type HookRepo struct{ s *Store }

func (s *Store) Hooks() *HookRepo { return &HookRepo{s} }

func (r *HookRepo) Create(h domain.HookConfig) (int64, error) {
	res, err := r.s.db.Exec(`
		INSERT INTO hook_configs (event_name, enabled, script_path, timeout_seconds)
		VALUES (?, ?, ?, ?)
	`, h.EventName, boolToInt(h.Enabled), h.ScriptPath, int(h.Timeout.Seconds()))
	if err != nil {
		return 0, wrapDBErr("hooks.create", err)
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// ForEvent returns every enabled, non-auto-disabled hook subscribed to the
// given event name. The hook_executed meta-event is deliberately excluded
// by the event bus before it ever calls this, not by this query.
func (r *HookRepo) ForEvent(eventName string) ([]domain.HookConfig, error) {
	rows, err := r.s.db.Query(`
		SELECT id, event_name, enabled, script_path, timeout_seconds, consecutive_failures, auto_disabled
		FROM hook_configs WHERE event_name = ? AND enabled = 1 AND auto_disabled = 0
	`, eventName)
	if err != nil {
		return nil, wrapDBErr("hooks.for_event", err)
	}
	defer rows.Close()

	var out []domain.HookConfig
	for rows.Next() {
		var h domain.HookConfig
		var timeoutSec int
		var enabled, autoDisabled int
		if err := rows.Scan(&h.ID, &h.EventName, &enabled, &h.ScriptPath, &timeoutSec, &h.ConsecutiveFailures, &autoDisabled); err != nil {
			return nil, wrapDBErr("hooks.for_event.scan", err)
		}
		h.Enabled = enabled != 0
		h.AutoDisabled = autoDisabled != 0
		h.Timeout = time.Duration(timeoutSec) * time.Second
		out = append(out, h)
	}
	return out, nil
}

// RecordResult updates the consecutive-failure counter and auto-disables
// the hook once it reaches the given threshold (default 10).
func (r *HookRepo) RecordResult(id int64, ok bool, autoDisableAfter int) error {
	return r.s.withTx(func(tx *sql.Tx) error {
		if ok {
			_, err := tx.Exec(`UPDATE hook_configs SET consecutive_failures = 0 WHERE id = ?`, id)
			return err
		}
		_, err := tx.Exec(`UPDATE hook_configs SET consecutive_failures = consecutive_failures + 1 WHERE id = ?`, id)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
			UPDATE hook_configs SET auto_disabled = 1
			WHERE id = ? AND consecutive_failures >= ?
		`, id, autoDisableAfter)
		return err
	})
}

// AppendLog writes one hook execution record. Callers are expected to have
// already truncated stdout/stderr to the configured cap (~4kB).
func (r *HookRepo) AppendLog(hookID int64, ok bool, stdout, stderr string) error {
	_, err := r.s.db.Exec(`
		INSERT INTO hook_log (hook_id, ran_ts, exit_ok, stdout, stderr) VALUES (?, ?, ?, ?, ?)
	`, hookID, time.Now(), boolToInt(ok), stdout, stderr)
	return wrapDBErr("hooks.append_log", err)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
