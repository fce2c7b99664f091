package store

import (
	"database/sql"

	"github.com/Abrechen2/sublarr/internal/domain"
)

// WebhookRepo persists outbound HTTP event subscribers (§4.2).
type WebhookRepo struct{ s *Store }

func (s *Store) Webhooks() *WebhookRepo { return &WebhookRepo{s} }

func (r *WebhookRepo) Create(w domain.WebhookConfig) (int64, error) {
	res, err := r.s.db.Exec(`
		INSERT INTO webhook_configs (event_name, enabled, url, secret, retry_count)
		VALUES (?, ?, ?, ?, ?)
	`, w.EventName, boolToInt(w.Enabled), w.URL, w.Secret, w.RetryCount)
	if err != nil {
		return 0, wrapDBErr("webhooks.create", err)
	}
	id, _ := res.LastInsertId()
	return id, nil
}

func (r *WebhookRepo) ForEvent(eventName string) ([]domain.WebhookConfig, error) {
	rows, err := r.s.db.Query(`
		SELECT id, event_name, enabled, url, secret, retry_count, consecutive_failures, auto_disabled
		FROM webhook_configs WHERE event_name = ? AND enabled = 1 AND auto_disabled = 0
	`, eventName)
	if err != nil {
		return nil, wrapDBErr("webhooks.for_event", err)
	}
	defer rows.Close()

	var out []domain.WebhookConfig
	for rows.Next() {
		var w domain.WebhookConfig
		var enabled, autoDisabled int
		if err := rows.Scan(&w.ID, &w.EventName, &enabled, &w.URL, &w.Secret, &w.RetryCount, &w.ConsecutiveFailures, &autoDisabled); err != nil {
			return nil, wrapDBErr("webhooks.for_event.scan", err)
		}
		w.Enabled = enabled != 0
		w.AutoDisabled = autoDisabled != 0
		out = append(out, w)
	}
	return out, nil
}

// RecordResult mirrors HookRepo.RecordResult for webhook subscribers.
func (r *WebhookRepo) RecordResult(id int64, ok bool, autoDisableAfter int) error {
	return r.s.withTx(func(tx *sql.Tx) error {
		if ok {
			_, err := tx.Exec(`UPDATE webhook_configs SET consecutive_failures = 0 WHERE id = ?`, id)
			return err
		}
		_, err := tx.Exec(`UPDATE webhook_configs SET consecutive_failures = consecutive_failures + 1 WHERE id = ?`, id)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
			UPDATE webhook_configs SET auto_disabled = 1
			WHERE id = ? AND consecutive_failures >= ?
		`, id, autoDisableAfter)
		return err
	})
}
