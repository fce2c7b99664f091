package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/Abrechen2/sublarr/internal/domain"
)

// JobRepo persists the background-work ledger (§4.8). Jobs are immutable
// once terminal; the scheduler only ever creates, marks-running, then
// marks-completed or marks-failed.
type JobRepo struct{ s *Store }

func (s *Store) Jobs() *JobRepo { return &JobRepo{s} }

func (r *JobRepo) Create(job domain.Job) error {
	stats, err := json.Marshal(job.Stats)
	if err != nil {
		return wrapDBErr("jobs.create.marshal", err)
	}
	_, err = r.s.db.Exec(`
		INSERT INTO jobs (id, kind, file_path, target_language, subtitle_type, status, stats_json, created_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, string(job.Kind), job.FilePath, job.TargetLanguage, string(job.SubtitleType),
		string(domain.JobPending), string(stats), time.Now())
	return wrapDBErr("jobs.create", err)
}

func (r *JobRepo) MarkRunning(id string) error {
	_, err := r.s.db.Exec(`UPDATE jobs SET status = ? WHERE id = ?`, string(domain.JobRunning), id)
	return wrapDBErr("jobs.mark_running", err)
}

func (r *JobRepo) MarkCompleted(id string, stats map[string]any) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return wrapDBErr("jobs.complete.marshal", err)
	}
	_, err = r.s.db.Exec(`
		UPDATE jobs SET status = ?, stats_json = ?, completed_ts = ? WHERE id = ?
	`, string(domain.JobCompleted), string(payload), time.Now(), id)
	return wrapDBErr("jobs.complete", err)
}

func (r *JobRepo) MarkFailed(id string, errMsg string) error {
	_, err := r.s.db.Exec(`
		UPDATE jobs SET status = ?, error = ?, completed_ts = ? WHERE id = ?
	`, string(domain.JobFailed), errMsg, time.Now(), id)
	return wrapDBErr("jobs.fail", err)
}

func (r *JobRepo) Get(id string) (domain.Job, error) {
	row := r.s.db.QueryRow(`
		SELECT id, kind, file_path, target_language, subtitle_type, status, stats_json, created_ts, completed_ts, error
		FROM jobs WHERE id = ?
	`, id)
	return scanJob(row)
}

// ListRecent returns the most recently created jobs, newest first, for the
// CLI/API status surface.
func (r *JobRepo) ListRecent(limit int) ([]domain.Job, error) {
	rows, err := r.s.db.Query(`
		SELECT id, kind, file_path, target_language, subtitle_type, status, stats_json, created_ts, completed_ts, error
		FROM jobs ORDER BY created_ts DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, wrapDBErr("jobs.list_recent", err)
	}
	defer rows.Close()

	var out []domain.Job
	for rows.Next() {
		var id, kind, filePath, targetLang, subType, status, statsJSON, errMsg string
		var created time.Time
		var completed sql.NullTime
		if err := rows.Scan(&id, &kind, &filePath, &targetLang, &subType, &status, &statsJSON, &created, &completed, &errMsg); err != nil {
			return nil, wrapDBErr("jobs.list_recent.scan", err)
		}
		job := domain.Job{
			ID: id, Kind: domain.JobKind(kind), FilePath: filePath,
			TargetLanguage: targetLang, SubtitleType: domain.SubtitleKind(subType),
			Status: domain.JobStatus(status), CreatedTS: created, Error: errMsg,
		}
		if completed.Valid {
			job.CompletedTS = completed.Time
		}
		_ = json.Unmarshal([]byte(statsJSON), &job.Stats)
		out = append(out, job)
	}
	return out, nil
}

func scanJob(row *sql.Row) (domain.Job, error) {
	var id, kind, filePath, targetLang, subType, status, statsJSON, errMsg string
	var created time.Time
	var completed sql.NullTime
	err := row.Scan(&id, &kind, &filePath, &targetLang, &subType, &status, &statsJSON, &created, &completed, &errMsg)
	if err == sql.ErrNoRows {
		return domain.Job{}, ErrNotFound()
	}
	if err != nil {
		return domain.Job{}, wrapDBErr("jobs.scan", err)
	}
	job := domain.Job{
		ID: id, Kind: domain.JobKind(kind), FilePath: filePath,
		TargetLanguage: targetLang, SubtitleType: domain.SubtitleKind(subType),
		Status: domain.JobStatus(status), CreatedTS: created, Error: errMsg,
	}
	if completed.Valid {
		job.CompletedTS = completed.Time
	}
	_ = json.Unmarshal([]byte(statsJSON), &job.Stats)
	return job, nil
}
