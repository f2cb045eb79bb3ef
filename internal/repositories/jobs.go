// package repositories provides the persistence layer for cross-invocation
// state. The only persisted session data is the active-jobs list used for
// awareness of running workflow runs; full session state lives server-side.
package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dennisjooo/moodlist/internal/api"
)

const (
	// maxActiveJobs caps the active-jobs list.
	maxActiveJobs = 5
	// maxJobAge prunes entries regardless of stage.
	maxJobAge = time.Hour
)

// ActiveJob is one entry in the active-jobs list.
type ActiveJob struct {
	SessionID  string
	Stage      api.Stage
	MoodPrompt string
	StartedAt  time.Time
	UpdatedAt  time.Time
}

// ActiveJobRepository persists the active-jobs list in SQLite.
type ActiveJobRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewActiveJobRepository creates a repository with the given database connection.
func NewActiveJobRepository(db *sql.DB) *ActiveJobRepository {
	return &ActiveJobRepository{db: db, now: time.Now}
}

// Record upserts a job entry, then enforces the age and size caps.
func (r *ActiveJobRepository) Record(job ActiveJob) error {
	now := r.now()
	if job.StartedAt.IsZero() {
		job.StartedAt = now
	}

	query := `
		INSERT INTO active_jobs (session_id, stage, mood_prompt, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET stage = excluded.stage, updated_at = excluded.updated_at
	`

	_, err := r.db.Exec(query, job.SessionID, string(job.Stage), job.MoodPrompt, job.StartedAt, now)
	if err != nil {
		return fmt.Errorf("failed to record active job: %w", err)
	}

	return r.prune()
}

// UpdateStage records a stage change; a terminal stage removes the entry.
func (r *ActiveJobRepository) UpdateStage(sessionID string, stage api.Stage) error {
	if stage.Terminal() {
		return r.Remove(sessionID)
	}

	query := `UPDATE active_jobs SET stage = ?, updated_at = ? WHERE session_id = ?`
	_, err := r.db.Exec(query, string(stage), r.now(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to update active job: %w", err)
	}
	return nil
}

// Remove deletes an entry by session id.
func (r *ActiveJobRepository) Remove(sessionID string) error {
	_, err := r.db.Exec(`DELETE FROM active_jobs WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to remove active job: %w", err)
	}
	return nil
}

// List returns current entries, newest started first, after pruning.
func (r *ActiveJobRepository) List() ([]ActiveJob, error) {
	if err := r.prune(); err != nil {
		return nil, err
	}

	query := `
		SELECT session_id, stage, mood_prompt, started_at, updated_at
		FROM active_jobs
		ORDER BY started_at DESC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active jobs: %w", err)
	}
	defer rows.Close()

	var jobs []ActiveJob
	for rows.Next() {
		var (
			job   ActiveJob
			stage string
		)
		if err := rows.Scan(&job.SessionID, &stage, &job.MoodPrompt, &job.StartedAt, &job.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan active job: %w", err)
		}
		job.Stage = api.Stage(stage)
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return jobs, nil
}

// prune drops entries older than maxJobAge and trims the list to
// maxActiveJobs, oldest first.
func (r *ActiveJobRepository) prune() error {
	cutoff := r.now().Add(-maxJobAge)
	if _, err := r.db.Exec(`DELETE FROM active_jobs WHERE started_at < ?`, cutoff); err != nil {
		return fmt.Errorf("failed to prune stale jobs: %w", err)
	}

	query := `
		DELETE FROM active_jobs WHERE session_id NOT IN (
			SELECT session_id FROM active_jobs ORDER BY started_at DESC LIMIT ?
		)
	`
	if _, err := r.db.Exec(query, maxActiveJobs); err != nil {
		return fmt.Errorf("failed to cap active jobs: %w", err)
	}

	return nil
}
