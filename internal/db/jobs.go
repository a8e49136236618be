package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/lesterapp/lester/internal/errors"
	"github.com/lesterapp/lester/internal/jobs"
)

const jobColumns = `id, bookmark_id, status, attempts, created_at, updated_at`

// CreateJob enqueues a pending tag job for a bookmark.
func CreateJob(ctx context.Context, q Querier, bookmarkID string) (*jobs.TagJob, error) {
	now := time.Now().Unix()
	job := &jobs.TagJob{
		ID:         NewID(),
		BookmarkID: bookmarkID,
		Status:     jobs.StatusPending,
		Attempts:   0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO tag_jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		job.ID, job.BookmarkID, string(job.Status), job.Attempts, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return job, nil
}

// GetJob retrieves a tag job by id.
func GetJob(ctx context.Context, q Querier, id string) (*jobs.TagJob, error) {
	row := q.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM tag_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFound("job", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return job, nil
}

// FetchPendingJobs returns up to limit pending jobs, oldest first.
func FetchPendingJobs(ctx context.Context, q Querier, limit int) ([]jobs.TagJob, error) {
	return queryJobs(ctx, q, `
		SELECT `+jobColumns+` FROM tag_jobs
		WHERE status = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?`, string(jobs.StatusPending), limit)
}

// ListJobs returns jobs newest first, optionally restricted to one status.
func ListJobs(ctx context.Context, q Querier, status jobs.Status, limit int) ([]jobs.TagJob, error) {
	if status == "" {
		return queryJobs(ctx, q, `
			SELECT `+jobColumns+` FROM tag_jobs
			ORDER BY created_at DESC, id DESC
			LIMIT ?`, limit)
	}
	return queryJobs(ctx, q, `
		SELECT `+jobColumns+` FROM tag_jobs
		WHERE status = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, string(status), limit)
}

// TransitionJob moves a job from one status to another in a single
// conditional UPDATE. attempts counts claims, so it is bumped only on
// pending -> running.
//
// It returns false with a nil error when the job was not in from (another
// worker got there first, or the job does not exist). Illegal transitions are
// refused with INVALID_TRANSITION before touching the store.
func TransitionJob(ctx context.Context, q Querier, id string, from, to jobs.Status) (bool, error) {
	if !jobs.CanTransition(from, to) {
		return false, errors.NewInvalidTransition(id, string(from), string(to))
	}
	bump := 0
	if to == jobs.StatusRunning {
		bump = 1
	}
	result, err := q.ExecContext(ctx, `
		UPDATE tag_jobs
		SET status = ?, updated_at = ?, attempts = attempts + ?
		WHERE id = ? AND status = ?`,
		string(to), time.Now().Unix(), bump, id, string(from),
	)
	if err != nil {
		return false, errors.NewInternal(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return rowsAffected == 1, nil
}

// UpdateJobStatus sets a job's status unconditionally, bumping attempts and
// updated_at. The worker uses TransitionJob; this is for administrative repair.
func UpdateJobStatus(ctx context.Context, q Querier, id string, status jobs.Status) error {
	result, err := q.ExecContext(ctx, `
		UPDATE tag_jobs
		SET status = ?, updated_at = ?, attempts = attempts + 1
		WHERE id = ?`,
		string(status), time.Now().Unix(), id,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound("job", id)
	}
	return nil
}

func queryJobs(ctx context.Context, q Querier, query string, args ...any) ([]jobs.TagJob, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	list := []jobs.TagJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		list = append(list, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return list, nil
}

func scanJob(row scanner) (*jobs.TagJob, error) {
	var (
		job    jobs.TagJob
		status string
	)
	if err := row.Scan(&job.ID, &job.BookmarkID, &status, &job.Attempts, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return nil, err
	}
	st, err := jobs.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", job.ID, err)
	}
	job.Status = st
	return &job, nil
}
