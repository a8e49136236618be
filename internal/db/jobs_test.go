package db

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lesterapp/lester/internal/errors"
	"github.com/lesterapp/lester/internal/jobs"
)

func TestCreateJob(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	job, err := CreateJob(ctx, db, "b1")
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusPending, job.Status)
	assert.Equal(t, 0, job.Attempts)

	got, err := GetJob(ctx, db, job.ID)
	require.NoError(t, err)
	assert.Equal(t, *job, *got)

	_, err = GetJob(ctx, db, "missing")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestFetchPendingJobs_OldestFirst(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 4; i++ {
		job, err := CreateJob(ctx, db, "b")
		require.NoError(t, err)
		ids = append(ids, job.ID)
	}
	// Make the last one the oldest by clock.
	_, err := db.Exec(`UPDATE tag_jobs SET created_at = created_at - 100 WHERE id = ?`, ids[3])
	require.NoError(t, err)

	claimed, err := TransitionJob(ctx, db, ids[1], jobs.StatusPending, jobs.StatusRunning)
	require.NoError(t, err)
	require.True(t, claimed)

	pending, err := FetchPendingJobs(ctx, db, 10)
	require.NoError(t, err)
	got := make([]string, 0, len(pending))
	for _, j := range pending {
		got = append(got, j.ID)
	}
	assert.Equal(t, []string{ids[3], ids[0], ids[2]}, got)

	limited, err := FetchPendingJobs(ctx, db, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, ids[3], limited[0].ID)
}

func TestTransitionJob(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	job, err := CreateJob(ctx, db, "b")
	require.NoError(t, err)

	claimed, err := TransitionJob(ctx, db, job.ID, jobs.StatusPending, jobs.StatusRunning)
	require.NoError(t, err)
	assert.True(t, claimed)

	// A second claim loses the race without an error.
	claimed, err = TransitionJob(ctx, db, job.ID, jobs.StatusPending, jobs.StatusRunning)
	require.NoError(t, err)
	assert.False(t, claimed)

	done, err := TransitionJob(ctx, db, job.ID, jobs.StatusRunning, jobs.StatusDone)
	require.NoError(t, err)
	assert.True(t, done)

	got, err := GetJob(ctx, db, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusDone, got.Status)
	assert.Equal(t, 1, got.Attempts, "only the claim counts as an attempt")
	assert.GreaterOrEqual(t, got.UpdatedAt, got.CreatedAt)
}

func TestTransitionJob_IllegalIsRefused(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	job, err := CreateJob(ctx, db, "b")
	require.NoError(t, err)

	for _, tc := range []struct{ from, to jobs.Status }{
		{jobs.StatusPending, jobs.StatusDone},
		{jobs.StatusDone, jobs.StatusRunning},
		{jobs.StatusFailed, jobs.StatusPending},
		{jobs.StatusRunning, jobs.StatusPending},
	} {
		ok, err := TransitionJob(ctx, db, job.ID, tc.from, tc.to)
		assert.False(t, ok)
		assert.True(t, errors.Is(err, errors.ErrInvalidTransition), "%s -> %s", tc.from, tc.to)
	}

	got, err := GetJob(ctx, db, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusPending, got.Status)
	assert.Equal(t, 0, got.Attempts)
}

func TestTransitionJob_Missing(t *testing.T) {
	db := openTestDB(t)

	ok, err := TransitionJob(context.Background(), db, "missing", jobs.StatusPending, jobs.StatusRunning)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateJobStatus(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	job, err := CreateJob(ctx, db, "b")
	require.NoError(t, err)

	require.NoError(t, UpdateJobStatus(ctx, db, job.ID, jobs.StatusFailed))
	got, err := GetJob(ctx, db, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, got.Status)
	assert.Equal(t, 1, got.Attempts)

	err = UpdateJobStatus(ctx, db, "missing", jobs.StatusDone)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestListJobs(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	first, err := CreateJob(ctx, db, "b1")
	require.NoError(t, err)
	second, err := CreateJob(ctx, db, "b2")
	require.NoError(t, err)
	_, err = TransitionJob(ctx, db, first.ID, jobs.StatusPending, jobs.StatusRunning)
	require.NoError(t, err)

	all, err := ListJobs(ctx, db, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)

	running, err := ListJobs(ctx, db, jobs.StatusRunning, 10)
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, first.ID, running[0].ID)
}

func TestWithTx_RollsBack(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := WithTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := CreateJob(ctx, tx, "b"); err != nil {
			return err
		}
		return errors.NewInvalidRequest("abort")
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	all, err := ListJobs(ctx, db, "", 10)
	require.NoError(t, err)
	assert.Empty(t, all)
}
