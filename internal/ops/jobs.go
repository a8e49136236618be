package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/lesterapp/lester/internal/db"
	"github.com/lesterapp/lester/internal/errors"
	"github.com/lesterapp/lester/internal/jobs"
)

// GetJobInput contains parameters for the GetJob operation.
type GetJobInput struct {
	ID string `json:"id"`
}

// GetJob returns a tag job, including its attempts counter.
func GetJob(ctx context.Context, database *sql.DB, input GetJobInput) (*jobs.TagJob, error) {
	if input.ID == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	return db.GetJob(ctx, database, input.ID)
}

// ListJobsInput contains parameters for the ListJobs operation.
type ListJobsInput struct {
	// Status filters by lifecycle state; empty lists all.
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// ListJobsOutput contains the result of the ListJobs operation.
type ListJobsOutput struct {
	Jobs []jobs.TagJob `json:"jobs"`
}

// ListJobs returns tag jobs, newest first.
func ListJobs(ctx context.Context, database *sql.DB, input ListJobsInput) (*ListJobsOutput, error) {
	var status jobs.Status
	if s := strings.ToLower(strings.TrimSpace(input.Status)); s != "" {
		parsed, err := jobs.ParseStatus(s)
		if err != nil {
			return nil, errors.NewInvalidRequest("status must be one of: pending, running, done, failed")
		}
		status = parsed
	}
	limit := clampLimit(input.Limit, DefaultJobLimit, MaxListLimit)

	list, err := db.ListJobs(ctx, database, status, limit)
	if err != nil {
		return nil, err
	}
	return &ListJobsOutput{Jobs: list}, nil
}
