package ops

import (
	"context"
	"database/sql"
	"time"

	"github.com/lesterapp/lester/internal/bookmark"
	"github.com/lesterapp/lester/internal/db"
	"github.com/lesterapp/lester/internal/jobs"
)

// CreateBookmarkInput contains parameters for the CreateBookmark operation.
type CreateBookmarkInput struct {
	WorkspaceID string  `json:"workspace_id"`
	URL         string  `json:"url"`
	Title       string  `json:"title"`
	Notes       *string `json:"notes,omitempty"`
}

// CreateBookmarkOutput contains the new bookmark and its enrichment job.
type CreateBookmarkOutput struct {
	Bookmark *bookmark.Bookmark `json:"bookmark"`
	Job      *jobs.TagJob       `json:"job"`
}

// CreateBookmark saves a bookmark and enqueues its tag job in one transaction.
// Blank url or title is rejected before anything is written.
func CreateBookmark(ctx context.Context, database *sql.DB, input CreateBookmarkInput) (*CreateBookmarkOutput, error) {
	in, err := bookmark.ValidateBookmark(bookmark.NewBookmark{
		WorkspaceID: input.WorkspaceID,
		URL:         input.URL,
		Title:       input.Title,
		Notes:       input.Notes,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	b := &bookmark.Bookmark{
		ID:          db.NewID(),
		WorkspaceID: in.WorkspaceID,
		URL:         in.URL,
		Title:       in.Title,
		Notes:       in.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var job *jobs.TagJob
	err = db.WithTx(ctx, database, func(tx *sql.Tx) error {
		if _, err := db.GetWorkspace(ctx, tx, b.WorkspaceID); err != nil {
			return err
		}
		if err := db.InsertBookmark(ctx, tx, b); err != nil {
			return err
		}
		j, err := db.CreateJob(ctx, tx, b.ID)
		if err != nil {
			return err
		}
		job = j
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &CreateBookmarkOutput{Bookmark: b, Job: job}, nil
}
