package worker

import (
	"context"
	"database/sql"

	"github.com/lesterapp/lester/internal/bookmark"
	"github.com/lesterapp/lester/internal/db"
	"github.com/lesterapp/lester/internal/jobs"
	"github.com/lesterapp/lester/internal/tagging"
)

// Store is the narrow set of persistence operations the worker needs.
type Store interface {
	FetchPendingJobs(ctx context.Context, limit int) ([]jobs.TagJob, error)
	TransitionJob(ctx context.Context, id string, from, to jobs.Status) (bool, error)
	GetBookmark(ctx context.Context, id string) (*bookmark.Bookmark, error)
	UpsertTagsForBookmark(ctx context.Context, bookmarkID string, suggestions []tagging.Suggestion) ([]bookmark.Tag, error)
	// Healthy returns an error when the store cannot recover on its own.
	Healthy(ctx context.Context) error
}

// SQLStore adapts the SQLite query functions to Store.
type SQLStore struct {
	DB   *sql.DB
	Path string
}

// NewSQLStore returns a Store backed by database, whose file lives at path.
func NewSQLStore(database *sql.DB, path string) *SQLStore {
	return &SQLStore{DB: database, Path: path}
}

func (s *SQLStore) FetchPendingJobs(ctx context.Context, limit int) ([]jobs.TagJob, error) {
	return db.FetchPendingJobs(ctx, s.DB, limit)
}

func (s *SQLStore) TransitionJob(ctx context.Context, id string, from, to jobs.Status) (bool, error) {
	return db.TransitionJob(ctx, s.DB, id, from, to)
}

func (s *SQLStore) GetBookmark(ctx context.Context, id string) (*bookmark.Bookmark, error) {
	return db.GetBookmark(ctx, s.DB, id)
}

func (s *SQLStore) UpsertTagsForBookmark(ctx context.Context, bookmarkID string, suggestions []tagging.Suggestion) ([]bookmark.Tag, error) {
	return db.UpsertTagsForBookmark(ctx, s.DB, bookmarkID, suggestions)
}

func (s *SQLStore) Healthy(ctx context.Context) error {
	return db.Healthy(ctx, s.DB, s.Path)
}
