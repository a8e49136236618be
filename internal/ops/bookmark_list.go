package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/lesterapp/lester/internal/bookmark"
	"github.com/lesterapp/lester/internal/db"
)

// ListBookmarksInput contains parameters for the ListBookmarks operation.
// Empty filters match everything.
type ListBookmarksInput struct {
	WorkspaceID string `json:"workspace_id,omitempty"`
	Tag         string `json:"tag,omitempty"`
	Query       string `json:"q,omitempty"`
	Limit       int    `json:"limit,omitempty"`
}

// ListBookmarksOutput contains the result of the ListBookmarks operation.
type ListBookmarksOutput struct {
	Bookmarks []bookmark.Bookmark `json:"bookmarks"`
}

// ListBookmarks returns matching bookmarks, most recently updated first.
func ListBookmarks(ctx context.Context, database *sql.DB, input ListBookmarksInput) (*ListBookmarksOutput, error) {
	filter := bookmark.Filter{
		WorkspaceID: strings.TrimSpace(input.WorkspaceID),
		Tag:         strings.ToLower(strings.TrimSpace(input.Tag)),
		Query:       strings.TrimSpace(input.Query),
	}
	limit := clampLimit(input.Limit, DefaultListLimit, MaxListLimit)

	bookmarks, err := db.ListBookmarks(ctx, database, filter, limit)
	if err != nil {
		return nil, err
	}
	return &ListBookmarksOutput{Bookmarks: bookmarks}, nil
}
