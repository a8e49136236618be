package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lesterapp/lester/internal/bookmark"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func insertTestBookmark(t *testing.T, db *sql.DB, workspaceID, url, title string) *bookmark.Bookmark {
	t.Helper()
	now := time.Now().Unix()
	b := &bookmark.Bookmark{
		ID:          NewID(),
		WorkspaceID: workspaceID,
		URL:         url,
		Title:       title,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, InsertBookmark(context.Background(), db, b))
	return b
}
