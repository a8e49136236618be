package ops

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lesterapp/lester/internal/db"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func mustWorkspace(t *testing.T, database *sql.DB, name string) string {
	t.Helper()
	w, err := CreateWorkspace(context.Background(), database, CreateWorkspaceInput{Name: name})
	require.NoError(t, err)
	return w.ID
}

func mustBookmark(t *testing.T, database *sql.DB, workspaceID, url, title string) *CreateBookmarkOutput {
	t.Helper()
	out, err := CreateBookmark(context.Background(), database, CreateBookmarkInput{
		WorkspaceID: workspaceID,
		URL:         url,
		Title:       title,
	})
	require.NoError(t, err)
	return out
}

func stringPtr(s string) *string { return &s }
