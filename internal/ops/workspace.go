package ops

import (
	"context"
	"database/sql"
	"time"

	"github.com/lesterapp/lester/internal/bookmark"
	"github.com/lesterapp/lester/internal/db"
)

// CreateWorkspaceInput contains parameters for the CreateWorkspace operation.
type CreateWorkspaceInput struct {
	Name string `json:"name"`
}

// CreateWorkspace creates a named workspace.
func CreateWorkspace(ctx context.Context, database *sql.DB, input CreateWorkspaceInput) (*bookmark.Workspace, error) {
	in, err := bookmark.ValidateWorkspace(bookmark.NewWorkspace{Name: input.Name})
	if err != nil {
		return nil, err
	}
	w := &bookmark.Workspace{
		ID:        db.NewID(),
		Name:      in.Name,
		CreatedAt: time.Now().Unix(),
	}
	if err := db.InsertWorkspace(ctx, database, w); err != nil {
		return nil, err
	}
	return w, nil
}

// ListWorkspacesOutput contains the result of the ListWorkspaces operation.
type ListWorkspacesOutput struct {
	Workspaces []bookmark.Workspace `json:"workspaces"`
}

// ListWorkspaces returns all workspaces, newest first.
func ListWorkspaces(ctx context.Context, database *sql.DB) (*ListWorkspacesOutput, error) {
	workspaces, err := db.ListWorkspaces(ctx, database)
	if err != nil {
		return nil, err
	}
	return &ListWorkspacesOutput{Workspaces: workspaces}, nil
}
