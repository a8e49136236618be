package db

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/lesterapp/lester/internal/bookmark"
	"github.com/lesterapp/lester/internal/errors"
)

// InsertWorkspace stores a new workspace.
func InsertWorkspace(ctx context.Context, q Querier, w *bookmark.Workspace) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO workspaces (id, name, created_at) VALUES (?, ?, ?)`,
		w.ID, w.Name, w.CreatedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetWorkspace retrieves a workspace by id.
func GetWorkspace(ctx context.Context, q Querier, id string) (*bookmark.Workspace, error) {
	var w bookmark.Workspace
	err := q.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM workspaces WHERE id = ?`, id,
	).Scan(&w.ID, &w.Name, &w.CreatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFound("workspace", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &w, nil
}

// ListWorkspaces returns all workspaces, newest first.
func ListWorkspaces(ctx context.Context, q Querier) ([]bookmark.Workspace, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, name, created_at FROM workspaces ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	workspaces := []bookmark.Workspace{}
	for rows.Next() {
		var w bookmark.Workspace
		if err := rows.Scan(&w.ID, &w.Name, &w.CreatedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		workspaces = append(workspaces, w)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return workspaces, nil
}
