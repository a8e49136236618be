package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/lesterapp/lester/internal/bookmark"
	"github.com/lesterapp/lester/internal/errors"
	"github.com/lesterapp/lester/internal/tagging"
)

const bookmarkColumns = `b.id, b.workspace_id, b.url, b.title, b.notes, b.created_at, b.updated_at`

// InsertBookmark stores a new bookmark.
func InsertBookmark(ctx context.Context, q Querier, b *bookmark.Bookmark) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO bookmarks (id, workspace_id, url, title, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.WorkspaceID, b.URL, b.Title, toNullString(b.Notes), b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetBookmark retrieves a bookmark by id.
func GetBookmark(ctx context.Context, q Querier, id string) (*bookmark.Bookmark, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+bookmarkColumns+` FROM bookmarks b WHERE b.id = ?`, id)
	b, err := scanBookmark(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFound("bookmark", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return b, nil
}

// ListBookmarks returns bookmarks matching filter, most recently updated first.
// A limit of 0 means no limit.
func ListBookmarks(ctx context.Context, q Querier, filter bookmark.Filter, limit int) ([]bookmark.Bookmark, error) {
	var (
		sb         strings.Builder
		conditions []string
		args       []any
	)
	sb.WriteString(`SELECT DISTINCT ` + bookmarkColumns + ` FROM bookmarks b`)

	if filter.Tag != "" {
		sb.WriteString(` INNER JOIN bookmark_tags bt ON b.id = bt.bookmark_id INNER JOIN tags t ON bt.tag_id = t.id`)
		conditions = append(conditions, "t.name = ?")
		args = append(args, filter.Tag)
	}
	if filter.WorkspaceID != "" {
		conditions = append(conditions, "b.workspace_id = ?")
		args = append(args, filter.WorkspaceID)
	}
	if filter.Query != "" {
		needle := "%" + filter.Query + "%"
		conditions = append(conditions, "(b.title LIKE ? OR b.url LIKE ?)")
		args = append(args, needle, needle)
	}
	if len(conditions) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	sb.WriteString(" ORDER BY b.updated_at DESC, b.id DESC")
	if limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, limit)
	}

	rows, err := q.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	bookmarks := []bookmark.Bookmark{}
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		bookmarks = append(bookmarks, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return bookmarks, nil
}

// UpdateBookmarkField sets one editable field (title, url or notes) and bumps
// updated_at. A nil value is only accepted for notes.
func UpdateBookmarkField(ctx context.Context, q Querier, id, field string, value *string, updatedAt int64) error {
	switch field {
	case "title", "url":
		if value == nil || strings.TrimSpace(*value) == "" {
			return errors.NewInvalidRequest(fmt.Sprintf("bookmark %s must not be empty", field))
		}
	case "notes":
	default:
		return errors.NewInvalidRequest(fmt.Sprintf("bookmark field %q is not editable", field))
	}

	// field is one of the three literal column names checked above.
	query := `UPDATE bookmarks SET ` + field + ` = ?, updated_at = ? WHERE id = ?`
	result, err := q.ExecContext(ctx, query, toNullString(value), updatedAt, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound("bookmark", id)
	}
	return nil
}

// ListBookmarkTags returns the tags attached to a bookmark, highest confidence first.
func ListBookmarkTags(ctx context.Context, q Querier, bookmarkID string) ([]bookmark.BookmarkTag, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT bt.bookmark_id, bt.tag_id, t.name, bt.confidence, bt.source, bt.created_at
		FROM bookmark_tags bt
		INNER JOIN tags t ON bt.tag_id = t.id
		WHERE bt.bookmark_id = ?
		ORDER BY bt.confidence DESC, t.name ASC`, bookmarkID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	tags := []bookmark.BookmarkTag{}
	for rows.Next() {
		var (
			bt     bookmark.BookmarkTag
			source string
		)
		if err := rows.Scan(&bt.BookmarkID, &bt.TagID, &bt.Name, &bt.Confidence, &source, &bt.CreatedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		bt.Source = tagging.Source(source)
		tags = append(tags, bt)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return tags, nil
}

// scanBookmark scans a single row into a Bookmark.
func scanBookmark(row scanner) (*bookmark.Bookmark, error) {
	var (
		b     bookmark.Bookmark
		notes sql.NullString
	)
	if err := row.Scan(&b.ID, &b.WorkspaceID, &b.URL, &b.Title, &notes, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Notes = fromNullString(notes)
	return &b, nil
}
