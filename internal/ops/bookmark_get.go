package ops

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/lesterapp/lester/internal/bookmark"
	"github.com/lesterapp/lester/internal/db"
	"github.com/lesterapp/lester/internal/errors"
)

// notesRenderer renders bookmark notes. Raw HTML in notes is escaped since
// goldmark is not configured with html.WithUnsafe.
var notesRenderer = goldmark.New(goldmark.WithExtensions(extension.GFM))

// GetBookmarkInput contains parameters for the GetBookmark operation.
type GetBookmarkInput struct {
	ID string `json:"id"`
}

// GetBookmarkOutput is a bookmark with its tags and rendered notes.
type GetBookmarkOutput struct {
	*bookmark.Bookmark
	Tags      []bookmark.BookmarkTag `json:"tags"`
	NotesHTML string                 `json:"notes_html,omitempty"`
}

// GetBookmark retrieves a bookmark, its tags, and its notes as HTML.
func GetBookmark(ctx context.Context, database *sql.DB, input GetBookmarkInput) (*GetBookmarkOutput, error) {
	if input.ID == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	b, err := db.GetBookmark(ctx, database, input.ID)
	if err != nil {
		return nil, err
	}
	tags, err := db.ListBookmarkTags(ctx, database, b.ID)
	if err != nil {
		return nil, err
	}

	out := &GetBookmarkOutput{Bookmark: b, Tags: tags}
	if b.Notes != nil {
		html, err := RenderNotes(*b.Notes)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out.NotesHTML = html
	}
	return out, nil
}

// RenderNotes converts Markdown notes to HTML.
func RenderNotes(notes string) (string, error) {
	var buf bytes.Buffer
	if err := notesRenderer.Convert([]byte(notes), &buf); err != nil {
		return "", fmt.Errorf("render notes: %w", err)
	}
	return buf.String(), nil
}
