// Package bookmark holds lester's domain records and their input rules.
package bookmark

import "github.com/lesterapp/lester/internal/tagging"

// Workspace groups bookmarks.
type Workspace struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
}

// Bookmark is a saved link.
type Bookmark struct {
	// ID is a ULID
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	URL         string `json:"url"`
	Title       string `json:"title"`

	// Notes is optional Markdown
	Notes *string `json:"notes,omitempty"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// Tag is a unique, lowercase label.
type Tag struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
}

// BookmarkTag is a tag attached to a bookmark, with the confidence and source
// of the suggestion that produced it.
type BookmarkTag struct {
	BookmarkID string         `json:"bookmark_id"`
	TagID      string         `json:"tag_id"`
	Name       string         `json:"name"`
	Confidence float64        `json:"confidence"`
	Source     tagging.Source `json:"source"`
	CreatedAt  int64          `json:"created_at"`
}

// TagCloudEntry weighs a tag by usage count times average confidence.
type TagCloudEntry struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// Filter narrows a bookmark listing. Empty fields do not filter.
type Filter struct {
	WorkspaceID string `json:"workspace_id,omitempty"`
	Tag         string `json:"tag,omitempty"`
	// Query is matched as a substring of title or url.
	Query string `json:"q,omitempty"`
}
