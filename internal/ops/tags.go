package ops

import (
	"context"
	"database/sql"

	"github.com/lesterapp/lester/internal/bookmark"
	"github.com/lesterapp/lester/internal/db"
)

// ListTagsOutput contains the result of the ListTags operation.
type ListTagsOutput struct {
	Tags []bookmark.Tag `json:"tags"`
}

// ListTags returns every tag ordered by name.
func ListTags(ctx context.Context, database *sql.DB) (*ListTagsOutput, error) {
	tags, err := db.ListTags(ctx, database)
	if err != nil {
		return nil, err
	}
	return &ListTagsOutput{Tags: tags}, nil
}

// TagCloudInput contains parameters for the TagCloud operation.
type TagCloudInput struct {
	// Limit defaults to db.DefaultTagCloudLimit.
	Limit int `json:"limit,omitempty"`
}

// TagCloudOutput contains the result of the TagCloud operation.
type TagCloudOutput struct {
	Entries []bookmark.TagCloudEntry `json:"entries"`
}

// TagCloud returns the most used tags weighted by count * average confidence.
func TagCloud(ctx context.Context, database *sql.DB, input TagCloudInput) (*TagCloudOutput, error) {
	limit := clampLimit(input.Limit, db.DefaultTagCloudLimit, MaxListLimit)
	entries, err := db.TagCloud(ctx, database, limit)
	if err != nil {
		return nil, err
	}
	return &TagCloudOutput{Entries: entries}, nil
}
