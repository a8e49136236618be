package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/lesterapp/lester/internal/bookmark"
	"github.com/lesterapp/lester/internal/errors"
	"github.com/lesterapp/lester/internal/tagging"
)

// DefaultTagCloudLimit caps the tag cloud when no limit is given.
const DefaultTagCloudLimit = 40

// UpsertTagsForBookmark attaches suggestions to a bookmark in one transaction.
// Tags are found or created by name. An existing (bookmark, tag) link is
// replaced, so re-enrichment never duplicates. Suggestions sharing a name
// collapse to the highest-confidence one before anything is written.
func UpsertTagsForBookmark(ctx context.Context, db *sql.DB, bookmarkID string, suggestions []tagging.Suggestion) ([]bookmark.Tag, error) {
	suggestions = strongestByName(suggestions)
	tags := make([]bookmark.Tag, 0, len(suggestions))
	err := WithTx(ctx, db, func(tx *sql.Tx) error {
		now := time.Now().Unix()
		for _, s := range suggestions {
			tag, err := findOrCreateTag(ctx, tx, s.Name, now)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO bookmark_tags (bookmark_id, tag_id, confidence, source, created_at)
				VALUES (?, ?, ?, ?, ?)`,
				bookmarkID, tag.ID, s.Confidence, string(s.Source), now,
			)
			if err != nil {
				return errors.NewInternal(err)
			}
			tags = append(tags, *tag)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tags, nil
}

// strongestByName keeps one suggestion per name, the one with the highest
// confidence, at the position the name first appeared. Ties keep the earlier.
func strongestByName(suggestions []tagging.Suggestion) []tagging.Suggestion {
	index := make(map[string]int, len(suggestions))
	out := make([]tagging.Suggestion, 0, len(suggestions))
	for _, s := range suggestions {
		i, seen := index[s.Name]
		if !seen {
			index[s.Name] = len(out)
			out = append(out, s)
			continue
		}
		if s.Confidence > out[i].Confidence {
			out[i] = s
		}
	}
	return out
}

// findOrCreateTag inserts the tag unless the name exists, then reads it back,
// so two writers racing on a new name end up with the same row.
func findOrCreateTag(ctx context.Context, q Querier, name string, now int64) (*bookmark.Tag, error) {
	_, err := q.ExecContext(ctx, `
		INSERT INTO tags (id, name, created_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO NOTHING`,
		NewID(), name, now,
	)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	var t bookmark.Tag
	err = q.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM tags WHERE name = ?`, name,
	).Scan(&t.ID, &t.Name, &t.CreatedAt)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &t, nil
}

// ListTags returns every tag ordered by name.
func ListTags(ctx context.Context, q Querier) ([]bookmark.Tag, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name, created_at FROM tags ORDER BY name`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	tags := []bookmark.Tag{}
	for rows.Next() {
		var t bookmark.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return tags, nil
}

// TagCloud returns up to limit tags weighted by count * average confidence,
// most used first.
func TagCloud(ctx context.Context, q Querier, limit int) ([]bookmark.TagCloudEntry, error) {
	if limit <= 0 {
		limit = DefaultTagCloudLimit
	}
	rows, err := q.QueryContext(ctx, `
		SELECT t.name, COUNT(*) AS count, AVG(bt.confidence) AS avg_conf
		FROM tags t
		INNER JOIN bookmark_tags bt ON t.id = bt.tag_id
		GROUP BY t.name
		ORDER BY count DESC, t.name ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	entries := []bookmark.TagCloudEntry{}
	for rows.Next() {
		var (
			name    string
			count   int64
			avgConf float64
		)
		if err := rows.Scan(&name, &count, &avgConf); err != nil {
			return nil, errors.NewInternal(err)
		}
		entries = append(entries, bookmark.TagCloudEntry{Name: name, Weight: float64(count) * avgConf})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return entries, nil
}
