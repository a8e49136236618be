package mcp

import "github.com/mark3labs/mcp-go/mcp"

// opItems describes one sync op for array-typed arguments.
var opItems = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"id":        map[string]any{"type": "string", "description": "Op UUID"},
		"entity":    map[string]any{"type": "string"},
		"entity_id": map[string]any{"type": "string"},
		"field":     map[string]any{"type": "string"},
		"value":     map[string]any{"description": "Any JSON value"},
		"timestamp": map[string]any{"type": "integer"},
		"device_id": map[string]any{"type": "string", "description": "Device UUID"},
	},
	"required": []string{"id", "entity", "entity_id", "field", "timestamp", "device_id"},
}

var workspaceCreateToolDef = mcp.NewTool("workspace_create",
	mcp.WithDescription("Create a named workspace for grouping bookmarks."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Workspace name")),
)

var workspaceListToolDef = mcp.NewTool("workspace_list",
	mcp.WithDescription("List all workspaces, newest first."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var bookmarkCreateToolDef = mcp.NewTool("bookmark_create",
	mcp.WithDescription("Save a bookmark. A tag job is queued and the worker attaches tags asynchronously."),
	mcp.WithString("workspace_id", mcp.Required(), mcp.Description("Workspace ID")),
	mcp.WithString("url", mcp.Required(), mcp.Description("Bookmark URL")),
	mcp.WithString("title", mcp.Required(), mcp.Description("Bookmark title")),
	mcp.WithString("notes", mcp.Description("Markdown notes")),
)

var bookmarkListToolDef = mcp.NewTool("bookmark_list",
	mcp.WithDescription("List bookmarks, most recently updated first."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("workspace_id", mcp.Description("Only bookmarks in this workspace")),
	mcp.WithString("tag", mcp.Description("Only bookmarks carrying this tag")),
	mcp.WithString("q", mcp.Description("Substring match on url or title")),
	mcp.WithNumber("limit", mcp.Description("Max results (default 50, max 500)")),
)

var bookmarkGetToolDef = mcp.NewTool("bookmark_get",
	mcp.WithDescription("Get a bookmark with its tags and notes rendered to HTML."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("id", mcp.Required(), mcp.Description("Bookmark ID")),
)

var tagListToolDef = mcp.NewTool("tag_list",
	mcp.WithDescription("List every tag by name."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var tagCloudToolDef = mcp.NewTool("tag_cloud",
	mcp.WithDescription("Most used tags weighted by usage count times average confidence."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithNumber("limit", mcp.Description("Max entries (default 40)")),
)

var tagSuggestToolDef = mcp.NewTool("tag_suggest",
	mcp.WithDescription("Preview the tags the rule engine derives from a url and title. Nothing is stored."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("url", mcp.Description("URL to derive a domain tag from")),
	mcp.WithString("title", mcp.Description("Title to derive keyword tags from")),
	mcp.WithBoolean("rescale", mcp.Description("Apply the worker's llm rescale to the result")),
)

var jobGetToolDef = mcp.NewTool("job_get",
	mcp.WithDescription("Get a tag job's status and attempts counter."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("id", mcp.Required(), mcp.Description("Job ID")),
)

var jobListToolDef = mcp.NewTool("job_list",
	mcp.WithDescription("List tag jobs, newest first."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("status", mcp.Description("Filter by status"), mcp.Enum("pending", "running", "done", "failed")),
	mcp.WithNumber("limit", mcp.Description("Max results (default 20)")),
)

var syncMergeToolDef = mcp.NewTool("sync_merge",
	mcp.WithDescription("Merge two op logs: last write per (entity, entity_id, field) wins; equal timestamps from different devices are reported as conflicts. Nothing is stored."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithArray("left", mcp.Description("First op log"), mcp.Items(opItems)),
	mcp.WithArray("right", mcp.Description("Second op log"), mcp.Items(opItems)),
)
