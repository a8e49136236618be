package mcp

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lesterapp/lester/internal/config"
	"github.com/lesterapp/lester/internal/db"
	"github.com/lesterapp/lester/internal/errors"
	"github.com/lesterapp/lester/internal/logger"
)

// testSetup creates a temporary database and handlers for testing.
func testSetup(t *testing.T) (*sql.DB, *config.Config, *Handlers) {
	t.Helper()

	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	return database, cfg, NewHandlers(database, cfg, logger.Discard())
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func createWorkspace(t *testing.T, h *Handlers) string {
	t.Helper()
	result, err := h.HandleWorkspaceCreate(context.Background(), makeRequest(map[string]any{"name": "main"}))
	if err != nil {
		t.Fatalf("workspace_create: %v", err)
	}
	return parseOutput(t, result)["id"].(string)
}

func createBookmark(t *testing.T, h *Handlers, workspaceID, url, title string) map[string]any {
	t.Helper()
	result, err := h.HandleBookmarkCreate(context.Background(), makeRequest(map[string]any{
		"workspace_id": workspaceID,
		"url":          url,
		"title":        title,
		"notes":        "see *chapter 2*",
	}))
	if err != nil {
		t.Fatalf("bookmark_create: %v", err)
	}
	return parseOutput(t, result)
}

func TestHandleWorkspaceTools(t *testing.T) {
	_, _, h := testSetup(t)
	ctx := context.Background()

	id := createWorkspace(t, h)
	if id == "" {
		t.Fatal("expected workspace id")
	}

	result, err := h.HandleWorkspaceList(ctx, makeRequest(nil))
	if err != nil {
		t.Fatalf("workspace_list: %v", err)
	}
	workspaces := parseOutput(t, result)["workspaces"].([]any)
	if len(workspaces) != 1 {
		t.Errorf("got %d workspaces, want 1", len(workspaces))
	}

	result, _ = h.HandleWorkspaceCreate(ctx, makeRequest(map[string]any{"name": ""}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleBookmarkCreate(t *testing.T) {
	_, _, h := testSetup(t)
	ctx := context.Background()
	ws := createWorkspace(t, h)

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		errorCode string
	}{
		{
			name: "valid",
			args: map[string]any{"workspace_id": ws, "url": "https://go.dev", "title": "Go"},
		},
		{
			name:      "blank title",
			args:      map[string]any{"workspace_id": ws, "url": "https://go.dev", "title": " "},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "unknown workspace",
			args:      map[string]any{"workspace_id": "nope", "url": "https://go.dev", "title": "Go"},
			wantError: true,
			errorCode: "NOT_FOUND",
		},
		{
			name:      "wrong argument type",
			args:      map[string]any{"workspace_id": ws, "url": 42, "title": "Go"},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleBookmarkCreate(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantError {
				if !result.IsError {
					t.Fatalf("expected error result, got %s", extractErrorMessage(result))
				}
				assertErrorCode(t, result, tt.errorCode)
				return
			}
			output := parseOutput(t, result)
			job := output["job"].(map[string]any)
			if job["status"] != "pending" {
				t.Errorf("job status = %v, want pending", job["status"])
			}
		})
	}
}

func TestHandleBookmarkGetAndList(t *testing.T) {
	_, _, h := testSetup(t)
	ctx := context.Background()
	ws := createWorkspace(t, h)
	created := createBookmark(t, h, ws, "https://go.dev/doc", "Documentation")
	id := created["bookmark"].(map[string]any)["id"].(string)

	result, err := h.HandleBookmarkGet(ctx, makeRequest(map[string]any{"id": id}))
	if err != nil {
		t.Fatalf("bookmark_get: %v", err)
	}
	output := parseOutput(t, result)
	if output["title"] != "Documentation" {
		t.Errorf("title = %v", output["title"])
	}
	if html, _ := output["notes_html"].(string); !strings.Contains(html, "<em>chapter 2</em>") {
		t.Errorf("notes_html = %q", html)
	}

	result, _ = h.HandleBookmarkGet(ctx, makeRequest(map[string]any{"id": "missing"}))
	assertErrorCode(t, result, "NOT_FOUND")

	result, err = h.HandleBookmarkList(ctx, makeRequest(map[string]any{"workspace_id": ws, "limit": 10}))
	if err != nil {
		t.Fatalf("bookmark_list: %v", err)
	}
	if got := parseOutput(t, result)["bookmarks"].([]any); len(got) != 1 {
		t.Errorf("got %d bookmarks, want 1", len(got))
	}

	result, _ = h.HandleBookmarkList(ctx, makeRequest(map[string]any{"tag": "nothing"}))
	if got := parseOutput(t, result)["bookmarks"].([]any); len(got) != 0 {
		t.Errorf("got %d bookmarks for unknown tag, want 0", len(got))
	}
}

func TestHandleTagTools(t *testing.T) {
	_, _, h := testSetup(t)
	ctx := context.Background()

	result, err := h.HandleTagList(ctx, makeRequest(nil))
	if err != nil {
		t.Fatalf("tag_list: %v", err)
	}
	if tags := parseOutput(t, result)["tags"].([]any); len(tags) != 0 {
		t.Errorf("got %d tags, want 0", len(tags))
	}

	result, err = h.HandleTagCloud(ctx, makeRequest(map[string]any{"limit": 3}))
	if err != nil {
		t.Fatalf("tag_cloud: %v", err)
	}
	if entries := parseOutput(t, result)["entries"].([]any); len(entries) != 0 {
		t.Errorf("got %d entries, want 0", len(entries))
	}

	result, err = h.HandleTagSuggest(ctx, makeRequest(map[string]any{
		"url":     "https://www.example.com/post",
		"title":   "Distributed Systems",
		"rescale": true,
	}))
	if err != nil {
		t.Fatalf("tag_suggest: %v", err)
	}
	suggestions := parseOutput(t, result)["suggestions"].([]any)
	if len(suggestions) != 3 {
		t.Fatalf("got %d suggestions, want 3", len(suggestions))
	}
	first := suggestions[0].(map[string]any)
	if first["name"] != "example.com" || first["source"] != "llm" {
		t.Errorf("first suggestion = %v", first)
	}

	result, _ = h.HandleTagSuggest(ctx, makeRequest(map[string]any{}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleJobTools(t *testing.T) {
	_, _, h := testSetup(t)
	ctx := context.Background()
	ws := createWorkspace(t, h)
	created := createBookmark(t, h, ws, "https://go.dev", "Go")
	jobID := created["job"].(map[string]any)["id"].(string)

	result, err := h.HandleJobGet(ctx, makeRequest(map[string]any{"id": jobID}))
	if err != nil {
		t.Fatalf("job_get: %v", err)
	}
	job := parseOutput(t, result)
	if job["status"] != "pending" || job["attempts"] != float64(0) {
		t.Errorf("job = %v", job)
	}

	result, _ = h.HandleJobList(ctx, makeRequest(map[string]any{"status": "pending"}))
	if jobs := parseOutput(t, result)["jobs"].([]any); len(jobs) != 1 {
		t.Errorf("got %d jobs, want 1", len(jobs))
	}

	result, _ = h.HandleJobList(ctx, makeRequest(map[string]any{"status": "lost"}))
	assertErrorCode(t, result, "INVALID_REQUEST")

	result, _ = h.HandleJobGet(ctx, makeRequest(map[string]any{}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleSyncMerge(t *testing.T) {
	_, _, h := testSetup(t)

	op := func(id, device string, ts int, value string) map[string]any {
		return map[string]any{
			"id":        id,
			"entity":    "bookmark",
			"entity_id": "b1",
			"field":     "title",
			"value":     value,
			"timestamp": ts,
			"device_id": device,
		}
	}
	devA := "00000000-0000-0000-0000-00000000000a"
	devB := "00000000-0000-0000-0000-00000000000b"

	result, err := h.HandleSyncMerge(context.Background(), makeRequest(map[string]any{
		"left":  []any{op("10000000-0000-0000-0000-000000000001", devA, 7, "from A")},
		"right": []any{op("10000000-0000-0000-0000-000000000002", devB, 7, "from B")},
	}))
	if err != nil {
		t.Fatalf("sync_merge: %v", err)
	}
	output := parseOutput(t, result)
	merged := output["merged_ops"].([]any)
	conflicts := output["conflicts"].([]any)
	if len(merged) != 1 || len(conflicts) != 1 {
		t.Fatalf("merged=%d conflicts=%d, want 1 and 1", len(merged), len(conflicts))
	}
	if merged[0].(map[string]any)["value"] != "from B" {
		t.Errorf("winner = %v, want from B", merged[0])
	}

	result, _ = h.HandleSyncMerge(context.Background(), makeRequest(map[string]any{}))
	output = parseOutput(t, result)
	if len(output["merged_ops"].([]any)) != 0 {
		t.Errorf("empty merge produced ops: %v", output)
	}

	result, _ = h.HandleSyncMerge(context.Background(), makeRequest(map[string]any{
		"left": []any{map[string]any{"id": "not-a-uuid"}},
	}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestServerRegistration(t *testing.T) {
	database, cfg, _ := testSetup(t)

	s := NewServer(database, cfg, logger.Discard(), "test")
	tools := s.ListTools()

	expectedTools := []string{
		"workspace_create", "workspace_list",
		"bookmark_create", "bookmark_list", "bookmark_get",
		"tag_list", "tag_cloud", "tag_suggest",
		"job_get", "job_list",
		"sync_merge",
	}
	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}
	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	database, cfg, _ := testSetup(t)

	cfg.DisabledTools = []string{"sync_merge", "sync_merge", "tag_cloud"}
	cfg.DisabledTypes = []string{"job"}
	s := NewServer(database, cfg, logger.Discard(), "test")
	tools := s.ListTools()

	if len(tools) != 7 {
		t.Errorf("registered tool count = %d, want 7", len(tools))
	}
	for _, name := range []string{"sync_merge", "tag_cloud", "job_get", "job_list"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	database, cfg, _ := testSetup(t)

	cfg.DisabledTools = AllToolNames()
	s := NewServer(database, cfg, logger.Discard(), "test")
	if tools := s.ListTools(); len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0 (all disabled)", len(tools))
	}
}

func TestValidateDisabled(t *testing.T) {
	if unknown := ValidateDisabledTools([]string{"tag_cloud", "archive_store"}); len(unknown) != 1 || unknown[0] != "archive_store" {
		t.Errorf("ValidateDisabledTools() = %v", unknown)
	}
	if unknown := ValidateDisabledTypes([]string{"sync", "archive"}); len(unknown) != 1 || unknown[0] != "archive" {
		t.Errorf("ValidateDisabledTypes() = %v", unknown)
	}
	if unknown := ValidateDisabledTools(AllToolNames()); len(unknown) != 0 {
		t.Errorf("AllToolNames() returned invalid names: %v", unknown)
	}
	if got := GetTypeForTool("bookmark_get"); got != "bookmark" {
		t.Errorf("GetTypeForTool() = %q", got)
	}
	for _, typ := range KnownTypes {
		if len(ExpandTypesToTools([]string{typ})) == 0 {
			t.Errorf("type %q has no tools", typ)
		}
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)

	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
}

func TestErrorResult_WrappedErrorPreservesContext(t *testing.T) {
	wrappedErr := fmt.Errorf("left[2]: %w", errors.NewInvalidRequest("field is required"))

	r := errorResult(wrappedErr)
	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)

	if errObj["code"] != string(errors.ErrInvalidRequest) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrInvalidRequest)
	}
	if msg := errObj["message"].(string); msg != "left[2]: field is required" {
		t.Errorf("message = %q", msg)
	}
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	r := errorResult(errors.NewNotFound("bookmark", "abc"))

	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)
	if _, ok := errObj["details"]; !ok {
		t.Fatal("expected non-INTERNAL errors to include details when present")
	}
}

func TestErrorResult_PlainError(t *testing.T) {
	r := errorResult(fmt.Errorf("boom"))
	if !strings.Contains(extractErrorMessage(r), "an internal error occurred") {
		t.Errorf("payload = %s", extractErrorMessage(r))
	}
}

// Helper functions

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if !result.IsError {
		t.Errorf("expected error result, got %s", extractErrorMessage(result))
		return
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Errorf("content is not TextContent")
		return
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Errorf("failed to unmarshal error payload: %v", err)
		return
	}
	errorObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Errorf("no error object in payload")
		return
	}
	if code, _ := errorObj["code"].(string); code != expectedCode {
		t.Errorf("got error code %q, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}
	return text.Text
}

func TestFailLogsInternalCause(t *testing.T) {
	database, cfg, _ := testSetup(t)
	var buf bytes.Buffer
	h := NewHandlers(database, cfg, logger.New(logger.Config{Writer: &buf, Format: logger.FormatText, Level: slog.LevelInfo}))
	database.Close()

	result, err := h.HandleWorkspaceList(context.Background(), makeRequest(nil))
	if err != nil {
		t.Fatalf("workspace_list: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result")
	}

	out := buf.String()
	if !strings.Contains(out, "tool=workspace_list") || !strings.Contains(out, "database is closed") {
		t.Errorf("log = %q, want tool name and driver cause", out)
	}
}
