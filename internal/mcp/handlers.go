package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lesterapp/lester/internal/config"
	"github.com/lesterapp/lester/internal/errors"
	"github.com/lesterapp/lester/internal/logger"
	"github.com/lesterapp/lester/internal/ops"
	"github.com/lesterapp/lester/internal/tagging"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db     *sql.DB
	cfg    *config.Config
	policy tagging.Policy
	log    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config, log *slog.Logger) *Handlers {
	return &Handlers{db: db, cfg: cfg, policy: cfg.TaggingPolicy(), log: log}
}

// Request types for each tool. Tools whose arguments match an ops input
// decode straight into it.

// IDRequest represents the arguments for the *_get tools.
type IDRequest struct {
	ID string `json:"id"`
}

// fail logs store failures and converts err into an error result.
func (h *Handlers) fail(tool string, err error) *mcp.CallToolResult {
	if errors.Is(err, errors.ErrInternal) || !isLesterError(err) {
		h.log.Error("tool failed", "tool", tool, "err", err, logger.Cause(err))
	}
	return errorResult(err)
}

// HandleWorkspaceCreate handles the workspace_create tool call.
func (h *Handlers) HandleWorkspaceCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ops.CreateWorkspaceInput](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.CreateWorkspace(ctx, h.db, input)
	if err != nil {
		return h.fail("workspace_create", err), nil
	}
	return successResult(result)
}

// HandleWorkspaceList handles the workspace_list tool call.
func (h *Handlers) HandleWorkspaceList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.ListWorkspaces(ctx, h.db)
	if err != nil {
		return h.fail("workspace_list", err), nil
	}
	return successResult(result)
}

// HandleBookmarkCreate handles the bookmark_create tool call.
func (h *Handlers) HandleBookmarkCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ops.CreateBookmarkInput](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.CreateBookmark(ctx, h.db, input)
	if err != nil {
		return h.fail("bookmark_create", err), nil
	}
	return successResult(result)
}

// HandleBookmarkList handles the bookmark_list tool call.
func (h *Handlers) HandleBookmarkList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ops.ListBookmarksInput](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.ListBookmarks(ctx, h.db, input)
	if err != nil {
		return h.fail("bookmark_list", err), nil
	}
	return successResult(result)
}

// HandleBookmarkGet handles the bookmark_get tool call.
func (h *Handlers) HandleBookmarkGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.GetBookmark(ctx, h.db, ops.GetBookmarkInput{ID: input.ID})
	if err != nil {
		return h.fail("bookmark_get", err), nil
	}
	return successResult(result)
}

// HandleTagList handles the tag_list tool call.
func (h *Handlers) HandleTagList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.ListTags(ctx, h.db)
	if err != nil {
		return h.fail("tag_list", err), nil
	}
	return successResult(result)
}

// HandleTagCloud handles the tag_cloud tool call.
func (h *Handlers) HandleTagCloud(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ops.TagCloudInput](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.TagCloud(ctx, h.db, input)
	if err != nil {
		return h.fail("tag_cloud", err), nil
	}
	return successResult(result)
}

// HandleTagSuggest handles the tag_suggest tool call.
func (h *Handlers) HandleTagSuggest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ops.SuggestInput](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.Suggest(h.policy, input)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleJobGet handles the job_get tool call.
func (h *Handlers) HandleJobGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.GetJob(ctx, h.db, ops.GetJobInput{ID: input.ID})
	if err != nil {
		return h.fail("job_get", err), nil
	}
	return successResult(result)
}

// HandleJobList handles the job_list tool call.
func (h *Handlers) HandleJobList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ops.ListJobsInput](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.ListJobs(ctx, h.db, input)
	if err != nil {
		return h.fail("job_list", err), nil
	}
	return successResult(result)
}

// HandleSyncMerge handles the sync_merge tool call.
func (h *Handlers) HandleSyncMerge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ops.SyncMergeInput](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return successResult(ops.SyncMerge(input))
}

// Result helpers

func isLesterError(err error) bool {
	_, ok := errors.As(err)
	return ok
}

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if lErr, ok := errors.As(err); ok {
		message := lErr.Message
		// Keep context added by wrapping, e.g. "left[2]: ".
		if prefix := strings.TrimSuffix(err.Error(), lErr.Error()); prefix != err.Error() && prefix != "" {
			message = prefix + message
		}
		errorObj := map[string]any{
			"code":    lErr.Code,
			"message": message,
			"status":  lErr.Status,
		}
		if lErr.Code != errors.ErrInternal && lErr.Details != nil {
			errorObj["details"] = lErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
