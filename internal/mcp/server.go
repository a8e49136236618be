package mcp

import (
	"database/sql"
	"log/slog"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/lesterapp/lester/internal/config"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"workspace", "bookmark", "tag", "job", "sync"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"workspace_create": {
		def:     workspaceCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleWorkspaceCreate },
	},
	"workspace_list": {
		def:     workspaceListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleWorkspaceList },
	},
	"bookmark_create": {
		def:     bookmarkCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBookmarkCreate },
	},
	"bookmark_list": {
		def:     bookmarkListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBookmarkList },
	},
	"bookmark_get": {
		def:     bookmarkGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBookmarkGet },
	},
	"tag_list": {
		def:     tagListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTagList },
	},
	"tag_cloud": {
		def:     tagCloudToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTagCloud },
	},
	"tag_suggest": {
		def:     tagSuggestToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTagSuggest },
	},
	"job_get": {
		def:     jobGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleJobGet },
	},
	"job_list": {
		def:     jobListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleJobList },
	},
	"sync_merge": {
		def:     syncMergeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSyncMerge },
	},
}

// AllToolNames returns every tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "bookmark_get" → "bookmark").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	tools := make([]string, 0)
	for name := range toolRegistry {
		if typeSet[GetTypeForTool(name)] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates a new MCP server with lester tools registered.
// Tools listed in cfg.DisabledTools or belonging to cfg.DisabledTypes
// are excluded from registration.
func NewServer(db *sql.DB, cfg *config.Config, log *slog.Logger, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"lester",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(db, cfg, log)

	// Build set of disabled tools: first expand types, then add individual tools
	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(db *sql.DB, cfg *config.Config, log *slog.Logger, version string) error {
	s := NewServer(db, cfg, log, version)
	return server.ServeStdio(s)
}
